package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"linksort/internal/daemonrun"
	"linksort/internal/preflight"
)

var errChecksFailed = errors.New("one or more checks failed")

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var skipProviders bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify providers, stores, and directories are usable",
		Long: "Runs the same preflight checks the daemon logs at startup. Provider checks\n" +
			"send one short completion each; pass --skip-providers to avoid the cost.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd, daemonrun.OpenOptions{SkipProviders: true}, func(runCtx context.Context, rt *daemonrun.Runtime) error {
				results := preflight.RunAll(runCtx, rt.Config, rt.JobStore(), skipProviders)
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				for _, line := range renderSectionHeader("Preflight", colorize) {
					fmt.Fprintln(out, line)
				}
				for _, r := range results {
					kind := statusOK
					if !r.Passed {
						kind = statusError
					}
					fmt.Fprintln(out, renderStatusLine(r.Name, kind, r.Detail, colorize))
				}
				if preflight.Failed(results) {
					return errChecksFailed
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&skipProviders, "skip-providers", false, "Skip provider completion checks")
	return cmd
}
