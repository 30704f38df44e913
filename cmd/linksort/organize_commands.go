package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"linksort/internal/daemonctl"
	"linksort/internal/daemonrun"
	"linksort/internal/events"
	"linksort/internal/organize"
)

func newOrganizeCommand(ctx *commandContext) *cobra.Command {
	var force bool
	var wait bool

	cmd := &cobra.Command{
		Use:   "organize [item-id...]",
		Short: "Start an organize job over the whole collection or the given items",
		Long: "Start an organize job. Without item ids every link directly under the root folder " +
			"is categorized (--force includes links already in folders). The daemon advances the " +
			"job one batch per wake-up; --wait drives it in the foreground instead.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			daemonRunning, _, _ := daemonctl.ProcessInfo(cfg)
			out := cmd.OutOrStdout()
			progress := &progressPrinter{out: out}

			return ctx.withRuntime(cmd, daemonrun.OpenOptions{Events: progress}, func(runCtx context.Context, rt *daemonrun.Runtime) error {
				st, err := rt.Organizer.Start(runCtx, organize.StartRequest{IDs: args, Force: force})
				if errors.Is(err, organize.ErrAlreadyRunning) {
					return fmt.Errorf("an organize job is already in progress; check `linksort status` or run `linksort organize discard`")
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Organize job %s started (%d items)\n", st.JobID, st.Total())

				if progress.finished() {
					return progress.err()
				}
				if !wait {
					if !daemonRunning {
						fmt.Fprintln(out, "Daemon is not running; start it with `linksort daemon start` or re-run with --wait")
					}
					return nil
				}
				if daemonRunning {
					fmt.Fprintln(out, "Daemon is running; waiting for it to finish the job")
					if err := pollUntilIdle(runCtx, rt.Organizer, time.Duration(cfg.Scheduler.PollInterval)*time.Second); err != nil {
						return err
					}
					fmt.Fprintln(out, "Organize job finished (see `linksort daemon logs` for details)")
					return nil
				}
				if err := rt.Scheduler.RunUntil(runCtx, jobIdle(rt.Organizer)); err != nil {
					return err
				}
				return progress.err()
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Include links already filed in folders")
	cmd.Flags().BoolVar(&wait, "wait", false, "Block until the job finishes")

	cmd.AddCommand(newOrganizeDiscardCommand(ctx))
	cmd.AddCommand(newOrganizeResumeCommand(ctx))
	return cmd
}

func newOrganizeDiscardCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "discard",
		Short: "Delete the in-progress job record and its pending wake-up",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd, daemonrun.OpenOptions{SkipProviders: true}, func(runCtx context.Context, rt *daemonrun.Runtime) error {
				removed, err := rt.Organizer.Discard(runCtx)
				if err != nil {
					return err
				}
				if removed {
					fmt.Fprintln(cmd.OutOrStdout(), "Organize job discarded")
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "No organize job in progress")
				}
				return nil
			})
		},
	}
}

func newOrganizeResumeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Re-arm the wake-up of a job left without one",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd, daemonrun.OpenOptions{SkipProviders: true}, func(runCtx context.Context, rt *daemonrun.Runtime) error {
				rearmed, err := rt.Organizer.Recover(runCtx)
				if err != nil {
					return err
				}
				status, err := rt.Organizer.Status(runCtx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				switch {
				case status.State == nil:
					fmt.Fprintln(out, "No organize job in progress")
				case rearmed:
					fmt.Fprintf(out, "Job %s re-armed at item %d of %d\n", status.State.JobID, status.State.Cursor, status.State.Total())
				default:
					fmt.Fprintf(out, "Job %s already has a wake-up at %s\n", status.State.JobID, status.NextWake.Local().Format(time.RFC3339))
				}
				return nil
			})
		},
	}
}

func jobIdle(o *organize.Orchestrator) func(context.Context) (bool, error) {
	return func(ctx context.Context) (bool, error) {
		status, err := o.Status(ctx)
		if err != nil {
			return false, err
		}
		return status.State == nil, nil
	}
}

func pollUntilIdle(ctx context.Context, o *organize.Orchestrator, interval time.Duration) error {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	idle := jobIdle(o)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		done, err := idle(ctx)
		if err != nil || done {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// progressPrinter writes one line per job event and remembers how the job
// ended.
type progressPrinter struct {
	out     io.Writer
	done    bool
	failure string
}

func (p *progressPrinter) Publish(_ context.Context, e events.Event) {
	switch e.Type {
	case events.TypeProgress:
		fmt.Fprintf(p.out, "Batch %d: %d/%d items (%d moved, %d errors)\n",
			e.Batch.Index+1, e.Cursor, e.Total, e.Batch.Moved, e.Batch.Errors)
	case events.TypeRetry:
		fmt.Fprintf(p.out, "Providers exhausted; retry %d in %s (%s)\n", e.Attempt, e.RetryIn, e.Error)
	case events.TypeCompleted:
		p.done = true
		fmt.Fprintf(p.out, "Completed: %d processed, %d filed into %d categories, %d errors\n",
			e.Summary.Processed, e.Summary.Categorized, e.Summary.Categories, e.Summary.Errors)
	case events.TypeFailed:
		p.done = true
		p.failure = e.Error
		fmt.Fprintf(p.out, "Failed after %d/%d items: %s\n", e.Cursor, e.Total, e.Error)
	}
}

func (p *progressPrinter) finished() bool { return p.done }

func (p *progressPrinter) err() error {
	if p.failure != "" {
		return fmt.Errorf("organize job failed: %s", p.failure)
	}
	return nil
}
