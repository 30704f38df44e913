package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"linksort/internal/learning"
	"linksort/internal/store"
)

func newLearnCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "learn",
		Short: "Manage learned site-to-category patterns",
	}
	cmd.AddCommand(newLearnListCommand(ctx))
	cmd.AddCommand(newLearnAddCommand(ctx))
	cmd.AddCommand(newLearnRemoveCommand(ctx))
	return cmd
}

func newLearnListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List learned patterns",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := openPatterns(ctx)
			if err != nil {
				return err
			}
			defer repo.Close()

			patterns, err := repo.ListPatterns(commandCtx(cmd))
			if err != nil {
				return err
			}
			if patterns == nil {
				patterns = []learning.Pattern{}
			}
			return emit(cmd, asJSON, patterns, func(out io.Writer) error {
				if len(patterns) == 0 {
					fmt.Fprintln(out, "No learned patterns")
					return nil
				}
				rows := make([][]string, 0, len(patterns))
				for _, p := range patterns {
					rows = append(rows, []string{
						p.MatchKey,
						p.CategoryPath,
						strconv.FormatFloat(p.Confidence, 'f', 2, 64),
						p.Source,
						strconv.Itoa(p.Hits),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]column{col("Site"), wideCol("Category", 50), numCol("Confidence"), col("Source"), numCol("Hits")},
					rows,
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON")
	return cmd
}

func newLearnAddCommand(ctx *commandContext) *cobra.Command {
	var confidence float64
	cmd := &cobra.Command{
		Use:   "add <site-or-url> <category-path>",
		Short: "Teach a category for every link on a site",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := learning.MatchKey(args[0])
			if key == "" {
				return fmt.Errorf("cannot derive a site from %q", args[0])
			}
			category := strings.TrimSpace(args[1])
			if category == "" {
				return fmt.Errorf("category path is required")
			}
			if confidence <= 0 || confidence > 1 {
				return fmt.Errorf("confidence must be in (0, 1], got %v", confidence)
			}

			repo, err := openPatterns(ctx)
			if err != nil {
				return err
			}
			defer repo.Close()

			err = repo.UpsertPattern(commandCtx(cmd), learning.Pattern{
				MatchKey:     key,
				CategoryPath: category,
				Confidence:   confidence,
				Source:       learning.SourceUser,
				UpdatedAt:    time.Now().UTC(),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Learned %s -> %s\n", key, category)
			return nil
		},
	}
	cmd.Flags().Float64Var(&confidence, "confidence", 1.0, "Pattern confidence between 0 and 1")
	return cmd
}

func newLearnRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <site-or-url>",
		Short: "Forget a learned pattern",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := learning.MatchKey(args[0])
			if key == "" {
				return fmt.Errorf("cannot derive a site from %q", args[0])
			}
			repo, err := openPatterns(ctx)
			if err != nil {
				return err
			}
			defer repo.Close()

			removed, err := repo.DeletePattern(commandCtx(cmd), key)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !removed {
				fmt.Fprintf(out, "No pattern for %s\n", key)
				return nil
			}
			fmt.Fprintf(out, "Removed pattern for %s\n", key)
			return nil
		},
	}
}

func openPatterns(ctx *commandContext) (*store.Store, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	return store.Open(cfg)
}
