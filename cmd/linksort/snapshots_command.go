package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"linksort/internal/snapshot"
)

func newSnapshotsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "snapshots",
		Short: "List link-tree snapshots taken before organize runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			// Listing never exports, so no source store is needed.
			svc := snapshot.NewService(cfg.Paths.SnapshotDir, nil, ctx.logger())
			infos, err := svc.List()
			if err != nil {
				return err
			}
			if infos == nil {
				infos = []snapshot.Info{}
			}
			return emit(cmd, asJSON, infos, func(out io.Writer) error {
				if len(infos) == 0 {
					fmt.Fprintf(out, "No snapshots in %s\n", cfg.Paths.SnapshotDir)
					return nil
				}
				rows := make([][]string, 0, len(infos))
				for _, info := range infos {
					rows = append(rows, []string{
						info.ID,
						info.Label,
						info.CreatedAt.Local().Format(time.DateTime),
						strconv.Itoa(info.Folders),
						strconv.Itoa(info.Items),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]column{col("ID"), col("Label"), col("Created"), numCol("Folders"), numCol("Links")},
					rows,
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON")
	return cmd
}
