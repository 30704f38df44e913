package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"linksort/internal/daemonctl"
	"linksort/internal/daemonrun"
	"linksort/internal/jobstate"
	"linksort/internal/organize"
)

type statusReport struct {
	DaemonRunning bool              `json:"daemon_running"`
	DaemonPID     int               `json:"daemon_pid,omitempty"`
	JobStore      string            `json:"job_store"`
	Job           *jobstate.State   `json:"job,omitempty"`
	NextWake      *time.Time        `json:"next_wake,omitempty"`
	Summary       *jobstate.Summary `json:"summary,omitempty"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and organize job status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			report := statusReport{JobStore: cfg.JobStore.Backend}
			report.DaemonRunning, report.DaemonPID, _ = daemonctl.ProcessInfo(cfg)

			return ctx.withRuntime(cmd, daemonrun.OpenOptions{SkipProviders: true}, func(runCtx context.Context, rt *daemonrun.Runtime) error {
				status, err := rt.Organizer.Status(runCtx)
				if err != nil {
					return err
				}
				if status.State != nil {
					report.Job = status.State
					sum := status.State.Summarize()
					report.Summary = &sum
					if status.Armed {
						next := status.NextWake
						report.NextWake = &next
					}
				}
				return emit(cmd, asJSON, report, func(out io.Writer) error {
					renderStatus(out, report, status, shouldColorize(out))
					return nil
				})
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON")
	return cmd
}

func renderStatus(out io.Writer, report statusReport, status organize.Status, colorize bool) {
	for _, line := range renderSectionHeader("System Status", colorize) {
		fmt.Fprintln(out, line)
	}
	if report.DaemonRunning {
		fmt.Fprintln(out, renderStatusLine("Daemon", statusOK, fmt.Sprintf("Running (pid %d)", report.DaemonPID), colorize))
	} else {
		fmt.Fprintln(out, renderStatusLine("Daemon", statusWarn, "Not running", colorize))
	}
	fmt.Fprintln(out, renderStatusLine("Job store", statusInfo, report.JobStore, colorize))
	fmt.Fprintln(out)

	for _, line := range renderSectionHeader("Organize Job", colorize) {
		fmt.Fprintln(out, line)
	}
	st := report.Job
	if st == nil {
		fmt.Fprintln(out, "No organize job in progress")
		return
	}
	kind := statusInfo
	switch {
	case st.Phase == jobstate.PhaseFailed:
		kind = statusError
	case st.Attempts > 0:
		kind = statusWarn
	}
	fmt.Fprintln(out, renderStatusLine("Job", kind, fmt.Sprintf("%s (%s, %s)", st.JobID, st.Phase, st.Mode), colorize))
	fmt.Fprintln(out, renderStatusLine("Progress", statusInfo, renderProgress(st.Cursor, st.Total()), colorize))
	if st.Attempts > 0 {
		fmt.Fprintln(out, renderStatusLine("Retries", statusWarn, fmt.Sprintf("%d of %d: %s", st.Attempts, st.Settings.RetryBudget, st.LastError), colorize))
	}
	if status.Armed {
		fmt.Fprintln(out, renderStatusLine("Next wake", statusInfo, status.NextWake.Local().Format(time.RFC3339), colorize))
	} else {
		fmt.Fprintln(out, renderStatusLine("Next wake", statusWarn, "none armed (run `linksort organize resume`)", colorize))
	}
	if len(st.Taxonomy) > 0 {
		fmt.Fprintln(out, renderStatusLine("Taxonomy", statusInfo, fmt.Sprintf("%d categories", len(st.Taxonomy)), colorize))
	}

	rows := categoryRows(st.Results)
	if len(rows) == 0 {
		return
	}
	fmt.Fprintln(out)
	fmt.Fprint(out, renderTable([]column{wideCol("Category", 50), numCol("Items")}, rows))
	fmt.Fprintln(out)
}

func categoryRows(results []jobstate.Result) [][]string {
	counts := make(map[string]int)
	for _, r := range results {
		switch {
		case r.Error != "":
			counts["(errors)"]++
		case r.Moved:
			counts[r.CategoryPath]++
		default:
			counts["(left in place)"]++
		}
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, []string{k, strconv.Itoa(counts[k])})
	}
	return rows
}
