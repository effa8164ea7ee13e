package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/forPelevin/reelcut/internal/config"
	"github.com/forPelevin/reelcut/internal/store"
	"github.com/forPelevin/reelcut/internal/types"
)

func newHistoryCommand(opts *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List recent runs, or show the clips and failures of one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, _, _, err := config.Load(opts.configPath)
			if err != nil {
				return types.NewError(types.KindConfiguration, "load", err)
			}
			if settings.Paths.HistoryDB == "" {
				return types.Configf("paths.history_db is not set")
			}
			st, err := store.Open(settings.Paths.HistoryDB)
			if err != nil {
				return err
			}
			defer st.Close()

			colorize := useColor(cmd.OutOrStdout())
			if len(args) == 1 {
				return showRun(cmd, st, args[0], colorize)
			}
			return listRuns(cmd, st, limit, colorize)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to list (0 = all)")
	return cmd
}

func listRuns(cmd *cobra.Command, st *store.Store, limit int, colorize bool) error {
	runs, err := st.ListRuns(cmd.Context(), limit)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded.")
		return nil
	}

	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			r.ID[:8],
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			string(r.Status),
			strconv.Itoa(r.ClipCount),
			strconv.Itoa(r.FailureCount),
			r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String(),
			truncateText(r.Input, maxTextWidth),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Run", "Started", "Status", "Clips", "Failed", "Took", "Input"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
		colorize,
	))
	return nil
}

// showRun accepts a full run ID or the 8-character prefix printed by listRuns.
func showRun(cmd *cobra.Command, st *store.Store, id string, colorize bool) error {
	r, err := st.GetRun(cmd.Context(), id)
	if err != nil {
		return err
	}
	if r == nil && len(id) < 36 {
		runs, err := st.ListRuns(cmd.Context(), 0)
		if err != nil {
			return err
		}
		for _, s := range runs {
			if strings.HasPrefix(s.ID, id) {
				r, err = st.GetRun(cmd.Context(), s.ID)
				if err != nil {
					return err
				}
				break
			}
		}
	}
	if r == nil {
		return fmt.Errorf("run %q not found", id)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s (%s)\nInput:  %s\nOutput: %s\n", r.ID, r.Status, r.Input, r.OutDir)
	if r.Error != "" {
		fmt.Fprintf(out, "Error:  %s\n", r.Error)
	}

	if len(r.Clips) > 0 {
		rows := make([][]string, 0, len(r.Clips))
		for _, c := range r.Clips {
			rows = append(rows, []string{
				strconv.Itoa(c.Position + 1),
				formatSpan(c.StartSec, c.EndSec),
				strconv.FormatFloat(c.Score, 'f', 3, 64),
				truncateText(c.Text, maxTextWidth),
				relTo(r.OutDir, c.Path),
			})
		}
		fmt.Fprintln(out, renderTable(
			[]string{"#", "Span", "Score", "Text", "File"},
			rows,
			[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft, alignLeft},
			colorize,
		))
	}
	if len(r.Failures) > 0 {
		rows := make([][]string, 0, len(r.Failures))
		for _, f := range r.Failures {
			rows = append(rows, []string{
				strconv.Itoa(f.Segment),
				f.Kind,
				f.Step,
				truncateText(f.Reason, maxTextWidth),
			})
		}
		fmt.Fprintln(out, renderTable(
			[]string{"Segment", "Kind", "Step", "Reason"},
			rows,
			[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
			colorize,
		))
	}
	return nil
}
