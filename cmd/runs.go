package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sector-pulse/pulse-cli/internal/model"
)

var (
	runsDate  string
	runsLimit int
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List workflow runs for a date",
	Long:  "Shows every pipeline invocation recorded for the date, including same-day duplicates flagged for accuracy reconciliation.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		date := runsDate
		if date == "" {
			date = time.Now().UTC().Format("2006-01-02")
		}
		if _, err := model.ParseDay(date); err != nil {
			return err
		}

		runs, err := st.ListWorkflowRuns(ctx, date, runsLimit)
		if err != nil {
			return eris.Wrap(err, "runs list")
		}
		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRuns(os.Stdout, runs)
		return nil
	},
}

func formatRuns(out io.Writer, runs []model.WorkflowRun) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tWORKFLOW\tSTATUS\tRUN#\tDUP\tSTARTED\tNOTES")

	for _, r := range runs {
		dup := ""
		if r.IsDuplicateRun {
			dup = "yes"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			truncateID(r.ID),
			r.WorkflowName,
			r.Status,
			r.RunCountToday,
			dup,
			r.StartedAt.Format("15:04:05"),
			r.Notes,
		)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	runsCmd.Flags().StringVar(&runsDate, "date", "", "run date YYYY-MM-DD (default today)")
	runsCmd.Flags().IntVar(&runsLimit, "limit", 50, "max number of runs to display")
	rootCmd.AddCommand(runsCmd)
}
