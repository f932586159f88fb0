package main

import (
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/david/kapt-crawler/internal/db"
)

func newRunsCmd(a *app) *cobra.Command {
	var filter db.RunFilter

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent crawl runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			runs, err := store.RecentRuns(cmd.Context(), filter)
			if err != nil {
				return err
			}
			renderRuns(cmd.OutOrStdout(), runs, time.Now())
			return nil
		},
	}

	cmd.Flags().StringVar(&filter.ListingType, "type", "", "only runs of this listing type (private_contract, competitive_bid, national_bid_notice)")
	cmd.Flags().StringVar(&filter.Status, "status", "", "only runs with this status (running, completed, failed)")
	cmd.Flags().IntVar(&filter.Limit, "limit", 10, "number of runs to show")
	return cmd
}

func renderRuns(w io.Writer, runs []db.Run, now time.Time) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Type", "Mode", "Status", "Items", "Failed", "Duration", "Started At", "Output"})

	for _, r := range runs {
		duration := "Running..."
		if r.CompletedAt != nil {
			duration = r.Duration(now).String()
		}
		output := r.OutputPath
		if r.Error != "" {
			output = r.Error
		}
		t.AppendRow(table.Row{r.ListingType, r.Mode, r.Status, r.Items, r.Failed, duration, r.StartedAt.Format("2006-01-02 15:04:05"), output})
	}
	t.Render()
}
