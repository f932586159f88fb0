package main

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/david/kapt-crawler/internal/logging"
	"github.com/david/kapt-crawler/internal/runner"
)

func newBatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "batch <folder>",
		Short: "Run every *.json job configuration in a folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			r := a.newRunner(ctx)
			sink := logging.NewSink(a.log, logging.Fields{"batch": args[0]})

			entries, err := r.RunFolder(ctx, args[0], sink)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No crawl jobs run")
				return nil
			}
			renderBatch(cmd.OutOrStdout(), entries)
			return nil
		},
	}
}

func renderBatch(w io.Writer, entries []runner.BatchEntry) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"File", "Status", "Items", "Failed", "Result"})

	ok := 0
	for _, e := range entries {
		status, result := "ok", e.Result.Message
		if e.Err != nil {
			status, result = "error", e.Err.Error()
		} else {
			ok++
		}
		t.AppendRow(table.Row{e.File, status, e.Result.Items, e.Result.Failed, result})
	}
	t.AppendFooter(table.Row{"", fmt.Sprintf("%d/%d ok", ok, len(entries)), "", "", ""})
	t.Render()
}
