package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/david/kapt-crawler/internal/config"
	"github.com/david/kapt-crawler/internal/logging"
)

// runJobFile runs one job configuration. The file is loaded before anything
// touches the network, so a bad file aborts the run with no requests made.
func (a *app) runJobFile(cmd *cobra.Command, path string) error {
	job, err := config.LoadJob(path)
	if err != nil {
		return fmt.Errorf("load job: %w", err)
	}
	if err := job.Validate(); err != nil {
		return fmt.Errorf("load job: %w", err)
	}

	ctx := cmd.Context()
	r := a.newRunner(ctx)
	sink := logging.NewSink(a.log, logging.Fields{"job": filepath.Base(path)})

	res, err := r.Run(ctx, job, sink)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), res.Message)
	return nil
}
