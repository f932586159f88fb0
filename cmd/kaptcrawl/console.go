package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/david/kapt-crawler/internal/console"
)

func (a *app) runConsole(cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := console.NewServer(a.newRunner(ctx), a.settings, a.log)
	srv.OnExit = stop

	addr := a.settings.Console.Listen
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(addr)
	}()
	fmt.Fprintf(cmd.OutOrStdout(), "Console running at http://%s (Ctrl+C to quit)\n", addr)

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("console: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Close(shutdownCtx); err != nil {
		return fmt.Errorf("console shutdown: %w", err)
	}
	a.log.Info("Console stopped")
	return nil
}
