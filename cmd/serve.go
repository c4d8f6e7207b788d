package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/desertthunder/earbump/internal/server"
	"github.com/urfave/cli/v3"
)

const shutdownTimeout = 5 * time.Second

func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the local download status API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "Listen address, defaults to [server] host and port"},
		},
		Action: r.Serve,
	}
}

// Serve runs the status API until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	addr := cmd.String("addr")
	if addr == "" {
		addr = r.config.Server.Addr()
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	srv := server.New(addr, r.downloads, r.logger)
	errCh := make(chan error, 1)
	go func() {
		r.logger.Info("status API listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	r.logger.Info("shutting down status API")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	return nil
}
