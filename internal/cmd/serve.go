package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"quadro/internal/logging"
	"quadro/internal/server"
)

// ServeCmd starts the hook engine server
type ServeCmd struct {
	Host string `help:"Address to bind the HTTP server to" default:"127.0.0.1" env:"QUADRO_HOST"`
	Port int    `help:"Port to bind the HTTP server to" default:"8844" env:"QUADRO_PORT"`
}

// Run executes the server until interrupted
func (s *ServeCmd) Run(cli *CLI) error {
	container := cli.Container

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Interrupted hook executions and sessions from a previous run must be
	// resolved before new work is admitted
	if err := container.Engine.ReconcileOnStartup(ctx); err != nil {
		return fmt.Errorf("startup reconciliation failed: %w", err)
	}

	container.Scheduler.Start(ctx)
	defer container.Scheduler.Stop()

	srv := server.New(s.Host, s.Port, cli.Debug, container.ServerDeps())

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	logging.Logger.Info("Quadro engine started", "host", s.Host, "port", s.Port)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logging.Logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return <-errCh
}
