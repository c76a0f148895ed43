package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	srv "github.com/mohammad-safakhou/askgraph/internal/server"
)

func serveCMD() *cobra.Command {
	var serveAddr string
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if serveAddr != "" {
				cfg.Server.Address = serveAddr
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, os.Stderr)
			if err != nil {
				return err
			}
			defer a.Close()

			opts := srv.Options{
				Runner:    a.compiler,
				JWTSecret: []byte(cfg.Server.JWTSecret),
				Logger:    log.New(os.Stderr, "[HTTP] ", log.LstdFlags),
			}
			if a.audits != nil {
				opts.Audits = a.audits
			}
			if a.progress != nil {
				opts.Progress = a.progress
			}
			if cfg.Server.MetricsEnabled {
				opts.Gatherer = a.metrics
			}
			s := srv.New(opts)

			errCh := make(chan error, 1)
			go func() { errCh <- s.Start(cfg.Server.Address) }()
			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := s.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return nil
		},
	}
	serve.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.address)")
	return serve
}
