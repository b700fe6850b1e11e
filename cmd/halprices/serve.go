package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aluiziolira/go-scrape-hal/api"
	"github.com/aluiziolira/go-scrape-hal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

func cmdServe(gf *globalFlags) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "serve stored prices over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, gf)
			if err != nil {
				return &exitError{code: exitFatal, err: err}
			}
			if cmd.Flags().Changed("addr") {
				cfg.ListenAddr = addr
			}
			if cfg.ListenAddr == "" {
				return &exitError{code: exitFatal, err: errors.New("listen address cannot be empty")}
			}

			st, err := store.Open(cfg.DBPath, store.WithMode(cfg.Schema))
			if err != nil {
				return &exitError{code: exitFatal, err: err}
			}
			defer st.Close()

			srv := &http.Server{
				Addr:              cfg.ListenAddr,
				Handler:           api.NewServer(st, prometheus.NewRegistry()).Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				slog.Info("query API listening", slog.String("addr", cfg.ListenAddr), slog.String("db", cfg.DBPath))
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					return &exitError{code: exitFatal, err: fmt.Errorf("serve: %w", err)}
				}
				return nil
			case <-ctx.Done():
			}

			slog.Info("shutting down query API")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return &exitError{code: exitFatal, err: fmt.Errorf("shutdown: %w", err)}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :8000)")
	return cmd
}
