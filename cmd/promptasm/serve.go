package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/final221/Prompt-Assembler/internal/cli"
	httpAdapter "github.com/final221/Prompt-Assembler/pkg/adapters/http"
	"github.com/final221/Prompt-Assembler/pkg/adapters/memory"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long:  `Serves the session as a JSON API. Confirmations are implied by the request.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr, _ = cmd.Flags().GetString("addr")
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s, err := cli.OpenSession(ctx, cfg, cli.Options{Notifier: memory.AutoConfirm{}})
			if err != nil {
				return err
			}
			defer s.Close(context.Background())

			opts := []httpAdapter.Option{
				httpAdapter.WithSink(s.Sink),
				httpAdapter.WithLogger(s.Logger.With("component", "http")),
			}
			if cfg.Server.Metrics {
				opts = append(opts, httpAdapter.WithMetrics(s.Metrics))
			}
			srv := &http.Server{
				Addr:              cfg.Server.Addr,
				Handler:           httpAdapter.NewHandler(s.Assembler, opts...),
				ReadHeaderTimeout: 10 * time.Second,
			}

			serverErrors := make(chan error, 1)
			go func() {
				fmt.Fprintf(cmd.ErrOrStderr(), "Starting promptasm server on %s\n", srv.Addr)
				serverErrors <- srv.ListenAndServe()
			}()

			select {
			case err := <-serverErrors:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return fmt.Errorf("server error: %w", err)
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					_ = srv.Close()
					return fmt.Errorf("graceful shutdown did not complete in %v: %w", shutdownTimeout, err)
				}
				fmt.Fprintln(cmd.ErrOrStderr(), "promptasm server stopped")
				return nil
			}
		},
	}
	cmd.Flags().String("addr", "", "Address to listen on (default from config, :8080)")
	return cmd
}
