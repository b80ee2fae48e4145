package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/dropit-app/dropit/internal/logger"
	"github.com/dropit-app/dropit/internal/mockapi"
)

const shutdownTimeout = 5 * time.Second

func newMockServerCommand() *cobra.Command {
	var (
		addr       string
		seed       bool
		requestLog bool
		origins    []string
	)

	cmd := &cobra.Command{
		Use:   "mock-server",
		Short: "Serve an in-memory DropIt backend for local development",
		Long: "Serve an in-memory DropIt backend. With --seed it holds a demo account (" +
			mockapi.DemoEmail + " / " + mockapi.DemoPassword + ") and a set of bins around Seoul City Hall.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			levelFlag, _ := cmd.Flags().GetString("log-level")
			log := logger.New(logger.Config{
				Writer: cmd.ErrOrStderr(),
				Level:  logger.ParseLevel(levelFlag),
			})

			backend := mockapi.New(mockapi.Options{
				AllowedOrigins: origins,
				RequestLog:     requestLog,
				Logger:         log.With("component", "mockapi"),
			})
			if seed {
				if err := backend.SeedDemo(); err != nil {
					return fmt.Errorf("seed demo data: %w", err)
				}
			}

			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("listen: %w", err)
			}
			return serve(cmd.Context(), ln, backend, func(a net.Addr) {
				fmt.Fprintf(cmd.OutOrStdout(), "DropIt mock backend on http://%s/api\n", a)
				log.Info("mock backend started", "addr", a.String(), "markers", backend.MarkerCount())
			})
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().BoolVar(&seed, "seed", true, "add the demo account and bins")
	cmd.Flags().BoolVar(&requestLog, "request-log", false, "log every request")
	cmd.Flags().StringSliceVar(&origins, "origin", nil, "allowed CORS origin (repeatable)")
	return cmd
}

// serve runs handler on ln until ctx is cancelled, then drains in-flight
// requests.
func serve(ctx context.Context, ln net.Listener, handler http.Handler, started func(net.Addr)) error {
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	if started != nil {
		started(ln.Addr())
	}

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
