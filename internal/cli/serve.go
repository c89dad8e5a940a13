package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/runoshun/issue-crew/internal/app"
	"github.com/runoshun/issue-crew/internal/domain"
)

// newServeCommand creates the serve command.
func newServeCommand(c *app.Container) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Long: `Serve the issue API until interrupted.

SIGINT or SIGTERM stops accepting connections and waits up to
server.shutdown_timeout for in-flight requests.

Examples:
  issue-crew serve

  issue-crew serve --addr 127.0.0.1:9000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr == "" {
				addr = c.Config.Server.Addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var lc net.ListenConfig
			ln, err := lc.Listen(ctx, "tcp", addr)
			if err != nil {
				return fmt.Errorf("listen %s: %w", addr, err)
			}
			return serve(ctx, c, ln)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")

	return cmd
}

// serve runs the HTTP server on ln until ctx is done, then shuts it down gracefully.
func serve(ctx context.Context, c *app.Container, ln net.Listener) error {
	srv := &http.Server{
		Handler:           c.HTTPHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	timeout := time.Duration(c.Config.Server.ShutdownTimeout)
	if timeout <= 0 {
		timeout = domain.DefaultShutdownTimeout
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c.Logger.InfoContext(ctx, "server listening",
			"addr", ln.Addr().String(),
			"driver", c.Config.Store.Driver,
		)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		c.Logger.InfoContext(ctx, "shutting down", "timeout", timeout)

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	c.Logger.InfoContext(ctx, "server stopped")
	return nil
}
