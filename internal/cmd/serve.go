package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Rajchodisetti/stock-insights/internal/observ"
	"github.com/Rajchodisetti/stock-insights/internal/server"
)

var (
	serverHost string
	serverPort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP JSON surface",
	Long: `Start the HTTP server exposing budget status, preflight, trending and
budgeted fetches. Limiter state is saved periodically and on shutdown.

Ctrl+C (SIGINT) or SIGTERM shuts the server down gracefully.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cfg, nil, true)
		if err != nil {
			return err
		}
		defer rt.Close()
		if rt.state != nil {
			rt.state.Start()
		}

		host, port := cfg.Server.Host, cfg.Server.Port
		if cmd.Flags().Changed("host") {
			host = serverHost
		}
		if cmd.Flags().Changed("port") {
			port = serverPort
		}
		srv := server.New(host, port, server.Deps{
			Client:               rt.client,
			Trending:             rt.trending,
			Enricher:             rt.enricher,
			DefaultTrendingLimit: cfg.Trending.DefaultLimit,
			FetchRPS:             cfg.Server.FetchRPS,
			FetchBurst:           cfg.Server.FetchBurst,
		})

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		rt.cache.StartSweeper(ctx, cfg.Cache.TTL())

		errCh := make(chan error, 1)
		go func() { errCh <- srv.Start() }()

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout())
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			observ.Error("http_shutdown_failed", map[string]any{"error": err.Error()})
			return err
		}
		observ.Log("http_server_stopped", nil)
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serverHost, "host", "localhost", "listen host (overrides server.host)")
	serveCmd.Flags().IntVar(&serverPort, "port", 8090, "listen port (overrides server.port)")
	rootCmd.AddCommand(serveCmd)
}
