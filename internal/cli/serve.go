package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ironsheep/chatscan/internal/cache"
	"github.com/ironsheep/chatscan/internal/forward"
	"github.com/ironsheep/chatscan/internal/httpapi"
)

// shutdownTimeout bounds graceful shutdown of the HTTP API.
const shutdownTimeout = 10 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	var address string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serve POST /v1/extract, GET /health and GET /metrics.

Examples:
  chatscan serve
  chatscan serve --address :9090`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if address != "" {
				opts.cfg.Server.Address = address
			}
			return runServe(opts)
		},
	}

	cmd.Flags().StringVar(&address, "address", "", "listen address (default from server.address)")
	return cmd
}

func runServe(opts *rootOptions) error {
	log.Info().
		Str("version", opts.info.Version).
		Str("commit", opts.info.Commit).
		Str("build_date", opts.info.BuildDate).
		Msg("Starting chatscan")

	p, err := opts.newPipeline()
	if err != nil {
		return err
	}

	results, err := cache.New(opts.cfg.Cache, p.metrics)
	if err != nil {
		return err
	}
	defer results.Close()

	var forwarder *forward.Client
	if opts.cfg.Forward.Enabled() {
		if forwarder, err = forward.NewClient(opts.cfg.Forward); err != nil {
			return err
		}
		log.Info().Str("url", opts.cfg.Forward.URL).Msg("Forwarding enabled")
	}

	srv, err := httpapi.NewServer(opts.cfg.Server, httpapi.Deps{
		Extractor: p.extractor,
		Cache:     results,
		Forwarder: forwarder,
		Metrics:   p.metrics,
		Gatherer:  p.registry,
		Version:   opts.info.Version,
	})
	if err != nil {
		return err
	}

	// Start server in a goroutine
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return err
	}

	log.Info().Msg("Server exited")
	return nil
}
