package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/terryarthur/wp-plugin-directory-filters-sub002/internal/cache"
	"github.com/terryarthur/wp-plugin-directory-filters-sub002/internal/ports"
	"github.com/terryarthur/wp-plugin-directory-filters-sub002/internal/server"
)

var (
	serveAddr       string
	janitorInterval time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Start the plugin directory filter API server.

Serves the filter, plugin detail and cache maintenance endpoints, and runs
a background janitor that prunes expired cache entries.

Examples:
  wpdirfilter serve
  wpdirfilter serve --addr :9090 --janitor-interval 30m`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config)")
	serveCmd.Flags().DurationVar(&janitorInterval, "janitor-interval", 0, "janitor cadence, 0 uses config")

	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := buildLogger(cfg)

	svc, store, limiter, err := buildStack(cfg, true)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	deps := server.Dependencies{
		Directory: svc,
		Cache:     store,
		Logger:    logger,
	}
	if limiter != nil {
		deps.Limiter = limiter
	}
	api := server.New(deps)

	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       cfg.Server.ReadTimeout.Std(),
		WriteTimeout:      cfg.Server.WriteTimeout.Std(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	interval := cfg.Cache.JanitorInterval.Std()
	if janitorInterval > 0 {
		interval = janitorInterval
	}
	if interval > 0 {
		go runJanitor(runCtx, logger, store, interval, cfg.Cache.CleanupLimit)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(runCtx, "listening", ports.F("addr", addr))
		errCh <- httpServer.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case sig := <-stop:
		logger.Info(runCtx, "shutting down", ports.F("signal", sig.String()))
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
	defer shutdownCancel()
	return httpServer.Shutdown(shutdownCtx)
}

// runJanitor prunes expired cache entries on a fixed cadence until ctx is
// cancelled.
func runJanitor(ctx context.Context, logger ports.Logger, store *cache.TieredCache, interval time.Duration, limit int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := store.Cleanup(ctx, limit)
			if err != nil {
				logger.Warn(ctx, "cache cleanup failed", ports.F("error", err.Error()))
				continue
			}
			if removed > 0 {
				logger.Debug(ctx, "cache cleanup", ports.F("removed", removed))
			}
		}
	}
}
