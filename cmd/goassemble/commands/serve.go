package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jonesrussell/goassemble/internal/api"
	"github.com/jonesrussell/goassemble/internal/cache"
	"github.com/jonesrussell/goassemble/internal/config"
	"github.com/jonesrussell/goassemble/internal/gateway"
	"github.com/jonesrussell/goassemble/internal/logger"
	"github.com/jonesrussell/goassemble/internal/telemetry"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the aggregation gateway HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), configPath(cmd))
		},
	}
}

func runServe(ctx context.Context, cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	store, closeStore, err := newStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	gw, err := gateway.New(cfg, store, log, telemetry.NewMetrics())
	if err != nil {
		return err
	}

	handler := api.NewHandler(gw, log, cfg.Service.Name, cfg.Service.Version)
	server := api.NewServer(cfg, handler, log)

	log.Info("gateway configured",
		logger.String("backend", cfg.Backend.BaseURL),
		logger.String("cache_store", cfg.Cache.Store),
		logger.Duration("refresh_delay", cfg.Cache.RefreshDelay.Duration),
		logger.Bool("write_through", cfg.Local.WriteThrough),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		return server.Shutdown(context.Background())
	})
	return g.Wait()
}

// newStore builds the configured cache backend. The returned closer is a
// no-op for the in-memory store.
func newStore(cfg *config.Config) (cache.Store, func(), error) {
	switch cfg.Cache.Store {
	case "redis":
		store, err := cache.NewRedisStore(cache.RedisOptions{
			Address:   cfg.Cache.Redis.Address,
			Password:  cfg.Cache.Redis.Password,
			DB:        cfg.Cache.Redis.DB,
			KeyPrefix: cfg.Cache.Redis.KeyPrefix,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis cache: %w", err)
		}
		return store, func() { _ = store.Close() }, nil
	default:
		return cache.NewMemoryStore(cfg.Cache.MaxEntries), func() {}, nil
	}
}
