package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/devtoolhub/toolhub/internal/api"
	"github.com/devtoolhub/toolhub/internal/cache"
	"github.com/devtoolhub/toolhub/internal/catalog"
	"github.com/devtoolhub/toolhub/internal/config"
	"github.com/devtoolhub/toolhub/internal/store"
)

// Version will be set during build with ldflags
var Version = "1.0.0"

func main() {
	app := &cli.App{
		Name:    "toolhub",
		Usage:   "developer utility tool catalog service",
		Version: Version,
		Commands: []*cli.Command{
			newServeCommand(),
			newMigrateCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the catalog HTTP server",
		Action: func(c *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			logger, err := newLogger(cfg.Log.Level)
			if err != nil {
				return err
			}
			defer logger.Sync()

			st, err := store.Open(cfg.Database.DSN())
			if err != nil {
				return err
			}
			defer st.Close()

			cc, err := buildCache(cfg.Cache)
			if err != nil {
				return err
			}

			svc := catalog.NewService(st, cc, logger).
				WithTTL(time.Duration(cfg.Cache.TTLSeconds) * time.Second)
			admin := catalog.NewAdmin(st, cc, logger)
			rels := catalog.NewRelationships(st, logger)

			router := api.NewRouter(api.NewHandlers(svc, admin, rels, logger))

			logger.Info("starting server",
				zap.String("addr", cfg.Server.Addr()),
				zap.String("cache_backend", cfg.Cache.Backend))
			return router.Run(cfg.Server.Addr())
		},
	}
}

func newMigrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "run database migrations and exit",
		Action: func(c *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			st, err := store.Open(cfg.Database.DSN())
			if err != nil {
				return err
			}
			defer st.Close()

			fmt.Println("migrations applied")
			return nil
		},
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cfg.Level = lvl
	return cfg.Build()
}

func buildCache(cfg config.CacheConfig) (cache.Cache, error) {
	cacheCfg := cache.DefaultConfig()
	cacheCfg.DefaultTTL = time.Duration(cfg.TTLSeconds) * time.Second

	switch cfg.Backend {
	case "redis":
		return cache.NewRedisCache(cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPass,
			DB:       cfg.RedisDB,
			Config:   cacheCfg,
		})
	case "", "memory":
		return cache.NewMemoryCacheWithConfig(cacheCfg), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}
