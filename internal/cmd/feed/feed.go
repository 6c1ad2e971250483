// Package feed parses feed service flags and launches the service.
package feed

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aurasocial/aura/internal/feed/app"
	"github.com/aurasocial/aura/internal/feed/moderation"
	"github.com/aurasocial/aura/internal/feed/seed"
	"github.com/aurasocial/aura/internal/feed/storage"
	"github.com/aurasocial/aura/internal/feed/storage/memory"
	"github.com/aurasocial/aura/internal/feed/storage/sqlite"
	entrypoint "github.com/aurasocial/aura/internal/platform/cmd"
)

// Config holds feed command configuration.
type Config struct {
	Port           int    `env:"AURA_FEED_PORT" envDefault:"8080"`
	Storage        string `env:"AURA_FEED_STORAGE" envDefault:"sqlite"`
	DBPath         string `env:"AURA_FEED_DB_PATH"`
	ApprovalPolicy string `env:"AURA_APPROVAL_POLICY" envDefault:"review"`
	Seed           bool   `env:"AURA_FEED_SEED" envDefault:"false"`
	AdminPassword  string `env:"AURA_FEED_ADMIN_PASSWORD"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The feed HTTP server port")
	fs.StringVar(&cfg.Storage, "storage", cfg.Storage, "Storage backend (sqlite or memory)")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the sqlite database file")
	fs.StringVar(&cfg.ApprovalPolicy, "approval-policy", cfg.ApprovalPolicy, "Post approval policy (review or auto)")
	fs.BoolVar(&cfg.Seed, "seed", cfg.Seed, "Provision sample accounts and posts on first start")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the feed HTTP API service.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceFeed, func(ctx context.Context) error {
		policy, err := moderation.ParsePolicy(cfg.ApprovalPolicy)
		if err != nil {
			return err
		}

		store, closeStore, err := openStore(cfg)
		if err != nil {
			return err
		}

		if cfg.Seed {
			if err := seed.Apply(ctx, store, cfg.AdminPassword, time.Now); err != nil {
				if closeStore != nil {
					_ = closeStore()
				}
				return fmt.Errorf("seed sample data: %w", err)
			}
		}

		service := app.NewService(store, policy)
		server, err := app.NewServer(cfg.Port, service, store, closeStore)
		if err != nil {
			if closeStore != nil {
				_ = closeStore()
			}
			return err
		}
		return server.Serve(ctx)
	})
}

func openStore(cfg Config) (storage.Store, func() error, error) {
	switch cfg.Storage {
	case "memory":
		return memory.New(), nil, nil
	case "sqlite":
		path := cfg.DBPath
		if path == "" {
			path = filepath.Join("data", "feed.db")
		}
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, nil, fmt.Errorf("create storage dir: %w", err)
			}
		}
		store, err := sqlite.Open(path)
		if err != nil {
			return nil, nil, fmt.Errorf("open feed sqlite store: %w", err)
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage)
	}
}
