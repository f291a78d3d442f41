package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	corecfg "github.com/wikimesh/centralindex/internal/core/config"
	"github.com/wikimesh/centralindex/internal/core/debounce"
	"github.com/wikimesh/centralindex/internal/core/storage/postgres"
	"github.com/wikimesh/centralindex/internal/identity"
	"github.com/wikimesh/centralindex/internal/lookup"
	"github.com/wikimesh/centralindex/internal/migrations"
	"github.com/wikimesh/centralindex/internal/purge"
	"github.com/wikimesh/centralindex/internal/server"
	"github.com/wikimesh/centralindex/internal/sitemap"
	"github.com/wikimesh/centralindex/internal/taskqueue"
	"github.com/wikimesh/centralindex/internal/writer"
)

func main() {
	configPath := flag.String("config", "centralindex.yaml", "Path to configuration file")
	flag.Parse()

	// 0. Initialize Logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 1. Load Configuration
	cfg, err := corecfg.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	slog.Info("Loaded config", "config", cfg)

	debounceWindow, err := cfg.Index.Window()
	if err != nil {
		slog.Error("Invalid debounce window", "value", cfg.Index.DebounceWindow, "error", err)
		os.Exit(1)
	}
	retention, err := cfg.Purge.Retention()
	if err != nil {
		slog.Error("Invalid retention age", "value", cfg.Purge.RetentionAge, "error", err)
		os.Exit(1)
	}
	sweepInterval, err := cfg.Purge.SweepInterval()
	if err != nil {
		slog.Error("Invalid purge interval", "value", cfg.Purge.Interval, "error", err)
		os.Exit(1)
	}

	// 2. Run Database Migrations
	// Migrations run on their own connection so the adapter's schema check
	// below sees the finished schema on a fresh database.
	if err := migrations.RunWithDSN(cfg.Database.DSN, cfg.Database.AutoMigrate); err != nil {
		slog.Error("Failed to run database migrations", "error", err)
		os.Exit(1)
	}

	// 3. Initialize Storage (PostgreSQL)
	dbAdapter, err := postgres.NewAdapter(
		cfg.Database.DSN,
		cfg.Database.MaxOpenConns,
		cfg.Database.MaxIdleConns,
	)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer dbAdapter.Close()

	// 4. Initialize Index Components
	mapper := sitemap.NewMapper(dbAdapter)
	policy := debounce.NewPolicy(debounceWindow, cfg.Index.SampleProbability, cfg.Index.SamplingEnabled, nil)
	queue := taskqueue.New(cfg.Tasks.WorkerCount, cfg.Tasks.QueueDepth)
	resolver := identity.NewLocalIDResolver()

	writerSvc := writer.New(cfg.Index, resolver, mapper, dbAdapter, policy, queue, nil)
	lookupSvc := lookup.NewService(dbAdapter, mapper, resolver, cfg.Lookup.BatchSize)

	// 5. Initialize Purge (periodic retention sweep)
	purgeEngine := purge.NewEngine(mapper, dbAdapter)
	purgeSched := purge.NewScheduler(sweepInterval, retention, cfg.Purge.BatchSize, purgeEngine)

	slog.Info("Index components initialized",
		"index_enabled", cfg.Index.Enabled,
		"debounce_window", debounceWindow,
		"retention", retention,
		"purge_enabled", cfg.Purge.Enabled,
		"worker_count", cfg.Tasks.WorkerCount,
	)

	// 6. Initialize Server
	srv := server.New(fmtAddr(cfg.Server.Host, cfg.Server.Port), dbAdapter.DB(), cfg.Server.Mode)
	writerSvc.RegisterRoutes(srv.Engine)
	lookupSvc.RegisterRoutes(srv.Engine)

	// 7. Start Services
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := queue.Start(ctx); err != nil {
			slog.Error("Task queue stopped with error", "error", err)
		}
	}()

	if cfg.Purge.Enabled {
		go func() {
			if err := purgeSched.Start(ctx); err != nil {
				slog.Error("Purge scheduler stopped with error", "error", err)
			}
		}()
	} else {
		slog.Info("Purge scheduler disabled by config")
	}

	// Signal handler → triggers the shutdown sequence below.
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		slog.Info("Signal received, shutting down...")
		cancel()
	}()

	// HTTP server blocks until ctx is cancelled.
	if err := srv.Run(ctx); err != nil {
		slog.Error("Server stopped with error", "error", err)
	}

	slog.Info("Shutdown complete")
}

func fmtAddr(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}
