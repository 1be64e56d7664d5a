// Command baesd serves the BAES monitoring API.
//
// It owns the SQLite database: migrations run on start, the default roles
// and a super-admin are seeded, then the HTTP API listens until SIGINT or
// SIGTERM. Status samples are mirrored to InfluxDB and site summaries are
// cached in Redis when those sections are enabled.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	_ "github.com/baes-monitor/baes-core/migrations"

	"github.com/baes-monitor/baes-core/internal/api"
	"github.com/baes-monitor/baes-core/internal/auth"
	"github.com/baes-monitor/baes-core/internal/device"
	"github.com/baes-monitor/baes-core/internal/infrastructure/cache"
	"github.com/baes-monitor/baes-core/internal/infrastructure/config"
	"github.com/baes-monitor/baes-core/internal/infrastructure/database"
	"github.com/baes-monitor/baes-core/internal/infrastructure/influxdb"
	"github.com/baes-monitor/baes-core/internal/infrastructure/logging"
)

// Set at build time with -ldflags "-X main.version=...".
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	defaultConfigPath = "configs/config.yaml"
	pruneInterval     = time.Hour
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "baesd",
		Short:         "BAES emergency lighting monitoring API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), configPath)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", getConfigPath(), "path to the YAML configuration")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run migrations and serve the API (default)",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return serve(cmd.Context(), configPath)
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply pending migrations and exit",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return migrate(cmd.Context(), configPath, false)
			},
		},
		&cobra.Command{
			Use:   "migrate-down",
			Short: "Roll back the most recent migration",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return migrate(cmd.Context(), configPath, true)
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print build information",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "baesd %s (commit %s, built %s)\n", version, commit, date)
			},
		},
	)
	return root
}

// getConfigPath prefers BAES_CONFIG over the default path.
func getConfigPath() string {
	if path := os.Getenv(config.EnvPrefix + "CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

func openDatabase(cfg config.DatabaseConfig) (*database.DB, error) {
	db, err := database.Open(database.Config{
		Path:        cfg.Path,
		WALMode:     cfg.WALMode,
		BusyTimeout: cfg.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}

func migrate(ctx context.Context, configPath string, down bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log := logging.New(cfg.Logging, version)

	db, err := openDatabase(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // exiting

	if down {
		if err := db.MigrateDown(ctx); err != nil {
			return fmt.Errorf("rolling back migration: %w", err)
		}
		log.Info("migration rolled back")
		return nil
	}
	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database migrations complete")
	return nil
}

// serve runs until ctx is cancelled. Deferred closes run in reverse order
// of acquisition.
func serve(ctx context.Context, configPath string) error {
	log := logging.Default()
	log.Info("starting baesd", "version", version, "commit", commit, "build_date", date)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "path", configPath)

	db, err := openDatabase(cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	if _, err := auth.SeedSuperAdmin(ctx, db.DB, cfg.Security.AdminLogin, cfg.Security.AdminPassword, log); err != nil {
		return fmt.Errorf("seeding super-admin: %w", err)
	}

	engine := device.NewEngine(db.DB)
	engine.SetLogger(log)

	if cfg.InfluxDB.Enabled {
		influxClient, err := influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
		engine.SetTelemetry(influxClient)
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	if cfg.Redis.Enabled {
		summaries, err := cache.Connect(cfg.Redis)
		if err != nil {
			return fmt.Errorf("connecting to Redis: %w", err)
		}
		defer func() {
			log.Info("closing Redis connection")
			if closeErr := summaries.Close(); closeErr != nil {
				log.Error("error closing Redis", "error", closeErr)
			}
		}()
		engine.SetSummaryCache(summaries)
		log.Info("summary cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.SummaryTTLDuration())
	} else {
		log.Info("summary cache disabled")
	}

	authService := auth.NewService(db.DB, cfg.Security.JWT.Secret, cfg.Security.JWT.TokenTTL())
	authService.SetLogger(log)
	go authService.RunPruner(ctx, pruneInterval)

	server, err := api.New(api.Deps{
		Config:  cfg.API,
		Logger:  log,
		DB:      db.DB,
		Auth:    authService,
		Engine:  engine,
		Version: version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := os.MkdirAll(cfg.API.Uploads.Dir, 0o750); err != nil {
		return fmt.Errorf("creating upload dir: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("health check failed: database: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")
	return nil
}
