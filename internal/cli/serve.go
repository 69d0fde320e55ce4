package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/hypermarketllc/hookline/internal/archive"
	"github.com/hypermarketllc/hookline/internal/config"
	"github.com/hypermarketllc/hookline/internal/database"
	"github.com/hypermarketllc/hookline/internal/scheduler"
	"github.com/hypermarketllc/hookline/internal/server"
	"github.com/hypermarketllc/hookline/internal/webhooks"
)

var (
	servePort int
	serveHost string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the hookline server",
	Long: `Start the hookline server.

The server exposes the management API, the public incoming webhook
receiver, the realtime WebSocket hub, and (when enabled) Prometheus
metrics. Press Ctrl+C for a graceful shutdown.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", config.DefaultPort, "Port to listen on")
	serveCmd.Flags().StringVar(&serveHost, "host", config.DefaultHost, "Host to bind to")

	rootCmd.AddCommand(serveCmd)
}

const shutdownTimeout = 10 * time.Second

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("port") {
		cfg.Server.Port = servePort
	}
	if cmd.Flags().Changed("host") {
		cfg.Server.Host = serveHost
	}

	applyLogging(&cfg.Logging)

	if cfg.Auth.JWT.Secret == "" {
		cfg.Auth.JWT.Secret = uuid.New().String()
		log.Warn().Msg("No JWT secret configured, generated an ephemeral one; sessions will not survive restarts")
	}

	db, err := database.Open(&cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	srv, err := server.New(cfg, db, server.WithVersion(version))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Archive.Enabled {
		archiver, err := archive.New(ctx, &cfg.Archive)
		if err != nil {
			return fmt.Errorf("creating log archiver: %w", err)
		}
		srv.Logs().SetArchiver(archiver)
		log.Info().Str("bucket", cfg.Archive.Bucket).Msg("Log archiver enabled")
	}

	if cfg.Seed.Path != "" {
		seeder := webhooks.NewSeeder(srv.Store(), srv.IncomingStore(), cfg.Seed.Path)
		if err := seeder.Load(ctx); err != nil {
			log.Warn().Err(err).Str("path", cfg.Seed.Path).Msg("Failed to load seed file")
		}

		if cfg.Seed.Watch {
			watcher, err := webhooks.NewSeedWatcher(seeder)
			if err != nil {
				return fmt.Errorf("creating seed watcher: %w", err)
			}
			watcher.Start(ctx)
			defer watcher.Stop()
			log.Info().Str("path", cfg.Seed.Path).Msg("Watching seed file")
		}
	}

	if cfg.Scheduler.Enabled {
		sched := scheduler.New(srv.Store(), srv.Dispatcher())
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("starting scheduler: %w", err)
		}
		defer sched.Stop()

		// Schedule edits take effect without a restart.
		srv.OnWebhooksChanged(func() {
			if err := sched.Reload(context.Background()); err != nil {
				log.Warn().Err(err).Msg("Scheduler reload failed")
			}
		})

		log.Info().Int("schedules", sched.Len()).Msg("Scheduler started")
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	return srv.Shutdown(shutdownCtx)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(config.LoadOptions{ConfigFile: cfgFile})
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyLogging layers the config file's logging settings on top of the
// --verbose flag. The flag wins when set.
func applyLogging(cfg *config.LoggingConfig) {
	if cfg.Format == "json" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	if verbose {
		return
	}
	if cfg.Level == "" {
		return
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		log.Warn().Str("level", cfg.Level).Msg("Unknown log level, keeping default")
		return
	}
	zerolog.SetGlobalLevel(level)
}
