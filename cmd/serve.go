package cmd

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/getsentry/sentry-go"
	"github.com/jon4hz/movin/internal/api"
	"github.com/jon4hz/movin/internal/app"
	"github.com/jon4hz/movin/internal/cache"
	"github.com/jon4hz/movin/internal/database"
	"github.com/jon4hz/movin/internal/gemini"
	"github.com/jon4hz/movin/internal/scheduler"
	"github.com/jon4hz/movin/internal/video"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Movin server",
	Long:  `Start the Movin server to handle design requests, the credit ledger and the admin panel.`,
	Example: `movin serve --config config.yml
movin serve -c /path/to/config.yml --log-level debug
`,
	Run: startServer,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func startServer(cmd *cobra.Command, _ []string) {
	cfg := loadConfig()
	if err := cfg.ValidateServe(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	if cfg.Sentry != nil {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.Sentry.Environment,
		}); err != nil {
			log.Fatalf("failed to initialize sentry: %v", err)
		}
		defer sentry.Flush(2 * time.Second)
		log.Info("error reporting enabled", "environment", cfg.Sentry.Environment)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.New(cfg.Database.Path)
	if err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}
	defer db.Close() //nolint:errcheck

	a, err := app.New(ctx, db, cfg.Admin.Passphrase)
	if err != nil {
		log.Fatalf("failed to load application state: %v", err)
	}

	ai, err := gemini.New(ctx, cfg.Gemini)
	if err != nil {
		log.Fatalf("failed to create gemini client: %v", err)
	}

	jobs := cache.New[video.Job](cfg.Cache, video.CachePrefix)
	videos := video.NewManager(ai, jobs, cfg.Video.JobTTL)
	if err := videos.Restore(ctx); err != nil {
		log.Warn("failed to restore pending video jobs, retrying on the next poll", "error", err)
	}

	sched, err := scheduler.New()
	if err != nil {
		log.Fatalf("failed to create scheduler: %v", err)
	}
	if err := sched.AddSingletonJob(
		"video-poll",
		"Video poll",
		"Checks pending video generations and records the finished ones",
		cfg.Video.PollInterval,
		videos.Poll,
		true,
	); err != nil {
		log.Fatalf("failed to schedule video poll: %v", err)
	}

	server, err := api.New(cfg, a, ai, videos, sched)
	if err != nil {
		log.Fatalf("failed to create API server: %v", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(ctx)
	})
	g.Go(func() error {
		sched.Start()
		<-ctx.Done()
		return sched.Stop()
	})

	log.Info("movin started successfully", "listen", cfg.Listen)
	if err := g.Wait(); err != nil {
		log.Error("movin stopped with error", "error", err)
		return
	}
	log.Info("shut down gracefully")
}

// dbFileExists reports whether the database file was already created.
func dbFileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// openDatabase opens the database for the maintenance commands, which never create it.
func openDatabase(path string) (*database.Client, error) {
	exists, err := dbFileExists(path)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, os.ErrNotExist
	}
	return database.New(path)
}

