// Package main contains the entrypoint for the duet analysis server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/duetlabs/duet/internal/config"
	"github.com/duetlabs/duet/internal/database"
	"github.com/duetlabs/duet/internal/logger"
	"github.com/duetlabs/duet/internal/narrative"
	"github.com/duetlabs/duet/internal/scheduler"
	"github.com/duetlabs/duet/internal/server"
	"github.com/duetlabs/duet/internal/telegram"

	_ "modernc.org/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop() // Ensure context cancellation is signaled before exit
	os.Exit(exitCode)
}

// run initializes and starts all application components (config, logger, db,
// analysis backend, HTTP server, scheduler, optional Telegram frontend),
// handles graceful shutdown, and returns an exit code.
func run(ctx context.Context) int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Log.Level, cfg.Log.Format)
	log.Info("Logger initialized", "level", cfg.Log.Level, "format", cfg.Log.Format)

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Error("Failed to connect to database", "path", cfg.Database.Path, "error", err)
		return 1
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log)
	cache := database.NewAnalysisCache(store)

	provider, err := narrative.NewProvider(ctx, narrative.ProviderConfig{
		Backend:           cfg.Analysis.Backend,
		APIKey:            cfg.Analysis.APIKey,
		Model:             cfg.Analysis.Model,
		MaxRetries:        cfg.Analysis.MaxRetries,
		RetryDelaySeconds: cfg.Analysis.RetryDelaySeconds,
	}, log)
	if err != nil {
		log.Error("Failed to initialize analysis backend", "error", err)
		return 1
	}

	conflicts := narrative.NewConflictAnalyzer(provider, cache, log, cfg.Analysis.MaxConcurrency)
	highlights := narrative.NewHighlightAnalyzer(provider, cache, log, cfg.Analysis.MaxConcurrency)
	themes := narrative.NewThemeAnalyzer(provider, cache, log, cfg.Analysis.MaxConcurrency)

	h := server.NewHandler(cfg, store, conflicts, highlights, themes, log)
	srv := server.New(cfg, server.NewRouter(h, cfg, log))

	sched, err := scheduler.NewScheduler()
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}
	if err := scheduler.RegisterJanitor(sched, store, cfg.Session, log); err != nil {
		log.Error("Failed to register maintenance jobs", "error", err)
		return 1
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.Run(gCtx, srv, cfg.Server.ShutdownTimeout, log)
	})

	g.Go(func() error {
		<-gCtx.Done()
		log.Info("Shutdown signal received, stopping scheduler...")
		if err := sched.Stop(); err != nil {
			log.Error("Error stopping scheduler", "error", err)
		}
		return nil
	})

	if cfg.TelegramEnabled() {
		frontend, err := telegram.New(cfg.Telegram.Token, store, server.BuildLexicon(cfg.Lexicon), log)
		if err != nil {
			log.Error("Failed to create Telegram frontend", "error", err)
			return 1
		}
		g.Go(func() error {
			return frontend.Run(gCtx)
		})
	}

	log.Info("Server running. Waiting for shutdown signal or error...")
	runErr := g.Wait()
	log.Info("Run loop finished. Initiating shutdown...")

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Server stopped due to error", "error", runErr)
		time.Sleep(time.Second)
		return 1
	}

	log.Info("Server stopped gracefully.")
	time.Sleep(time.Second)
	return 0
}
