package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/duetlabs/duet/internal/config"
	"github.com/duetlabs/duet/internal/database"
	"github.com/duetlabs/duet/internal/metrics"
)

// maintenanceCron runs SQL maintenance nightly at 03:00 UTC.
const maintenanceCron = "0 3 * * *"

// RegisterJanitor schedules the maintenance jobs: expiring stale sessions and
// cache entries on the sweep interval, and VACUUM nightly.
func RegisterJanitor(s *Scheduler, store database.Store, cfg config.SessionConfig, log *slog.Logger) error {
	log = log.With("component", "janitor")

	if err := s.AddIntervalJob("expire-sessions", cfg.SweepInterval, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		count, err := store.DeleteExpiredSessions(ctx, cfg.MaxAge)
		if err != nil {
			log.ErrorContext(ctx, "Session expiry sweep failed", "error", err)
			return
		}
		metrics.SessionsExpired.Add(float64(count))
	}); err != nil {
		return err
	}

	if err := s.AddIntervalJob("prune-cache", cfg.SweepInterval, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		if _, err := store.PruneCache(ctx, cfg.CacheMaxAge); err != nil {
			log.ErrorContext(ctx, "Cache prune sweep failed", "error", err)
		}
	}); err != nil {
		return err
	}

	if err := s.AddJob("sql-maintenance", maintenanceCron, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		if err := store.RunSQLMaintenance(ctx); err != nil {
			log.ErrorContext(ctx, "SQL maintenance failed", "error", err)
		}
	}); err != nil {
		return err
	}

	return nil
}
