// Package scheduler drives the poller's periodic work: board refreshes,
// completion sweeps, rescore dispatch, and the daily history archive.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"flightrisk/internal/types"
)

// archiveInterval is how often the history backup runs. Archives are cheap
// and append-only, once a day is plenty.
const archiveInterval = 24 * time.Hour

// boardSyncer is the slice of the flight syncer the runner drives.
type boardSyncer interface {
	SyncBoard(ctx context.Context, from, to time.Time) (int64, error)
	CompleteFinished(ctx context.Context) (int, error)
}

// archiver exports and prunes history backups.
type archiver interface {
	Export(ctx context.Context) (string, error)
	Prune(ctx context.Context) (int, error)
}

// Config tunes the runner's cadence and board window.
type Config struct {
	SyncInterval   time.Duration
	BoardLookback  time.Duration
	BoardLookahead time.Duration
}

// Runner executes sync cycles on a fixed cadence. Each cycle refreshes the
// board from the schedule provider, sweeps finished flights into history, and
// enqueues a rescore of today's board so scores track the fresh data. Once
// per archiveInterval a cycle also writes the history backup.
type Runner struct {
	cfg     Config
	syncer  boardSyncer
	rescore types.RescoreTrigger
	archive archiver
	metrics types.MetricsPublisher
	clock   types.Clock
	logger  *slog.Logger

	lastArchive time.Time
}

// NewRunner wires a runner. rescore, archive, and metrics may be nil; the
// corresponding step is skipped.
func NewRunner(cfg Config, syncer boardSyncer, rescore types.RescoreTrigger,
	archive archiver, metrics types.MetricsPublisher, clock types.Clock, logger *slog.Logger) *Runner {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		cfg:     cfg,
		syncer:  syncer,
		rescore: rescore,
		archive: archive,
		metrics: metrics,
		clock:   clock,
		logger:  logger,
	}
}

// Run executes one cycle immediately, then one per SyncInterval until ctx is
// cancelled. Cycle errors are logged; the loop never dies on its own.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "poller started",
		"sync_interval", r.cfg.SyncInterval,
		"lookback", r.cfg.BoardLookback,
		"lookahead", r.cfg.BoardLookahead,
	)

	if err := r.RunCycle(ctx); err != nil {
		r.logger.ErrorContext(ctx, "sync cycle failed", "error", err)
	}

	ticker := time.NewTicker(r.cfg.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "poller stopping")
			return nil
		case <-ticker.C:
			if err := r.RunCycle(ctx); err != nil {
				r.logger.ErrorContext(ctx, "sync cycle failed", "error", err)
			}
		}
	}
}

// RunCycle performs one full sync pass. The board refresh and the completion
// sweep are independent; one failing does not stop the other.
func (r *Runner) RunCycle(ctx context.Context) error {
	start := r.clock.Now()
	now := start.UTC()

	var firstErr error

	upserted, err := r.syncer.SyncBoard(ctx, now.Add(-r.cfg.BoardLookback), now.Add(r.cfg.BoardLookahead))
	if err != nil {
		firstErr = err
		r.logger.ErrorContext(ctx, "board sync failed", "error", err)
	} else if upserted > 0 && r.rescore != nil {
		if err := r.rescore.TriggerRescore(ctx, now, "board_sync"); err != nil {
			r.logger.ErrorContext(ctx, "failed to enqueue rescore", "error", err)
		}
	}

	completed, err := r.syncer.CompleteFinished(ctx)
	if err != nil {
		if firstErr == nil {
			firstErr = err
		}
		r.logger.ErrorContext(ctx, "completion sweep failed", "error", err)
	}

	r.maybeArchive(ctx, now)

	elapsed := time.Since(start)
	if r.metrics != nil {
		r.metrics.RecordSyncDuration(ctx, "sync_cycle", elapsed)
	}
	r.logger.InfoContext(ctx, "sync cycle complete",
		"upserted", upserted,
		"completed", completed,
		"duration", elapsed,
	)
	return firstErr
}

// maybeArchive runs the backup when the last one is older than
// archiveInterval. Archive failures are logged only; the sync work already
// succeeded.
func (r *Runner) maybeArchive(ctx context.Context, now time.Time) {
	if r.archive == nil || now.Sub(r.lastArchive) < archiveInterval {
		return
	}

	path, err := r.archive.Export(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "history archive failed", "error", err)
		return
	}
	r.lastArchive = now

	if _, err := r.archive.Prune(ctx); err != nil {
		r.logger.WarnContext(ctx, "archive prune failed", "error", err)
	}
	r.logger.InfoContext(ctx, "history archived", "path", path)
}
