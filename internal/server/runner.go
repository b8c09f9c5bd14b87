// Package server wires the reconciliation core together and runs its
// event-driven components.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/trackarr/trackarr/internal/config"
	"github.com/trackarr/trackarr/internal/download"
	"github.com/trackarr/trackarr/internal/events"
	"github.com/trackarr/trackarr/internal/history"
	"github.com/trackarr/trackarr/internal/library"
	"github.com/trackarr/trackarr/internal/migrations"
	"github.com/trackarr/trackarr/internal/parser"
	"github.com/trackarr/trackarr/internal/pending"
	"github.com/trackarr/trackarr/internal/queue"
)

// Runner composes the core's components and manages their lifecycle.
type Runner struct {
	db       *sql.DB
	config   *config.Config
	provider download.Provider
	imports  download.ImportService
	logger   *slog.Logger

	queue   *queue.Builder
	actions *queue.Actions
	failed  *download.FailedService
	monitor *download.Monitor
}

// NewRunner creates a new runner. The download-client provider and the
// import engine are external collaborators supplied by the caller.
func NewRunner(db *sql.DB, cfg *config.Config, provider download.Provider,
	imports download.ImportService, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		db:       db,
		config:   cfg,
		provider: provider,
		imports:  imports,
		logger:   logger,
	}
}

// Queue returns the queue view builder. Valid after Run has started.
func (r *Runner) Queue() *queue.Builder { return r.queue }

// Actions returns the queue action router. Valid after Run has started.
func (r *Runner) Actions() *queue.Actions { return r.actions }

// MarkAsFailed manually fails the download behind a history record.
// Valid after Run has started.
func (r *Runner) MarkAsFailed(ctx context.Context, historyID int64) error {
	return r.failed.MarkAsFailed(ctx, historyID)
}

// Poll triggers an immediate reconciliation cycle. Valid after Run has
// started.
func (r *Runner) Poll(ctx context.Context) {
	r.monitor.Poll(ctx)
}

// Run starts all components and blocks until the context is canceled or a
// component fails.
func (r *Runner) Run(ctx context.Context) error {
	if err := migrations.Apply(r.db); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	eventLog := events.NewEventLog(r.db)
	bus := events.NewBus(eventLog, r.logger.With("component", "bus"))
	defer bus.Close()

	lib := library.NewStore(r.db)
	historyStore := history.NewStore(r.db)
	parserSvc := parser.NewService(lib)

	recorder := history.NewRecorder(historyStore, bus, r.logger.With("component", "history"))

	downloads := r.config.Downloads
	trackedStore := download.NewTrackedStore(downloads.TrackedTTL.Std())
	tracker := download.NewTracker(trackedStore, parserSvc, historyStore, r.logger.With("component", "tracker"))
	r.failed = download.NewFailedService(historyStore, bus, r.logger.With("component", "failed"))
	completed := download.NewCompletedService(historyStore, r.imports, r.provider, bus,
		download.CompletedConfig{
			DownloadedEpisodesFolder: downloads.DownloadedEpisodesFolder,
			RemoveCompleted:          downloads.RemoveCompleted,
		},
		r.logger.With("component", "completed"))

	r.monitor = download.NewMonitor(r.provider, tracker, r.failed, completed, bus,
		download.MonitorConfig{
			PollInterval:      downloads.PollInterval.Std(),
			CompletedHandling: downloads.CompletedHandling,
		},
		r.logger.With("component", "monitor"))

	delays := library.NewDelayService(delayProfiles(r.config))
	pendingMgr := pending.NewManager(pending.NewRepo(r.db), parserSvc, lib, delays, bus,
		r.logger.With("component", "pending"))

	policy := download.ActivePolicy{
		CompletedHandling: downloads.CompletedHandling,
		FailedHandling:    downloads.FailedHandling,
		HideUnhandled:     downloads.HideUnhandled,
	}
	r.queue = queue.NewBuilder(tracker, pendingMgr, policy)
	r.actions = queue.NewActions(r.queue, pendingMgr, r.provider, tracker, completed, bus,
		r.logger.With("component", "queue"))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return recorder.Start(ctx) })
	g.Go(func() error { return r.monitor.Start(ctx) })
	g.Go(func() error { return pendingMgr.Start(ctx) })

	r.logger.Info("server components started",
		"poll_interval", downloads.PollInterval.Std(),
		"completed_handling", downloads.CompletedHandling,
		"failed_handling", downloads.FailedHandling)

	return g.Wait()
}

func delayProfiles(cfg *config.Config) []library.DelayProfile {
	profiles := make([]library.DelayProfile, 0, len(cfg.DelayProfiles))
	for _, p := range cfg.DelayProfiles {
		profiles = append(profiles, library.DelayProfile{
			Order:        p.Order,
			Tags:         p.Tags,
			UsenetDelay:  p.UsenetDelay.Std(),
			TorrentDelay: p.TorrentDelay.Std(),
		})
	}
	return profiles
}
