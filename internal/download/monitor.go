package download

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/trackarr/trackarr/internal/events"
)

// MonitorConfig controls the reconciliation loop.
type MonitorConfig struct {
	PollInterval      time.Duration
	CompletedHandling bool // gate the completion importer
}

// Monitor is the reconciliation loop: it polls every configured backend,
// drives each reported item through correlation, failure detection and
// completion import, and signals the queue afterwards. One broken backend
// never blocks the others.
type Monitor struct {
	provider  Provider
	tracker   *Tracker
	failed    *FailedService
	completed *CompletedService
	bus       *events.Bus
	config    MonitorConfig
	logger    *slog.Logger

	pollMu sync.Mutex // serializes overlapping poll triggers
}

// NewMonitor creates a reconciliation loop.
func NewMonitor(provider Provider, tracker *Tracker, failed *FailedService,
	completed *CompletedService, bus *events.Bus, cfg MonitorConfig, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Minute
	}
	return &Monitor{
		provider:  provider,
		tracker:   tracker,
		failed:    failed,
		completed: completed,
		bus:       bus,
		config:    cfg,
		logger:    logger,
	}
}

// Poll runs one full reconciliation cycle across all backends, then
// publishes a single queue-updated event. Concurrent calls are serialized.
func (m *Monitor) Poll(ctx context.Context) {
	m.pollMu.Lock()
	defer m.pollMu.Unlock()

	for _, client := range m.provider.GetClients() {
		m.refreshClient(ctx, client)
	}

	if err := m.bus.Publish(ctx, &events.QueueUpdated{
		BaseEvent: events.NewBaseEvent(events.EventQueueUpdated, events.EntityQueue, 0),
	}); err != nil {
		m.logger.Error("failed to publish queue updated", "error", err)
	}
}

func (m *Monitor) refreshClient(ctx context.Context, client Client) {
	def := client.Definition()

	items, err := client.GetItems(ctx)
	if err != nil {
		m.logger.Warn("unable to retrieve items from download client, skipping",
			"client", def.Name, "error", err)
		return
	}

	for _, item := range items {
		result, err := m.tracker.Track(def, item)
		if err != nil {
			m.logger.Warn("failed to track item", "client", def.Name, "title", item.Title, "error", err)
			continue
		}
		if result.Outcome != OutcomeTracked || result.Download.State() != StateDownloading {
			continue
		}

		m.processTracked(ctx, result.Download)
	}
}

func (m *Monitor) processTracked(ctx context.Context, tracked *TrackedDownload) {
	if err := m.failed.Process(ctx, tracked); err != nil {
		m.logger.Warn("failure detection errored", "tracking_id", tracked.TrackingID, "error", err)
		return
	}

	if tracked.State() != StateDownloading || !m.config.CompletedHandling {
		return
	}

	if err := m.completed.Process(ctx, tracked); err != nil {
		m.logger.Warn("completion import errored", "tracking_id", tracked.TrackingID, "error", err)
	}
}

// Start runs an initial poll, then re-polls on the configured interval and
// on every grab. Scene mapping updates invalidate the tracked store so the
// next poll rebuilds every correlation. Blocks until ctx is canceled.
func (m *Monitor) Start(ctx context.Context) error {
	grabbed := m.bus.Subscribe(events.EventEpisodeGrabbed, 16)
	mappings := m.bus.Subscribe(events.EventSceneMappingsUpdated, 4)

	ticker := time.NewTicker(m.config.PollInterval)
	defer ticker.Stop()

	m.Poll(ctx)

	for {
		select {
		case <-ticker.C:
			m.Poll(ctx)
		case e := <-grabbed:
			if e == nil {
				return nil
			}
			m.Poll(ctx)
		case e := <-mappings:
			if e == nil {
				return nil
			}
			m.tracker.Clear()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
