package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/trackarr/trackarr/internal/download"
	"github.com/trackarr/trackarr/internal/events"
	"github.com/trackarr/trackarr/pkg/release"
)

// Sentinel errors for queue actions.
var (
	// ErrUnknownEntry is returned when an id resolves to no queue entry.
	ErrUnknownEntry = errors.New("unknown queue entry")

	// ErrReadOnlyItem is returned when removal is requested for an item
	// the download client reports as read-only.
	ErrReadOnlyItem = errors.New("item is read-only and cannot be removed")

	// ErrNoClientForProtocol is returned when no configured client speaks
	// a pending release's protocol.
	ErrNoClientForProtocol = errors.New("no download client for protocol")
)

// Actions routes operator commands addressed by queue-entry id to the
// owning pending release or download client.
type Actions struct {
	builder   *Builder
	pending   PendingSource
	provider  download.Provider
	tracker   *download.Tracker
	completed *download.CompletedService
	bus       *events.Bus
	logger    *slog.Logger
}

// NewActions creates the queue action router.
func NewActions(builder *Builder, pending PendingSource, provider download.Provider,
	tracker *download.Tracker, completed *download.CompletedService,
	bus *events.Bus, logger *slog.Logger) *Actions {
	if logger == nil {
		logger = slog.Default()
	}
	return &Actions{
		builder:   builder,
		pending:   pending,
		provider:  provider,
		tracker:   tracker,
		completed: completed,
		bus:       bus,
		logger:    logger,
	}
}

// Remove deletes the entry behind id: a pending release is deleted
// directly, a tracked download is removed from its client. Read-only
// items are never removed.
func (a *Actions) Remove(ctx context.Context, id int64) error {
	item, err := a.pending.FindPendingQueueItem(ctx, id)
	if err != nil {
		return fmt.Errorf("resolve queue entry %d: %w", id, err)
	}
	if item != nil {
		return a.pending.RemovePendingQueueItem(ctx, id)
	}

	entry, err := a.builder.Find(ctx, id)
	if err != nil {
		return fmt.Errorf("resolve queue entry %d: %w", id, err)
	}
	if entry == nil {
		return fmt.Errorf("remove queue entry %d: %w", id, ErrUnknownEntry)
	}

	tracked := a.tracker.Find(entry.DownloadID)
	if tracked != nil && tracked.Item.IsReadOnly {
		return fmt.Errorf("remove queue entry %d: %w", id, ErrReadOnlyItem)
	}

	client, err := a.provider.Get(entry.ClientID)
	if err != nil {
		return fmt.Errorf("remove queue entry %d: %w", id, err)
	}
	if err := client.RemoveItem(ctx, entry.DownloadID); err != nil {
		return fmt.Errorf("remove %q from client: %w", entry.DownloadID, err)
	}

	a.tracker.Remove(entry.DownloadID)
	a.logger.Info("removed queue entry", "id", id, "download_id", entry.DownloadID)
	return nil
}

// Import re-runs the completion importer for the tracked download behind id.
func (a *Actions) Import(ctx context.Context, id int64) error {
	entry, err := a.builder.Find(ctx, id)
	if err != nil {
		return fmt.Errorf("resolve queue entry %d: %w", id, err)
	}
	if entry == nil || entry.Status == StatusPending {
		return fmt.Errorf("import queue entry %d: %w", id, ErrUnknownEntry)
	}

	tracked := a.tracker.Find(entry.DownloadID)
	if tracked == nil {
		return fmt.Errorf("import queue entry %d: %w", id, ErrUnknownEntry)
	}

	return a.completed.Process(ctx, tracked)
}

// Grab sends the pending release behind id to a matching download client
// and announces the grab. The pending entry itself is cleaned up by the
// pending manager reacting to the grab event.
func (a *Actions) Grab(ctx context.Context, id int64) error {
	item, err := a.pending.FindPendingQueueItem(ctx, id)
	if err != nil {
		return fmt.Errorf("resolve queue entry %d: %w", id, err)
	}
	if item == nil {
		return fmt.Errorf("grab queue entry %d: %w", id, ErrUnknownEntry)
	}

	client, err := a.clientForProtocol(item.Remote.Release.Protocol)
	if err != nil {
		return fmt.Errorf("grab queue entry %d: %w", id, err)
	}

	downloadID, err := client.Download(ctx, item.Remote)
	if err != nil {
		return fmt.Errorf("send %q to client: %w", item.Remote.Release.Title, err)
	}

	grabbed := &events.EpisodeGrabbed{
		BaseEvent:      events.NewBaseEvent(events.EventEpisodeGrabbed, events.EntitySeries, item.Remote.Series.ID),
		SeriesID:       item.Remote.Series.ID,
		EpisodeIDs:     item.Remote.EpisodeIDs(),
		Quality:        item.Remote.ParsedInfo.Quality.String(),
		SourceTitle:    item.Remote.Release.Title,
		Indexer:        item.Remote.Release.Indexer,
		PublishDate:    item.Remote.Release.PublishDate,
		DownloadID:     downloadID,
		DownloadClient: client.Definition().Name,
		Protocol:       string(item.Remote.Release.Protocol),
	}
	if err := a.bus.Publish(ctx, grabbed); err != nil {
		a.logger.Error("failed to publish episode grabbed", "error", err)
	}

	a.logger.Info("grabbed pending release",
		"title", item.Remote.Release.Title, "client", client.Definition().Name, "download_id", downloadID)
	return nil
}

func (a *Actions) clientForProtocol(protocol release.Protocol) (download.Client, error) {
	for _, client := range a.provider.GetClients() {
		if client.Definition().Protocol == protocol {
			return client, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoClientForProtocol, protocol)
}
