package download

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/trackarr/trackarr/internal/events"
	"github.com/trackarr/trackarr/internal/history"
)

// FailedService detects failed and encrypted downloads and publishes the
// failure events that drive history and retry handling.
type FailedService struct {
	history *history.Store
	bus     *events.Bus
	logger  *slog.Logger
}

// NewFailedService creates a failure detector.
func NewFailedService(historyStore *history.Store, bus *events.Bus, logger *slog.Logger) *FailedService {
	if logger == nil {
		logger = slog.Default()
	}
	return &FailedService{history: historyStore, bus: bus, logger: logger}
}

// Process checks one tracked download for failure. Items without grab
// history are skipped with a warning: there is nothing to fail against.
func (s *FailedService) Process(ctx context.Context, tracked *TrackedDownload) error {
	grabbed, err := s.history.Find(tracked.Item.DownloadID, history.EventGrabbed)
	if err != nil {
		return fmt.Errorf("grabbed history for %q: %w", tracked.Item.DownloadID, err)
	}

	if len(grabbed) == 0 {
		tracked.Warn("Download wasn't grabbed by trackarr, skipping")
		s.logger.Warn("no grab history for item, skipping failure check",
			"download_id", tracked.Item.DownloadID, "title", tracked.Item.Title)
		return nil
	}

	switch {
	case tracked.Item.IsEncrypted:
		tracked.SetState(StateDownloadFailed)
		s.publishFailed(ctx, grabbed, "Encrypted download detected")
	case tracked.Item.Status == ItemFailed:
		tracked.SetState(StateDownloadFailed)
		s.publishFailed(ctx, grabbed, tracked.Item.Message)
	}

	return nil
}

// MarkAsFailed is the manual override: fail the download behind one history
// row. When the row names a download id, every grabbed row sharing that id
// fails as a unit (multi-episode releases fail together).
func (s *FailedService) MarkAsFailed(ctx context.Context, historyID int64) error {
	rec, err := s.history.Get(historyID)
	if err != nil {
		return fmt.Errorf("mark as failed: %w", err)
	}

	if rec.DownloadID == "" {
		s.publishFailed(ctx, []*history.Record{rec}, "Manually marked as failed")
		return nil
	}

	grabbed, err := s.history.Find(rec.DownloadID, history.EventGrabbed)
	if err != nil {
		return fmt.Errorf("grabbed history for %q: %w", rec.DownloadID, err)
	}
	if len(grabbed) == 0 {
		return fmt.Errorf("mark as failed %q: %w", rec.DownloadID, ErrNoGrabbedHistory)
	}

	s.publishFailed(ctx, grabbed, "Manually marked as failed")
	return nil
}

func (s *FailedService) publishFailed(ctx context.Context, records []*history.Record, message string) {
	first := records[0]

	episodeIDs := make([]int64, len(records))
	for i, r := range records {
		episodeIDs[i] = r.EpisodeID
	}

	e := &events.DownloadFailed{
		BaseEvent:      events.NewBaseEvent(events.EventDownloadFailed, events.EntitySeries, first.SeriesID),
		SeriesID:       first.SeriesID,
		EpisodeIDs:     episodeIDs,
		Quality:        first.Quality,
		SourceTitle:    first.SourceTitle,
		DownloadClient: first.Data[history.DataDownloadClient],
		DownloadID:     first.DownloadID,
		Message:        message,
		Data:           first.Data,
	}

	if err := s.bus.Publish(ctx, e); err != nil {
		s.logger.Error("failed to publish download failed", "error", err)
	}

	s.logger.Info("download marked as failed",
		"download_id", first.DownloadID, "episodes", len(episodeIDs), "message", message)
}
