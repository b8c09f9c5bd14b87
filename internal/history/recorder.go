package history

import (
	"context"
	"log/slog"

	"github.com/trackarr/trackarr/internal/events"
)

// Recorder writes ledger entries for grab, import, failure and deletion
// events published on the bus. One record per affected episode.
type Recorder struct {
	store  *Store
	bus    *events.Bus
	logger *slog.Logger
}

// NewRecorder creates a recorder.
func NewRecorder(store *Store, bus *events.Bus, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{store: store, bus: bus, logger: logger}
}

// Start begins processing events. Blocks until the context is canceled.
func (r *Recorder) Start(ctx context.Context) error {
	grabbed := r.bus.Subscribe(events.EventEpisodeGrabbed, 100)
	imported := r.bus.Subscribe(events.EventEpisodeImported, 100)
	failed := r.bus.Subscribe(events.EventDownloadFailed, 100)
	deleted := r.bus.Subscribe(events.EventEpisodeFileDeleted, 100)

	for {
		select {
		case e := <-grabbed:
			if e == nil {
				return nil
			}
			if g, ok := e.(*events.EpisodeGrabbed); ok {
				r.handleGrabbed(g)
			}
		case e := <-imported:
			if e == nil {
				return nil
			}
			if i, ok := e.(*events.EpisodeImported); ok {
				r.handleImported(i)
			}
		case e := <-failed:
			if e == nil {
				return nil
			}
			if f, ok := e.(*events.DownloadFailed); ok {
				r.handleFailed(f)
			}
		case e := <-deleted:
			if e == nil {
				return nil
			}
			if d, ok := e.(*events.EpisodeFileDeleted); ok {
				r.handleFileDeleted(d)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (r *Recorder) handleGrabbed(e *events.EpisodeGrabbed) {
	for _, episodeID := range e.EpisodeIDs {
		rec := &Record{
			EventType:   EventGrabbed,
			SeriesID:    e.SeriesID,
			EpisodeID:   episodeID,
			DownloadID:  e.DownloadID,
			SourceTitle: e.SourceTitle,
			Quality:     e.Quality,
			Data: map[string]string{
				DataDownloadClient: e.DownloadClient,
				DataIndexer:        e.Indexer,
			},
		}
		if err := r.store.Insert(rec); err != nil {
			r.logger.Error("failed to record grab", "episode_id", episodeID, "error", err)
		}
	}
}

func (r *Recorder) handleImported(e *events.EpisodeImported) {
	if !e.NewDownload {
		return
	}
	for _, episodeID := range e.EpisodeIDs {
		rec := &Record{
			EventType:   EventDownloadFolderImported,
			SeriesID:    e.SeriesID,
			EpisodeID:   episodeID,
			DownloadID:  e.DownloadID,
			SourceTitle: e.SourceTitle,
			Quality:     e.Quality,
			Data: map[string]string{
				DataDownloadClient: e.DownloadClient,
			},
		}
		if err := r.store.Insert(rec); err != nil {
			r.logger.Error("failed to record import", "episode_id", episodeID, "error", err)
		}
	}
}

func (r *Recorder) handleFailed(e *events.DownloadFailed) {
	for _, episodeID := range e.EpisodeIDs {
		rec := &Record{
			EventType:   EventDownloadFailed,
			SeriesID:    e.SeriesID,
			EpisodeID:   episodeID,
			DownloadID:  e.DownloadID,
			SourceTitle: e.SourceTitle,
			Quality:     e.Quality,
			Data: map[string]string{
				DataDownloadClient: e.DownloadClient,
				DataMessage:        e.Message,
			},
		}
		if err := r.store.Insert(rec); err != nil {
			r.logger.Error("failed to record failure", "episode_id", episodeID, "error", err)
		}
	}
}

func (r *Recorder) handleFileDeleted(e *events.EpisodeFileDeleted) {
	rec := &Record{
		EventType:   EventEpisodeFileDeleted,
		SeriesID:    e.SeriesID,
		EpisodeID:   e.EpisodeID,
		SourceTitle: e.Path,
		Quality:     e.Quality,
		Data: map[string]string{
			DataReason: e.Reason,
		},
	}
	if err := r.store.Insert(rec); err != nil {
		r.logger.Error("failed to record file deletion", "episode_id", e.EpisodeID, "error", err)
	}
}
