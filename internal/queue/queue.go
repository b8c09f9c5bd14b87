// Package queue builds the unified operator queue: live tracked downloads
// merged with pending releases, projected into addressable entries. The
// queue is never persisted; it is recomputed from its sources on demand.
package queue

import (
	"context"
	"hash/fnv"
	"sort"
	"time"

	"github.com/trackarr/trackarr/internal/download"
	"github.com/trackarr/trackarr/internal/parser"
	"github.com/trackarr/trackarr/pkg/release"
)

// Status is the display status of a queue entry.
type Status string

const (
	StatusQueued      Status = "queued"
	StatusDownloading Status = "downloading"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
	StatusPending     Status = "pending"
)

// Entry is one addressable row of the queue. Its id is the sole handle
// the action layer uses to resolve back to the underlying tracked
// download or pending release.
type Entry struct {
	ID                  int64
	SeriesID            int64
	EpisodeID           int64
	SourceTitle         string
	Quality             release.Quality
	Protocol            release.Protocol
	Size                int64
	SizeLeft            int64
	TimeLeft            time.Duration
	EstimatedCompletion *time.Time
	Status              Status
	TrackingID          string
	DownloadID          string
	ClientID            int64
	StatusMessages      []download.StatusMessage
}

// BuildID derives a deterministic entry id from an episode and its parent
// (a pending release id or a hashed download id). The same pair always
// produces the same id, so ids survive queue rebuilds.
func BuildID(episodeID, parentID int64) int64 {
	return episodeID ^ (parentID << 16)
}

// HashDownloadID maps an external download id onto the numeric parent-id
// space used by BuildID.
func HashDownloadID(downloadID string) int64 {
	h := fnv.New32a()
	h.Write([]byte(downloadID))
	return int64(h.Sum32())
}

// PendingItem is a pending queue entry joined with its resolved release,
// as the grab action needs the full remote episode.
type PendingItem struct {
	Entry  Entry
	Remote *parser.RemoteEpisode
}

// PendingSource is the slice of the pending-release manager the queue
// reads from.
type PendingSource interface {
	// PendingQueue returns one entry per pending release and episode.
	PendingQueue(ctx context.Context) ([]Entry, error)
	// FindPendingQueueItem resolves an entry id to its pending release,
	// or nil when the id does not belong to a pending entry.
	FindPendingQueueItem(ctx context.Context, id int64) (*PendingItem, error)
	// RemovePendingQueueItem deletes the pending release behind an entry id.
	RemovePendingQueueItem(ctx context.Context, id int64) error
}

// Builder materializes the queue from the tracked-download store and the
// pending-release manager.
type Builder struct {
	tracker *download.Tracker
	pending PendingSource
	policy  download.ActivePolicy
	now     func() time.Time
}

// NewBuilder creates a queue builder.
func NewBuilder(tracker *download.Tracker, pending PendingSource, policy download.ActivePolicy) *Builder {
	return &Builder{
		tracker: tracker,
		pending: pending,
		policy:  policy,
		now:     time.Now,
	}
}

// GetQueue returns the current queue: active tracked downloads ordered by
// remaining time, one entry per episode, followed by pending entries.
func (b *Builder) GetQueue(ctx context.Context) ([]Entry, error) {
	tracked := b.tracker.Active(b.policy)
	sort.SliceStable(tracked, func(i, j int) bool {
		return tracked[i].Item.RemainingTime < tracked[j].Item.RemainingTime
	})

	var entries []Entry
	for _, t := range tracked {
		entries = append(entries, b.trackedEntries(t)...)
	}

	pending, err := b.pending.PendingQueue(ctx)
	if err != nil {
		return nil, err
	}
	return append(entries, pending...), nil
}

// Find returns the queue entry with the given id, or nil. The queue is
// recomputed for every lookup.
func (b *Builder) Find(ctx context.Context, id int64) (*Entry, error) {
	entries, err := b.GetQueue(ctx)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if entries[i].ID == id {
			return &entries[i], nil
		}
	}
	return nil, nil
}

func (b *Builder) trackedEntries(t *download.TrackedDownload) []Entry {
	if t.RemoteEpisode == nil {
		return nil
	}

	var eta *time.Time
	if t.Item.RemainingTime > 0 {
		e := b.now().Add(t.Item.RemainingTime)
		eta = &e
	}

	parentID := HashDownloadID(t.Item.DownloadID)

	entries := make([]Entry, 0, len(t.RemoteEpisode.Episodes))
	for _, ep := range t.RemoteEpisode.Episodes {
		entries = append(entries, Entry{
			ID:                  BuildID(ep.ID, parentID),
			SeriesID:            t.RemoteEpisode.Series.ID,
			EpisodeID:           ep.ID,
			SourceTitle:         t.Item.Title,
			Quality:             t.RemoteEpisode.ParsedInfo.Quality,
			Protocol:            t.Protocol,
			Size:                t.Item.TotalSize,
			SizeLeft:            t.Item.RemainingSize,
			TimeLeft:            t.Item.RemainingTime,
			EstimatedCompletion: eta,
			Status:              statusForItem(t.Item.Status),
			TrackingID:          t.TrackingID,
			DownloadID:          t.Item.DownloadID,
			ClientID:            t.ClientID,
			StatusMessages:      t.StatusMessages(),
		})
	}
	return entries
}

func statusForItem(s download.ItemStatus) Status {
	switch s {
	case download.ItemQueued:
		return StatusQueued
	case download.ItemCompleted:
		return StatusCompleted
	case download.ItemFailed:
		return StatusFailed
	default:
		return StatusDownloading
	}
}
