package pending

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/trackarr/trackarr/internal/events"
	"github.com/trackarr/trackarr/internal/library"
	"github.com/trackarr/trackarr/internal/parser"
	"github.com/trackarr/trackarr/internal/queue"
	"github.com/trackarr/trackarr/pkg/release"
)

// resolved joins a stored pending release with its freshly derived remote
// episode. Never cached: the catalog may change between reads.
type resolved struct {
	release *Release
	remote  *parser.RemoteEpisode
}

// Manager owns the pool of deferred releases: dedup on add, delay-profile
// timing, queue projection, and cleanup driven by grab/rejection/deletion
// events.
type Manager struct {
	repo    *Repo
	parser  *parser.Service
	library *library.Store
	delays  *library.DelayService
	bus     *events.Bus
	logger  *slog.Logger
	now     func() time.Time
}

// NewManager creates a pending-release manager.
func NewManager(repo *Repo, parserSvc *parser.Service, lib *library.Store,
	delays *library.DelayService, bus *events.Bus, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		repo:    repo,
		parser:  parserSvc,
		library: lib,
		delays:  delays,
		bus:     bus,
		logger:  logger,
		now:     time.Now,
	}
}

// Add defers a matched release. Idempotent: when an already-pending
// release overlaps the new one's episodes and matches it on title,
// publish date and indexer, the add is dropped.
func (m *Manager) Add(ctx context.Context, remote *parser.RemoteEpisode) error {
	existing, err := m.resolvedForSeries(remote.Series.ID)
	if err != nil {
		return fmt.Errorf("add pending release: %w", err)
	}

	episodeIDs := remote.EpisodeIDs()
	for _, r := range existing {
		if !overlaps(r.remote.EpisodeIDs(), episodeIDs) {
			continue
		}
		if sameRelease(r.release, remote.Release) {
			m.logger.Debug("release already pending, skipping",
				"title", remote.Release.Title, "indexer", remote.Release.Indexer)
			return nil
		}
	}

	p := &Release{
		SeriesID:   remote.Series.ID,
		Title:      remote.Release.Title,
		ParsedInfo: remote.ParsedInfo,
		Release:    remote.Release,
	}
	if err := m.repo.Insert(p); err != nil {
		return fmt.Errorf("add pending release: %w", err)
	}

	m.publishUpdated(ctx)
	m.logger.Info("release deferred",
		"title", p.Title, "series_id", p.SeriesID, "indexer", remote.Release.Indexer)
	return nil
}

// PendingQueue projects every pending release into queue entries, one per
// resolved episode, with an estimated completion time of publish date plus
// the series' effective protocol delay.
func (m *Manager) PendingQueue(ctx context.Context) ([]queue.Entry, error) {
	all, err := m.resolvedAll()
	if err != nil {
		return nil, fmt.Errorf("pending queue: %w", err)
	}

	var entries []queue.Entry
	for _, r := range all {
		entries = append(entries, m.entriesFor(r)...)
	}
	return entries, nil
}

// entriesFor projects one resolved pending release into queue entries.
func (m *Manager) entriesFor(r resolved) []queue.Entry {
	ect := r.remote.Release.PublishDate.Add(m.delayFor(r.remote))
	timeLeft := ect.Sub(m.now())

	entries := make([]queue.Entry, 0, len(r.remote.Episodes))
	for _, ep := range r.remote.Episodes {
		e := ect
		entries = append(entries, queue.Entry{
			ID:                  queue.BuildID(ep.ID, r.release.ID),
			SeriesID:            r.remote.Series.ID,
			EpisodeID:           ep.ID,
			SourceTitle:         r.release.Title,
			Quality:             r.release.ParsedInfo.Quality,
			Protocol:            r.remote.Release.Protocol,
			Size:                r.remote.Release.Size,
			SizeLeft:            r.remote.Release.Size,
			TimeLeft:            timeLeft,
			EstimatedCompletion: &e,
			Status:              queue.StatusPending,
		})
	}
	return entries
}

// FindPendingQueueItem resolves a queue-entry id back to its pending
// release, or nil when the id belongs to no pending entry.
func (m *Manager) FindPendingQueueItem(ctx context.Context, id int64) (*queue.PendingItem, error) {
	r, entry, err := m.findByQueueID(ctx, id)
	if err != nil || r == nil {
		return nil, err
	}
	return &queue.PendingItem{Entry: *entry, Remote: r.remote}, nil
}

// RemovePendingQueueItem deletes the pending release behind a queue-entry id.
func (m *Manager) RemovePendingQueueItem(ctx context.Context, id int64) error {
	r, _, err := m.findByQueueID(ctx, id)
	if err != nil {
		return err
	}
	if r == nil {
		return fmt.Errorf("remove pending entry %d: %w", id, ErrNotFound)
	}

	if err := m.repo.Delete(r.release.ID); err != nil {
		return err
	}
	m.publishUpdated(ctx)
	m.logger.Info("pending release removed", "title", r.release.Title, "queue_id", id)
	return nil
}

// findByQueueID walks the pending projection looking for the release and
// entry an id belongs to.
func (m *Manager) findByQueueID(ctx context.Context, id int64) (*resolved, *queue.Entry, error) {
	all, err := m.resolvedAll()
	if err != nil {
		return nil, nil, fmt.Errorf("resolve pending entry %d: %w", id, err)
	}

	for i := range all {
		for _, entry := range m.entriesFor(all[i]) {
			if entry.ID == id {
				return &all[i], &entry, nil
			}
		}
	}
	return nil, nil, nil
}

// OldestPendingRelease returns the longest-published pending release of a
// series overlapping the given episodes, or nil. Used to prefer a release
// already waiting over grabbing a fresh one.
func (m *Manager) OldestPendingRelease(seriesID int64, episodeIDs []int64) (*parser.RemoteEpisode, error) {
	all, err := m.resolvedForSeries(seriesID)
	if err != nil {
		return nil, fmt.Errorf("oldest pending release: %w", err)
	}

	var oldest *parser.RemoteEpisode
	for _, r := range all {
		if !overlaps(r.remote.EpisodeIDs(), episodeIDs) {
			continue
		}
		if oldest == nil || r.remote.Release.PublishDate.Before(oldest.Release.PublishDate) {
			oldest = r.remote
		}
	}
	return oldest, nil
}

// RemoveGrabbed deletes pending releases superseded by a grab: any entry
// overlapping the grabbed episodes whose quality ranks at or below the
// grabbed quality goes away. Strictly better pending entries survive for
// a possible retry.
func (m *Manager) RemoveGrabbed(ctx context.Context, seriesID int64, episodeIDs []int64, grabbed release.Quality) error {
	all, err := m.resolvedForSeries(seriesID)
	if err != nil {
		return fmt.Errorf("remove grabbed: %w", err)
	}
	if len(all) == 0 {
		return nil
	}

	series, err := m.library.GetSeries(seriesID)
	if err != nil {
		return fmt.Errorf("remove grabbed: %w", err)
	}
	comparer := release.NewComparer(series.Profile)

	for _, r := range all {
		if !overlaps(r.remote.EpisodeIDs(), episodeIDs) {
			continue
		}
		if comparer.Compare(r.release.ParsedInfo.Quality, grabbed) > 0 {
			continue
		}
		if err := m.repo.Delete(r.release.ID); err != nil {
			return fmt.Errorf("remove grabbed: %w", err)
		}
		m.publishUpdated(ctx)
		m.logger.Debug("pending release superseded by grab",
			"title", r.release.Title, "quality", r.release.ParsedInfo.Quality.String())
	}
	return nil
}

// RemoveRejected deletes pending releases matching freshly rejected
// decisions on (title, publish date, indexer).
func (m *Manager) RemoveRejected(ctx context.Context, rejected []events.RejectedRelease) error {
	if len(rejected) == 0 {
		return nil
	}

	all, err := m.repo.All()
	if err != nil {
		return fmt.Errorf("remove rejected: %w", err)
	}

	for _, p := range all {
		for _, rej := range rejected {
			if p.Title != rej.Title || p.Release.Indexer != rej.Indexer || !p.Release.PublishDate.Equal(rej.PublishDate) {
				continue
			}
			if err := m.repo.Delete(p.ID); err != nil {
				return fmt.Errorf("remove rejected: %w", err)
			}
			m.publishUpdated(ctx)
			m.logger.Debug("pending release rejected", "title", p.Title, "indexer", p.Release.Indexer)
			break
		}
	}
	return nil
}

// RemoveForSeries purges every pending release of a deleted series.
func (m *Manager) RemoveForSeries(ctx context.Context, seriesID int64) error {
	deleted, err := m.repo.DeleteForSeries(seriesID)
	if err != nil {
		return err
	}
	if deleted > 0 {
		m.publishUpdated(ctx)
		m.logger.Info("purged pending releases for deleted series",
			"series_id", seriesID, "count", deleted)
	}
	return nil
}

// Start reacts to grab, decision-round and series-deletion events until
// ctx is canceled or the bus closes.
func (m *Manager) Start(ctx context.Context) error {
	grabbed := m.bus.Subscribe(events.EventEpisodeGrabbed, 16)
	synced := m.bus.Subscribe(events.EventRssSyncCompleted, 4)
	deleted := m.bus.Subscribe(events.EventSeriesDeleted, 4)

	for {
		select {
		case e := <-grabbed:
			if e == nil {
				return nil
			}
			g, ok := e.(*events.EpisodeGrabbed)
			if !ok {
				continue
			}
			if err := m.RemoveGrabbed(ctx, g.SeriesID, g.EpisodeIDs, release.ParseQuality(g.Quality)); err != nil {
				m.logger.Error("failed to clean up pending after grab", "error", err)
			}
		case e := <-synced:
			if e == nil {
				return nil
			}
			s, ok := e.(*events.RssSyncCompleted)
			if !ok {
				continue
			}
			if err := m.RemoveRejected(ctx, s.Rejected); err != nil {
				m.logger.Error("failed to clean up rejected pending", "error", err)
			}
		case e := <-deleted:
			if e == nil {
				return nil
			}
			d, ok := e.(*events.SeriesDeleted)
			if !ok {
				continue
			}
			if err := m.RemoveForSeries(ctx, d.SeriesID); err != nil {
				m.logger.Error("failed to purge pending for series", "error", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (m *Manager) publishUpdated(ctx context.Context) {
	e := &events.PendingReleasesUpdated{
		BaseEvent: events.NewBaseEvent(events.EventPendingReleasesUpdated, events.EntityPending, 0),
	}
	if err := m.bus.Publish(ctx, e); err != nil {
		m.logger.Error("failed to publish pending releases updated", "error", err)
	}
}

func (m *Manager) delayFor(remote *parser.RemoteEpisode) time.Duration {
	profiles := m.delays.AllForTags(remote.Series.Tags)
	return profiles[0].ProtocolDelay(remote.Release.Protocol)
}

func (m *Manager) resolvedAll() ([]resolved, error) {
	stored, err := m.repo.All()
	if err != nil {
		return nil, err
	}
	return m.resolve(stored), nil
}

func (m *Manager) resolvedForSeries(seriesID int64) ([]resolved, error) {
	stored, err := m.repo.AllForSeries(seriesID)
	if err != nil {
		return nil, err
	}
	return m.resolve(stored), nil
}

// resolve derives remote episodes for stored releases against the current
// catalog. Releases that no longer resolve (series or episodes gone) are
// skipped rather than failing the whole read.
func (m *Manager) resolve(stored []*Release) []resolved {
	var results []resolved
	for _, p := range stored {
		remote, err := m.parser.MapForSeries(p.ParsedInfo, p.Release, p.SeriesID)
		if err != nil {
			m.logger.Debug("pending release no longer resolves, skipping",
				"title", p.Title, "series_id", p.SeriesID, "reason", err)
			continue
		}
		results = append(results, resolved{release: p, remote: remote})
	}
	return results
}

func overlaps(a, b []int64) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

func sameRelease(p *Release, rel *parser.ReleaseInfo) bool {
	return p.Title == rel.Title &&
		p.Release.Indexer == rel.Indexer &&
		p.Release.PublishDate.Equal(rel.PublishDate)
}
