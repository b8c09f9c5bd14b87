package download

import (
	"fmt"
	"log/slog"

	"github.com/trackarr/trackarr/internal/history"
	"github.com/trackarr/trackarr/internal/parser"
	"github.com/trackarr/trackarr/pkg/release"
)

// TrackOutcome says how correlating a client item went.
type TrackOutcome int

const (
	// OutcomeTracked means the item resolved and is now tracked.
	OutcomeTracked TrackOutcome = iota
	// OutcomeUnparseableTitle means the item title carries no episode
	// identity. The item is excluded from tracking, not an error.
	OutcomeUnparseableTitle
	// OutcomeNoMatchingSeries means the title parsed but matched nothing
	// in the catalog. Also excluded from tracking.
	OutcomeNoMatchingSeries
)

func (o TrackOutcome) String() string {
	switch o {
	case OutcomeTracked:
		return "tracked"
	case OutcomeUnparseableTitle:
		return "unparseable title"
	case OutcomeNoMatchingSeries:
		return "no matching series"
	default:
		return "unknown"
	}
}

// TrackResult is the explicit three-way result of Track.
type TrackResult struct {
	Outcome  TrackOutcome
	Download *TrackedDownload // non-nil only when Outcome is OutcomeTracked
}

// ActivePolicy controls which tracked downloads count as active when the
// completed/failed handling pipelines are toggled off. With HideUnhandled
// set, items a disabled pipeline would have consumed are dropped from the
// active set; by default they stay visible.
type ActivePolicy struct {
	CompletedHandling bool
	FailedHandling    bool
	HideUnhandled     bool
}

// Tracker correlates download-client items with grab history and the series
// catalog, and owns the tracked-download store.
type Tracker struct {
	store   *TrackedStore
	parser  *parser.Service
	history *history.Store
	logger  *slog.Logger
}

// NewTracker creates a tracker.
func NewTracker(store *TrackedStore, parserSvc *parser.Service, historyStore *history.Store, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		store:   store,
		parser:  parserSvc,
		history: historyStore,
		logger:  logger,
	}
}

// Track correlates one client item. Idempotent: a live store entry for the
// item's download id is returned unchanged. New items seed their lifecycle
// state from the most recent ledger entry, then resolve series and episodes
// from the title. The returned error covers ledger/catalog access failures
// only; unresolvable items report their outcome instead.
func (t *Tracker) Track(def ClientDefinition, item Item) (TrackResult, error) {
	if existing := t.store.Find(item.DownloadID); existing != nil {
		return TrackResult{Outcome: OutcomeTracked, Download: existing}, nil
	}

	tracked := NewTrackedDownload(def, item)

	recent, err := t.history.MostRecentForDownloadID(item.DownloadID)
	if err != nil {
		return TrackResult{}, fmt.Errorf("seed state for %q: %w", item.DownloadID, err)
	}
	if recent != nil {
		tracked.SetState(stateFromHistory(recent.EventType))
	}

	parsed := release.ParseTitle(item.Title)
	if parsed == nil {
		t.logger.Debug("item title not parseable, not tracking", "title", item.Title)
		return TrackResult{Outcome: OutcomeUnparseableTitle}, nil
	}

	remote, err := t.parser.Map(parsed, &parser.ReleaseInfo{
		Title:    item.Title,
		Size:     item.TotalSize,
		Protocol: def.Protocol,
	})
	if err != nil {
		if parser.IsResolutionFailure(err) {
			t.logger.Debug("no series/episodes for item, not tracking", "title", item.Title, "reason", err)
			return TrackResult{Outcome: OutcomeNoMatchingSeries}, nil
		}
		return TrackResult{}, fmt.Errorf("resolve %q: %w", item.Title, err)
	}

	tracked.RemoteEpisode = remote
	t.store.Add(tracked)

	return TrackResult{Outcome: OutcomeTracked, Download: tracked}, nil
}

// Find returns the live tracked download for an external download id, or nil.
func (t *Tracker) Find(downloadID string) *TrackedDownload {
	return t.store.Find(downloadID)
}

// All returns every live tracked download.
func (t *Tracker) All() []*TrackedDownload {
	return t.store.All()
}

// Active returns the tracked downloads still in Downloading state, filtered
// by the handling policy.
func (t *Tracker) Active(policy ActivePolicy) []*TrackedDownload {
	var results []*TrackedDownload
	for _, tracked := range t.store.All() {
		if tracked.State() != StateDownloading {
			continue
		}
		if policy.HideUnhandled {
			if !policy.CompletedHandling && tracked.Item.Status == ItemCompleted {
				continue
			}
			if !policy.FailedHandling && tracked.Item.Status == ItemFailed {
				continue
			}
		}
		results = append(results, tracked)
	}
	return results
}

// Remove drops one tracked download, e.g. after its item was removed from
// the client.
func (t *Tracker) Remove(downloadID string) {
	t.store.Remove(downloadID)
}

// Clear drops all tracked downloads so the next poll rebuilds them.
func (t *Tracker) Clear() {
	t.store.Clear()
}

func stateFromHistory(eventType history.EventType) State {
	switch eventType {
	case history.EventDownloadFolderImported:
		return StateImported
	case history.EventDownloadFailed:
		return StateDownloadFailed
	default:
		return StateDownloading
	}
}
