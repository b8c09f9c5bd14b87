package download

import (
	"sync"
	"time"
)

// DefaultTTL is how long a tracked download lives in the store before it is
// rebuilt from the client item and the history ledger on the next poll.
const DefaultTTL = 5 * time.Minute

type storeEntry struct {
	download *TrackedDownload
	expires  time.Time
}

// TrackedStore holds the tracked downloads currently known to the core,
// keyed by external download id. Entries expire after a fixed TTL, checked
// lazily on read, so a stale entry is re-derived from the ledger rather
// than resurrected.
type TrackedStore struct {
	mu      sync.RWMutex
	entries map[string]storeEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewTrackedStore creates a store with the given entry TTL.
// A zero ttl falls back to DefaultTTL.
func NewTrackedStore(ttl time.Duration) *TrackedStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &TrackedStore{
		entries: make(map[string]storeEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Add stores a tracked download, replacing any entry for the same id.
func (s *TrackedStore) Add(t *TrackedDownload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[t.Item.DownloadID] = storeEntry{
		download: t,
		expires:  s.now().Add(s.ttl),
	}
}

// Find returns the live entry for an external download id, or nil.
func (s *TrackedStore) Find(downloadID string) *TrackedDownload {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[downloadID]
	if !ok {
		return nil
	}
	if s.now().After(entry.expires) {
		delete(s.entries, downloadID)
		return nil
	}
	return entry.download
}

// All returns every live entry.
func (s *TrackedStore) All() []*TrackedDownload {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var results []*TrackedDownload
	for id, entry := range s.entries {
		if now.After(entry.expires) {
			delete(s.entries, id)
			continue
		}
		results = append(results, entry.download)
	}
	return results
}

// Remove deletes the entry for an external download id, if present.
func (s *TrackedStore) Remove(downloadID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, downloadID)
}

// Clear drops every entry. Used when scene mappings change and all
// correlations must be rebuilt.
func (s *TrackedStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]storeEntry)
}
