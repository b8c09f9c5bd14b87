package download

import (
	"fmt"
	"slices"
	"sync"

	"github.com/trackarr/trackarr/internal/parser"
	"github.com/trackarr/trackarr/pkg/release"
)

// State is the lifecycle stage of a tracked download. It only moves forward:
// Downloading -> Imported or Downloading -> DownloadFailed. It is re-derived
// from the history ledger whenever a tracked download is rebuilt, so the
// ledger stays authoritative over in-memory state.
type State string

const (
	StateDownloading    State = "downloading"
	StateImported       State = "imported"
	StateDownloadFailed State = "downloadFailed"
)

// StatusMessage is a per-file warning accumulated while processing a
// tracked download, shown to operators in the queue.
type StatusMessage struct {
	Title    string
	Messages []string
}

// TrackedDownload correlates one download-client item with local series and
// episode identity. The identity fields are fixed at construction; the
// lifecycle state and status messages are mutated by the poll loop while
// the queue view reads them, so access goes through the locked accessors.
type TrackedDownload struct {
	TrackingID    string // "{clientID}-{downloadID}"
	ClientID      int64
	Item          Item
	Protocol      release.Protocol
	RemoteEpisode *parser.RemoteEpisode // nil when correlation failed

	mu             sync.Mutex
	state          State
	statusMessages []StatusMessage
}

// NewTrackedDownload creates a tracked download in Downloading state for a
// client/item pair.
func NewTrackedDownload(def ClientDefinition, item Item) *TrackedDownload {
	return &TrackedDownload{
		TrackingID: TrackingID(def.ID, item.DownloadID),
		ClientID:   def.ID,
		Item:       item,
		Protocol:   def.Protocol,
		state:      StateDownloading,
	}
}

// TrackingID builds the unique tracking id for a client/item pair.
func TrackingID(clientID int64, downloadID string) string {
	return fmt.Sprintf("%d-%s", clientID, downloadID)
}

// State returns the current lifecycle state.
func (t *TrackedDownload) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// SetState moves the download to a new lifecycle state.
func (t *TrackedDownload) SetState(s State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = s
}

// StatusMessages returns a snapshot of the download's status messages.
func (t *TrackedDownload) StatusMessages() []StatusMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.statusMessages)
}

// SetStatusMessages replaces the download's status messages.
func (t *TrackedDownload) SetStatusMessages(msgs ...StatusMessage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.statusMessages = msgs
}

// Warn records a single status message titled after the item.
func (t *TrackedDownload) Warn(format string, args ...any) {
	t.SetStatusMessages(StatusMessage{
		Title:    t.Item.Title,
		Messages: []string{fmt.Sprintf(format, args...)},
	})
}
