package events

import "time"

// Entity types
const (
	EntitySeries   = "series"
	EntityEpisode  = "episode"
	EntityDownload = "download"
	EntityPending  = "pending"
	EntityQueue    = "queue"
)

// Event type constants
const (
	EventEpisodeGrabbed         = "episode.grabbed"
	EventEpisodeImported        = "episode.imported"
	EventEpisodeFileDeleted     = "episode.file.deleted"
	EventDownloadCompleted      = "download.completed"
	EventDownloadFailed         = "download.failed"
	EventPendingReleasesUpdated = "pending.updated"
	EventQueueUpdated           = "queue.updated"
	EventRssSyncCompleted       = "rss.sync.completed"
	EventSeriesDeleted          = "series.deleted"
	EventSceneMappingsUpdated   = "scene.mappings.updated"
)

// EpisodeGrabbed is emitted when a release is sent to a download client.
type EpisodeGrabbed struct {
	BaseEvent
	SeriesID       int64     `json:"series_id"`
	EpisodeIDs     []int64   `json:"episode_ids"`
	Quality        string    `json:"quality"`
	SourceTitle    string    `json:"source_title"`
	Indexer        string    `json:"indexer"`
	PublishDate    time.Time `json:"publish_date"`
	DownloadID     string    `json:"download_id"`
	DownloadClient string    `json:"download_client"`
	Protocol       string    `json:"protocol"`
}

// EpisodeImported is emitted by the import engine when a file lands in the library.
type EpisodeImported struct {
	BaseEvent
	SeriesID       int64   `json:"series_id"`
	EpisodeIDs     []int64 `json:"episode_ids"`
	Quality        string  `json:"quality"`
	SourceTitle    string  `json:"source_title"`
	DownloadID     string  `json:"download_id"`
	DownloadClient string  `json:"download_client"`
	NewDownload    bool    `json:"new_download"`
}

// EpisodeFileDeleted is emitted when an episode file is removed from disk.
type EpisodeFileDeleted struct {
	BaseEvent
	SeriesID  int64  `json:"series_id"`
	EpisodeID int64  `json:"episode_id"`
	Quality   string `json:"quality"`
	Path      string `json:"path"`
	Reason    string `json:"reason"`
}

// DownloadCompleted is emitted when every file of a tracked download imported.
type DownloadCompleted struct {
	BaseEvent
	TrackingID string  `json:"tracking_id"`
	DownloadID string  `json:"download_id"`
	SeriesID   int64   `json:"series_id"`
	EpisodeIDs []int64 `json:"episode_ids"`
}

// DownloadFailed is emitted when a download fails or is marked failed.
type DownloadFailed struct {
	BaseEvent
	SeriesID       int64             `json:"series_id"`
	EpisodeIDs     []int64           `json:"episode_ids"`
	Quality        string            `json:"quality"`
	SourceTitle    string            `json:"source_title"`
	DownloadClient string            `json:"download_client"`
	DownloadID     string            `json:"download_id"`
	Message        string            `json:"message"`
	Data           map[string]string `json:"data,omitempty"`
}

// PendingReleasesUpdated signals that the pending release set changed.
type PendingReleasesUpdated struct {
	BaseEvent
}

// QueueUpdated signals that a reconciliation poll finished.
type QueueUpdated struct {
	BaseEvent
}

// RejectedRelease identifies a release rejected during a decision round.
type RejectedRelease struct {
	Title       string    `json:"title"`
	PublishDate time.Time `json:"publish_date"`
	Indexer     string    `json:"indexer"`
}

// RssSyncCompleted is emitted after a decision round over an indexer feed.
type RssSyncCompleted struct {
	BaseEvent
	Rejected []RejectedRelease `json:"rejected,omitempty"`
}

// SeriesDeleted is emitted when a series is removed from the catalog.
type SeriesDeleted struct {
	BaseEvent
	SeriesID int64 `json:"series_id"`
}

// SceneMappingsUpdated is emitted when scene naming data is refreshed.
// Tracked downloads are re-derived from scratch afterwards.
type SceneMappingsUpdated struct {
	BaseEvent
}
