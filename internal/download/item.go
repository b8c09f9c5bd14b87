// Package download tracks download-client items through their lifecycle:
// correlation against the history ledger, completion import, failure
// detection, and the reconciliation poll across all configured backends.
package download

import "time"

// ItemStatus is the status a download client reports for an item.
type ItemStatus string

const (
	ItemQueued      ItemStatus = "queued"
	ItemDownloading ItemStatus = "downloading"
	ItemCompleted   ItemStatus = "completed"
	ItemFailed      ItemStatus = "failed"
)

// Item is one entry reported by a download client. Read-only to this core.
type Item struct {
	DownloadID    string // external id assigned by the client
	Title         string
	Category      string
	Status        ItemStatus
	OutputPath    string // may be empty while downloading
	TotalSize     int64
	RemainingSize int64
	RemainingTime time.Duration
	IsEncrypted   bool
	IsReadOnly    bool
	Message       string // free-text status from the client
}
