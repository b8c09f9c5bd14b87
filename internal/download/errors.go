package download

import "errors"

// Sentinel errors for the download package.
var (
	// ErrClientNotFound is returned when no client matches a definition id.
	ErrClientNotFound = errors.New("download client not found")

	// ErrNoGrabbedHistory is returned when an operation needs grab history
	// that the ledger does not contain.
	ErrNoGrabbedHistory = errors.New("no grabbed history for download")
)
