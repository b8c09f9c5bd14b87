// Package history is the append-only ledger of grab, import, failure and
// deletion events. It is the authoritative source the download tracker
// derives lifecycle state from.
package history

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a history record does not exist.
var ErrNotFound = errors.New("history record not found")

// EventType classifies a ledger entry.
type EventType string

const (
	EventGrabbed                EventType = "grabbed"
	EventDownloadFolderImported EventType = "downloadFolderImported"
	EventDownloadFailed         EventType = "downloadFailed"
	EventEpisodeFileDeleted     EventType = "episodeFileDeleted"
)

// Data bag keys used by the core.
const (
	DataDownloadClient = "downloadClient"
	DataIndexer        = "indexer"
	DataMessage        = "message"
	DataReason         = "reason"
)

// Record is one ledger entry.
type Record struct {
	ID          int64
	EventType   EventType
	Date        time.Time
	SeriesID    int64
	EpisodeID   int64
	DownloadID  string
	SourceTitle string
	Quality     string
	Data        map[string]string
}

// Store persists history records.
type Store struct {
	db *sql.DB
}

// NewStore creates a history store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const recordColumns = "id, event_type, date, series_id, episode_id, download_id, source_title, quality, data"

// Insert appends a record and assigns its ID.
func (s *Store) Insert(r *Record) error {
	if r.Data == nil {
		r.Data = map[string]string{}
	}
	data, err := json.Marshal(r.Data)
	if err != nil {
		return fmt.Errorf("marshal data: %w", err)
	}
	if r.Date.IsZero() {
		r.Date = time.Now().UTC()
	}

	result, err := s.db.Exec(`
		INSERT INTO history (event_type, date, series_id, episode_id, download_id, source_title, quality, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.EventType, r.Date, r.SeriesID, r.EpisodeID, r.DownloadID, r.SourceTitle, r.Quality, string(data),
	)
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}

	r.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	return nil
}

// Get retrieves a record by ID.
// Returns ErrNotFound if the record does not exist.
func (s *Store) Get(id int64) (*Record, error) {
	row := s.db.QueryRow(`SELECT `+recordColumns+` FROM history WHERE id = ?`, id)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get history %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get history %d: %w", id, err)
	}
	return r, nil
}

// Grabbed returns all grab records, newest first.
func (s *Store) Grabbed() ([]*Record, error) {
	return s.byType(EventGrabbed)
}

// Failed returns all failure records, newest first.
func (s *Store) Failed() ([]*Record, error) {
	return s.byType(EventDownloadFailed)
}

// Imported returns all import records, newest first.
func (s *Store) Imported() ([]*Record, error) {
	return s.byType(EventDownloadFolderImported)
}

func (s *Store) byType(t EventType) ([]*Record, error) {
	return s.query(`SELECT `+recordColumns+` FROM history WHERE event_type = ? ORDER BY date DESC, id DESC`, t)
}

// FindByDownloadID returns every record for an external download id.
func (s *Store) FindByDownloadID(downloadID string) ([]*Record, error) {
	return s.query(`SELECT `+recordColumns+` FROM history WHERE download_id = ? ORDER BY date DESC, id DESC`, downloadID)
}

// Find returns records for an external download id filtered by event type.
func (s *Store) Find(downloadID string, eventType EventType) ([]*Record, error) {
	return s.query(`SELECT `+recordColumns+` FROM history WHERE download_id = ? AND event_type = ? ORDER BY date DESC, id DESC`,
		downloadID, eventType)
}

// MostRecentForDownloadID returns the latest record for an external download
// id, or nil when the ledger has never seen it.
func (s *Store) MostRecentForDownloadID(downloadID string) (*Record, error) {
	row := s.db.QueryRow(`
		SELECT `+recordColumns+` FROM history
		WHERE download_id = ?
		ORDER BY date DESC, id DESC
		LIMIT 1`, downloadID)

	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("most recent for download %q: %w", downloadID, err)
	}
	return r, nil
}

// BetweenDates returns records of one type in [start, end], newest first.
func (s *Store) BetweenDates(start, end time.Time, eventType EventType) ([]*Record, error) {
	return s.query(`
		SELECT `+recordColumns+` FROM history
		WHERE date >= ? AND date <= ? AND event_type = ?
		ORDER BY date DESC, id DESC`,
		start, end, eventType)
}

func (s *Store) query(q string, args ...any) ([]*Record, error) {
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []*Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return results, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	r := &Record{}
	var data string
	if err := row.Scan(&r.ID, &r.EventType, &r.Date, &r.SeriesID, &r.EpisodeID,
		&r.DownloadID, &r.SourceTitle, &r.Quality, &data); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(data), &r.Data); err != nil {
		return nil, fmt.Errorf("unmarshal data: %w", err)
	}
	return r, nil
}
