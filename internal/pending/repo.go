// Package pending manages matched-but-deferred releases: candidates that
// passed a grab decision but wait out a delay profile before being sent
// to a download client.
package pending

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/trackarr/trackarr/internal/parser"
	"github.com/trackarr/trackarr/pkg/release"
)

// ErrNotFound is returned when a pending release does not exist.
var ErrNotFound = errors.New("pending release not found")

// Release is one stored pending release. The resolved remote episode is
// never persisted with it; it is re-derived against the current catalog
// on every read.
type Release struct {
	ID         int64
	SeriesID   int64
	Title      string
	Added      time.Time
	ParsedInfo *release.ParsedInfo
	Release    *parser.ReleaseInfo
}

// Repo persists pending releases.
type Repo struct {
	db *sql.DB
}

// NewRepo creates a pending-release repository.
func NewRepo(db *sql.DB) *Repo {
	return &Repo{db: db}
}

// Insert stores a pending release and assigns its ID.
func (r *Repo) Insert(p *Release) error {
	parsed, err := json.Marshal(p.ParsedInfo)
	if err != nil {
		return fmt.Errorf("marshal parsed info: %w", err)
	}
	rel, err := json.Marshal(p.Release)
	if err != nil {
		return fmt.Errorf("marshal release info: %w", err)
	}
	if p.Added.IsZero() {
		p.Added = time.Now().UTC()
	}

	result, err := r.db.Exec(`
		INSERT INTO pending_releases (series_id, title, added, parsed_info, release_info)
		VALUES (?, ?, ?, ?, ?)`,
		p.SeriesID, p.Title, p.Added, string(parsed), string(rel),
	)
	if err != nil {
		return fmt.Errorf("insert pending release: %w", err)
	}

	p.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	return nil
}

// All returns every pending release, oldest added first.
func (r *Repo) All() ([]*Release, error) {
	return r.query(`SELECT id, series_id, title, added, parsed_info, release_info
		FROM pending_releases ORDER BY added ASC, id ASC`)
}

// AllForSeries returns the pending releases of one series, oldest added first.
func (r *Repo) AllForSeries(seriesID int64) ([]*Release, error) {
	return r.query(`SELECT id, series_id, title, added, parsed_info, release_info
		FROM pending_releases WHERE series_id = ? ORDER BY added ASC, id ASC`, seriesID)
}

// Delete removes one pending release.
func (r *Repo) Delete(id int64) error {
	result, err := r.db.Exec(`DELETE FROM pending_releases WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete pending release %d: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete pending release %d: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("delete pending release %d: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteForSeries removes every pending release of a series, returning how
// many were deleted.
func (r *Repo) DeleteForSeries(seriesID int64) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM pending_releases WHERE series_id = ?`, seriesID)
	if err != nil {
		return 0, fmt.Errorf("delete pending for series %d: %w", seriesID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete pending for series %d: %w", seriesID, err)
	}
	return affected, nil
}

func (r *Repo) query(q string, args ...any) ([]*Release, error) {
	rows, err := r.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("query pending releases: %w", err)
	}
	defer rows.Close()

	var releases []*Release
	for rows.Next() {
		var (
			p           Release
			parsed, rel string
		)
		if err := rows.Scan(&p.ID, &p.SeriesID, &p.Title, &p.Added, &parsed, &rel); err != nil {
			return nil, fmt.Errorf("scan pending release: %w", err)
		}
		if err := json.Unmarshal([]byte(parsed), &p.ParsedInfo); err != nil {
			return nil, fmt.Errorf("unmarshal parsed info: %w", err)
		}
		if err := json.Unmarshal([]byte(rel), &p.Release); err != nil {
			return nil, fmt.Errorf("unmarshal release info: %w", err)
		}
		releases = append(releases, &p)
	}
	return releases, rows.Err()
}
