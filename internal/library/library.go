// Package library provides the series/episode catalog and delay profiles.
package library

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/trackarr/trackarr/pkg/release"
)

// ErrNotFound is returned when a series or episode does not exist.
var ErrNotFound = errors.New("not found")

// Series is a show in the catalog.
type Series struct {
	ID      int64
	Title   string
	Year    int
	Tags    []int64  // delay-profile tag ids
	Profile []string // ordered quality accept list, best first
}

// Episode is one episode of a series.
type Episode struct {
	ID       int64
	SeriesID int64
	Season   int
	Number   int
	Title    string
}

// Store provides access to the series/episode catalog.
type Store struct {
	db *sql.DB
}

// NewStore creates a new catalog store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// AddSeries inserts a series and assigns its ID.
func (s *Store) AddSeries(sr *Series) error {
	tags, err := json.Marshal(sr.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	profile, err := json.Marshal(sr.Profile)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}

	result, err := s.db.Exec(`
		INSERT INTO series (title, year, tags, profile)
		VALUES (?, ?, ?, ?)`,
		sr.Title, sr.Year, string(tags), string(profile),
	)
	if err != nil {
		return fmt.Errorf("insert series: %w", err)
	}

	sr.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	return nil
}

// GetSeries retrieves a series by ID.
// Returns ErrNotFound if the series does not exist.
func (s *Store) GetSeries(id int64) (*Series, error) {
	row := s.db.QueryRow(`SELECT id, title, year, tags, profile FROM series WHERE id = ?`, id)
	sr, err := scanSeries(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get series %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get series %d: %w", id, err)
	}
	return sr, nil
}

// AllSeries returns every series in the catalog.
func (s *Store) AllSeries() ([]*Series, error) {
	rows, err := s.db.Query(`SELECT id, title, year, tags, profile FROM series ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list series: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []*Series
	for rows.Next() {
		sr, err := scanSeries(rows)
		if err != nil {
			return nil, fmt.Errorf("scan series: %w", err)
		}
		results = append(results, sr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate series: %w", err)
	}
	return results, nil
}

// FindByTitle fuzzy-matches a parsed release title against the catalog.
// Returns ErrNotFound when no series matches with enough confidence.
func (s *Store) FindByTitle(title string) (*Series, error) {
	all, err := s.AllSeries()
	if err != nil {
		return nil, err
	}

	candidates := make([]string, len(all))
	for i, sr := range all {
		candidates[i] = sr.Title
	}

	match := release.MatchTitle(title, candidates)
	if match.Confidence < release.ConfidenceMedium {
		return nil, fmt.Errorf("find series by title %q: %w", title, ErrNotFound)
	}
	return all[match.Index], nil
}

// DeleteSeries removes a series and its episodes.
// Idempotent - no error if the series does not exist.
func (s *Store) DeleteSeries(id int64) error {
	if _, err := s.db.Exec(`DELETE FROM episodes WHERE series_id = ?`, id); err != nil {
		return fmt.Errorf("delete episodes for series %d: %w", id, err)
	}
	if _, err := s.db.Exec(`DELETE FROM series WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete series %d: %w", id, err)
	}
	return nil
}

// AddEpisode inserts an episode and assigns its ID.
func (s *Store) AddEpisode(e *Episode) error {
	result, err := s.db.Exec(`
		INSERT INTO episodes (series_id, season, number, title)
		VALUES (?, ?, ?, ?)`,
		e.SeriesID, e.Season, e.Number, e.Title,
	)
	if err != nil {
		return fmt.Errorf("insert episode: %w", err)
	}

	e.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	return nil
}

// GetEpisode retrieves an episode by ID.
func (s *Store) GetEpisode(id int64) (*Episode, error) {
	e := &Episode{}
	err := s.db.QueryRow(`
		SELECT id, series_id, season, number, title
		FROM episodes WHERE id = ?`, id,
	).Scan(&e.ID, &e.SeriesID, &e.Season, &e.Number, &e.Title)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get episode %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get episode %d: %w", id, err)
	}
	return e, nil
}

// FindEpisodes resolves episode numbers within a season.
// An empty numbers slice means the full season.
func (s *Store) FindEpisodes(seriesID int64, season int, numbers []int) ([]Episode, error) {
	query := `SELECT id, series_id, season, number, title FROM episodes WHERE series_id = ? AND season = ?`
	args := []any{seriesID, season}

	if len(numbers) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(numbers)), ",")
		query += " AND number IN (" + placeholders + ")"
		for _, n := range numbers {
			args = append(args, n)
		}
	}
	query += " ORDER BY number"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("find episodes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []Episode
	for rows.Next() {
		var e Episode
		if err := rows.Scan(&e.ID, &e.SeriesID, &e.Season, &e.Number, &e.Title); err != nil {
			return nil, fmt.Errorf("scan episode: %w", err)
		}
		results = append(results, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate episodes: %w", err)
	}
	return results, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSeries(row rowScanner) (*Series, error) {
	sr := &Series{}
	var tags, profile string
	if err := row.Scan(&sr.ID, &sr.Title, &sr.Year, &tags, &profile); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tags), &sr.Tags); err != nil {
		return nil, fmt.Errorf("unmarshal tags: %w", err)
	}
	if err := json.Unmarshal([]byte(profile), &sr.Profile); err != nil {
		return nil, fmt.Errorf("unmarshal profile: %w", err)
	}
	return sr, nil
}
