package library

import (
	"database/sql"
	_ "embed"
	"testing"

	_ "modernc.org/sqlite"
)

//go:embed testdata/schema.sql
var testSchema string

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:?_foreign_keys=on")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if _, err := db.Exec(testSchema); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return db
}

// addTestSeries inserts a series with three season-1 episodes and returns it.
func addTestSeries(t *testing.T, store *Store, title string) *Series {
	t.Helper()
	sr := &Series{Title: title, Year: 2020, Profile: []string{"1080p bluray", "720p"}}
	if err := store.AddSeries(sr); err != nil {
		t.Fatalf("add series: %v", err)
	}
	for n := 1; n <= 3; n++ {
		ep := &Episode{SeriesID: sr.ID, Season: 1, Number: n}
		if err := store.AddEpisode(ep); err != nil {
			t.Fatalf("add episode: %v", err)
		}
	}
	return sr
}
