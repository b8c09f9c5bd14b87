package download_test

import (
	"database/sql"
	_ "embed"
	"io"
	"log/slog"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/trackarr/trackarr/internal/events"
	"github.com/trackarr/trackarr/internal/history"
	"github.com/trackarr/trackarr/internal/library"
	"github.com/trackarr/trackarr/internal/parser"
)

//go:embed testdata/schema.sql
var testSchema string

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec(testSchema); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return db
}

func testLoggerDiscard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testBus(t *testing.T) *events.Bus {
	t.Helper()
	bus := events.NewBus(nil, testLoggerDiscard())
	t.Cleanup(func() { bus.Close() })
	return bus
}

// testCatalog seeds one series with episodes S01E01/S01E02 and hands back
// the stores needed to build trackers and services.
func testCatalog(t *testing.T, db *sql.DB) (*library.Series, []library.Episode, *parser.Service, *history.Store) {
	t.Helper()

	lib := library.NewStore(db)
	series := &library.Series{Title: "The Grand Tour", Year: 2016, Profile: []string{"WEBDL-1080p", "HDTV-720p"}}
	if err := lib.AddSeries(series); err != nil {
		t.Fatalf("add series: %v", err)
	}

	var episodes []library.Episode
	for n := 1; n <= 2; n++ {
		e := library.Episode{SeriesID: series.ID, Season: 1, Number: n}
		if err := lib.AddEpisode(&e); err != nil {
			t.Fatalf("add episode: %v", err)
		}
		episodes = append(episodes, e)
	}

	return series, episodes, parser.NewService(lib), history.NewStore(db)
}

func grabRecord(t *testing.T, store *history.Store, seriesID, episodeID int64, downloadID string) *history.Record {
	t.Helper()

	r := &history.Record{
		EventType:   history.EventGrabbed,
		SeriesID:    seriesID,
		EpisodeID:   episodeID,
		DownloadID:  downloadID,
		SourceTitle: "The.Grand.Tour.S01E01.1080p.WEB-DL.x264-GROUP",
		Quality:     "WEBDL-1080p",
		Data:        map[string]string{history.DataDownloadClient: "sab", history.DataIndexer: "nzbplanet"},
	}
	if err := store.Insert(r); err != nil {
		t.Fatalf("insert grab record: %v", err)
	}
	return r
}

// drainEvents returns everything already delivered to ch. Publish fills
// subscriber buffers before returning, so no waiting is needed.
func drainEvents(ch <-chan events.Event) []events.Event {
	var got []events.Event
	for {
		select {
		case e := <-ch:
			got = append(got, e)
		default:
			return got
		}
	}
}
