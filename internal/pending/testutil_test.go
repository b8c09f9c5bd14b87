package pending_test

import (
	"database/sql"
	_ "embed"
	"io"
	"log/slog"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/trackarr/trackarr/internal/events"
	"github.com/trackarr/trackarr/internal/library"
	"github.com/trackarr/trackarr/internal/parser"
	"github.com/trackarr/trackarr/internal/pending"
	"github.com/trackarr/trackarr/pkg/release"
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

	// A pooled :memory: database opens a fresh, empty database per
	// connection; force a single connection so every goroutine sees
	// the same database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(testSchema); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return db
}

func testLoggerDiscard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	manager  *pending.Manager
	repo     *pending.Repo
	library  *library.Store
	parser   *parser.Service
	series   *library.Series
	episodes []library.Episode
	bus      *events.Bus
	updated  <-chan events.Event
}

func setup(t *testing.T) *fixture {
	t.Helper()

	db := setupTestDB(t)

	lib := library.NewStore(db)
	series := &library.Series{
		Title:   "The Grand Tour",
		Year:    2016,
		Profile: []string{"1080p bluray", "1080p webdl", "720p hdtv"},
	}
	if err := lib.AddSeries(series); err != nil {
		t.Fatalf("add series: %v", err)
	}

	var episodes []library.Episode
	for n := 1; n <= 3; n++ {
		e := library.Episode{SeriesID: series.ID, Season: 1, Number: n}
		if err := lib.AddEpisode(&e); err != nil {
			t.Fatalf("add episode: %v", err)
		}
		episodes = append(episodes, e)
	}

	parserSvc := parser.NewService(lib)
	delays := library.NewDelayService([]library.DelayProfile{
		{Order: 1, UsenetDelay: 30 * time.Minute, TorrentDelay: time.Hour},
	})

	bus := events.NewBus(nil, testLoggerDiscard())
	t.Cleanup(func() { bus.Close() })

	repo := pending.NewRepo(db)
	return &fixture{
		manager:  pending.NewManager(repo, parserSvc, lib, delays, bus, testLoggerDiscard()),
		repo:     repo,
		library:  lib,
		parser:   parserSvc,
		series:   series,
		episodes: episodes,
		bus:      bus,
		updated:  bus.Subscribe(events.EventPendingReleasesUpdated, 16),
	}
}

// remote builds a resolvable remote episode for the fixture series.
func (f *fixture) remote(t *testing.T, title, indexer string, publishDate time.Time, quality string, numbers ...int) *parser.RemoteEpisode {
	t.Helper()

	parsed := &release.ParsedInfo{
		SeriesTitle:    f.series.Title,
		Season:         1,
		EpisodeNumbers: numbers,
		Quality:        release.ParseQuality(quality),
	}
	rel := &parser.ReleaseInfo{
		Title:       title,
		Size:        512 << 20,
		PublishDate: publishDate,
		Indexer:     indexer,
		Protocol:    release.ProtocolUsenet,
	}

	remote, err := f.parser.MapForSeries(parsed, rel, f.series.ID)
	if err != nil {
		t.Fatalf("map remote episode: %v", err)
	}
	return remote
}

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
