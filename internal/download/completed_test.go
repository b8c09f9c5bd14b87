package download_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/trackarr/trackarr/internal/download"
	"github.com/trackarr/trackarr/internal/download/mocks"
	"github.com/trackarr/trackarr/internal/events"
	"github.com/trackarr/trackarr/internal/history"
	"github.com/trackarr/trackarr/internal/library"
	"github.com/trackarr/trackarr/internal/parser"
	"github.com/trackarr/trackarr/pkg/release"
)

type completedFixture struct {
	service *download.CompletedService
	imports *mocks.MockImportService
	client  *mocks.MockClient
	history *history.Store
	done    <-chan events.Event
}

func setupCompleted(t *testing.T, cfg download.CompletedConfig) *completedFixture {
	t.Helper()

	ctrl := gomock.NewController(t)
	imports := mocks.NewMockImportService(ctrl)

	client := mocks.NewMockClient(ctrl)
	client.EXPECT().Definition().Return(download.ClientDefinition{
		ID: 1, Name: "sab", Protocol: release.ProtocolUsenet,
	}).AnyTimes()

	historyStore := history.NewStore(setupTestDB(t))
	bus := testBus(t)
	done := bus.Subscribe(events.EventDownloadCompleted, 4)

	return &completedFixture{
		service: download.NewCompletedService(historyStore, imports,
			download.NewStaticProvider(client), bus, cfg, testLoggerDiscard()),
		imports: imports,
		client:  client,
		history: historyStore,
		done:    done,
	}
}

func completedDownload(item download.Item) *download.TrackedDownload {
	item.Status = download.ItemCompleted
	tracked := download.NewTrackedDownload(download.ClientDefinition{ID: 1, Name: "sab"}, item)
	tracked.RemoteEpisode = &parser.RemoteEpisode{
		Series:   &library.Series{ID: 7, Title: "The Grand Tour"},
		Episodes: []library.Episode{{ID: 42, SeriesID: 7, Season: 1, Number: 1}},
	}
	return tracked
}

func TestCompletedIgnoresUnfinishedItems(t *testing.T) {
	f := setupCompleted(t, download.CompletedConfig{})

	tracked := completedDownload(download.Item{DownloadID: "SAB-1", OutputPath: "/done/show"})
	tracked.Item.Status = download.ItemDownloading

	require.NoError(t, f.service.Process(context.Background(), tracked))
	assert.Equal(t, download.StateDownloading, tracked.State())
}

func TestCompletedSkipsWithoutHistoryOrCategory(t *testing.T) {
	f := setupCompleted(t, download.CompletedConfig{})

	// No grab history and no category: the item is out-of-band and the
	// import engine must never see it.
	tracked := completedDownload(download.Item{
		DownloadID: "SAB-1",
		Title:      "The.Grand.Tour.S01E01.1080p.WEB-DL.x264-GROUP",
		OutputPath: "/done/show",
	})

	require.NoError(t, f.service.Process(context.Background(), tracked))

	assert.Equal(t, download.StateDownloading, tracked.State())
	require.Len(t, tracked.StatusMessages(), 1)
	assert.Empty(t, drainEvents(f.done))
}

func TestCompletedCategoryAloneAuthorizesImport(t *testing.T) {
	f := setupCompleted(t, download.CompletedConfig{})

	tracked := completedDownload(download.Item{
		DownloadID: "SAB-1",
		Category:   "tv",
		OutputPath: "/done/show",
	})

	f.imports.EXPECT().
		ProcessPath(gomock.Any(), "/done/show", tracked.Item).
		Return([]download.ImportResult{{Path: "/done/show/e01.mkv", Imported: true}}, nil)

	require.NoError(t, f.service.Process(context.Background(), tracked))
	assert.Equal(t, download.StateImported, tracked.State())
}

func TestCompletedSkipsEmptyOutputPath(t *testing.T) {
	f := setupCompleted(t, download.CompletedConfig{})
	grabRecord(t, f.history, 7, 42, "SAB-1")

	tracked := completedDownload(download.Item{DownloadID: "SAB-1"})

	require.NoError(t, f.service.Process(context.Background(), tracked))

	assert.Equal(t, download.StateDownloading, tracked.State())
	require.Len(t, tracked.StatusMessages(), 1)
}

func TestCompletedSkipsDroneFactoryPath(t *testing.T) {
	f := setupCompleted(t, download.CompletedConfig{DownloadedEpisodesFolder: "/downloads/staging"})
	grabRecord(t, f.history, 7, 42, "SAB-1")

	tracked := completedDownload(download.Item{
		DownloadID: "SAB-1",
		OutputPath: "/downloads/staging/show",
	})

	require.NoError(t, f.service.Process(context.Background(), tracked))

	assert.Equal(t, download.StateDownloading, tracked.State())
	require.Len(t, tracked.StatusMessages(), 1)
	assert.Empty(t, drainEvents(f.done))
}

func TestCompletedImportError(t *testing.T) {
	f := setupCompleted(t, download.CompletedConfig{})
	grabRecord(t, f.history, 7, 42, "SAB-1")

	tracked := completedDownload(download.Item{DownloadID: "SAB-1", OutputPath: "/done/show"})

	f.imports.EXPECT().
		ProcessPath(gomock.Any(), "/done/show", tracked.Item).
		Return(nil, errors.New("disk on fire"))

	err := f.service.Process(context.Background(), tracked)
	require.Error(t, err)
	assert.Equal(t, download.StateDownloading, tracked.State())
}

func TestCompletedNothingEligible(t *testing.T) {
	f := setupCompleted(t, download.CompletedConfig{})
	grabRecord(t, f.history, 7, 42, "SAB-1")

	tracked := completedDownload(download.Item{DownloadID: "SAB-1", OutputPath: "/done/show"})

	f.imports.EXPECT().
		ProcessPath(gomock.Any(), "/done/show", tracked.Item).
		Return(nil, nil)

	require.NoError(t, f.service.Process(context.Background(), tracked))

	assert.Equal(t, download.StateDownloading, tracked.State())
	require.Len(t, tracked.StatusMessages(), 1)
	assert.Empty(t, drainEvents(f.done))
}

func TestCompletedPartialRejectionKeepsDownloading(t *testing.T) {
	f := setupCompleted(t, download.CompletedConfig{})
	grabRecord(t, f.history, 7, 42, "SAB-1")

	tracked := completedDownload(download.Item{DownloadID: "SAB-1", OutputPath: "/done/show"})

	f.imports.EXPECT().
		ProcessPath(gomock.Any(), "/done/show", tracked.Item).
		Return([]download.ImportResult{
			{Path: "/done/show/e01.mkv", Imported: true},
			{Path: "/done/show/e01.sample.mkv", Errors: []string{"sample file"}},
		}, nil)

	require.NoError(t, f.service.Process(context.Background(), tracked))

	assert.Equal(t, download.StateDownloading, tracked.State())
	msgs := tracked.StatusMessages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "e01.sample.mkv", msgs[0].Title)
	assert.Equal(t, []string{"sample file"}, msgs[0].Messages)
	assert.Empty(t, drainEvents(f.done))
}

func TestCompletedFullImportPublishesEvent(t *testing.T) {
	f := setupCompleted(t, download.CompletedConfig{})
	grabRecord(t, f.history, 7, 42, "SAB-1")

	tracked := completedDownload(download.Item{DownloadID: "SAB-1", OutputPath: "/done/show"})

	f.imports.EXPECT().
		ProcessPath(gomock.Any(), "/done/show", tracked.Item).
		Return([]download.ImportResult{{Path: "/done/show/e01.mkv", Imported: true}}, nil)

	require.NoError(t, f.service.Process(context.Background(), tracked))

	assert.Equal(t, download.StateImported, tracked.State())

	got := drainEvents(f.done)
	require.Len(t, got, 1)
	e, ok := got[0].(*events.DownloadCompleted)
	require.True(t, ok)
	assert.Equal(t, "1-SAB-1", e.TrackingID)
	assert.Equal(t, "SAB-1", e.DownloadID)
	assert.Equal(t, int64(7), e.SeriesID)
	assert.Equal(t, []int64{42}, e.EpisodeIDs)
}

func TestCompletedRemovesImportedItemFromClient(t *testing.T) {
	f := setupCompleted(t, download.CompletedConfig{RemoveCompleted: true})
	grabRecord(t, f.history, 7, 42, "SAB-1")

	tracked := completedDownload(download.Item{DownloadID: "SAB-1", OutputPath: "/done/show"})

	f.imports.EXPECT().
		ProcessPath(gomock.Any(), "/done/show", tracked.Item).
		Return([]download.ImportResult{{Path: "/done/show/e01.mkv", Imported: true}}, nil)
	f.client.EXPECT().RemoveItem(gomock.Any(), "SAB-1").Return(nil)

	require.NoError(t, f.service.Process(context.Background(), tracked))
	assert.Equal(t, download.StateImported, tracked.State())
}

func TestCompletedNeverRemovesReadOnlyItems(t *testing.T) {
	f := setupCompleted(t, download.CompletedConfig{RemoveCompleted: true})
	grabRecord(t, f.history, 7, 42, "SAB-1")

	tracked := completedDownload(download.Item{
		DownloadID: "SAB-1",
		OutputPath: "/done/show",
		IsReadOnly: true,
	})

	// No RemoveItem expectation: touching the client fails the test even
	// though removal is enabled and the import fully succeeded.
	f.imports.EXPECT().
		ProcessPath(gomock.Any(), "/done/show", tracked.Item).
		Return([]download.ImportResult{{Path: "/done/show/e01.mkv", Imported: true}}, nil)

	require.NoError(t, f.service.Process(context.Background(), tracked))
	assert.Equal(t, download.StateImported, tracked.State())
}

func TestCompletedRemoveDisabledLeavesItem(t *testing.T) {
	f := setupCompleted(t, download.CompletedConfig{})
	grabRecord(t, f.history, 7, 42, "SAB-1")

	tracked := completedDownload(download.Item{DownloadID: "SAB-1", OutputPath: "/done/show"})

	f.imports.EXPECT().
		ProcessPath(gomock.Any(), "/done/show", tracked.Item).
		Return([]download.ImportResult{{Path: "/done/show/e01.mkv", Imported: true}}, nil)

	require.NoError(t, f.service.Process(context.Background(), tracked))
	assert.Equal(t, download.StateImported, tracked.State())
}
