package pending_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackarr/trackarr/internal/events"
	"github.com/trackarr/trackarr/internal/pending"
	"github.com/trackarr/trackarr/internal/queue"
	"github.com/trackarr/trackarr/pkg/release"
)

var testPublishDate = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func TestAddStoresAndPublishes(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	remote := f.remote(t, "The.Grand.Tour.S01E01.1080p.WEB-DL.x264-GROUP", "nzbplanet", testPublishDate, "1080p webdl", 1)
	require.NoError(t, f.manager.Add(ctx, remote))

	stored, err := f.repo.All()
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, f.series.ID, stored[0].SeriesID)
	assert.Equal(t, remote.Release.Title, stored[0].Title)
	assert.Len(t, drainEvents(f.updated), 1)
}

func TestAddIsIdempotentForSameRelease(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	remote := f.remote(t, "The.Grand.Tour.S01E01.1080p.WEB-DL.x264-GROUP", "nzbplanet", testPublishDate, "1080p webdl", 1)
	require.NoError(t, f.manager.Add(ctx, remote))
	require.NoError(t, f.manager.Add(ctx, remote))

	stored, err := f.repo.All()
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestAddKeepsDistinctReleasesForSameEpisodes(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	require.NoError(t, f.manager.Add(ctx,
		f.remote(t, "The.Grand.Tour.S01E01.1080p.WEB-DL.x264-GROUP", "nzbplanet", testPublishDate, "1080p webdl", 1)))
	// Same episodes, different indexer: a distinct candidate, kept.
	require.NoError(t, f.manager.Add(ctx,
		f.remote(t, "The.Grand.Tour.S01E01.1080p.WEB-DL.x264-GROUP", "drunkenslug", testPublishDate, "1080p webdl", 1)))

	stored, err := f.repo.All()
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestPendingQueueEstimatedCompletion(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	require.NoError(t, f.manager.Add(ctx,
		f.remote(t, "The.Grand.Tour.S01E01E02.1080p.WEB-DL.x264-GROUP", "nzbplanet", testPublishDate, "1080p webdl", 1, 2)))

	entries, err := f.manager.PendingQueue(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Usenet delay in the fixture profile is 30 minutes.
	want := testPublishDate.Add(30 * time.Minute)
	for _, entry := range entries {
		assert.Equal(t, queue.StatusPending, entry.Status)
		require.NotNil(t, entry.EstimatedCompletion)
		assert.True(t, entry.EstimatedCompletion.Equal(want),
			"ect = %v, want %v", entry.EstimatedCompletion, want)
		// Time remaining counts down to the estimated completion and may
		// be negative once it has passed.
		assert.InDelta(t, time.Until(want).Seconds(), entry.TimeLeft.Seconds(), 5)
	}
}

func TestQueueIDRoundTrip(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	require.NoError(t, f.manager.Add(ctx,
		f.remote(t, "The.Grand.Tour.S01E01E02.1080p.WEB-DL.x264-GROUP", "nzbplanet", testPublishDate, "1080p webdl", 1, 2)))

	stored, err := f.repo.All()
	require.NoError(t, err)
	require.Len(t, stored, 1)

	for _, ep := range f.episodes[:2] {
		id := queue.BuildID(ep.ID, stored[0].ID)

		item, err := f.manager.FindPendingQueueItem(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, item, "id %d did not resolve", id)
		assert.Equal(t, ep.ID, item.Entry.EpisodeID)
		assert.Equal(t, stored[0].Title, item.Entry.SourceTitle)
		require.NotNil(t, item.Remote)
		assert.Equal(t, f.series.ID, item.Remote.Series.ID)
	}

	missing, err := f.manager.FindPendingQueueItem(ctx, 1<<40)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRemovePendingQueueItem(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	require.NoError(t, f.manager.Add(ctx,
		f.remote(t, "The.Grand.Tour.S01E01.1080p.WEB-DL.x264-GROUP", "nzbplanet", testPublishDate, "1080p webdl", 1)))

	stored, err := f.repo.All()
	require.NoError(t, err)
	id := queue.BuildID(f.episodes[0].ID, stored[0].ID)

	drainEvents(f.updated)
	require.NoError(t, f.manager.RemovePendingQueueItem(ctx, id))

	stored, err = f.repo.All()
	require.NoError(t, err)
	assert.Empty(t, stored)
	assert.Len(t, drainEvents(f.updated), 1)

	err = f.manager.RemovePendingQueueItem(ctx, id)
	require.ErrorIs(t, err, pending.ErrNotFound)
}

func TestOldestPendingRelease(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	require.NoError(t, f.manager.Add(ctx,
		f.remote(t, "The.Grand.Tour.S01E01.1080p.WEB-DL.x264-NEWER", "nzbplanet", testPublishDate, "1080p webdl", 1)))
	require.NoError(t, f.manager.Add(ctx,
		f.remote(t, "The.Grand.Tour.S01E01.720p.HDTV.x264-OLDER", "nzbplanet", testPublishDate.Add(-48*time.Hour), "720p hdtv", 1)))

	oldest, err := f.manager.OldestPendingRelease(f.series.ID, []int64{f.episodes[0].ID})
	require.NoError(t, err)
	require.NotNil(t, oldest)
	assert.Equal(t, "The.Grand.Tour.S01E01.720p.HDTV.x264-OLDER", oldest.Release.Title)

	// No overlap with the requested episodes.
	none, err := f.manager.OldestPendingRelease(f.series.ID, []int64{f.episodes[2].ID})
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestRemoveGrabbedDeletesEqualOrLowerQuality(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	require.NoError(t, f.manager.Add(ctx,
		f.remote(t, "The.Grand.Tour.S01E01.720p.HDTV.x264-LOW", "nzbplanet", testPublishDate, "720p hdtv", 1)))
	require.NoError(t, f.manager.Add(ctx,
		f.remote(t, "The.Grand.Tour.S01E01.1080p.WEB-DL.x264-EQUAL", "drunkenslug", testPublishDate, "1080p webdl", 1)))
	require.NoError(t, f.manager.Add(ctx,
		f.remote(t, "The.Grand.Tour.S01E01.1080p.BluRay.x264-BETTER", "nzbgeek", testPublishDate, "1080p bluray", 1)))

	grabbed := release.ParseQuality("1080p webdl")
	require.NoError(t, f.manager.RemoveGrabbed(ctx, f.series.ID, []int64{f.episodes[0].ID}, grabbed))

	stored, err := f.repo.All()
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "The.Grand.Tour.S01E01.1080p.BluRay.x264-BETTER", stored[0].Title)
}

func TestRemoveGrabbedIgnoresNonOverlappingEpisodes(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	require.NoError(t, f.manager.Add(ctx,
		f.remote(t, "The.Grand.Tour.S01E02.720p.HDTV.x264-LOW", "nzbplanet", testPublishDate, "720p hdtv", 2)))

	grabbed := release.ParseQuality("1080p webdl")
	require.NoError(t, f.manager.RemoveGrabbed(ctx, f.series.ID, []int64{f.episodes[0].ID}, grabbed))

	stored, err := f.repo.All()
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestRemoveRejected(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	require.NoError(t, f.manager.Add(ctx,
		f.remote(t, "The.Grand.Tour.S01E01.1080p.WEB-DL.x264-GROUP", "nzbplanet", testPublishDate, "1080p webdl", 1)))
	require.NoError(t, f.manager.Add(ctx,
		f.remote(t, "The.Grand.Tour.S01E02.1080p.WEB-DL.x264-GROUP", "nzbplanet", testPublishDate, "1080p webdl", 2)))

	require.NoError(t, f.manager.RemoveRejected(ctx, []events.RejectedRelease{{
		Title:       "The.Grand.Tour.S01E01.1080p.WEB-DL.x264-GROUP",
		PublishDate: testPublishDate,
		Indexer:     "nzbplanet",
	}}))

	stored, err := f.repo.All()
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "The.Grand.Tour.S01E02.1080p.WEB-DL.x264-GROUP", stored[0].Title)
}

func TestRemoveForSeries(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	require.NoError(t, f.manager.Add(ctx,
		f.remote(t, "The.Grand.Tour.S01E01.1080p.WEB-DL.x264-GROUP", "nzbplanet", testPublishDate, "1080p webdl", 1)))

	drainEvents(f.updated)
	require.NoError(t, f.manager.RemoveForSeries(ctx, f.series.ID))

	stored, err := f.repo.All()
	require.NoError(t, err)
	assert.Empty(t, stored)
	assert.Len(t, drainEvents(f.updated), 1)

	// A series without pending releases publishes nothing.
	require.NoError(t, f.manager.RemoveForSeries(ctx, f.series.ID))
	assert.Empty(t, drainEvents(f.updated))
}

func TestStartReactsToGrabEvent(t *testing.T) {
	f := setup(t)
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, f.manager.Add(ctx,
		f.remote(t, "The.Grand.Tour.S01E01.720p.HDTV.x264-LOW", "nzbplanet", testPublishDate, "720p hdtv", 1)))

	done := make(chan error, 1)
	go func() { done <- f.manager.Start(ctx) }()
	// Let the Start goroutine subscribe before publishing; otherwise
	// the one-shot event is dropped on single-CPU machines.
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, f.bus.Publish(ctx, &events.EpisodeGrabbed{
		BaseEvent:  events.NewBaseEvent(events.EventEpisodeGrabbed, events.EntitySeries, f.series.ID),
		SeriesID:   f.series.ID,
		EpisodeIDs: []int64{f.episodes[0].ID},
		Quality:    "1080p webdl",
	}))

	require.Eventually(t, func() bool {
		stored, err := f.repo.All()
		return err == nil && len(stored) == 0
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestStartReturnsWhenBusCloses(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	require.NoError(t, f.manager.Add(ctx,
		f.remote(t, "The.Grand.Tour.S01E01.720p.HDTV.x264-LOW", "nzbplanet", testPublishDate, "720p hdtv", 1)))

	done := make(chan error, 1)
	go func() { done <- f.manager.Start(ctx) }()
	// Let the Start goroutine subscribe before publishing; otherwise
	// the one-shot event is dropped on single-CPU machines.
	time.Sleep(50 * time.Millisecond)

	// Prove the loop is subscribed and running before closing the bus.
	require.NoError(t, f.bus.Publish(ctx, &events.EpisodeGrabbed{
		BaseEvent:  events.NewBaseEvent(events.EventEpisodeGrabbed, events.EntitySeries, f.series.ID),
		SeriesID:   f.series.ID,
		EpisodeIDs: []int64{f.episodes[0].ID},
		Quality:    "1080p webdl",
	}))
	require.Eventually(t, func() bool {
		stored, err := f.repo.All()
		return err == nil && len(stored) == 0
	}, 2*time.Second, 10*time.Millisecond)

	f.bus.Close()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after bus close")
	}
}
