package datasync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mizunoto/tankwatch/internal/db"
	"github.com/mizunoto/tankwatch/internal/localcache"
	"github.com/mizunoto/tankwatch/internal/model"
	"github.com/mizunoto/tankwatch/pkg/apperr"
)

type fakeSource struct {
	water       []model.WaterReading
	atmospheric []model.AtmosphericReading
	err         error
}

func (f *fakeSource) RecentWaterReadings(_ context.Context, limit int) ([]model.WaterReading, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.water) > limit {
		return f.water[:limit], nil
	}
	return f.water, nil
}

func (f *fakeSource) RecentAtmosphericReadings(_ context.Context, limit int) ([]model.AtmosphericReading, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.atmospheric) > limit {
		return f.atmospheric[:limit], nil
	}
	return f.atmospheric, nil
}

type fakeSub struct {
	stops int
}

func (f *fakeSub) Stop() { f.stops++ }

// fakeFeed records handlers per channel so tests can push notifications.
type fakeFeed struct {
	handlers map[string]func([]byte)
	subs     map[string]*fakeSub
	err      error
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{
		handlers: make(map[string]func([]byte)),
		subs:     make(map[string]*fakeSub),
	}
}

func (f *fakeFeed) subscribe(_ context.Context, channel string, handler func([]byte)) (Canceler, error) {
	if f.err != nil {
		return nil, f.err
	}
	sub := &fakeSub{}
	f.handlers[channel] = handler
	f.subs[channel] = sub
	return sub, nil
}

func (f *fakeFeed) push(t *testing.T, channel string, row any) {
	t.Helper()
	payload, err := json.Marshal(row)
	require.NoError(t, err)
	f.handlers[channel](payload)
}

func waterRows(n int) []model.WaterReading {
	rows := make([]model.WaterReading, n)
	base := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	for i := range rows {
		rows[i] = model.WaterReading{
			ID:           int64(n - i),
			Timestamp:    base.Add(-time.Duration(i) * time.Minute),
			VolumeM3:     1,
			VolumeLiters: 1000,
		}
	}
	return rows
}

func newSynchronizer(t *testing.T, source *fakeSource, feed *fakeFeed) *Synchronizer {
	t.Helper()
	cache, err := localcache.New(t.TempDir())
	require.NoError(t, err)
	return New(source, feed.subscribe, cache, slog.Default())
}

func TestInitialLoad_ReplacesBuffersAndCaches(t *testing.T) {
	source := &fakeSource{
		water: waterRows(3),
		atmospheric: []model.AtmosphericReading{
			{ID: 1, Timestamp: time.Now(), Temperature: 21.5, Humidity: 60},
		},
	}
	s := newSynchronizer(t, source, newFakeFeed())

	require.NoError(t, s.InitialLoad(context.Background()))

	require.Len(t, s.WaterReadings(), 3)
	require.Len(t, s.AtmosphericReadings(), 1)
	require.False(t, s.LoadFailed())

	latest, ok := s.LatestWater()
	require.True(t, ok)
	require.Equal(t, source.water[0].ID, latest.ID)

	_, ok = s.LastUpdate()
	require.True(t, ok)
}

func TestInitialLoad_FailureLeavesBuffersEmpty(t *testing.T) {
	source := &fakeSource{err: errors.New("connection refused")}
	s := newSynchronizer(t, source, newFakeFeed())

	err := s.InitialLoad(context.Background())
	require.Error(t, err)
	require.True(t, apperr.IsCode(err, apperr.CodeNetwork))
	require.True(t, s.LoadFailed())
	require.Empty(t, s.WaterReadings())
	require.Empty(t, s.AtmosphericReadings())
}

func TestSubscribeLive_PrependsAndBounds(t *testing.T) {
	feed := newFakeFeed()
	s := newSynchronizer(t, &fakeSource{}, feed)

	require.NoError(t, s.InitialLoad(context.Background()))
	require.NoError(t, s.SubscribeLive(context.Background()))

	for i := 1; i <= 105; i++ {
		feed.push(t, db.WaterChannel, model.WaterReading{
			ID:           int64(i),
			Timestamp:    time.Now(),
			VolumeLiters: float64(i),
		})
	}

	snapshot := s.WaterReadings()
	require.Len(t, snapshot, 100)
	require.Equal(t, int64(105), snapshot[0].ID)

	latest, ok := s.LatestWater()
	require.True(t, ok)
	require.Equal(t, int64(105), latest.ID)
}

func TestSubscribeLive_InsertionOrderNotResorted(t *testing.T) {
	feed := newFakeFeed()
	s := newSynchronizer(t, &fakeSource{}, feed)
	require.NoError(t, s.SubscribeLive(context.Background()))

	now := time.Now()
	feed.push(t, db.WaterChannel, model.WaterReading{ID: 1, Timestamp: now})
	// Backfilled row with an older timestamp still lands at the front.
	feed.push(t, db.WaterChannel, model.WaterReading{ID: 2, Timestamp: now.Add(-time.Hour)})

	snapshot := s.WaterReadings()
	require.Equal(t, int64(2), snapshot[0].ID)
	require.Equal(t, int64(1), snapshot[1].ID)
}

func TestSubscribeLive_CancelBeforeNotificationLeavesBuffersUnchanged(t *testing.T) {
	feed := newFakeFeed()
	source := &fakeSource{water: waterRows(5)}
	s := newSynchronizer(t, source, feed)

	require.NoError(t, s.InitialLoad(context.Background()))
	require.NoError(t, s.SubscribeLive(context.Background()))

	before := s.WaterReadings()
	s.Stop()
	s.Stop() // idempotent

	require.Equal(t, before, s.WaterReadings())
	require.Equal(t, 1, feed.subs[db.WaterChannel].stops)
	require.Equal(t, 1, feed.subs[db.AtmosphericChannel].stops)
}

func TestSubscribeLive_MalformedPayloadDropped(t *testing.T) {
	feed := newFakeFeed()
	s := newSynchronizer(t, &fakeSource{}, feed)
	require.NoError(t, s.SubscribeLive(context.Background()))

	feed.handlers[db.WaterChannel]([]byte("{not json"))

	require.Empty(t, s.WaterReadings())
}

func TestSubscribeLive_FeedErrorSurfacesAsNetwork(t *testing.T) {
	feed := newFakeFeed()
	feed.err = fmt.Errorf("listen failed")
	s := newSynchronizer(t, &fakeSource{}, feed)

	err := s.SubscribeLive(context.Background())
	require.True(t, apperr.IsCode(err, apperr.CodeNetwork))
}

func TestSetOnline_DoesNotTouchBuffers(t *testing.T) {
	source := &fakeSource{water: waterRows(2)}
	s := newSynchronizer(t, source, newFakeFeed())
	require.NoError(t, s.InitialLoad(context.Background()))

	require.True(t, s.Online())
	s.SetOnline(false)
	require.False(t, s.Online())
	require.Len(t, s.WaterReadings(), 2)
}

func TestLiveEvent_WritesThroughCache(t *testing.T) {
	feed := newFakeFeed()
	cache, err := localcache.New(t.TempDir())
	require.NoError(t, err)
	s := New(&fakeSource{}, feed.subscribe, cache, slog.Default())

	require.NoError(t, s.SubscribeLive(context.Background()))
	reading := model.WaterReading{ID: 7, Timestamp: time.Now().UTC(), VolumeLiters: 420}
	feed.push(t, db.WaterChannel, reading)

	var cached model.WaterReading
	require.True(t, cache.GetJSON(localcache.KeyLastWaterReading, &cached))
	require.Equal(t, reading.ID, cached.ID)

	var lastUpdate time.Time
	require.True(t, cache.GetJSON(localcache.KeyLastUpdateTime, &lastUpdate))
	require.False(t, lastUpdate.IsZero())
}
