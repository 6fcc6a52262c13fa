package datasync

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/mizunoto/tankwatch/internal/buffer"
	"github.com/mizunoto/tankwatch/internal/db"
	"github.com/mizunoto/tankwatch/internal/livefeed"
	"github.com/mizunoto/tankwatch/internal/localcache"
	"github.com/mizunoto/tankwatch/internal/model"
	"github.com/mizunoto/tankwatch/pkg/apperr"
)

// initialLoadTimeout bounds the startup fetch; expiry is a load failure.
const initialLoadTimeout = 10 * time.Second

// ReadingSource fetches recent rows from the remote store, newest first.
type ReadingSource interface {
	RecentWaterReadings(ctx context.Context, limit int) ([]model.WaterReading, error)
	RecentAtmosphericReadings(ctx context.Context, limit int) ([]model.AtmosphericReading, error)
}

// Canceler stops a live subscription.
type Canceler interface {
	Stop()
}

// SubscribeFunc opens a live feed for one notification channel.
type SubscribeFunc func(ctx context.Context, channel string, handler func(payload []byte)) (Canceler, error)

// PGSubscriber adapts a livefeed.Feed to a SubscribeFunc.
func PGSubscriber(feed *livefeed.Feed) SubscribeFunc {
	return func(ctx context.Context, channel string, handler func(payload []byte)) (Canceler, error) {
		return feed.Subscribe(ctx, channel, handler)
	}
}

// Synchronizer exclusively owns the in-memory reading buffers and keeps them
// consistent with last-known-good data, tolerating network loss. The view
// layer only ever sees snapshots.
type Synchronizer struct {
	source    ReadingSource
	subscribe SubscribeFunc
	cache     *localcache.Store
	log       *slog.Logger

	water       *buffer.Buffer[model.WaterReading]
	atmospheric *buffer.Buffer[model.AtmosphericReading]

	mu                sync.Mutex
	latestWater       model.WaterReading
	hasWater          bool
	latestAtmospheric model.AtmosphericReading
	hasAtmospheric    bool
	lastUpdate        time.Time
	loadFailed        bool
	online            bool
	subs              []Canceler
}

// New constructs a Synchronizer with empty buffers. It starts online; callers
// feed connectivity signals through SetOnline.
func New(source ReadingSource, subscribe SubscribeFunc, cache *localcache.Store, log *slog.Logger) *Synchronizer {
	return &Synchronizer{
		source:      source,
		subscribe:   subscribe,
		cache:       cache,
		log:         log.With("component", "synchronizer"),
		water:       buffer.New[model.WaterReading](buffer.DefaultCapacity),
		atmospheric: buffer.New[model.AtmosphericReading](buffer.DefaultCapacity),
		online:      true,
	}
}

// InitialLoad fetches the most recent readings of each kind and replaces both
// buffers wholesale. On failure the buffers stay empty and a loading-failed
// state is recorded; the local cache keeps whatever a prior session stored,
// for the view layer to fall back on.
func (s *Synchronizer) InitialLoad(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, initialLoadTimeout)
	defer cancel()

	waterReadings, err := s.source.RecentWaterReadings(ctx, buffer.DefaultCapacity)
	if err != nil {
		return s.failLoad(err)
	}
	atmosphericReadings, err := s.source.RecentAtmosphericReadings(ctx, buffer.DefaultCapacity)
	if err != nil {
		return s.failLoad(err)
	}

	s.water.Replace(waterReadings)
	s.atmospheric.Replace(atmosphericReadings)

	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadFailed = false
	if len(waterReadings) > 0 {
		s.latestWater = waterReadings[0]
		s.hasWater = true
		s.writeCache(localcache.KeyLastWaterReading, waterReadings[0])
	}
	if len(atmosphericReadings) > 0 {
		s.latestAtmospheric = atmosphericReadings[0]
		s.hasAtmospheric = true
		s.writeCache(localcache.KeyLastAtmospheric, atmosphericReadings[0])
	}
	s.lastUpdate = now
	s.writeCache(localcache.KeyLastUpdateTime, now)
	return nil
}

func (s *Synchronizer) failLoad(err error) error {
	s.mu.Lock()
	s.loadFailed = true
	s.mu.Unlock()
	return apperr.Wrap(apperr.CodeNetwork, "initial load failed", err)
}

// SubscribeLive opens live feeds for both reading tables. Each insertion is
// prepended to its buffer, truncated to the bound, and mirrored to the cache
// as one step. Use Stop to cancel.
func (s *Synchronizer) SubscribeLive(ctx context.Context) error {
	waterSub, err := s.subscribe(ctx, db.WaterChannel, s.onWaterPayload)
	if err != nil {
		return apperr.Wrap(apperr.CodeNetwork, "water feed subscription failed", err)
	}

	atmosphericSub, err := s.subscribe(ctx, db.AtmosphericChannel, s.onAtmosphericPayload)
	if err != nil {
		waterSub.Stop()
		return apperr.Wrap(apperr.CodeNetwork, "atmospheric feed subscription failed", err)
	}

	s.mu.Lock()
	s.subs = append(s.subs, waterSub, atmosphericSub)
	s.mu.Unlock()
	return nil
}

// Stop cancels all live subscriptions. Idempotent.
func (s *Synchronizer) Stop() {
	s.mu.Lock()
	subs := s.subs
	s.subs = nil
	s.mu.Unlock()

	for _, sub := range subs {
		sub.Stop()
	}
}

func (s *Synchronizer) onWaterPayload(payload []byte) {
	var reading model.WaterReading
	if err := json.Unmarshal(payload, &reading); err != nil {
		s.log.Error("dropping malformed water notification", "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.water.Prepend(reading)
	s.latestWater = reading
	s.hasWater = true
	s.lastUpdate = time.Now()
	s.writeCache(localcache.KeyLastWaterReading, reading)
	s.writeCache(localcache.KeyLastUpdateTime, s.lastUpdate)
}

func (s *Synchronizer) onAtmosphericPayload(payload []byte) {
	var reading model.AtmosphericReading
	if err := json.Unmarshal(payload, &reading); err != nil {
		s.log.Error("dropping malformed atmospheric notification", "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.atmospheric.Prepend(reading)
	s.latestAtmospheric = reading
	s.hasAtmospheric = true
	s.lastUpdate = time.Now()
	s.writeCache(localcache.KeyLastAtmospheric, reading)
	s.writeCache(localcache.KeyLastUpdateTime, s.lastUpdate)
}

func (s *Synchronizer) writeCache(key string, value any) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetJSON(key, value); err != nil {
		s.log.Warn("cache write failed", "key", key, "error", err)
	}
}

// WaterReadings returns a read-only snapshot, newest first.
func (s *Synchronizer) WaterReadings() []model.WaterReading {
	return s.water.Snapshot()
}

// AtmosphericReadings returns a read-only snapshot, newest first.
func (s *Synchronizer) AtmosphericReadings() []model.AtmosphericReading {
	return s.atmospheric.Snapshot()
}

// LatestWater returns the latest-seen water reading.
func (s *Synchronizer) LatestWater() (model.WaterReading, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latestWater, s.hasWater
}

// LatestAtmospheric returns the latest-seen atmospheric reading.
func (s *Synchronizer) LatestAtmospheric() (model.AtmosphericReading, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latestAtmospheric, s.hasAtmospheric
}

// LastUpdate returns the instant of the last successful load or notification.
func (s *Synchronizer) LastUpdate() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUpdate, !s.lastUpdate.IsZero()
}

// LoadFailed reports whether the most recent InitialLoad failed.
func (s *Synchronizer) LoadFailed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadFailed
}

// SetOnline records a connectivity signal. It never touches the buffers; it
// only gates freshness messaging upstream.
func (s *Synchronizer) SetOnline(online bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.online = online
}

// Online reports the current connectivity flag.
func (s *Synchronizer) Online() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online
}
