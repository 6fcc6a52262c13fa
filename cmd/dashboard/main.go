package main

import (
	"context"
	"log"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/mizunoto/tankwatch/internal/auth"
	"github.com/mizunoto/tankwatch/internal/config"
	"github.com/mizunoto/tankwatch/internal/datasync"
	"github.com/mizunoto/tankwatch/internal/db"
	"github.com/mizunoto/tankwatch/internal/livefeed"
	"github.com/mizunoto/tankwatch/internal/localcache"
	"github.com/mizunoto/tankwatch/internal/model"
	"github.com/mizunoto/tankwatch/internal/status"
	"github.com/mizunoto/tankwatch/pkg/logger"
)

// statusInterval paces how often the derived system status is reported.
const statusInterval = 30 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatalf("dashboard failed: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	slogger := logger.New("tankwatch-dashboard")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cache, err := localcache.New(cfg.CacheDir)
	if err != nil {
		return err
	}

	store, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer store.Close()

	gateway := auth.NewGateway(store, cache, slogger)
	if session, ok := gateway.Current(); ok {
		slogger.Info("restored session", "username", session.Username, "is_admin", session.IsAdmin)
	}

	feed := livefeed.NewFeed(cfg.DatabaseURL, slogger)
	syncer := datasync.New(store, datasync.PGSubscriber(feed), cache, slogger)

	if err := syncer.InitialLoad(ctx); err != nil {
		// Offline start: show the last reading a prior session cached.
		syncer.SetOnline(false)
		slogger.Warn("initial load failed, using cached fallback", "error", err)

		var cached model.WaterReading
		if cache.GetJSON(localcache.KeyLastWaterReading, &cached) {
			slogger.Info("last known water level",
				"liters", cached.VolumeLiters, "timestamp", cached.Timestamp)
		}
	}

	if err := syncer.SubscribeLive(ctx); err != nil {
		syncer.SetOnline(false)
		slogger.Warn("live feed unavailable", "error", err)
	}
	defer syncer.Stop()

	capacity := cache.TankCapacity()
	slogger.Info("dashboard ready", "tank_capacity_m3", capacity)

	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			report(syncer, slogger)
		}
	}
}

func report(syncer *datasync.Synchronizer, slogger *slog.Logger) {
	st := status.Detect(syncer.WaterReadings())

	args := []any{
		"is_raining", st.IsRaining,
		"is_pump_active", st.IsPumpActive,
		"daily_rainfall_liters", st.DailyRainfallVolume,
		"online", syncer.Online(),
	}
	if latestWater, ok := syncer.LatestWater(); ok {
		args = append(args, "water_liters", latestWater.VolumeLiters)
	}
	if latestAtmospheric, ok := syncer.LatestAtmospheric(); ok {
		args = append(args,
			"temperature", latestAtmospheric.Temperature,
			"humidity", latestAtmospheric.Humidity)
	}
	if lastUpdate, ok := syncer.LastUpdate(); ok {
		args = append(args, "last_update", lastUpdate)
	}

	slogger.Info("system status", args...)
}
