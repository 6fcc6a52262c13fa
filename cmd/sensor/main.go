package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"math/rand"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mizunoto/tankwatch/internal/config"
	"github.com/mizunoto/tankwatch/pkg/logger"
)

// reading mirrors the ingestion endpoint's accepted body.
type reading struct {
	VolumeM3    float64 `json:"volume_m3"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
}

// simulator produces plausible tank telemetry: slow volume drift with
// occasional consumption drops, bounded temperature and humidity walks.
type simulator struct {
	volumeM3    float64
	temperature float64
	humidity    float64
}

func newSimulator() *simulator {
	return &simulator{volumeM3: 6.5, temperature: 18, humidity: 55}
}

func (s *simulator) next() reading {
	s.volumeM3 += (rand.Float64() - 0.45) * 0.05
	if rand.Float64() < 0.05 {
		s.volumeM3 -= 0.3 // pump run
	}
	s.volumeM3 = clamp(s.volumeM3, 0, 10)

	s.temperature = clamp(s.temperature+(rand.Float64()-0.5)*0.8, -5, 40)
	s.humidity = clamp(s.humidity+(rand.Float64()-0.5)*3, 10, 100)

	return reading{VolumeM3: s.volumeM3, Temperature: s.temperature, Humidity: s.humidity}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func main() {
	if err := run(); err != nil {
		log.Fatalf("sensor failed: %v", err)
	}
}

func run() error {
	cfg := config.LoadSensor()

	slogger := logger.New("tankwatch-sensor")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client := &http.Client{Timeout: 15 * time.Second}
	sim := newSimulator()

	send := func() {
		payload, err := json.Marshal(sim.next())
		if err != nil {
			slogger.Error("marshal failed", "error", err)
			return
		}

		resp, err := client.Post(cfg.IngestURL, "application/json", bytes.NewReader(payload))
		if err != nil {
			slogger.Error("ingest post failed", "error", err)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			slogger.Error("ingest rejected", "status", resp.StatusCode)
			return
		}
		slogger.Info("reading sent", "payload", string(payload))
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.SendSpec, send); err != nil {
		return err
	}

	send() // first reading immediately, then on schedule
	scheduler.Start()
	defer scheduler.Stop()

	<-ctx.Done()
	return nil
}
