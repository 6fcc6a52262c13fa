package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/valkey-io/valkey-go"

	"github.com/mizunoto/tankwatch/internal/config"
	"github.com/mizunoto/tankwatch/internal/db"
	"github.com/mizunoto/tankwatch/internal/httpserver"
	"github.com/mizunoto/tankwatch/internal/latest"
	"github.com/mizunoto/tankwatch/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	slogger := logger.New("tankwatch-api")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connection error: %v", err)
	}
	defer store.Close()

	var latestCache httpserver.LatestCache
	if cfg.ValkeyAddr != "" {
		client, err := valkey.NewClient(valkey.ClientOption{InitAddress: []string{cfg.ValkeyAddr}})
		if err != nil {
			log.Fatalf("valkey connection error: %v", err)
		}
		defer client.Close()
		latestCache = latest.New(client, "tankwatch")
	}

	srv := httpserver.New(cfg, store, latestCache, slogger)
	slogger.Info("REST API listening", "addr", cfg.ListenAddr())

	if err := srv.Run(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
