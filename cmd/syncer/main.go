// Command syncer runs the synchronization pipeline outside the HTTP
// service: one full or incremental pass, or a repeating interval loop.
// Mirrors what the admin sync trigger does, for cron/container use.
// Configured entirely through the environment (SYNC_WORKER_MODE,
// SYNC_WORKER_LIMIT, SYNC_WORKER_INTERVAL).
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yourorg/listings-api/ampre"
	"github.com/yourorg/listings-api/internal/cache"
	"github.com/yourorg/listings-api/internal/config"
	"github.com/yourorg/listings-api/internal/images"
	"github.com/yourorg/listings-api/internal/store"
	syncer "github.com/yourorg/listings-api/internal/sync"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	mode := cfg.Sync.WorkerMode
	limit := cfg.Sync.WorkerLimit
	every := cfg.Sync.WorkerInterval

	st, err := store.Open(cfg.DB.DSN())
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer st.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := st.Migrate(ctx); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	client := ampre.NewClient(cfg.Ampre.Token)
	if cfg.Ampre.BaseURL != "" {
		client.WithBaseURL(cfg.Ampre.BaseURL)
	}

	mem := cache.NewMemory()
	defer mem.Close()

	orch := &syncer.Orchestrator{
		Client: client,
		Store:  st,
		Images: &images.Resolver{
			Client:          client,
			Cache:           mem,
			DefaultTTL:      cfg.Images.DefaultTTL,
			HighPriorityTTL: cfg.Images.HighPriorityTTL,
			BatchLimit:      cfg.Images.BatchLimit,
			ChunkSize:       cfg.Images.ChunkSize,
		},
		PageSize: cfg.Sync.PageSize,
		FullCap:  cfg.Sync.FullSyncLimit,
	}

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		cancel()
	}()

	runOnce := func() {
		var (
			res syncer.Result
			err error
		)
		switch mode {
		case "full":
			res, err = orch.FullSync(ctx, limit)
		case "incremental":
			res, err = orch.IncrementalSync(ctx)
		default:
			log.Fatalf("unknown SYNC_WORKER_MODE %q", mode)
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("[WARN] %s sync: %v", mode, err)
		}
		log.Printf("[INFO] %s sync: synced=%d updated=%d failed=%d", mode, res.Synced, res.Updated, res.Failed)
	}

	runOnce()
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOnce()
		}
	}
}
