package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/yourorg/listings-api/ampre"
	"github.com/yourorg/listings-api/internal/cache"
	"github.com/yourorg/listings-api/internal/config"
	"github.com/yourorg/listings-api/internal/events"
	"github.com/yourorg/listings-api/internal/images"
	"github.com/yourorg/listings-api/internal/store"
	syncer "github.com/yourorg/listings-api/internal/sync"

	httpapi "github.com/yourorg/listings-api/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("[INFO] %s starting (env %s)", cfg.App.Name, cfg.App.Environment)

	st, err := store.Open(cfg.DB.DSN())
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer st.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := st.Ping(ctx); err != nil {
		log.Fatalf("db unreachable: %v", err)
	}
	if err := st.Migrate(ctx); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	var c cache.Cache
	if cfg.Cache.Type == "redis" {
		rc := cache.NewRedis(cfg.Cache.RedisAddress(), cfg.Cache.RedisPassword, cfg.Cache.RedisDB)
		if err := rc.Ping(ctx); err != nil {
			log.Fatalf("redis unreachable: %v", err)
		}
		c = rc
	} else {
		c = cache.NewMemory()
	}
	defer c.Close()

	client := ampre.NewClient(cfg.Ampre.Token)
	if cfg.Ampre.BaseURL != "" {
		client.WithBaseURL(cfg.Ampre.BaseURL)
	}

	resolver := &images.Resolver{
		Client:          client,
		Cache:           c,
		DefaultTTL:      cfg.Images.DefaultTTL,
		HighPriorityTTL: cfg.Images.HighPriorityTTL,
		BatchLimit:      cfg.Images.BatchLimit,
		ChunkSize:       cfg.Images.ChunkSize,
	}

	pub := events.NewInMemory(256)
	orch := &syncer.Orchestrator{
		Client:   client,
		Store:    st,
		Images:   resolver,
		Pub:      pub,
		PageSize: cfg.Sync.PageSize,
		FullCap:  cfg.Sync.FullSyncLimit,
	}
	queue := syncer.NewQueue(orch, 16)
	go queue.Run(ctx)

	inv := &events.Invalidator{
		Pub:     pub,
		KeyFunc: httpapi.DetailCacheKey,
		Forget:  c.Delete,
	}
	go inv.Run(ctx)

	if cfg.Sync.CronEnabled {
		sched := syncer.NewScheduler(queue, cfg.Sync.CronSpec)
		if err := sched.Start(); err != nil {
			log.Fatalf("scheduler: %v", err)
		}
		defer sched.Stop()
	}

	prod := cfg.App.IsProduction()
	router := BuildRouter(RouterDeps{
		Listings: httpapi.ListingsDeps{Store: st, Production: prod},
		Sync:     httpapi.SyncDeps{Queue: queue, Production: prod},
		Images:   httpapi.ImagesDeps{Resolver: resolver, Production: prod},
		Detail: httpapi.DetailDeps{
			Store:       st,
			Cache:       c,
			Resolver:    resolver,
			DetailTTL:   cfg.Cache.DetailTTL,
			NegativeTTL: cfg.Cache.NegativeTTL,
			Production:  prod,
		},
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Printf("[INFO] listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("[INFO] shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[WARN] shutdown: %v", err)
	}
	cancel()
}
