package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "transhub/internal/engine/debugengine"

	"transhub/internal/config"
	"transhub/internal/coordinator"
	"transhub/internal/db"
	"transhub/internal/httpapi"
	"transhub/internal/logger"
	"transhub/internal/policy"
	"transhub/internal/repository"
	"transhub/internal/scheduler"
	"transhub/internal/snowflake"
)

func main() {
	cfg := config.Load()

	logger.Init(logger.ParseLevel(cfg.LogLevel), cfg.LogFormat)

	if err := snowflake.Init(1); err != nil {
		log.Fatalf("init snowflake: %v", err)
	}

	conn, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer conn.Close()

	store := repository.NewStore(conn)

	coord := coordinator.New(store, coordinator.Config{
		ActiveEngine:    cfg.ActiveEngine,
		DefaultSource:   cfg.DefaultSourceLang,
		BatchSize:       cfg.BatchSize,
		GCRetentionDays: cfg.GCRetentionDays,
		Retry: policy.RetryConfig{
			MaxAttempts:    cfg.RetryPolicy.MaxAttempts,
			InitialBackoff: cfg.RetryPolicy.InitialBackoff,
			MaxBackoff:     cfg.RetryPolicy.MaxBackoff,
		},
		CacheMaxSize: cfg.CacheConfig.MaxSize,
		CacheTTL:     cfg.CacheConfig.TTL,
		RateRefill:   cfg.RateLimiter.RefillRate,
		RateCapacity: cfg.RateLimiter.Capacity,
	})

	ctx := context.Background()
	if err := coord.Initialize(ctx, cfg.ActiveEngine, nil); err != nil {
		log.Fatalf("initialize coordinator: %v", err)
	}

	sched := scheduler.New(coord, store, 15*time.Minute, cfg.GCRetentionDays, 10*time.Minute)
	sched.Start()

	handler := httpapi.NewHandler(coord)
	router := httpapi.NewRouter(handler)

	go func() {
		if err := router.Start(cfg.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("start server: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Println("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sched.Stop()

	if err := router.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}
	if err := coord.Close(); err != nil {
		log.Printf("coordinator close error: %v", err)
	}

	log.Println("server stopped")
}
