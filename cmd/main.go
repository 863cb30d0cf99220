// recruitment-pipeline-ms
//
// Status-transition engine for recruitment applications.
// Exposes a REST API used by the Gateway to implement:
//   - PATCH /applications/{id}/status/ — state machine transitions
//   - POST/GET for applications, jobs, candidates
//   - GET /auditlogs/                  — immutable audit trail
//
// Every committed transition appends a StageHistory row and an AuditLog
// entry in the same transaction as the stage mutation, and publishes
// EVENT_STAGE_CHANGED to Redis for Gateway SSE forward.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AngelikiMt/recruitment-pipeline-ms/internal/config"
	"github.com/AngelikiMt/recruitment-pipeline-ms/internal/pipeline"
	"github.com/AngelikiMt/recruitment-pipeline-ms/internal/reporter"
	"github.com/AngelikiMt/recruitment-pipeline-ms/internal/store"
)

func main() {
	// ── Config ──────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[%s] Config error: %v", pipeline.ServiceName, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── PostgreSQL ───────────────────────────────────────────────────────────
	log.Printf("[%s] Connecting to PostgreSQL…", pipeline.ServiceName)
	st, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("[%s] PostgreSQL: %v", pipeline.ServiceName, err)
	}
	defer st.Close()

	if err := st.RunMigrations(ctx); err != nil {
		log.Fatalf("[%s] Migrations: %v", pipeline.ServiceName, err)
	}
	log.Printf("[%s] PostgreSQL ready ✓", pipeline.ServiceName)

	// ── Redis ────────────────────────────────────────────────────────────────
	log.Printf("[%s] Connecting to Redis…", pipeline.ServiceName)
	rdb, err := connectRedis(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("[%s] Redis: %v", pipeline.ServiceName, err)
	}
	defer rdb.Close()
	log.Printf("[%s] Redis connected ✓", pipeline.ServiceName)

	// ── Reject reason registry ──────────────────────────────────────────────
	reasons := pipeline.DefaultRejectReasons()
	if cfg.RejectReasonsFile != "" {
		reasons, err = pipeline.LoadRejectReasons(cfg.RejectReasonsFile)
		if err != nil {
			log.Fatalf("[%s] Reject reasons: %v", pipeline.ServiceName, err)
		}
		log.Printf("[%s] Loaded %d reject reasons from %s", pipeline.ServiceName, len(reasons), cfg.RejectReasonsFile)
	}

	// ── Service + reporter ───────────────────────────────────────────────────
	svc := pipeline.NewService(st, reasons, pipeline.NewRedisEventSink(rdb))

	rep := reporter.New(st, cfg.ReportIntervalMin)
	if err := rep.Start(ctx); err != nil {
		log.Fatalf("[%s] Reporter: %v", pipeline.ServiceName, err)
	}
	defer rep.Stop()

	// ── HTTP server ──────────────────────────────────────────────────────────
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      pipeline.NewHandler(svc).Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("[%s] listening on :%s", pipeline.ServiceName, cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[%s] HTTP server error: %v", pipeline.ServiceName, err)
		}
	}()

	// ── Graceful shutdown ────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Printf("[%s] Shutting down…", pipeline.ServiceName)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[%s] Shutdown error: %v", pipeline.ServiceName, err)
	}
	log.Printf("[%s] Stopped.", pipeline.ServiceName)
}

// connectRedis creates and verifies a Redis client from a URL.
func connectRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}
