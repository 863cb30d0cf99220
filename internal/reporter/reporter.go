// Package reporter wires up the cron job that periodically refreshes the
// per-stage application gauges exposed on /metrics.
package reporter

import (
	"context"
	"fmt"
	"log"

	"github.com/robfig/cron/v3"

	"github.com/AngelikiMt/recruitment-pipeline-ms/internal/pipeline"
	"github.com/AngelikiMt/recruitment-pipeline-ms/internal/telemetry"
)

// allStages keeps gauges for empty stages at zero instead of absent.
var allStages = []pipeline.Stage{
	pipeline.StageApplied,
	pipeline.StagePhoneScreen,
	pipeline.StageOnsite,
	pipeline.StageOffer,
	pipeline.StageHired,
	pipeline.StageRejected,
}

// Counter is the single store read the reporter needs.
type Counter interface {
	CountApplicationsByStage(ctx context.Context) (map[pipeline.Stage]int64, error)
}

// Reporter wraps robfig/cron and manages the refresh loop.
type Reporter struct {
	cron    *cron.Cron
	counter Counter
	spec    string // cron spec, e.g. "@every 1m"
}

// New creates a Reporter that fires every intervalMinutes minutes.
func New(counter Counter, intervalMinutes int) *Reporter {
	return &Reporter{
		cron:    cron.New(cron.WithLogger(cron.DefaultLogger)),
		counter: counter,
		spec:    fmt.Sprintf("@every %dm", intervalMinutes),
	}
}

// Start registers the job and starts the scheduler. Also runs one refresh
// immediately so gauges are populated without waiting for the first tick.
func (r *Reporter) Start(ctx context.Context) error {
	_, err := r.cron.AddFunc(r.spec, func() {
		r.refresh(ctx)
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	r.cron.Start()
	log.Printf("[reporter] Cron started — spec: %s", r.spec)

	// Run immediately on startup (non-blocking)
	go r.refresh(ctx)

	return nil
}

// Stop gracefully shuts down the scheduler.
func (r *Reporter) Stop() {
	r.cron.Stop()
	log.Println("[reporter] Cron stopped")
}

// refresh queries per-stage counts and updates the gauges.
func (r *Reporter) refresh(ctx context.Context) {
	counts, err := r.counter.CountApplicationsByStage(ctx)
	if err != nil {
		log.Printf("[reporter] CountApplicationsByStage error: %v", err)
		return
	}
	for _, stage := range allStages {
		telemetry.ApplicationsByStage.WithLabelValues(string(stage)).Set(float64(counts[stage]))
	}
}
