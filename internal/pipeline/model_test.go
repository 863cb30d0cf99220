package pipeline_test

import (
	"testing"
	"time"

	"github.com/AngelikiMt/recruitment-pipeline-ms/internal/pipeline"
)

// ── DaysToHire ─────────────────────────────────────────────────────────────

func TestDaysToHire_NilBeforeHiring(t *testing.T) {
	app := &pipeline.Application{AppliedAt: time.Now().UTC()}
	if d := app.DaysToHire(); d != nil {
		t.Errorf("DaysToHire() = %v before hiring, want nil", *d)
	}
}

// Applied 15 days ago, hired 10 days after applying → 10.
func TestDaysToHire_WholeDays(t *testing.T) {
	applied := time.Now().UTC().Add(-15 * 24 * time.Hour)
	hired := applied.Add(10 * 24 * time.Hour)
	app := &pipeline.Application{AppliedAt: applied, HiredAt: &hired}

	d := app.DaysToHire()
	if d == nil {
		t.Fatal("DaysToHire() = nil after hiring")
	}
	if *d != 10 {
		t.Errorf("DaysToHire() = %d, want 10", *d)
	}
}

// Partial days truncate: 2 days and 20 hours is still 2 days.
func TestDaysToHire_TruncatesPartialDays(t *testing.T) {
	applied := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	hired := applied.Add(2*24*time.Hour + 20*time.Hour)
	app := &pipeline.Application{AppliedAt: applied, HiredAt: &hired}

	if d := app.DaysToHire(); d == nil || *d != 2 {
		t.Errorf("DaysToHire() = %v, want 2", d)
	}
}

// ── CurrentTimeInStage ─────────────────────────────────────────────────────

func TestCurrentTimeInStage_NoHistory(t *testing.T) {
	app := &pipeline.Application{}
	if _, ok := app.CurrentTimeInStage(time.Now().UTC()); ok {
		t.Error("CurrentTimeInStage() should report absent with no history")
	}
}

func TestCurrentTimeInStage_SinceLatestEntry(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	app := &pipeline.Application{
		StageHistory: []pipeline.StageHistory{
			{Stage: pipeline.StageApplied, EnteredAt: now.Add(-72 * time.Hour)},
			{Stage: pipeline.StagePhoneScreen, EnteredAt: now.Add(-5 * time.Hour)},
		},
	}

	d, ok := app.CurrentTimeInStage(now)
	if !ok {
		t.Fatal("CurrentTimeInStage() should be available with history present")
	}
	if d != 5*time.Hour {
		t.Errorf("CurrentTimeInStage() = %s, want 5h", d)
	}
}

// Order of the history slice must not matter — only the latest entry does.
func TestCurrentTimeInStage_UnorderedHistory(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	app := &pipeline.Application{
		StageHistory: []pipeline.StageHistory{
			{Stage: pipeline.StageOnsite, EnteredAt: now.Add(-1 * time.Hour)},
			{Stage: pipeline.StageApplied, EnteredAt: now.Add(-90 * time.Hour)},
		},
	}

	d, ok := app.CurrentTimeInStage(now)
	if !ok || d != time.Hour {
		t.Errorf("CurrentTimeInStage() = %s, %v, want 1h, true", d, ok)
	}
}
