package batch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatal(err)
	}
	if err := db.AutoMigrate(&RunLog{}); err != nil {
		t.Fatal(err)
	}
	return db
}

func TestTrackRunRecordsCompletion(t *testing.T) {
	tracker := NewTracker(testDB(t))

	err := tracker.TrackRun("order_poll_b", func() (Counts, error) {
		return Counts{Total: 12, Synced: 10, Failed: 2}, nil
	})
	if err != nil {
		t.Fatal(err)
	}

	run, err := tracker.Database().LatestRun("order_poll_b")
	if err != nil {
		t.Fatal(err)
	}
	if run == nil {
		t.Fatal("no run logged")
	}
	if run.Status != RunCompleted {
		t.Errorf("status = %s, want completed", run.Status)
	}
	if run.RecordsTotal != 12 || run.RecordsSynced != 10 || run.RecordsFailed != 2 {
		t.Errorf("counts = %d/%d/%d", run.RecordsTotal, run.RecordsSynced, run.RecordsFailed)
	}
	if run.CompletedAt == nil {
		t.Error("completed_at not stamped")
	}
}

func TestTrackRunRecordsFailure(t *testing.T) {
	tracker := NewTracker(testDB(t))
	syncErr := errors.New("partner report unavailable")

	err := tracker.TrackRun("mandate_poll_a", func() (Counts, error) {
		return Counts{Total: 3}, syncErr
	})
	if !errors.Is(err, syncErr) {
		t.Fatalf("run error must be returned, got %v", err)
	}

	run, _ := tracker.Database().LatestRun("mandate_poll_a")
	if run.Status != RunFailed {
		t.Errorf("status = %s, want failed", run.Status)
	}
	if run.ErrorMessage != "partner report unavailable" {
		t.Errorf("error message = %q", run.ErrorMessage)
	}
}

func TestTrackRunTruncatesLongErrors(t *testing.T) {
	tracker := NewTracker(testDB(t))
	long := strings.Repeat("x", 2000)

	_ = tracker.TrackRun("order_poll_b", func() (Counts, error) {
		return Counts{}, errors.New(long)
	})

	run, _ := tracker.Database().LatestRun("order_poll_b")
	if len(run.ErrorMessage) != maxErrorLength {
		t.Errorf("error message length = %d, want %d", len(run.ErrorMessage), maxErrorLength)
	}
}

func TestLatestRunPicksNewest(t *testing.T) {
	db := NewDatabase(testDB(t))

	old := time.Now().Add(-time.Hour)
	if err := db.CreateRun(&RunLog{SyncType: "s", Status: RunCompleted, StartedAt: old}); err != nil {
		t.Fatal(err)
	}
	now := time.Now()
	if err := db.CreateRun(&RunLog{SyncType: "s", Status: RunFailed, StartedAt: now}); err != nil {
		t.Fatal(err)
	}

	run, err := db.LatestRun("s")
	if err != nil {
		t.Fatal(err)
	}
	if run.Status != RunFailed {
		t.Errorf("latest run status = %s, want the newer failed run", run.Status)
	}

	missing, err := db.LatestRun("never-ran")
	if err != nil || missing != nil {
		t.Errorf("missing sync type: run=%v err=%v", missing, err)
	}
}

func TestRunsPagePaginates(t *testing.T) {
	db := NewDatabase(testDB(t))
	for i := 0; i < 5; i++ {
		if err := db.CreateRun(&RunLog{SyncType: "s", Status: RunCompleted, StartedAt: time.Now()}); err != nil {
			t.Fatal(err)
		}
	}

	runs, total, err := db.RunsPage("s", 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if total != 5 || len(runs) != 2 {
		t.Errorf("total = %d, page size = %d", total, len(runs))
	}

	runs, _, _ = db.RunsPage("s", 3, 2)
	if len(runs) != 1 {
		t.Errorf("last page size = %d, want 1", len(runs))
	}
}

func TestRegistryTrigger(t *testing.T) {
	registry := NewRegistry()
	ran := 0
	registry.Register(JobDef{
		ID:     "order_poll_b",
		Name:   "Order status poll",
		Manual: true,
		Run: func(ctx context.Context) error {
			ran++
			return nil
		},
	})
	registry.Register(JobDef{
		ID:       "credential_sweep",
		Name:     "Credential health sweep",
		Schedule: "hourly",
		Run: func(ctx context.Context) error {
			t.Fatal("scheduled-only job must not run via trigger")
			return nil
		},
	})

	if err := registry.Trigger(context.Background(), "order_poll_b"); err != nil {
		t.Fatal(err)
	}
	if ran != 1 {
		t.Errorf("ran = %d, want 1", ran)
	}

	if err := registry.Trigger(context.Background(), "credential_sweep"); err == nil {
		t.Error("non-manual job should refuse manual trigger")
	}
	if err := registry.Trigger(context.Background(), "nope"); err == nil {
		t.Error("unknown job should error")
	}

	jobs := registry.List()
	if len(jobs) != 2 || jobs[0].ID != "credential_sweep" {
		t.Errorf("list = %+v", jobs)
	}
}
