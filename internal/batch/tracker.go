// Package batch tracks background sync executions so operators can see when
// reconciliation last ran, what it touched, and why it failed.
package batch

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const maxErrorLength = 500

type Tracker struct {
	db     *Database
	logger zerolog.Logger
}

func NewTracker(gormDB *gorm.DB) *Tracker {
	return &Tracker{
		db:     NewDatabase(gormDB),
		logger: log.With().Str("component", "batch").Logger(),
	}
}

func (t *Tracker) Database() *Database {
	return t.db
}

// TrackRun wraps one sync execution in a run log. The run's own error is
// always returned to the caller; a failure to persist the log is logged and
// swallowed so bookkeeping never masks the sync outcome.
func (t *Tracker) TrackRun(syncType string, fn func() (Counts, error)) error {
	run := &RunLog{
		SyncType:  syncType,
		Status:    RunStarted,
		StartedAt: time.Now(),
	}
	if err := t.db.CreateRun(run); err != nil {
		t.logger.Error().Err(err).Str("sync_type", syncType).Msg("failed to open run log")
	}

	counts, runErr := fn()

	now := time.Now()
	run.CompletedAt = &now
	run.RecordsTotal = counts.Total
	run.RecordsSynced = counts.Synced
	run.RecordsFailed = counts.Failed
	if runErr != nil {
		run.Status = RunFailed
		run.ErrorMessage = truncate(runErr.Error(), maxErrorLength)
	} else {
		run.Status = RunCompleted
	}

	if run.ID != 0 {
		if err := t.db.FinishRun(run); err != nil {
			t.logger.Error().Err(err).Str("sync_type", syncType).Msg("failed to close run log")
		}
	}

	if runErr != nil {
		t.logger.Error().
			Err(runErr).
			Str("sync_type", syncType).
			Int("records_total", counts.Total).
			Msg("sync run failed")
	} else {
		t.logger.Info().
			Str("sync_type", syncType).
			Int("records_total", counts.Total).
			Int("records_synced", counts.Synced).
			Int("records_failed", counts.Failed).
			Dur("duration", now.Sub(run.StartedAt)).
			Msg("sync run completed")
	}
	return runErr
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
