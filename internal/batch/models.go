package batch

import (
	"time"

	"gorm.io/gorm"
)

type RunStatus string

const (
	RunStarted   RunStatus = "started"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// RunLog records one execution of a background sync, successful or not.
type RunLog struct {
	gorm.Model    `json:"-"`
	SyncType      string     `gorm:"index" json:"sync_type"`
	Status        RunStatus  `json:"status"`
	RecordsTotal  int        `json:"records_total"`
	RecordsSynced int        `json:"records_synced"`
	RecordsFailed int        `json:"records_failed"`
	ErrorMessage  string     `json:"error_message,omitempty"`
	StartedAt     time.Time  `json:"started_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// Counts is what a tracked run reports back about the records it touched.
type Counts struct {
	Total  int
	Synced int
	Failed int
}
