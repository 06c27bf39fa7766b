// Package audit persists a redacted record of every partner call. Writes
// happen on a background goroutine so the request path never waits on the
// audit table; a full buffer drops the record with a warning instead of
// blocking.
package audit

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/wealthdesk/exchange-gateway/internal/partner"
)

type Record struct {
	gorm.Model   `json:"-"`
	AdvisorID    string    `gorm:"index" json:"advisor_id"`
	Exchange     string    `gorm:"index" json:"exchange"`
	APIName      string    `json:"api_name"`
	Method       string    `json:"method"`
	Endpoint     string    `json:"endpoint"`
	RequestData  string    `json:"request_data"`
	ResponseData string    `json:"response_data"`
	StatusCode   int       `json:"status_code"`
	LatencyMs    int64     `json:"latency_ms"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) CreateRecord(rec *Record) error {
	return d.db.Create(rec).Error
}

func (d *Database) RecentForAdvisor(advisorID string, limit int) ([]Record, error) {
	var records []Record
	err := d.db.Where("advisor_id = ?", advisorID).
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

type Writer struct {
	db     *Database
	ch     chan Record
	done   chan struct{}
	logger zerolog.Logger
}

func NewWriter(db *gorm.DB, buffer int) *Writer {
	if buffer <= 0 {
		buffer = 1024
	}
	return &Writer{
		db:     NewDatabase(db),
		ch:     make(chan Record, buffer),
		done:   make(chan struct{}),
		logger: log.With().Str("component", "audit_writer").Logger(),
	}
}

// Start runs the persistence loop until ctx is cancelled, then drains
// whatever is still buffered.
func (w *Writer) Start(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			w.drain()
			return
		case rec := <-w.ch:
			w.persist(rec)
		}
	}
}

// Wait blocks until the persistence loop has exited.
func (w *Writer) Wait() {
	<-w.done
}

// Record implements partner.AuditSink. It never blocks: when the buffer is
// full the record is dropped and counted against the log.
func (w *Writer) Record(rec partner.CallRecord) {
	select {
	case w.ch <- fromCallRecord(rec):
	default:
		w.logger.Warn().
			Str("exchange", rec.Exchange).
			Str("api", rec.APIName).
			Msg("audit buffer full, dropping record")
	}
}

func (w *Writer) drain() {
	for {
		select {
		case rec := <-w.ch:
			w.persist(rec)
		default:
			return
		}
	}
}

func (w *Writer) persist(rec Record) {
	if err := w.db.CreateRecord(&rec); err != nil {
		w.logger.Error().Err(err).Str("api", rec.APIName).Msg("failed to persist audit record")
	}
}

func fromCallRecord(rec partner.CallRecord) Record {
	return Record{
		AdvisorID:    rec.AdvisorID,
		Exchange:     rec.Exchange,
		APIName:      rec.APIName,
		Method:       rec.Method,
		Endpoint:     rec.Endpoint,
		RequestData:  rec.RequestData,
		ResponseData: rec.ResponseData,
		StatusCode:   rec.StatusCode,
		LatencyMs:    rec.LatencyMs,
		ErrorMessage: rec.ErrorMessage,
	}
}
