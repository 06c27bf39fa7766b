package batch

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) CreateRun(run *RunLog) error {
	return d.db.Create(run).Error
}

func (d *Database) FinishRun(run *RunLog) error {
	return d.db.Save(run).Error
}

func (d *Database) LatestRun(syncType string) (*RunLog, error) {
	var run RunLog
	err := d.db.Where("sync_type = ?", syncType).
		Order("started_at DESC").
		First(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &run, nil
}

func (d *Database) RunsPage(syncType string, page, limit int) ([]RunLog, int64, error) {
	query := d.db.Model(&RunLog{}).Where("sync_type = ?", syncType)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if page < 1 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var runs []RunLog
	err := query.Order("started_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&runs).Error
	return runs, total, err
}

func (d *Database) RunsSince(syncType string, since time.Time) ([]RunLog, error) {
	var runs []RunLog
	err := d.db.Where("sync_type = ? AND started_at >= ?", syncType, since).
		Order("started_at DESC").
		Find(&runs).Error
	return runs, err
}
