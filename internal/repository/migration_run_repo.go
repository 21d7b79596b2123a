package repository

import (
	"context"
	"errors"
	"time"

	"github.com/qafglossary/backend/internal/model"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type migrationRunRepository struct {
	db *gorm.DB
}

func NewMigrationRunRepository(db *gorm.DB) MigrationRunRepository {
	return &migrationRunRepository{db: db}
}

func (r *migrationRunRepository) Create(ctx context.Context, run *model.MigrationRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

func (r *migrationRunRepository) Finish(ctx context.Context, run *model.MigrationRun, status string, stats []byte, errMsg string, finishedAt time.Time) error {
	run.Status = status
	run.Stats = datatypes.JSON(stats)
	run.ErrorMsg = errMsg
	run.FinishedAt = &finishedAt
	return r.db.WithContext(ctx).Model(run).
		Select("status", "stats", "error_msg", "finished_at").
		Updates(run).Error
}

func (r *migrationRunRepository) Latest(ctx context.Context) (*model.MigrationRun, error) {
	var run model.MigrationRun
	err := r.db.WithContext(ctx).Order("id DESC").First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}
