package repository

import (
	"context"
	"errors"

	"github.com/qafglossary/backend/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type sectionRepository struct {
	db *gorm.DB
}

func NewSectionRepository(db *gorm.DB) SectionRepository {
	return &sectionRepository{db: db}
}

func (r *sectionRepository) Upsert(ctx context.Context, section *model.Section) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "number"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "kind", "updated_at"}),
	}).Create(section).Error
	if err != nil {
		return err
	}

	// 冲突更新时部分驱动不会回填主键，这里重新查一次
	var stored model.Section
	if err := r.db.WithContext(ctx).Where("number = ?", section.Number).First(&stored).Error; err != nil {
		return err
	}
	section.ID = stored.ID
	return nil
}

func (r *sectionRepository) List(ctx context.Context) ([]model.Section, error) {
	var sections []model.Section
	err := r.db.WithContext(ctx).Order("number").Find(&sections).Error
	return sections, err
}

func (r *sectionRepository) GetByNumber(ctx context.Context, number int) (*model.Section, error) {
	var section model.Section
	err := r.db.WithContext(ctx).Where("number = ?", number).First(&section).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &section, nil
}
