package repository

import (
	"context"

	"github.com/qafglossary/backend/internal/model"
	"gorm.io/gorm"
	"k8s.io/klog/v2"
)

type termRepository struct {
	db *gorm.DB
}

func NewTermRepository(db *gorm.DB) TermRepository {
	return &termRepository{db: db}
}

func (r *termRepository) ReplaceAll(ctx context.Context, terms []model.Term, chunkSize int) error {
	if chunkSize <= 0 {
		chunkSize = 500
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&model.Term{}).Error; err != nil {
			return err
		}
		for i := 0; i < len(terms); i += chunkSize {
			end := min(i+chunkSize, len(terms))
			chunk := terms[i:end]
			if err := tx.Create(&chunk).Error; err != nil {
				return err
			}
			klog.V(6).Infof("terms: %d/%d", end, len(terms))
		}
		return nil
	})
}

func (r *termRepository) ListBySection(ctx context.Context, sectionID uint) ([]model.Term, error) {
	var terms []model.Term
	err := r.db.WithContext(ctx).Where("section_id = ?", sectionID).Order("id").Find(&terms).Error
	return terms, err
}

func (r *termRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Term{}).Count(&n).Error
	return n, err
}
