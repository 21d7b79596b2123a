package repository

import (
	"context"
	"errors"

	"github.com/qafglossary/backend/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type documentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{db: db}
}

func (r *documentRepository) Upsert(ctx context.Context, doc *model.Document) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.Document
		err := tx.Where("section_id = ? AND code = ?", doc.SectionID, doc.Code).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Omit(clause.Associations).Create(doc).Error
		}
		if err != nil {
			return err
		}

		// Select 指定列，确保 nil 值也会写回
		if err := tx.Model(&existing).
			Select("title", "content_html").
			Updates(&model.Document{Title: doc.Title, ContentHTML: doc.ContentHTML}).Error; err != nil {
			return err
		}
		doc.ID = existing.ID
		doc.CreatedAt = existing.CreatedAt
		return nil
	})
}

func (r *documentRepository) UpsertVariant(ctx context.Context, variant *model.DocumentVariant) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "document_id"}, {Name: "format"}},
		DoUpdates: clause.AssignmentColumns([]string{"source_path", "mime_type"}),
	}).Create(variant).Error
}

func (r *documentRepository) Get(ctx context.Context, id uint) (*model.Document, error) {
	var doc model.Document
	err := r.withRelations(r.db.WithContext(ctx)).First(&doc, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *documentRepository) ListBySection(ctx context.Context, sectionID uint) ([]model.Document, error) {
	var docs []model.Document
	err := r.db.WithContext(ctx).
		Preload("Variants", func(db *gorm.DB) *gorm.DB { return db.Order("format") }).
		Omit("content_html").
		Where("section_id = ?", sectionID).
		Order("code").
		Find(&docs).Error
	return docs, err
}

func (r *documentRepository) ListForExport(ctx context.Context) ([]model.Document, error) {
	var docs []model.Document
	err := r.withRelations(r.db.WithContext(ctx)).
		Order("section_id, code").
		Find(&docs).Error
	return docs, err
}

func (r *documentRepository) KeyIndex(ctx context.Context) (map[model.DocumentKey]uint, error) {
	var rows []struct {
		ID        uint
		SectionID uint
		Code      string
	}
	if err := r.db.WithContext(ctx).Model(&model.Document{}).
		Select("id", "section_id", "code").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	index := make(map[model.DocumentKey]uint, len(rows))
	for _, row := range rows {
		index[model.DocumentKey{SectionID: row.SectionID, Code: row.Code}] = row.ID
	}
	return index, nil
}

// withRelations 预加载变体（按格式）与图片（按 order、id）
func (r *documentRepository) withRelations(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Variants", func(db *gorm.DB) *gorm.DB { return db.Order("format") }).
		Preload("Assets", func(db *gorm.DB) *gorm.DB {
			return db.Order(clause.OrderBy{Columns: []clause.OrderByColumn{
				{Column: clause.Column{Name: "order"}},
				{Column: clause.Column{Name: "id"}},
			}})
		}).
		Preload("Assets.Asset")
}
