package repository

import (
	"context"

	"github.com/qafglossary/backend/internal/model"
	"gorm.io/gorm"
)

// legacyRepository 读取旧版抽取脚本生成的 app_data.sqlite
type legacyRepository struct {
	db *gorm.DB
}

func NewLegacyRepository(db *gorm.DB) LegacyRepository {
	return &legacyRepository{db: db}
}

func (r *legacyRepository) Sections(ctx context.Context) ([]model.LegacySection, error) {
	var rows []model.LegacySection
	err := r.db.WithContext(ctx).Raw(
		"SELECT section_number AS number, title, section_type AS kind FROM sections ORDER BY section_number",
	).Scan(&rows).Error
	return rows, err
}

func (r *legacyRepository) Terms(ctx context.Context) ([]model.LegacyTerm, error) {
	var rows []model.LegacyTerm
	err := r.db.WithContext(ctx).Raw(
		"SELECT section_number, item_number, term, description, abbreviation FROM terms ORDER BY section_number, id",
	).Scan(&rows).Error
	return rows, err
}

func (r *legacyRepository) Documents(ctx context.Context) ([]model.LegacyDocument, error) {
	var rows []model.LegacyDocument
	err := r.db.WithContext(ctx).Raw(
		"SELECT id, section_number, source_path, title, doc_type AS format_hint, text_content AS extracted_text FROM documents ORDER BY section_number, id",
	).Scan(&rows).Error
	return rows, err
}

func (r *legacyRepository) Images(ctx context.Context) ([]model.LegacyImage, error) {
	var rows []model.LegacyImage
	err := r.db.WithContext(ctx).Raw(
		"SELECT document_id, image_path, width, height, page AS page_index FROM images ORDER BY document_id, id",
	).Scan(&rows).Error
	return rows, err
}
