package repository

import (
	"context"
	"errors"

	"github.com/qafglossary/backend/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type assetRepository struct {
	db *gorm.DB
}

func NewAssetRepository(db *gorm.DB) AssetRepository {
	return &assetRepository{db: db}
}

func (r *assetRepository) Upsert(ctx context.Context, asset *model.Asset) error {
	if asset.Kind == "" {
		asset.Kind = "image"
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "sha256"}},
		DoUpdates: clause.AssignmentColumns([]string{"path", "width", "height", "is_logo", "updated_at"}),
	}).Create(asset).Error
	if err != nil {
		return err
	}

	stored, err := r.GetBySHA256(ctx, asset.SHA256)
	if err != nil {
		return err
	}
	asset.ID = stored.ID
	asset.CreatedAt = stored.CreatedAt
	return nil
}

func (r *assetRepository) GetBySHA256(ctx context.Context, sha256 string) (*model.Asset, error) {
	var asset model.Asset
	err := r.db.WithContext(ctx).Where("sha256 = ?", sha256).First(&asset).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &asset, nil
}

func (r *assetRepository) Link(ctx context.Context, documentID, assetID uint, order *int) (bool, error) {
	link := model.DocumentAsset{
		DocumentID: documentID,
		AssetID:    assetID,
		Order:      order,
	}
	res := r.db.WithContext(ctx).
		Omit("Asset").
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&link)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *assetRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Asset{}).Count(&n).Error
	return n, err
}
