package repository

import (
	"context"
	"testing"

	"github.com/qafglossary/backend/internal/model"
	"github.com/qafglossary/backend/internal/testsupport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssetRepositoryUpsertRefreshesMetadata(t *testing.T) {
	db := testsupport.NewStoreDB(t)
	ctx := context.Background()
	repo := NewAssetRepository(db)

	asset := &model.Asset{SHA256: "abc", StoredPath: "/uploads/assets/abc.png", Width: testsupport.Int(100), Height: testsupport.Int(100), IsLogo: true}
	require.NoError(t, repo.Upsert(ctx, asset))
	firstID := asset.ID

	again := &model.Asset{SHA256: "abc", StoredPath: "/uploads/assets/abc.png", Width: testsupport.Int(800), Height: testsupport.Int(600), IsLogo: false}
	require.NoError(t, repo.Upsert(ctx, again))
	assert.Equal(t, firstID, again.ID)

	stored, err := repo.GetBySHA256(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, stored.IsLogo)
	assert.Equal(t, 800, *stored.Width)
	assert.Equal(t, "image", stored.Kind)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestAssetRepositoryLinkDuplicateIsNoop(t *testing.T) {
	db := testsupport.NewStoreDB(t)
	ctx := context.Background()
	sections := NewSectionRepository(db)
	docs := NewDocumentRepository(db)
	repo := NewAssetRepository(db)

	section := &model.Section{Number: 3, Title: "3"}
	require.NoError(t, sections.Upsert(ctx, section))
	doc := &model.Document{SectionID: section.ID, Code: "c"}
	require.NoError(t, docs.Upsert(ctx, doc))
	asset := &model.Asset{SHA256: "ff", StoredPath: "/uploads/assets/ff.jpg"}
	require.NoError(t, repo.Upsert(ctx, asset))

	created, err := repo.Link(ctx, doc.ID, asset.ID, testsupport.Int(1))
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.Link(ctx, doc.ID, asset.ID, nil)
	require.NoError(t, err)
	assert.False(t, created)

	var n int64
	require.NoError(t, db.Model(&model.DocumentAsset{}).Count(&n).Error)
	assert.EqualValues(t, 1, n)
}

func TestAssetRepositoryGetNotFound(t *testing.T) {
	repo := NewAssetRepository(testsupport.NewStoreDB(t))
	_, err := repo.GetBySHA256(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
