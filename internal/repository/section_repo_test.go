package repository

import (
	"context"
	"testing"

	"github.com/qafglossary/backend/internal/model"
	"github.com/qafglossary/backend/internal/testsupport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSectionRepositoryUpsertByNumber(t *testing.T) {
	db := testsupport.NewStoreDB(t)
	ctx := context.Background()
	repo := NewSectionRepository(db)

	s := &model.Section{Number: 7, Title: "old", Kind: model.SectionKindTerms}
	require.NoError(t, repo.Upsert(ctx, s))
	id := s.ID

	s2 := &model.Section{Number: 7, Title: "new", Kind: model.SectionKindDocument}
	require.NoError(t, repo.Upsert(ctx, s2))
	assert.Equal(t, id, s2.ID)

	got, err := repo.GetByNumber(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "new", got.Title)
	assert.Equal(t, model.SectionKindDocument, got.Kind)

	_, err = repo.GetByNumber(ctx, 8)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTermRepositoryReplaceAll(t *testing.T) {
	db := testsupport.NewStoreDB(t)
	ctx := context.Background()
	sections := NewSectionRepository(db)
	repo := NewTermRepository(db)

	s := &model.Section{Number: 1, Title: "1"}
	require.NoError(t, sections.Upsert(ctx, s))

	build := func(n int) []model.Term {
		terms := make([]model.Term, 0, n)
		for i := 0; i < n; i++ {
			terms = append(terms, model.Term{SectionID: s.ID, Text: "term"})
		}
		return terms
	}

	require.NoError(t, repo.ReplaceAll(ctx, build(7), 3))
	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 7, n)

	// 再次替换不会累加
	require.NoError(t, repo.ReplaceAll(ctx, build(4), 3))
	n, err = repo.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)

	list, err := repo.ListBySection(ctx, s.ID)
	require.NoError(t, err)
	assert.Len(t, list, 4)
}
