package migration

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/qafglossary/backend/config"
	"github.com/qafglossary/backend/internal/eventbus"
	"github.com/qafglossary/backend/internal/model"
	"github.com/qafglossary/backend/internal/pkg/database"
	"github.com/qafglossary/backend/internal/repository"
	"github.com/qafglossary/backend/internal/testsupport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, p *testsupport.Pipeline) (*Service, *eventbus.PipelineEventBus) {
	t.Helper()
	legacyDB, err := database.OpenLegacy(p.Config.Migration.LegacyDB)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := legacyDB.DB(); err == nil {
			sqlDB.Close()
		}
	})

	bus := eventbus.NewPipelineEventBus()
	svc, err := NewService(p.Config, Repositories{
		Legacy:    repository.NewLegacyRepository(legacyDB),
		Sections:  repository.NewSectionRepository(p.DB),
		Terms:     repository.NewTermRepository(p.DB),
		Documents: repository.NewDocumentRepository(p.DB),
		Assets:    repository.NewAssetRepository(p.DB),
		Runs:      repository.NewMigrationRunRepository(p.DB),
	}, bus)
	require.NoError(t, err)
	return svc, bus
}

func count(t *testing.T, p *testsupport.Pipeline, m any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, p.DB.Model(m).Count(&n).Error)
	return n
}

func assetFiles(t *testing.T, p *testsupport.Pipeline) []string {
	t.Helper()
	entries, err := os.ReadDir(p.Config.Migration.AssetsDir())
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names
}

func onlyDocument(t *testing.T, p *testsupport.Pipeline) *model.Document {
	t.Helper()
	docs, err := repository.NewDocumentRepository(p.DB).ListForExport(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	return &docs[0]
}

func TestRunImportsReportScenario(t *testing.T) {
	p := testsupport.NewPipeline(t)
	p.SeedReportScenario(t)
	p.Legacy.AddSection(1, "", "terms")
	p.Legacy.AddTerm(1, "1", "مصطلح", "وصف", "م")
	p.Legacy.AddTerm(1, "2", "آخر", "", "")
	p.Legacy.AddTerm(99, "3", "يتيم", "", "")

	svc, bus := newTestService(t, p)
	var events []eventbus.PipelineEventType
	bus.Subscribe(eventbus.PipelineEventRunFinished, func(_ context.Context, e eventbus.PipelineEvent) error {
		events = append(events, e.Type)
		assert.Equal(t, model.RunStatusSucceeded, e.Status)
		return nil
	})

	report, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Sections)
	assert.Equal(t, 2, report.Terms)
	assert.Equal(t, 1, report.TermsSkipped)
	assert.Equal(t, 1, report.Documents)
	assert.Equal(t, 1, report.Variants)
	assert.Equal(t, 1, report.Converted)
	assert.Equal(t, 2, report.AssetsWritten)
	assert.Equal(t, 2, report.Links)
	assert.Len(t, events, 1)

	section, err := repository.NewSectionRepository(p.DB).GetByNumber(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "1", section.Title, "空标题回退为编号")

	doc := onlyDocument(t, p)
	assert.Equal(t, "report", doc.Code)
	assert.Equal(t, "تقرير", doc.DisplayTitle())
	require.Len(t, doc.Variants, 1)
	assert.Equal(t, model.FormatDOCX, doc.Variants[0].Format)
	assert.Equal(t, "/uploads/docs/report.docx", doc.Variants[0].StoredPath)
	assert.FileExists(t, filepath.Join(p.PublicDir, "uploads", "docs", "report.docx"))
	require.Len(t, doc.Assets, 2)
	for _, link := range doc.Assets {
		assert.Nil(t, link.Order)
		assert.False(t, link.Asset.IsLogo)
	}
	require.NotNil(t, doc.ContentHTML)
	assert.Equal(t, 2, strings.Count(*doc.ContentHTML, "<img"))
	assert.Contains(t, *doc.ContentHTML, "<table>")

	run, err := repository.NewMigrationRunRepository(p.DB).Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusSucceeded, run.Status)
	assert.Equal(t, report.RunID, run.RunID)
	assert.Contains(t, string(run.Stats), `"documents":1`)
	assert.NotNil(t, run.FinishedAt)
}

func TestRunIsIdempotent(t *testing.T) {
	p := testsupport.NewPipeline(t)
	p.SeedReportScenario(t)
	p.Legacy.AddSection(1, "Terms", "terms")
	p.Legacy.AddTerm(1, "1", "مصطلح", "", "")
	docID := p.Legacy.AddDocument(testsupport.Int(1), "/old/glossary.pdf", "", "pdf")
	testsupport.WriteFile(t, filepath.Join(p.DocsDir, "glossary.pdf"), []byte("%PDF-1.4 test"))
	testsupport.WriteFile(t, filepath.Join(p.ExtractedDir, "glossary", "page1.png"), testsupport.PNG(t, 400, 400, 5))
	p.Legacy.AddImage(docID, "/home/u/data/extracted/glossary/page1.png", testsupport.Int(1), nil, nil)

	svc, _ := newTestService(t, p)
	ctx := context.Background()

	first, err := svc.Run(ctx)
	require.NoError(t, err)
	filesBefore := assetFiles(t, p)
	before := map[string]int64{
		"sections": count(t, p, &model.Section{}),
		"terms":    count(t, p, &model.Term{}),
		"docs":     count(t, p, &model.Document{}),
		"variants": count(t, p, &model.DocumentVariant{}),
		"assets":   count(t, p, &model.Asset{}),
		"links":    count(t, p, &model.DocumentAsset{}),
	}
	index, err := repository.NewDocumentRepository(p.DB).KeyIndex(ctx)
	require.NoError(t, err)

	second, err := svc.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, filesBefore, assetFiles(t, p), "第二次运行不应新增资源文件")
	after := map[string]int64{
		"sections": count(t, p, &model.Section{}),
		"terms":    count(t, p, &model.Term{}),
		"docs":     count(t, p, &model.Document{}),
		"variants": count(t, p, &model.DocumentVariant{}),
		"assets":   count(t, p, &model.Asset{}),
		"links":    count(t, p, &model.DocumentAsset{}),
	}
	assert.Equal(t, before, after)
	indexAfter, err := repository.NewDocumentRepository(p.DB).KeyIndex(ctx)
	require.NoError(t, err)
	assert.Equal(t, index, indexAfter)

	assert.Equal(t, 3, first.AssetsWritten)
	assert.Equal(t, 0, second.AssetsWritten)
	assert.Equal(t, 3, second.AssetsReused)
	assert.Equal(t, 0, second.Links)
	assert.Equal(t, 3, second.DuplicateLinks)
	assert.EqualValues(t, 2, count(t, p, &model.MigrationRun{}))
}

func TestRunDedupsIdenticalImageBytes(t *testing.T) {
	p := testsupport.NewPipeline(t)
	p.Legacy.AddSection(3, "S", "document")
	docID := p.Legacy.AddDocument(testsupport.Int(3), "/old/atlas.pdf", "Atlas", "pdf")
	testsupport.WriteFile(t, filepath.Join(p.DocsDir, "atlas.pdf"), []byte("%PDF"))

	same := testsupport.PNG(t, 250, 250, 1)
	testsupport.WriteFile(t, filepath.Join(p.ExtractedDir, "a", "p1.png"), same)
	testsupport.WriteFile(t, filepath.Join(p.ExtractedDir, "b", "p2.png"), same)
	p.Legacy.AddImage(docID, "/x/data/extracted/a/p1.png", testsupport.Int(1), nil, nil)
	p.Legacy.AddImage(docID, "/x/data/extracted/b/p2.png", testsupport.Int(2), nil, nil)

	svc, _ := newTestService(t, p)
	report, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.EqualValues(t, 1, count(t, p, &model.Asset{}))
	assert.Len(t, assetFiles(t, p), 1)
	assert.Equal(t, 1, report.Links)
	assert.Equal(t, 1, report.DuplicateLinks)

	doc := onlyDocument(t, p)
	require.Len(t, doc.Assets, 1)
	require.NotNil(t, doc.Assets[0].Order)
	assert.Equal(t, 1, *doc.Assets[0].Order)
}

func TestRunGroupsFormatsIntoVariants(t *testing.T) {
	p := testsupport.NewPipeline(t)
	p.Legacy.AddSection(2, "S", "document")
	testsupport.WriteFile(t, filepath.Join(p.DocsDir, "guide.pdf"), []byte("%PDF"))
	testsupport.NewDocx().Paragraph("first").WriteFile(t, filepath.Join(p.DocsDir, "guide.docx"))
	testsupport.NewDocx().Paragraph("second").WriteFile(t, filepath.Join(p.DocsDir, "other", "guide.docx"))
	p.Legacy.AddDocument(testsupport.Int(2), "/srv/qafFilesManager/assets/dep/guide.pdf", "Guide", "pdf")
	p.Legacy.AddDocument(testsupport.Int(2), "/srv/qafFilesManager/assets/dep/guide.docx", "", "docx")
	p.Legacy.AddDocument(testsupport.Int(2), "/srv/qafFilesManager/assets/dep/other/guide.docx", "", "docx")

	svc, _ := newTestService(t, p)
	report, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Documents)
	assert.Equal(t, 2, report.Variants)
	assert.Equal(t, 1, report.Converted)

	doc := onlyDocument(t, p)
	require.Len(t, doc.Variants, 2)
	require.NotNil(t, doc.ContentHTML)
	assert.Equal(t, "<p>first</p>", *doc.ContentHTML)
}

func TestRunRecoversFromConversionFailureAndBadRecords(t *testing.T) {
	p := testsupport.NewPipeline(t)
	p.Legacy.AddSection(4, "S", "document")
	testsupport.WriteFile(t, filepath.Join(p.DocsDir, "broken.docx"), []byte("not a zip"))
	docID := p.Legacy.AddDocument(testsupport.Int(4), "/old/broken.docx", "Broken", "docx")
	orphan := p.Legacy.AddDocument(nil, "/old/orphan.pdf", "", "pdf")
	p.Legacy.AddImage(docID, "/old/data/extracted/missing.png", nil, nil, nil)
	p.Legacy.AddImage(orphan, "/old/data/extracted/any.png", nil, nil, nil)

	svc, _ := newTestService(t, p)
	report, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.ConversionFailed)
	assert.Equal(t, 1, report.DocumentsDropped)
	assert.Equal(t, 2, report.ImagesSkipped)

	doc := onlyDocument(t, p)
	assert.Nil(t, doc.ContentHTML)
	require.Len(t, doc.Variants, 1, "转换失败不影响变体保存")
}

func TestRunRecordDimensionsOverrideProbe(t *testing.T) {
	p := testsupport.NewPipeline(t)
	p.Legacy.AddSection(6, "S", "document")
	docID := p.Legacy.AddDocument(testsupport.Int(6), "/old/seal.pdf", "", "pdf")
	testsupport.WriteFile(t, filepath.Join(p.DocsDir, "seal.pdf"), []byte("%PDF"))
	testsupport.WriteFile(t, filepath.Join(p.ExtractedDir, "seal.png"), testsupport.PNG(t, 300, 300, 2))
	testsupport.WriteFile(t, filepath.Join(p.ExtractedDir, "small.png"), testsupport.PNG(t, 90, 60, 3))
	p.Legacy.AddImage(docID, "/old/data/extracted/seal.png", testsupport.Int(3), testsupport.Int(120), testsupport.Int(80))
	p.Legacy.AddImage(docID, "/old/data/extracted/small.png", testsupport.Int(4), nil, nil)

	svc, _ := newTestService(t, p)
	_, err := svc.Run(context.Background())
	require.NoError(t, err)

	doc := onlyDocument(t, p)
	require.Len(t, doc.Assets, 2)
	assert.Equal(t, 3, *doc.Assets[0].Order)
	assert.Equal(t, 120, *doc.Assets[0].Asset.Width)
	assert.True(t, doc.Assets[0].Asset.IsLogo)
	assert.Equal(t, 90, *doc.Assets[1].Asset.Width)
	assert.True(t, doc.Assets[1].Asset.IsLogo)
}

func TestRunMissingConfigAbortsBeforeWrites(t *testing.T) {
	p := testsupport.NewPipeline(t)
	p.SeedReportScenario(t)
	svc, _ := newTestService(t, p)

	p.Config.Migration.ExtractedDir = ""
	_, err := svc.Run(context.Background())
	require.ErrorIs(t, err, config.ErrMissingConfig)
	assert.Contains(t, err.Error(), "migration.extracted_dir")

	assert.EqualValues(t, 0, count(t, p, &model.MigrationRun{}))
	assert.EqualValues(t, 0, count(t, p, &model.Section{}))
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	p := testsupport.NewPipeline(t)
	p.SeedReportScenario(t)
	svc, _ := newTestService(t, p)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.Run(ctx)
	require.Error(t, err)
}
