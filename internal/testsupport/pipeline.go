package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/qafglossary/backend/config"
	"gorm.io/gorm"
)

// Pipeline 迁移/导出测试用的目录、旧库与存储库
type Pipeline struct {
	Root         string
	DocsDir      string
	ExtractedDir string
	PublicDir    string
	Legacy       *LegacyExport
	Config       *config.Config
	DB           *gorm.DB
}

func NewPipeline(t testing.TB) *Pipeline {
	t.Helper()

	root := t.TempDir()
	p := &Pipeline{
		Root:         root,
		DocsDir:      filepath.Join(root, "docs"),
		ExtractedDir: filepath.Join(root, "extracted"),
		PublicDir:    filepath.Join(root, "public"),
		Legacy:       NewLegacyExport(t),
		DB:           NewStoreDB(t),
	}
	for _, dir := range []string{p.DocsDir, p.ExtractedDir, p.PublicDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}

	cfg := config.Default()
	cfg.Database.DSN = filepath.Join(root, "app.db")
	cfg.Migration.LegacyDB = p.Legacy.Path
	cfg.Migration.DocsDir = p.DocsDir
	cfg.Migration.ExtractedDir = p.ExtractedDir
	cfg.Migration.PublicDir = p.PublicDir
	cfg.Migration.Workers = 2
	p.Config = cfg
	return p
}

// ReportScenario 第 5 节中的 report.docx：两张内嵌图片，一张符号表
type ReportScenario struct {
	LegacyDocumentID int64
	FirstImage       []byte
	SecondImage      []byte
	DocxPath         string
}

// SeedReportScenario 表格数据行的符号列为空，原本与该行相邻的图片被放在表格后的段落中
func (p *Pipeline) SeedReportScenario(t testing.TB) *ReportScenario {
	t.Helper()

	s := &ReportScenario{
		FirstImage:  PNG(t, 300, 300, 11),
		SecondImage: PNG(t, 320, 240, 22),
		DocxPath:    filepath.Join(p.DocsDir, "report.docx"),
	}

	d := NewDocx()
	first := d.Media(s.FirstImage, ".png")
	second := d.Media(s.SecondImage, ".png")
	d.Heading(1, "تقرير").
		Table([][]Cell{
			{{Text: "#"}, {Text: "الرمز"}, {Text: "المعنى"}},
			{{Text: "1"}, {}, {}},
		}).
		ImageParagraph(first).
		Paragraph("ملاحظات").
		ImageParagraph(second)
	d.WriteFile(t, s.DocxPath)

	p.Legacy.AddSection(5, "X", "document")
	s.LegacyDocumentID = p.Legacy.AddDocument(Int(5), "/srv/old/qafFilesManager/assets/dep/report.docx", "تقرير", "docx")
	return s
}
