package repository

import (
	"context"
	"errors"
	"time"

	"github.com/qafglossary/backend/internal/model"
)

// ErrNotFound 记录不存在错误
var ErrNotFound = errors.New("record not found")

type SectionRepository interface {
	// Upsert 按 number 插入或更新，回填 ID
	Upsert(ctx context.Context, section *model.Section) error
	List(ctx context.Context) ([]model.Section, error)
	GetByNumber(ctx context.Context, number int) (*model.Section, error)
}

type TermRepository interface {
	// ReplaceAll 删除全部词条后按批次重新插入
	ReplaceAll(ctx context.Context, terms []model.Term, chunkSize int) error
	ListBySection(ctx context.Context, sectionID uint) ([]model.Term, error)
	Count(ctx context.Context) (int64, error)
}

type DocumentRepository interface {
	// Upsert 按 (section_id, code) 插入或更新标题与内容，回填 ID
	Upsert(ctx context.Context, doc *model.Document) error
	// UpsertVariant 按 (document_id, format) 插入或更新
	UpsertVariant(ctx context.Context, variant *model.DocumentVariant) error
	Get(ctx context.Context, id uint) (*model.Document, error)
	ListBySection(ctx context.Context, sectionID uint) ([]model.Document, error)
	// ListForExport 按 (section_id, code) 排序，预加载变体与关联图片
	ListForExport(ctx context.Context) ([]model.Document, error)
	KeyIndex(ctx context.Context) (map[model.DocumentKey]uint, error)
}

type AssetRepository interface {
	// Upsert 按 sha256 插入或刷新元数据，身份不变，回填 ID
	Upsert(ctx context.Context, asset *model.Asset) error
	GetBySHA256(ctx context.Context, sha256 string) (*model.Asset, error)
	// Link 建立文档与图片关联，重复关联返回 false 而非错误
	Link(ctx context.Context, documentID, assetID uint, order *int) (bool, error)
	Count(ctx context.Context) (int64, error)
}

// LegacyRepository 旧版导出库的只读访问
type LegacyRepository interface {
	Sections(ctx context.Context) ([]model.LegacySection, error)
	Terms(ctx context.Context) ([]model.LegacyTerm, error)
	Documents(ctx context.Context) ([]model.LegacyDocument, error)
	Images(ctx context.Context) ([]model.LegacyImage, error)
}

type MigrationRunRepository interface {
	Create(ctx context.Context, run *model.MigrationRun) error
	Finish(ctx context.Context, run *model.MigrationRun, status string, stats []byte, errMsg string, finishedAt time.Time) error
	Latest(ctx context.Context) (*model.MigrationRun, error)
}
