package model

import (
	"time"

	"gorm.io/datatypes"
)

// Section 类型
const (
	SectionKindTerms    = "terms"
	SectionKindDocument = "document"
)

// 文档变体格式
const (
	FormatPDF  = "pdf"
	FormatDOCX = "docx"
	FormatDOC  = "doc"
)

type Section struct {
	ID        uint       `json:"id" gorm:"primaryKey"`
	Number    int        `json:"number" gorm:"uniqueIndex;not null"`
	Title     string     `json:"title" gorm:"size:500;not null"`
	Kind      string     `json:"kind" gorm:"size:20;default:terms"` // terms, document
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	Terms     []Term     `json:"terms,omitempty" gorm:"foreignKey:SectionID;constraint:OnDelete:CASCADE"`
	Documents []Document `json:"documents,omitempty" gorm:"foreignKey:SectionID;constraint:OnDelete:CASCADE"`
}

type Term struct {
	ID           uint    `json:"id" gorm:"primaryKey"`
	SectionID    uint    `json:"section_id" gorm:"index;not null"`
	ItemNumber   *string `json:"item_number" gorm:"size:50"`
	Text         string  `json:"term" gorm:"column:term;type:text;not null"`
	Description  *string `json:"description" gorm:"type:text"`
	Abbreviation *string `json:"abbreviation" gorm:"size:255"`
}

// Document 规范化后的文档，(SectionID, Code) 唯一
type Document struct {
	ID          uint              `json:"id" gorm:"primaryKey"`
	SectionID   uint              `json:"section_id" gorm:"uniqueIndex:idx_documents_section_code;not null"`
	Code        string            `json:"code" gorm:"size:255;uniqueIndex:idx_documents_section_code;not null"`
	Title       *string           `json:"title" gorm:"size:500"`
	ContentHTML *string           `json:"content_html,omitempty" gorm:"type:text"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	Variants    []DocumentVariant `json:"variants,omitempty" gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE"`
	Assets      []DocumentAsset   `json:"assets,omitempty" gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE"`
}

// DisplayTitle 标题为空时退回到 code
func (d *Document) DisplayTitle() string {
	if d.Title != nil && *d.Title != "" {
		return *d.Title
	}
	return d.Code
}

// DocumentVariant 同一文档的某种文件格式，每个文档每种格式至多一个
type DocumentVariant struct {
	ID         uint   `json:"id" gorm:"primaryKey"`
	DocumentID uint   `json:"document_id" gorm:"uniqueIndex:idx_variants_document_format;not null"`
	Format     string `json:"format" gorm:"size:10;uniqueIndex:idx_variants_document_format;not null"` // pdf, docx, doc
	StoredPath string `json:"source_path" gorm:"column:source_path;size:500;not null"`
	MimeType   string `json:"mime_type" gorm:"size:255"`
}

// Asset 以内容哈希为身份的图片资源
type Asset struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	Kind       string    `json:"kind" gorm:"size:20;default:image"`
	SHA256     string    `json:"sha256" gorm:"column:sha256;size:64;uniqueIndex;not null"`
	StoredPath string    `json:"path" gorm:"column:path;size:500;not null"`
	Width      *int      `json:"width"`
	Height     *int      `json:"height"`
	IsLogo     bool      `json:"is_logo" gorm:"default:false"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// DocumentAsset 文档与图片的关联，(DocumentID, AssetID) 唯一
type DocumentAsset struct {
	ID         uint  `json:"id" gorm:"primaryKey"`
	DocumentID uint  `json:"document_id" gorm:"uniqueIndex:idx_document_assets_pair;not null"`
	AssetID    uint  `json:"asset_id" gorm:"uniqueIndex:idx_document_assets_pair;not null"`
	Order      *int  `json:"order" gorm:"column:order"`
	Asset      Asset `json:"asset" gorm:"foreignKey:AssetID"`
}

// 迁移运行状态
const (
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
)

// MigrationRun 每次迁移运行的审计记录
type MigrationRun struct {
	ID         uint           `json:"id" gorm:"primaryKey"`
	RunID      string         `json:"run_id" gorm:"size:64;uniqueIndex"` // UUID
	Status     string         `json:"status" gorm:"size:20;default:running"`
	ErrorMsg   string         `json:"error_msg" gorm:"size:2000"`
	Stats      datatypes.JSON `json:"stats"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt *time.Time     `json:"finished_at"`
}

// AllModels AutoMigrate 使用的模型列表
func AllModels() []any {
	return []any{
		&Section{},
		&Term{},
		&Document{},
		&DocumentVariant{},
		&Asset{},
		&DocumentAsset{},
		&MigrationRun{},
	}
}
