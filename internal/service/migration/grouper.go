package migration

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/qafglossary/backend/internal/model"
	"github.com/qafglossary/backend/internal/pkg/pathresolver"
)

// PathResolver 源文件路径解析
type PathResolver interface {
	Resolve(recorded string) (string, bool)
}

// GroupedVariant 某一格式的首条记录
type GroupedVariant struct {
	Format       string
	LegacyID     int64
	RecordedPath string
	ResolvedPath string
}

// GroupedDocument 一个 (section, code) 桶
type GroupedDocument struct {
	Key           model.DocumentKey
	SectionNumber int
	Title         *string
	Variants      []GroupedVariant
	LegacyIDs     []int64
}

// Variant 返回指定格式的变体
func (d *GroupedDocument) Variant(format string) (GroupedVariant, bool) {
	for _, v := range d.Variants {
		if v.Format == format {
			return v, true
		}
	}
	return GroupedVariant{}, false
}

// Grouping 一次分组的结果，按首次出现的顺序排列
type Grouping struct {
	Documents []*GroupedDocument
	// Dropped 缺少或无法映射 section 的记录数
	Dropped    int
	byLegacyID map[int64]model.DocumentKey
}

// KeyOf 旧库文档 id 对应的规范文档
func (g *Grouping) KeyOf(legacyID int64) (model.DocumentKey, bool) {
	key, ok := g.byLegacyID[legacyID]
	return key, ok
}

// GroupDocuments 把每种格式一行的旧记录归并为多变体文档。
// 同一桶内每种格式只保留第一条；分组状态只存在于本次调用。
func GroupDocuments(rows []model.LegacyDocument, sectionIDs map[int]uint, resolver PathResolver) *Grouping {
	g := &Grouping{byLegacyID: make(map[int64]model.DocumentKey)}
	buckets := make(map[model.DocumentKey]*GroupedDocument)

	for _, row := range rows {
		if row.SectionNumber == nil {
			g.Dropped++
			continue
		}
		sectionID, ok := sectionIDs[*row.SectionNumber]
		if !ok {
			g.Dropped++
			continue
		}

		resolved, found := "", false
		if resolver != nil {
			resolved, found = resolver.Resolve(row.SourcePath)
		}
		key := model.DocumentKey{SectionID: sectionID, Code: documentCode(row, resolved, found)}

		bucket, ok := buckets[key]
		if !ok {
			bucket = &GroupedDocument{Key: key, SectionNumber: *row.SectionNumber}
			buckets[key] = bucket
			g.Documents = append(g.Documents, bucket)
		}
		bucket.LegacyIDs = append(bucket.LegacyIDs, row.ID)
		g.byLegacyID[row.ID] = key

		if bucket.Title == nil && row.Title != nil && strings.TrimSpace(*row.Title) != "" {
			title := strings.TrimSpace(*row.Title)
			bucket.Title = &title
		}

		format := rowFormat(row)
		if format == "" || !found {
			continue
		}
		if _, exists := bucket.Variant(format); exists {
			continue
		}
		bucket.Variants = append(bucket.Variants, GroupedVariant{
			Format:       format,
			LegacyID:     row.ID,
			RecordedPath: row.SourcePath,
			ResolvedPath: resolved,
		})
	}
	return g
}

func documentCode(row model.LegacyDocument, resolved string, found bool) string {
	if found {
		if code := pathresolver.Stem(resolved); code != "" {
			return code
		}
	}
	if code := pathresolver.Stem(strings.TrimSpace(row.SourcePath)); code != "" {
		return code
	}
	return fmt.Sprintf("section%d", *row.SectionNumber)
}

// rowFormat doc_type 无法识别时退回到文件扩展名
func rowFormat(row model.LegacyDocument) string {
	if f := model.NormalizeFormat(row.FormatHint); f != "" {
		return f
	}
	return model.NormalizeFormat(strings.TrimPrefix(filepath.Ext(row.SourcePath), "."))
}
