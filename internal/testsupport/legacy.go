package testsupport

import (
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// 与旧版抽取脚本一致的表结构
var legacySchema = []string{
	`CREATE TABLE sections (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		section_number INTEGER UNIQUE,
		title TEXT,
		section_type TEXT
	)`,
	`CREATE TABLE terms (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source_path TEXT NOT NULL DEFAULT '',
		section_number INTEGER NOT NULL,
		section_title TEXT,
		item_number TEXT,
		term TEXT,
		description TEXT,
		abbreviation TEXT
	)`,
	`CREATE TABLE documents (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source_path TEXT NOT NULL,
		title TEXT,
		doc_type TEXT NOT NULL,
		text_content TEXT,
		section_number INTEGER
	)`,
	`CREATE TABLE images (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		document_id INTEGER NOT NULL,
		source_path TEXT NOT NULL DEFAULT '',
		image_path TEXT NOT NULL,
		page INTEGER,
		width INTEGER,
		height INTEGER
	)`,
}

// LegacyExport 用于在测试中构造旧版导出库
type LegacyExport struct {
	t    testing.TB
	Path string
	db   *gorm.DB
}

func NewLegacyExport(t testing.TB) *LegacyExport {
	t.Helper()

	path := filepath.Join(t.TempDir(), "app_data.sqlite")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open legacy export: %v", err)
	}
	for _, stmt := range legacySchema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create legacy schema: %v", err)
		}
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return &LegacyExport{t: t, Path: path, db: db}
}

func (l *LegacyExport) exec(sql string, args ...any) {
	l.t.Helper()
	if err := l.db.Exec(sql, args...).Error; err != nil {
		l.t.Fatalf("legacy insert: %v", err)
	}
}

func (l *LegacyExport) AddSection(number int, title, kind string) {
	l.exec("INSERT INTO sections (section_number, title, section_type) VALUES (?, ?, ?)", number, title, kind)
}

func (l *LegacyExport) AddTerm(sectionNumber int, itemNumber, term, description, abbreviation string) {
	l.exec("INSERT INTO terms (section_number, item_number, term, description, abbreviation) VALUES (?, ?, ?, ?, ?)",
		sectionNumber, itemNumber, term, description, abbreviation)
}

// AddDocument 返回旧库中的文档 id；sectionNumber 为 nil 时写入 NULL
func (l *LegacyExport) AddDocument(sectionNumber *int, sourcePath, title, docType string) int64 {
	l.t.Helper()
	l.exec("INSERT INTO documents (source_path, title, doc_type, text_content, section_number) VALUES (?, ?, ?, '', ?)",
		sourcePath, title, docType, sectionNumber)
	var id int64
	if err := l.db.Raw("SELECT MAX(id) FROM documents").Scan(&id).Error; err != nil {
		l.t.Fatalf("legacy document id: %v", err)
	}
	return id
}

func (l *LegacyExport) AddImage(documentID int64, imagePath string, page, width, height *int) {
	l.exec("INSERT INTO images (document_id, image_path, page, width, height) VALUES (?, ?, ?, ?, ?)",
		documentID, imagePath, page, width, height)
}

// Int 便于构造可空整数
func Int(v int) *int {
	return &v
}
