package testsupport

import (
	"path/filepath"
	"testing"

	"github.com/qafglossary/backend/internal/pkg/database"
	"gorm.io/gorm"
)

// NewStoreDB 在临时目录中创建并迁移一个 SQLite 存储库
func NewStoreDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := database.InitDB("sqlite", filepath.Join(t.TempDir(), "app.db"))
	if err != nil {
		t.Fatalf("init store db: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}
