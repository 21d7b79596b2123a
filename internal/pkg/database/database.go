package database

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"github.com/qafglossary/backend/internal/model"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func InitDB(dbType, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch dbType {
	case "mysql":
		dialector = mysql.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		// 使用 github.com/glebarez/sqlite 驱动
		dialector = sqlite.Open(dsn)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(model.AllModels()...); err != nil {
		return nil, err
	}
	return db, nil
}

// OpenLegacy 以只读方式打开旧版导出的 SQLite 文件
func OpenLegacy(path string) (*gorm.DB, error) {
	dsn := fmt.Sprintf("file:%s?mode=ro", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open legacy export %s: %w", path, err)
	}
	return db, nil
}
