package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ErrMissingConfig 必填配置缺失
var ErrMissingConfig = errors.New("missing required config")

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Migration MigrationConfig `yaml:"migration"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
	Mode string `yaml:"mode"` // debug, release
}

type DatabaseConfig struct {
	Type string `yaml:"type"` // sqlite, mysql, postgres
	DSN  string `yaml:"dsn"`
}

// MigrationConfig 旧库迁移与导出相关配置
type MigrationConfig struct {
	LegacyDB     string `yaml:"legacy_db"`     // 旧版导出的 SQLite 文件
	DocsDir      string `yaml:"docs_dir"`      // 源文档目录（pdf/doc/docx）
	ExtractedDir string `yaml:"extracted_dir"` // 旧版抽取图片目录
	PublicDir    string `yaml:"public_dir"`    // 站点 public 目录，uploads/ 与 generated/ 写在其下

	ExtractedMarker string `yaml:"extracted_marker"`
	DocsMarker      string `yaml:"docs_marker"`

	Workers       int    `yaml:"workers"`
	TermChunkSize int    `yaml:"term_chunk_size"`
	LogoMaxPixels int    `yaml:"logo_max_pixels"`
	SymbolLabel   string `yaml:"symbol_label"`
}

// AssetsDir 内容寻址的图片目录
func (m MigrationConfig) AssetsDir() string {
	return filepath.Join(m.PublicDir, "uploads", "assets")
}

// DocumentsDir 文档变体目录
func (m MigrationConfig) DocumentsDir() string {
	return filepath.Join(m.PublicDir, "uploads", "docs")
}

// ExportDir 静态导出页面目录
func (m MigrationConfig) ExportDir() string {
	return filepath.Join(m.PublicDir, "generated", "docs")
}

// Default 返回带默认值的配置
func Default() *Config {
	sep := string(filepath.Separator)
	return &Config{
		Server: ServerConfig{
			Port: "8080",
			Mode: "debug",
		},
		Database: DatabaseConfig{
			Type: "sqlite",
			DSN:  "./data/app.db",
		},
		Migration: MigrationConfig{
			ExtractedMarker: sep + filepath.Join("data", "extracted") + sep,
			DocsMarker:      sep + filepath.Join("qafFilesManager", "assets", "dep") + sep,
			Workers:         4,
			TermChunkSize:   500,
			LogoMaxPixels:   200,
			SymbolLabel:     "الرمز",
		},
	}
}

// Load 读取配置文件；文件不存在时使用默认值，环境变量优先级高于配置文件
func Load(path string) (*Config, error) {
	config := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	applyEnv(config)
	return config, nil
}

func applyEnv(config *Config) {
	// 数据库环境变量
	if dbType := os.Getenv("DB_TYPE"); dbType != "" {
		config.Database.Type = dbType
	}
	if dbDSN := os.Getenv("DB_DSN"); dbDSN != "" {
		config.Database.DSN = dbDSN
	}

	// 迁移输入输出目录
	if legacy := os.Getenv("LEGACY_DB"); legacy != "" {
		config.Migration.LegacyDB = legacy
	}
	if docsDir := os.Getenv("DOCS_DIR"); docsDir != "" {
		config.Migration.DocsDir = docsDir
	}
	if extractedDir := os.Getenv("EXTRACTED_DIR"); extractedDir != "" {
		config.Migration.ExtractedDir = extractedDir
	}
	if publicDir := os.Getenv("PUBLIC_DIR"); publicDir != "" {
		config.Migration.PublicDir = publicDir
	}
	if workers := os.Getenv("MIGRATION_WORKERS"); workers != "" {
		if n, err := strconv.Atoi(workers); err == nil && n > 0 {
			config.Migration.Workers = n
		}
	}
	if port := os.Getenv("PORT"); port != "" {
		config.Server.Port = port
	}
}

// Validate 检查迁移必填项，错误信息中带上缺失的配置键
func (c *Config) Validate() error {
	required := []struct {
		key   string
		value string
	}{
		{"database.dsn", c.Database.DSN},
		{"migration.legacy_db", c.Migration.LegacyDB},
		{"migration.docs_dir", c.Migration.DocsDir},
		{"migration.extracted_dir", c.Migration.ExtractedDir},
		{"migration.public_dir", c.Migration.PublicDir},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("%w: %s", ErrMissingConfig, r.key)
		}
	}

	if _, err := os.Stat(c.Migration.LegacyDB); err != nil {
		return fmt.Errorf("migration.legacy_db not found: %s: %w", c.Migration.LegacyDB, err)
	}
	if info, err := os.Stat(c.Migration.DocsDir); err != nil || !info.IsDir() {
		return fmt.Errorf("migration.docs_dir not found: %s", c.Migration.DocsDir)
	}

	if c.Migration.Workers <= 0 {
		c.Migration.Workers = 1
	}
	if c.Migration.TermChunkSize <= 0 {
		c.Migration.TermChunkSize = 500
	}
	return nil
}

func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
