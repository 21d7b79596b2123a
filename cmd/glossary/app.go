package main

import (
	"fmt"

	"github.com/qafglossary/backend/config"
	"github.com/qafglossary/backend/internal/eventbus"
	"github.com/qafglossary/backend/internal/pkg/database"
	"github.com/qafglossary/backend/internal/pkg/metrics"
	"github.com/qafglossary/backend/internal/repository"
	"github.com/qafglossary/backend/internal/service/export"
	"github.com/qafglossary/backend/internal/subscriber"
	"gorm.io/gorm"
	"k8s.io/klog/v2"
)

// app 命令共用的存储、事件总线与指标
type app struct {
	cfg     *config.Config
	db      *gorm.DB
	bus     *eventbus.PipelineEventBus
	metrics *metrics.Metrics
}

func newApp(cfg *config.Config) (*app, error) {
	db, err := database.InitDB(cfg.Database.Type, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	klog.V(6).Infof("数据库已连接: type=%s", cfg.Database.Type)

	bus := eventbus.NewPipelineEventBus()
	m := metrics.New()
	subscriber.NewPipelineEventSubscriber(m).Register(bus)
	return &app{cfg: cfg, db: db, bus: bus, metrics: m}, nil
}

func (a *app) close() {
	if sqlDB, err := a.db.DB(); err == nil {
		sqlDB.Close()
	}
}

func (a *app) exportService() (*export.Service, error) {
	return export.NewService(a.cfg, repository.NewDocumentRepository(a.db), a.bus)
}
