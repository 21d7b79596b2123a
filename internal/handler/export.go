package handler

import (
	"context"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/qafglossary/backend/internal/service/export"
	"k8s.io/klog/v2"
)

// Exporter 静态页面导出
type Exporter interface {
	Run(ctx context.Context) (*export.ExportReport, error)
}

type ExportHandler struct {
	exporter Exporter
	running  sync.Mutex
}

func NewExportHandler(exporter Exporter) *ExportHandler {
	return &ExportHandler{exporter: exporter}
}

// Trigger 同步执行一次导出，同一时间只允许一个导出
func (h *ExportHandler) Trigger(c *gin.Context) {
	if !h.running.TryLock() {
		c.JSON(http.StatusConflict, gin.H{"error": "export already running"})
		return
	}
	defer h.running.Unlock()

	report, err := h.exporter.Run(c.Request.Context())
	if err != nil {
		klog.Errorf("导出失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "report": report})
		return
	}
	c.JSON(http.StatusOK, report)
}
