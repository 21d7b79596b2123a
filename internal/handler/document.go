package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/qafglossary/backend/internal/repository"
	"github.com/qafglossary/backend/internal/service"
)

type DocumentHandler struct {
	service *service.DocumentService
}

// NewDocumentHandler 创建文档处理器
func NewDocumentHandler(service *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{service: service}
}

// ListSections 获取全部章节
func (h *DocumentHandler) ListSections(c *gin.Context) {
	sections, err := h.service.ListSections(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, sections)
}

// GetSection 获取章节及词条
func (h *DocumentHandler) GetSection(c *gin.Context) {
	number, err := strconv.Atoi(c.Param("number"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid section number"})
		return
	}

	section, err := h.service.GetSection(c.Request.Context(), number)
	if err != nil {
		writeLookupError(c, err, "section not found")
		return
	}
	c.JSON(http.StatusOK, section)
}

// ListBySection 获取章节下文档列表
func (h *DocumentHandler) ListBySection(c *gin.Context) {
	number, err := strconv.Atoi(c.Param("number"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid section number"})
		return
	}

	docs, err := h.service.ListDocuments(c.Request.Context(), number)
	if err != nil {
		writeLookupError(c, err, "section not found")
		return
	}
	c.JSON(http.StatusOK, docs)
}

// Get 获取单个文档详情
func (h *DocumentHandler) Get(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	doc, err := h.service.Get(c.Request.Context(), uint(id))
	if err != nil {
		writeLookupError(c, err, "document not found")
		return
	}
	c.JSON(http.StatusOK, doc)
}

// LatestRun 最近一次迁移记录
func (h *DocumentHandler) LatestRun(c *gin.Context) {
	run, err := h.service.LatestRun(c.Request.Context())
	if err != nil {
		writeLookupError(c, err, "no migration run")
		return
	}
	c.JSON(http.StatusOK, run)
}

func writeLookupError(c *gin.Context, err error, notFound string) {
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": notFound})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
