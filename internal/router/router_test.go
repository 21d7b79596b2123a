package router

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/qafglossary/backend/config"
	"github.com/qafglossary/backend/internal/handler"
	"github.com/qafglossary/backend/internal/pkg/metrics"
	"github.com/qafglossary/backend/internal/repository"
	"github.com/qafglossary/backend/internal/service"
	"github.com/qafglossary/backend/internal/service/export"
	"github.com/qafglossary/backend/internal/testsupport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (*gin.Engine, *config.Config) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testsupport.NewStoreDB(t)
	cfg := config.Default()
	cfg.Migration.PublicDir = t.TempDir()

	docs := repository.NewDocumentRepository(db)
	docService := service.NewDocumentService(
		repository.NewSectionRepository(db),
		repository.NewTermRepository(db),
		docs,
		repository.NewMigrationRunRepository(db),
	)
	exporter, err := export.NewService(cfg, docs, nil)
	require.NoError(t, err)

	r := Setup(cfg, handler.NewDocumentHandler(docService), handler.NewExportHandler(exporter), metrics.New().Handler())
	return r, cfg
}

func get(r http.Handler, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSetupServesGeneratedPages(t *testing.T) {
	r, cfg := newTestRouter(t)
	testsupport.WriteFile(t, filepath.Join(cfg.Migration.ExportDir(), "report.html"), []byte("<html>report</html>"))

	w := get(r, "/generated/docs/report.html", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "report")

	assert.Equal(t, http.StatusNotFound, get(r, "/generated/docs/missing.html", nil).Code)
}

func TestSetupAPIAndMetrics(t *testing.T) {
	r, _ := newTestRouter(t)

	w := get(r, "/api/sections", map[string]string{"Accept-Encoding": "gzip"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))

	w = get(r, "/api/unknown", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "not found")

	w = get(r, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "glossary_pages_exported_total")
}

func TestSetupExportTrigger(t *testing.T) {
	r, cfg := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/exports", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"pages":0`)
	assert.NoFileExists(t, filepath.Join(cfg.Migration.ExportDir(), "report.html"))
}
