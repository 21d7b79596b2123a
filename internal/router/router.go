package router

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/qafglossary/backend/config"
	"github.com/qafglossary/backend/internal/handler"
)

func Setup(
	cfg *config.Config,
	docHandler *handler.DocumentHandler,
	exportHandler *handler.ExportHandler,
	metricsHandler http.Handler,
) *gin.Engine {
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type"},
		ExposeHeaders: []string{"Content-Length"},
	}))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedExtensions([]string{".png", ".jpg", ".gif", ".webp", ".pdf", ".docx", ".doc"})))

	api := r.Group("/api")
	{
		sections := api.Group("/sections")
		{
			sections.GET("", docHandler.ListSections)
			sections.GET("/:number", docHandler.GetSection)
			sections.GET("/:number/documents", docHandler.ListBySection)
		}

		api.GET("/documents/:id", docHandler.Get)
		api.GET("/migrations/latest", docHandler.LatestRun)
		api.POST("/exports", exportHandler.Trigger)
	}

	if metricsHandler != nil {
		r.GET("/metrics", gin.WrapH(metricsHandler))
	}

	// 迁移与导出产物
	if cfg.Migration.PublicDir != "" {
		r.Static("/uploads", filepath.Join(cfg.Migration.PublicDir, "uploads"))
		r.Static("/generated", filepath.Join(cfg.Migration.PublicDir, "generated"))
	}

	r.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api") {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.Status(http.StatusNotFound)
	})

	return r
}
