package export

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/qafglossary/backend/config"
	"github.com/qafglossary/backend/internal/eventbus"
	"github.com/qafglossary/backend/internal/model"
	"github.com/qafglossary/backend/internal/pkg/assetstore"
	"github.com/qafglossary/backend/internal/pkg/docx"
	"github.com/qafglossary/backend/internal/pkg/symboltable"
	"github.com/qafglossary/backend/internal/repository"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

// PageCaptionPrefix 带页码图片的说明前缀
const PageCaptionPrefix = "صفحة"

// ExportReport 一次导出的统计
type ExportReport struct {
	Pages         int           `json:"pages"`
	Reconverted   int           `json:"reconverted"`
	ReconvertFail int           `json:"reconvert_failed"`
	InlineFilled  int           `json:"inline_filled"`
	GalleryImages int           `json:"gallery_images"`
	Collisions    int           `json:"collisions"`
	Failed        int           `json:"failed"`
	Duration      time.Duration `json:"duration"`
}

// Page 单个文档的导出结果
type Page struct {
	DocumentID   uint
	Code         string
	Path         string
	Content      string
	Gallery      []GalleryImage
	Reconverted  bool
	ReconvertErr error
	Filled       int
}

// Service 把存储中的文档渲染为静态页面，可重复执行
type Service struct {
	cfg       *config.Config
	docs      repository.DocumentRepository
	store     *assetstore.Store
	converter *docx.Converter
	injector  *symboltable.Injector
	bus       *eventbus.PipelineEventBus
}

func NewService(cfg *config.Config, docs repository.DocumentRepository, bus *eventbus.PipelineEventBus) (*Service, error) {
	if cfg.Migration.PublicDir == "" {
		return nil, fmt.Errorf("%w: migration.public_dir", config.ErrMissingConfig)
	}
	store, err := assetstore.New(cfg.Migration.AssetsDir(), assetstore.DefaultURLPrefix)
	if err != nil {
		return nil, err
	}
	return &Service{
		cfg:       cfg,
		docs:      docs,
		store:     store,
		converter: docx.NewConverter(),
		injector:  symboltable.New(cfg.Migration.SymbolLabel),
		bus:       bus,
	}, nil
}

// Run 导出全部文档页面。同名 code 只保留排序靠后的文档（后写覆盖）。
func (s *Service) Run(ctx context.Context) (*ExportReport, error) {
	start := time.Now()
	docs, err := s.docs.ListForExport(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	report := &ExportReport{}
	targets := s.dedupeByCode(docs, report)

	workers := s.cfg.Migration.Workers
	if workers <= 0 {
		workers = 1
	}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, doc := range targets {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			page, err := s.Export(gctx, doc)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				klog.Warningf("导出页面失败，跳过: code=%s, err=%v", doc.Code, err)
				report.Failed++
				return nil
			}
			report.Pages++
			report.InlineFilled += page.Filled
			report.GalleryImages += len(page.Gallery)
			if page.Reconverted {
				report.Reconverted++
			}
			if page.ReconvertErr != nil {
				report.ReconvertFail++
			}
			return nil
		})
	}
	runErr := g.Wait()
	report.Duration = time.Since(start)

	status := model.RunStatusSucceeded
	if runErr != nil {
		status = model.RunStatusFailed
	}
	s.publish(ctx, eventbus.PipelineEvent{Type: eventbus.PipelineEventRunFinished, Stage: "export", Status: status, Duration: report.Duration})
	klog.V(6).Infof("导出结束: pages=%d, reconverted=%d, filled=%d, failed=%d, collisions=%d",
		report.Pages, report.Reconverted, report.InlineFilled, report.Failed, report.Collisions)
	return report, runErr
}

// dedupeByCode 输出文件名只取 code，冲突时保留靠后的文档
func (s *Service) dedupeByCode(docs []model.Document, report *ExportReport) []*model.Document {
	last := make(map[string]int, len(docs))
	for i := range docs {
		if prev, ok := last[docs[i].Code]; ok {
			klog.Warningf("导出文件名冲突: code=%s, 文档 %d 被文档 %d 覆盖", docs[i].Code, docs[prev].ID, docs[i].ID)
			report.Collisions++
		}
		last[docs[i].Code] = i
	}

	targets := make([]*model.Document, 0, len(last))
	for i := range docs {
		if last[docs[i].Code] == i {
			targets = append(targets, &docs[i])
		}
	}
	return targets
}

// Export 计算单个文档的页面内容并写入 generated/docs/<code>.html
func (s *Service) Export(ctx context.Context, doc *model.Document) (*Page, error) {
	page := s.Build(ctx, doc)

	data, err := renderPage(doc.DisplayTitle(), page.Content, page.Gallery)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", doc.Code, err)
	}
	page.Path = filepath.Join(s.cfg.Migration.ExportDir(), doc.Code+".html")
	if err := assetstore.WriteAtomic(page.Path, data); err != nil {
		return nil, err
	}
	klog.V(6).Infof("写入页面: %s", page.Path)
	s.publish(ctx, eventbus.PipelineEvent{Type: eventbus.PipelineEventPageExported, DocumentID: doc.ID, Code: doc.Code})
	return page, nil
}

// Build 决定页面 markup 与图库：
// 存储的 markup 没有图片或符号列有空单元格且存在 docx 变体时，从 docx 重新转换；
// 结果与存储一致时，用非 logo 图片回填符号列，未用上的进入图库。
func (s *Service) Build(ctx context.Context, doc *model.Document) *Page {
	page := &Page{DocumentID: doc.ID, Code: doc.Code}
	stored := ""
	if doc.ContentHTML != nil {
		stored = *doc.ContentHTML
	}
	content := stored

	variant := docxVariant(doc)
	if variant != nil && (!symboltable.HasImage(stored) || s.injector.HasEmptySymbolCells(stored)) {
		converted, err := s.reconvert(ctx, variant)
		if err != nil {
			klog.Warningf("重新转换 docx 失败，使用存储内容: code=%s, err=%v", doc.Code, err)
			page.ReconvertErr = err
		} else {
			content = converted
			page.Reconverted = true
		}
	}

	if content != stored {
		page.Content = content
		return page
	}

	pool := galleryPool(doc)
	images := make([]symboltable.Image, len(pool))
	for i, p := range pool {
		images[i] = symboltable.Image{URL: p.url, SHA256: p.sha256}
	}
	injected, used := s.injector.Inject(stored, images)
	page.Content = injected
	page.Filled = len(used)
	for _, p := range pool {
		if used[p.sha256] {
			continue
		}
		page.Gallery = append(page.Gallery, GalleryImage{URL: p.url, Caption: p.caption})
	}
	return page
}

func (s *Service) reconvert(ctx context.Context, variant *model.DocumentVariant) (string, error) {
	rel := strings.TrimPrefix(variant.StoredPath, "/")
	path := filepath.Join(s.cfg.Migration.PublicDir, filepath.FromSlash(rel))
	return s.converter.ConvertFile(ctx, path, func(ctx context.Context, data []byte, ext string) (string, error) {
		blob, err := s.store.Put(ctx, data, ext)
		if err != nil {
			return "", err
		}
		return blob.URL, nil
	})
}

type poolImage struct {
	url     string
	sha256  string
	caption string
}

// galleryPool 关联图片中的非 logo 部分，保持 (order, id) 顺序
func galleryPool(doc *model.Document) []poolImage {
	pool := make([]poolImage, 0, len(doc.Assets))
	for _, link := range doc.Assets {
		if link.Asset.IsLogo {
			continue
		}
		img := poolImage{url: link.Asset.StoredPath, sha256: link.Asset.SHA256}
		if link.Order != nil {
			img.caption = fmt.Sprintf("%s %d", PageCaptionPrefix, *link.Order)
		}
		pool = append(pool, img)
	}
	return pool
}

func docxVariant(doc *model.Document) *model.DocumentVariant {
	for i := range doc.Variants {
		v := &doc.Variants[i]
		if v.Format == model.FormatDOCX || strings.HasSuffix(strings.ToLower(v.StoredPath), ".docx") {
			return v
		}
	}
	return nil
}

func (s *Service) publish(ctx context.Context, event eventbus.PipelineEvent) {
	if err := s.bus.Publish(ctx, event); err != nil {
		klog.Warningf("事件处理失败: type=%s, err=%v", event.Type, err)
	}
}
