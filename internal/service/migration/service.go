package migration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/qafglossary/backend/config"
	"github.com/qafglossary/backend/internal/eventbus"
	"github.com/qafglossary/backend/internal/model"
	"github.com/qafglossary/backend/internal/pkg/assetstore"
	"github.com/qafglossary/backend/internal/pkg/docx"
	"github.com/qafglossary/backend/internal/pkg/pathresolver"
	"github.com/qafglossary/backend/internal/repository"
	"github.com/qafglossary/backend/internal/service/statemachine"
	"k8s.io/klog/v2"
)

// DocumentsURLPrefix 文档变体的公开访问前缀
const DocumentsURLPrefix = "/uploads/docs"

// Repositories 迁移用到的仓储
type Repositories struct {
	Legacy    repository.LegacyRepository
	Sections  repository.SectionRepository
	Terms     repository.TermRepository
	Documents repository.DocumentRepository
	Assets    repository.AssetRepository
	Runs      repository.MigrationRunRepository
}

// Report 一次迁移的统计
type Report struct {
	RunID            string        `json:"run_id"`
	Sections         int           `json:"sections"`
	Terms            int           `json:"terms"`
	TermsSkipped     int           `json:"terms_skipped"`
	Documents        int           `json:"documents"`
	DocumentsDropped int           `json:"documents_dropped"`
	Variants         int           `json:"variants"`
	VariantsSkipped  int           `json:"variants_skipped"`
	Converted        int           `json:"converted"`
	ConversionFailed int           `json:"conversion_failed"`
	Images           int           `json:"images"`
	ImagesSkipped    int           `json:"images_skipped"`
	AssetsWritten    int           `json:"assets_written"`
	AssetsReused     int           `json:"assets_reused"`
	Links            int           `json:"links"`
	DuplicateLinks   int           `json:"duplicate_links"`
	Duration         time.Duration `json:"duration"`
}

// Service 旧库到新存储的迁移。
// 步骤严格有序；只有 docx 转换在协程池上并行，所有数据库写入都在调用 Run 的协程上串行执行。
type Service struct {
	cfg       *config.Config
	repos     Repositories
	resolver  *pathresolver.Resolver
	store     *assetstore.Store
	converter *docx.Converter
	states    *statemachine.RunStateMachine
	bus       *eventbus.PipelineEventBus
}

func NewService(cfg *config.Config, repos Repositories, bus *eventbus.PipelineEventBus) (*Service, error) {
	store, err := assetstore.New(cfg.Migration.AssetsDir(), assetstore.DefaultURLPrefix)
	if err != nil {
		return nil, err
	}
	return &Service{
		cfg:   cfg,
		repos: repos,
		resolver: &pathresolver.Resolver{
			ExtractedRoot:   cfg.Migration.ExtractedDir,
			DocsRoot:        cfg.Migration.DocsDir,
			ExtractedMarker: cfg.Migration.ExtractedMarker,
			DocsMarker:      cfg.Migration.DocsMarker,
		},
		store:     store,
		converter: docx.NewConverter(),
		states:    statemachine.NewRunStateMachine(),
		bus:       bus,
	}, nil
}

// Run 执行完整迁移并记录一条 MigrationRun
func (s *Service) Run(ctx context.Context) (*Report, error) {
	if err := s.cfg.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	report := &Report{RunID: uuid.NewString()}
	run := &model.MigrationRun{RunID: report.RunID, Status: model.RunStatusRunning, StartedAt: start}
	if err := s.repos.Runs.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("create migration run: %w", err)
	}
	s.publish(ctx, eventbus.PipelineEvent{Type: eventbus.PipelineEventRunStarted, RunID: report.RunID, Stage: "migrate"})
	klog.V(6).Infof("迁移开始: runID=%s, legacy=%s", report.RunID, s.cfg.Migration.LegacyDB)

	runErr := s.run(ctx, report)
	report.Duration = time.Since(start)

	status, errMsg := model.RunStatusSucceeded, ""
	if runErr != nil {
		status, errMsg = model.RunStatusFailed, runErr.Error()
		klog.Errorf("迁移失败: runID=%s, err=%v", report.RunID, runErr)
	}
	stats, err := json.Marshal(report)
	if err != nil {
		stats = []byte("{}")
	}
	if err := s.states.Transition(run.Status, status, run.RunID); err != nil {
		klog.Warningf("迁移状态异常: %v", err)
	} else if err := s.repos.Runs.Finish(context.WithoutCancel(ctx), run, status, stats, errMsg, time.Now()); err != nil {
		// 取消后仍要写回运行结果
		klog.Warningf("记录迁移结果失败: runID=%s, err=%v", report.RunID, err)
	}
	s.publish(ctx, eventbus.PipelineEvent{
		Type:     eventbus.PipelineEventRunFinished,
		RunID:    report.RunID,
		Stage:    "migrate",
		Status:   status,
		Duration: report.Duration,
	})
	klog.V(6).Infof("迁移结束: runID=%s, status=%s, documents=%d, assets=%d/%d, links=%d",
		report.RunID, status, report.Documents, report.AssetsWritten, report.AssetsReused, report.Links)
	return report, runErr
}

func (s *Service) run(ctx context.Context, report *Report) error {
	sectionIDs, err := s.importSections(ctx, report)
	if err != nil {
		return err
	}
	if err := s.importTerms(ctx, sectionIDs, report); err != nil {
		return err
	}
	grouping, docIDs, err := s.importDocuments(ctx, sectionIDs, report)
	if err != nil {
		return err
	}
	return s.importImages(ctx, grouping, docIDs, report)
}

func (s *Service) importSections(ctx context.Context, report *Report) (map[int]uint, error) {
	rows, err := s.repos.Legacy.Sections(ctx)
	if err != nil {
		return nil, fmt.Errorf("read legacy sections: %w", err)
	}

	ids := make(map[int]uint, len(rows))
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		title := strconv.Itoa(row.Number)
		if row.Title != nil && strings.TrimSpace(*row.Title) != "" {
			title = strings.TrimSpace(*row.Title)
		}
		section := &model.Section{
			Number: row.Number,
			Title:  title,
			Kind:   model.NormalizeSectionKind(row.Kind),
		}
		if err := s.repos.Sections.Upsert(ctx, section); err != nil {
			return nil, fmt.Errorf("upsert section %d: %w", row.Number, err)
		}
		ids[row.Number] = section.ID
	}
	report.Sections = len(ids)
	klog.V(6).Infof("迁移: sections=%d", len(ids))
	return ids, nil
}

func (s *Service) importTerms(ctx context.Context, sectionIDs map[int]uint, report *Report) error {
	rows, err := s.repos.Legacy.Terms(ctx)
	if err != nil {
		return fmt.Errorf("read legacy terms: %w", err)
	}

	terms := make([]model.Term, 0, len(rows))
	for _, row := range rows {
		sectionID, ok := sectionIDs[row.SectionNumber]
		if !ok {
			report.TermsSkipped++
			s.skip(ctx, "terms", fmt.Sprintf("unknown section %d", row.SectionNumber))
			continue
		}
		text := ""
		if row.Term != nil {
			text = strings.TrimSpace(*row.Term)
		}
		terms = append(terms, model.Term{
			SectionID:    sectionID,
			ItemNumber:   row.ItemNumber,
			Text:         text,
			Description:  row.Description,
			Abbreviation: row.Abbreviation,
		})
	}

	if err := s.repos.Terms.ReplaceAll(ctx, terms, s.cfg.Migration.TermChunkSize); err != nil {
		return fmt.Errorf("replace terms: %w", err)
	}
	report.Terms = len(terms)
	klog.V(6).Infof("迁移: terms=%d, skipped=%d", len(terms), report.TermsSkipped)
	return nil
}

func (s *Service) importDocuments(ctx context.Context, sectionIDs map[int]uint, report *Report) (*Grouping, map[model.DocumentKey]uint, error) {
	rows, err := s.repos.Legacy.Documents(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("read legacy documents: %w", err)
	}

	grouping := GroupDocuments(rows, sectionIDs, s.resolver)
	report.DocumentsDropped = grouping.Dropped

	plans, err := s.convertAll(ctx, grouping, report)
	if err != nil {
		return nil, nil, err
	}

	docIDs := make(map[model.DocumentKey]uint, len(grouping.Documents))
	for i, gd := range grouping.Documents {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		doc := &model.Document{SectionID: gd.Key.SectionID, Code: gd.Key.Code, Title: gd.Title}
		plan := plans[i]
		if plan != nil && plan.err == nil {
			content := plan.html
			doc.ContentHTML = &content
		}
		if err := s.repos.Documents.Upsert(ctx, doc); err != nil {
			klog.Warningf("保存文档失败，跳过: code=%s, err=%v", gd.Key.Code, err)
			s.skip(ctx, "documents", err.Error())
			continue
		}
		docIDs[gd.Key] = doc.ID
		report.Documents++
		s.publish(ctx, eventbus.PipelineEvent{Type: eventbus.PipelineEventDocumentPersisted, DocumentID: doc.ID, Code: doc.Code})

		for _, v := range gd.Variants {
			if err := s.persistVariant(ctx, doc, v); err != nil {
				klog.Warningf("保存文档变体失败，跳过: code=%s, format=%s, err=%v", doc.Code, v.Format, err)
				report.VariantsSkipped++
				s.skip(ctx, "variants", err.Error())
				continue
			}
			report.Variants++
		}

		if plan != nil && plan.err == nil {
			for _, blob := range plan.blobs {
				s.storeAndLink(ctx, doc.ID, blob, nil, nil, nil, report)
			}
		}
	}
	klog.V(6).Infof("迁移: documents=%d, variants=%d, dropped=%d", report.Documents, report.Variants, report.DocumentsDropped)
	return grouping, docIDs, nil
}

// persistVariant 复制变体文件到 uploads/docs（已存在则跳过）并写入记录
func (s *Service) persistVariant(ctx context.Context, doc *model.Document, v GroupedVariant) error {
	name := doc.Code + "." + v.Format
	dst := filepath.Join(s.cfg.Migration.DocumentsDir(), name)
	if _, err := os.Stat(dst); errors.Is(err, os.ErrNotExist) {
		data, err := os.ReadFile(v.ResolvedPath)
		if err != nil {
			return fmt.Errorf("read variant %s: %w", v.ResolvedPath, err)
		}
		if err := assetstore.WriteAtomic(dst, data); err != nil {
			return err
		}
		klog.V(6).Infof("复制文档变体: %s -> %s", v.ResolvedPath, dst)
	} else if err != nil {
		return fmt.Errorf("stat %s: %w", dst, err)
	}

	return s.repos.Documents.UpsertVariant(ctx, &model.DocumentVariant{
		DocumentID: doc.ID,
		Format:     v.Format,
		StoredPath: path.Join(DocumentsURLPrefix, name),
		MimeType:   model.MimeTypeForFormat(v.Format),
	})
}

func (s *Service) importImages(ctx context.Context, grouping *Grouping, docIDs map[model.DocumentKey]uint, report *Report) error {
	rows, err := s.repos.Legacy.Images(ctx)
	if err != nil {
		return fmt.Errorf("read legacy images: %w", err)
	}

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		report.Images++

		key, ok := grouping.KeyOf(row.DocumentID)
		if !ok {
			report.ImagesSkipped++
			s.skip(ctx, "images", fmt.Sprintf("legacy document %d not grouped", row.DocumentID))
			continue
		}
		docID, ok := docIDs[key]
		if !ok {
			report.ImagesSkipped++
			s.skip(ctx, "images", fmt.Sprintf("document %s not persisted", key.Code))
			continue
		}
		resolved, ok := s.resolver.ResolveExtracted(row.ImagePath)
		if !ok {
			klog.Warningf("图片路径无法解析，跳过: %s", row.ImagePath)
			report.ImagesSkipped++
			s.skip(ctx, "images", "unresolved path")
			continue
		}
		blob, err := s.store.PutFile(ctx, resolved)
		if err != nil {
			klog.Warningf("读取图片失败，跳过: %s, err=%v", resolved, err)
			report.ImagesSkipped++
			s.skip(ctx, "images", err.Error())
			continue
		}
		s.storeAndLink(ctx, docID, blob, row.Width, row.Height, row.PageIndex, report)
	}
	klog.V(6).Infof("迁移: images=%d, skipped=%d, links=%d", report.Images, report.ImagesSkipped, report.Links)
	return nil
}

// storeAndLink 写入 Asset 记录并建立关联；记录中的宽高优先于探测值
func (s *Service) storeAndLink(ctx context.Context, docID uint, blob *assetstore.Blob, width, height, order *int, report *Report) {
	if blob.Written {
		report.AssetsWritten++
	} else {
		report.AssetsReused++
	}
	s.publish(ctx, eventbus.PipelineEvent{Type: eventbus.PipelineEventAssetStored, DocumentID: docID, SHA256: blob.SHA256, Written: blob.Written})

	if width == nil {
		width = blob.Width
	}
	if height == nil {
		height = blob.Height
	}
	asset := &model.Asset{
		Kind:       "image",
		SHA256:     blob.SHA256,
		StoredPath: blob.URL,
		Width:      width,
		Height:     height,
		IsLogo:     assetstore.IsLogo(width, height, s.cfg.Migration.LogoMaxPixels),
	}
	if err := s.repos.Assets.Upsert(ctx, asset); err != nil {
		klog.Warningf("保存图片记录失败，跳过: sha256=%s, err=%v", blob.SHA256, err)
		s.skip(ctx, "assets", err.Error())
		return
	}

	created, err := s.repos.Assets.Link(ctx, docID, asset.ID, order)
	if err != nil {
		klog.Warningf("关联图片失败，跳过: doc=%d, asset=%d, err=%v", docID, asset.ID, err)
		s.skip(ctx, "links", err.Error())
		return
	}
	if !created {
		report.DuplicateLinks++
		return
	}
	report.Links++
	s.publish(ctx, eventbus.PipelineEvent{Type: eventbus.PipelineEventAssetLinked, DocumentID: docID, SHA256: blob.SHA256})
}

func (s *Service) skip(ctx context.Context, stage, reason string) {
	s.publish(ctx, eventbus.PipelineEvent{Type: eventbus.PipelineEventRecordSkipped, Stage: stage, Reason: reason})
}

func (s *Service) publish(ctx context.Context, event eventbus.PipelineEvent) {
	if err := s.bus.Publish(ctx, event); err != nil {
		klog.Warningf("事件处理失败: type=%s, err=%v", event.Type, err)
	}
}
