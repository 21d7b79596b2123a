package migration

import (
	"context"
	"fmt"
	"time"

	"github.com/qafglossary/backend/internal/eventbus"
	"github.com/qafglossary/backend/internal/model"
	"github.com/qafglossary/backend/internal/pkg/assetstore"
	"github.com/qafglossary/backend/internal/pkg/docx"
	"github.com/qafglossary/backend/internal/service/orchestrator"
	"k8s.io/klog/v2"
)

// conversionPlan 一个文档的 docx 转换；每个 plan 只被一个协程写入
type conversionPlan struct {
	code    string
	path    string
	html    string
	blobs   []*assetstore.Blob
	elapsed time.Duration
	err     error
}

// conversionExecutor 在协程池上执行转换，只写文件不写数据库
type conversionExecutor struct {
	converter *docx.Converter
	store     *assetstore.Store
	plans     []*conversionPlan
}

func (e *conversionExecutor) ExecuteTask(ctx context.Context, job *orchestrator.Job) error {
	plan := e.plans[job.ID]
	plan.blobs = nil
	start := time.Now()

	html, err := e.converter.ConvertFile(ctx, plan.path, func(ctx context.Context, data []byte, ext string) (string, error) {
		blob, err := e.store.Put(ctx, data, ext)
		if err != nil {
			return "", err
		}
		plan.blobs = append(plan.blobs, blob)
		return blob.URL, nil
	})
	plan.elapsed = time.Since(start)
	if err != nil {
		return err
	}
	plan.html = html
	return nil
}

// convertAll 转换每个文档的第一个 docx 变体，返回与 grouping.Documents 对齐的结果
func (s *Service) convertAll(ctx context.Context, grouping *Grouping, report *Report) ([]*conversionPlan, error) {
	byDoc := make([]*conversionPlan, len(grouping.Documents))
	var plans []*conversionPlan
	for i, gd := range grouping.Documents {
		v, ok := gd.Variant(model.FormatDOCX)
		if !ok {
			continue
		}
		plan := &conversionPlan{code: gd.Key.Code, path: v.ResolvedPath}
		byDoc[i] = plan
		plans = append(plans, plan)
	}
	if len(plans) == 0 {
		return byDoc, nil
	}

	executor := &conversionExecutor{converter: s.converter, store: s.store, plans: plans}
	orch, err := orchestrator.NewOrchestrator(s.cfg.Migration.Workers, executor)
	if err != nil {
		return nil, fmt.Errorf("create conversion pool: %w", err)
	}
	defer orch.Stop()

	jobs := make([]*orchestrator.Job, len(plans))
	for j, plan := range plans {
		jobs[j] = orchestrator.NewJob(j, plan.code)
	}
	errs := orch.RunBatch(ctx, jobs)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for j, plan := range plans {
		plan.err = errs[j]
		if plan.err != nil {
			// 转换失败只影响该文档，内容留空
			klog.Warningf("docx 转换失败: code=%s, path=%s, err=%v", plan.code, plan.path, plan.err)
			report.ConversionFailed++
			s.publish(ctx, eventbus.PipelineEvent{Type: eventbus.PipelineEventConversionFailed, Code: plan.code, Reason: plan.err.Error()})
			continue
		}
		report.Converted++
		s.publish(ctx, eventbus.PipelineEvent{Type: eventbus.PipelineEventDocumentConverted, Code: plan.code, Duration: plan.elapsed})
	}
	klog.V(6).Infof("迁移: docx 转换 %d 个，失败 %d 个", report.Converted, report.ConversionFailed)
	return byDoc, nil
}
