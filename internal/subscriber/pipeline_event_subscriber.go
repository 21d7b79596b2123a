package subscriber

import (
	"context"
	"strconv"

	"github.com/qafglossary/backend/internal/eventbus"
	"github.com/qafglossary/backend/internal/pkg/metrics"
	"k8s.io/klog/v2"
)

// PipelineEventSubscriber 把流水线事件折算为 Prometheus 指标
type PipelineEventSubscriber struct {
	metrics *metrics.Metrics
}

func NewPipelineEventSubscriber(m *metrics.Metrics) *PipelineEventSubscriber {
	return &PipelineEventSubscriber{metrics: m}
}

func (s *PipelineEventSubscriber) Register(bus *eventbus.PipelineEventBus) {
	if bus == nil || s.metrics == nil {
		return
	}
	bus.Subscribe(eventbus.PipelineEventRunFinished, s.handleRunFinished)
	bus.Subscribe(eventbus.PipelineEventDocumentConverted, s.handleConverted)
	bus.Subscribe(eventbus.PipelineEventConversionFailed, s.handleConversionFailed)
	bus.Subscribe(eventbus.PipelineEventDocumentPersisted, s.handleDocumentPersisted)
	bus.Subscribe(eventbus.PipelineEventAssetStored, s.handleAssetStored)
	bus.Subscribe(eventbus.PipelineEventAssetLinked, s.handleAssetLinked)
	bus.Subscribe(eventbus.PipelineEventRecordSkipped, s.handleRecordSkipped)
	bus.Subscribe(eventbus.PipelineEventPageExported, s.handlePageExported)
}

func (s *PipelineEventSubscriber) handleRunFinished(ctx context.Context, event eventbus.PipelineEvent) error {
	s.metrics.RunsTotal.WithLabelValues(event.Stage, event.Status).Inc()
	s.metrics.RunDuration.Observe(event.Duration.Seconds())
	klog.V(6).Infof("流水线运行结束: stage=%s, runID=%s, status=%s, duration=%v", event.Stage, event.RunID, event.Status, event.Duration)
	return nil
}

func (s *PipelineEventSubscriber) handleConverted(ctx context.Context, event eventbus.PipelineEvent) error {
	s.metrics.ConversionsTotal.WithLabelValues("succeeded").Inc()
	s.metrics.ConversionDuration.Observe(event.Duration.Seconds())
	return nil
}

func (s *PipelineEventSubscriber) handleConversionFailed(ctx context.Context, event eventbus.PipelineEvent) error {
	s.metrics.ConversionsTotal.WithLabelValues("failed").Inc()
	klog.V(6).Infof("文档转换失败事件: code=%s, reason=%s", event.Code, event.Reason)
	return nil
}

func (s *PipelineEventSubscriber) handleDocumentPersisted(ctx context.Context, event eventbus.PipelineEvent) error {
	s.metrics.DocumentsPersisted.Inc()
	return nil
}

func (s *PipelineEventSubscriber) handleAssetStored(ctx context.Context, event eventbus.PipelineEvent) error {
	s.metrics.AssetsStoredTotal.WithLabelValues(strconv.FormatBool(event.Written)).Inc()
	return nil
}

func (s *PipelineEventSubscriber) handleAssetLinked(ctx context.Context, event eventbus.PipelineEvent) error {
	s.metrics.AssetLinksTotal.Inc()
	return nil
}

func (s *PipelineEventSubscriber) handleRecordSkipped(ctx context.Context, event eventbus.PipelineEvent) error {
	s.metrics.RecordsSkippedTotal.WithLabelValues(event.Stage).Inc()
	return nil
}

func (s *PipelineEventSubscriber) handlePageExported(ctx context.Context, event eventbus.PipelineEvent) error {
	s.metrics.PagesExportedTotal.Inc()
	return nil
}
