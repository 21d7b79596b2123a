// Package metrics 迁移与导出流水线的 Prometheus 指标
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	RunsTotal           *prometheus.CounterVec
	RunDuration         prometheus.Histogram
	DocumentsPersisted  prometheus.Counter
	ConversionsTotal    *prometheus.CounterVec
	ConversionDuration  prometheus.Histogram
	AssetsStoredTotal   *prometheus.CounterVec
	AssetLinksTotal     prometheus.Counter
	RecordsSkippedTotal *prometheus.CounterVec
	PagesExportedTotal  prometheus.Counter
}

// New 在独立的 registry 上注册指标，便于测试与多实例
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "glossary_runs_total",
			Help: "Total number of pipeline runs",
		}, []string{"stage", "status"}),
		RunDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "glossary_run_duration_seconds",
			Help:    "Duration of pipeline runs in seconds",
			Buckets: []float64{.1, .5, 1, 5, 15, 30, 60, 120, 300, 600},
		}),
		DocumentsPersisted: f.NewCounter(prometheus.CounterOpts{
			Name: "glossary_documents_persisted_total",
			Help: "Total number of canonical documents upserted",
		}),
		ConversionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "glossary_docx_conversions_total",
			Help: "Total number of docx conversions",
		}, []string{"status"}),
		ConversionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "glossary_docx_conversion_duration_seconds",
			Help:    "Duration of docx conversions in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		AssetsStoredTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "glossary_assets_stored_total",
			Help: "Total number of asset puts, by whether bytes were written",
		}, []string{"written"}),
		AssetLinksTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "glossary_asset_links_total",
			Help: "Total number of new document-asset links",
		}),
		RecordsSkippedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "glossary_records_skipped_total",
			Help: "Total number of legacy records skipped",
		}, []string{"stage"}),
		PagesExportedTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "glossary_pages_exported_total",
			Help: "Total number of static pages written",
		}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler /metrics 端点
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
