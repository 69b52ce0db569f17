// Package metrics 定义 tourkit 的 Prometheus 指标。
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/rushteam/tourkit/pipeline"
)

// Metrics 是一组注册在同一个 Registerer 上的采集器
type Metrics struct {
	Requests        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	NodeDuration    *prometheus.HistogramVec
	NodeErrors      *prometheus.CounterVec
	SnapshotReloads *prometheus.CounterVec
	SnapshotInfo    *prometheus.GaugeVec
}

// New 在 reg 上注册全部指标；reg 为 nil 时使用 prometheus.DefaultRegisterer
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		Requests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tourkit_requests_total",
				Help: "Total number of orchestrator requests by operation and result code",
			},
			[]string{"op", "code"},
		),
		RequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tourkit_request_duration_seconds",
				Help:    "Duration of orchestrator requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		NodeDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tourkit_pipeline_node_duration_seconds",
				Help:    "Duration of a single pipeline node in seconds",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"node"},
		),
		NodeErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tourkit_pipeline_node_errors_total",
				Help: "Total number of pipeline node failures",
			},
			[]string{"node"},
		),
		SnapshotReloads: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tourkit_snapshot_reloads_total",
				Help: "Total number of snapshot reload attempts by result",
			},
			[]string{"result"},
		),
		SnapshotInfo: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tourkit_snapshot_info",
				Help: "Currently served snapshot, value is the build time as unix seconds",
			},
			[]string{"id"},
		),
	}
}

// ObserveRequest 记录一次请求
func (m *Metrics) ObserveRequest(op, code string, elapsed time.Duration) {
	m.Requests.WithLabelValues(op, code).Inc()
	m.RequestDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// PipelineHook 返回记录节点耗时与失败的 pipeline.Hook
func (m *Metrics) PipelineHook() pipeline.Hook {
	return func(node pipeline.Node, elapsed time.Duration, _, _ int, err error) {
		m.NodeDuration.WithLabelValues(node.Name()).Observe(elapsed.Seconds())
		if err != nil {
			m.NodeErrors.WithLabelValues(node.Name()).Inc()
		}
	}
}

// SnapshotLoaded 记录一次重载结果；成功时把 info 指标切换到新 id
func (m *Metrics) SnapshotLoaded(id string, builtAt time.Time, err error) {
	if err != nil {
		m.SnapshotReloads.WithLabelValues("error").Inc()
		return
	}
	m.SnapshotReloads.WithLabelValues("ok").Inc()
	m.SnapshotInfo.Reset()
	m.SnapshotInfo.WithLabelValues(id).Set(float64(builtAt.Unix()))
}
