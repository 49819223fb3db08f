// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// パブリッシャーやサービス層から利用する。
type MetricsCollector interface {
	RecordPollSuccess(platformID string)
	RecordPollFailure(platformID string, reason string)
	RecordUpdatePublished(platformID string)
	RecordDelivery(success bool)
	RecordPollLatency(duration time.Duration)
	RecordVoiceEvent(kind string)
	SetActiveVoiceSessions(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	pollSuccess         *prometheus.CounterVec
	pollFail            *prometheus.CounterVec
	updatesPublished    *prometheus.CounterVec
	deliveries          *prometheus.CounterVec
	pollLatency         prometheus.Histogram
	voiceEvents         *prometheus.CounterVec
	activeVoiceSessions prometheus.Gauge
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		pollSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shinkan_poll_success_total",
			Help: "フィードポーリング成功の合計数",
		}, []string{"platform"}),
		pollFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shinkan_poll_fail_total",
			Help: "フィードポーリング失敗の合計数",
		}, []string{"platform", "reason"}),
		updatesPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shinkan_updates_published_total",
			Help: "検出されたフィード更新の合計数",
		}, []string{"platform"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shinkan_deliveries_total",
			Help: "購読者への配送試行の合計数",
		}, []string{"status"}),
		pollLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "shinkan_poll_latency_seconds",
			Help:    "ポーリングサイクルのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		voiceEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shinkan_voice_events_total",
			Help: "処理されたボイスイベントの合計数",
		}, []string{"kind"}),
		activeVoiceSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "shinkan_active_voice_sessions",
			Help: "メモリ上で追跡中のアクティブボイスセッション数",
		}),
	}

	reg.MustRegister(
		c.pollSuccess,
		c.pollFail,
		c.updatesPublished,
		c.deliveries,
		c.pollLatency,
		c.voiceEvents,
		c.activeVoiceSessions,
	)

	return c
}

// RecordPollSuccess はポーリング成功を記録する。
func (c *Collector) RecordPollSuccess(platformID string) {
	c.pollSuccess.WithLabelValues(platformID).Inc()
}

// RecordPollFailure はポーリング失敗を記録する。
func (c *Collector) RecordPollFailure(platformID string, reason string) {
	c.pollFail.WithLabelValues(platformID, reason).Inc()
}

// RecordUpdatePublished は更新イベントの発行を記録する。
func (c *Collector) RecordUpdatePublished(platformID string) {
	c.updatesPublished.WithLabelValues(platformID).Inc()
}

// RecordDelivery は購読者への配送試行を記録する。
func (c *Collector) RecordDelivery(success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	c.deliveries.WithLabelValues(status).Inc()
}

// RecordPollLatency はポーリングサイクルのレイテンシを記録する。
func (c *Collector) RecordPollLatency(duration time.Duration) {
	c.pollLatency.Observe(duration.Seconds())
}

// RecordVoiceEvent はボイスイベントの処理を記録する。
func (c *Collector) RecordVoiceEvent(kind string) {
	c.voiceEvents.WithLabelValues(kind).Inc()
}

// SetActiveVoiceSessions は追跡中のアクティブセッション数を設定する。
func (c *Collector) SetActiveVoiceSessions(count int) {
	c.activeVoiceSessions.Set(float64(count))
}

// NopCollector は何も記録しないMetricsCollector。メトリクスが不要な構成で使用する。
type NopCollector struct{}

// NewNopCollector は何も記録しないコレクターを生成する。
// コレクター未指定のコンストラクタのフォールバックとして使用する。
func NewNopCollector() NopCollector {
	return NopCollector{}
}

func (NopCollector) RecordPollSuccess(string)         {}
func (NopCollector) RecordPollFailure(string, string) {}
func (NopCollector) RecordUpdatePublished(string)     {}
func (NopCollector) RecordDelivery(bool)              {}
func (NopCollector) RecordPollLatency(time.Duration)  {}
func (NopCollector) RecordVoiceEvent(string)          {}
func (NopCollector) SetActiveVoiceSessions(int)       {}

// compile-time interface checks
var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = NopCollector{}
)

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
// ルーターの/metricsにマウントされる。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
