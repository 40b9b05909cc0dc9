// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yashvanth/taskflow/internal/model"
	"github.com/yashvanth/taskflow/internal/sessionreg"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ミドルウェアやサービス層から利用する。
type MetricsCollector interface {
	RecordVerify(path model.VerificationPath, status model.VerifyStatus)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
	SetRegistryAvailable(available bool)
	RecordNotificationPublished()
	RecordNotificationConsumed(success bool)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	verifyTotal           *prometheus.CounterVec
	httpStatus            *prometheus.CounterVec
	requestLatency        prometheus.Histogram
	registryAvailable     prometheus.Gauge
	notificationPublished prometheus.Counter
	notificationConsumed  *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		verifyTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskflow_credential_verify_total",
			Help: "クレデンシャル検証の経路・結果別の合計数",
		}, []string{"path", "status"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskflow_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "taskflow_request_latency_seconds",
			Help:    "リクエスト処理のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		registryAvailable: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "taskflow_session_registry_available",
			Help: "Session Registryの到達可能状態（1=Connected、0=Disconnected）",
		}),
		notificationPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskflow_notifications_published_total",
			Help: "発行されたタスク通知の合計数",
		}),
		notificationConsumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskflow_notifications_consumed_total",
			Help: "消費されたタスク通知の結果別合計数",
		}, []string{"result"}),
	}

	reg.MustRegister(
		c.verifyTotal,
		c.httpStatus,
		c.requestLatency,
		c.registryAvailable,
		c.notificationPublished,
		c.notificationConsumed,
	)

	return c
}

// RecordVerify はクレデンシャル検証の結果を経路別に記録する。
func (c *Collector) RecordVerify(path model.VerificationPath, status model.VerifyStatus) {
	c.verifyTotal.WithLabelValues(string(path), string(status)).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエスト処理のレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// SetRegistryAvailable はSession Registryの到達可能状態を記録する。
// sessionreg.TransitionFuncとして登録することで状態遷移に追従する。
func (c *Collector) SetRegistryAvailable(available bool) {
	if available {
		c.registryAvailable.Set(1)
	} else {
		c.registryAvailable.Set(0)
	}
}

// RegistryTransitionHook はSession Registryの状態遷移コールバックを返す。
func (c *Collector) RegistryTransitionHook() sessionreg.TransitionFunc {
	return func(from, to sessionreg.State) {
		c.SetRegistryAvailable(to == sessionreg.StateConnected)
	}
}

// RecordNotificationPublished は通知の発行を記録する。
func (c *Collector) RecordNotificationPublished() {
	c.notificationPublished.Inc()
}

// RecordNotificationConsumed は通知の消費を結果別に記録する。
func (c *Collector) RecordNotificationConsumed(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	c.notificationConsumed.WithLabelValues(result).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
