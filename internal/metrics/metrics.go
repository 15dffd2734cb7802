// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 認証イベントの種別。
const (
	EventRegister = "register"
	EventLogin    = "login"
	EventToken    = "token"
)

// 認証イベントの結果。
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ミドルウェアやサービス層から利用する。
type MetricsCollector interface {
	RecordHTTPRequest(statusCode int, duration time.Duration)
	RecordAuthEvent(event, result string)
	RecordTaskOperation(op string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpRequests    *prometheus.CounterVec
	requestDuration prometheus.Histogram
	authEvents      *prometheus.CounterVec
	taskOperations  *prometheus.CounterVec
}

var _ MetricsCollector = (*Collector)(nil)

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "todoman_http_requests_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "todoman_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		authEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "todoman_auth_events_total",
			Help: "認証イベント（登録・ログイン・トークン検証）の結果別件数",
		}, []string{"event", "result"}),
		taskOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "todoman_tasks_operations_total",
			Help: "成功したタスク操作の種別ごとの件数",
		}, []string{"op"}),
	}

	reg.MustRegister(
		c.httpRequests,
		c.requestDuration,
		c.authEvents,
		c.taskOperations,
	)

	return c
}

// RecordHTTPRequest はHTTPレスポンスのステータスコードと処理時間を記録する。
func (c *Collector) RecordHTTPRequest(statusCode int, duration time.Duration) {
	c.httpRequests.WithLabelValues(strconv.Itoa(statusCode)).Inc()
	c.requestDuration.Observe(duration.Seconds())
}

// RecordAuthEvent は認証イベントを記録する。
func (c *Collector) RecordAuthEvent(event, result string) {
	c.authEvents.WithLabelValues(event, result).Inc()
}

// RecordTaskOperation はタスク操作を記録する。
func (c *Collector) RecordTaskOperation(op string) {
	c.taskOperations.WithLabelValues(op).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop は何も記録しないMetricsCollector。メトリクスを使わない構成やテストで利用する。
type Nop struct{}

func (Nop) RecordHTTPRequest(int, time.Duration) {}
func (Nop) RecordAuthEvent(string, string)       {}
func (Nop) RecordTaskOperation(string)           {}
