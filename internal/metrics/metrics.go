// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ログアウト理由
const (
	LogoutManual = "manual"
	LogoutIdle   = "idle"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 認証、フォーム、アイドル監視、ワーカーから利用する。
type MetricsCollector interface {
	RecordLogin(provider string)
	RecordLogout(reason string)
	RecordIdleWarning()
	RecordValidationFailure(form string)
	RecordEntityOperation(entity, op string)
	RecordSessionsCleaned(count int)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
	RecordPanic(route string)
	IdleSocketOpened()
	IdleSocketClosed()
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	logins             *prometheus.CounterVec
	logouts            *prometheus.CounterVec
	idleWarnings       prometheus.Counter
	validationFailures *prometheus.CounterVec
	entityOps          *prometheus.CounterVec
	sessionsCleaned    prometheus.Counter
	httpStatus         *prometheus.CounterVec
	requestLatency     prometheus.Histogram
	panics             *prometheus.CounterVec
	idleSockets        prometheus.Gauge
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "babynest_logins_total",
			Help: "プロバイダ別のログイン成功数",
		}, []string{"provider"}),
		logouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "babynest_logouts_total",
			Help: "理由別のログアウト数",
		}, []string{"reason"}),
		idleWarnings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "babynest_idle_warnings_total",
			Help: "無操作警告の表示回数",
		}),
		validationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "babynest_form_validation_failures_total",
			Help: "フォーム別の検証失敗数",
		}, []string{"form"}),
		entityOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "babynest_entity_operations_total",
			Help: "エンティティ別の作成・更新・削除数",
		}, []string{"entity", "op"}),
		sessionsCleaned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "babynest_sessions_cleaned_total",
			Help: "クリーンアップで削除された期限切れセッション数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "babynest_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "babynest_request_latency_seconds",
			Help:    "HTTPリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		panics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "babynest_panics_total",
			Help: "ルート別の回復したpanic数",
		}, []string{"route"}),
		idleSockets: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "babynest_idle_sockets",
			Help: "接続中のアイドル監視WebSocket数",
		}),
	}

	reg.MustRegister(
		c.logins,
		c.logouts,
		c.idleWarnings,
		c.validationFailures,
		c.entityOps,
		c.sessionsCleaned,
		c.httpStatus,
		c.requestLatency,
		c.panics,
		c.idleSockets,
	)

	return c
}

// RecordLogin はログイン成功を記録する。
func (c *Collector) RecordLogin(provider string) {
	c.logins.WithLabelValues(provider).Inc()
}

// RecordLogout はログアウトを記録する。
func (c *Collector) RecordLogout(reason string) {
	c.logouts.WithLabelValues(reason).Inc()
}

// RecordIdleWarning は無操作警告の表示を記録する。
func (c *Collector) RecordIdleWarning() {
	c.idleWarnings.Inc()
}

// RecordValidationFailure はフォームの検証失敗を記録する。
func (c *Collector) RecordValidationFailure(form string) {
	c.validationFailures.WithLabelValues(form).Inc()
}

// RecordEntityOperation はエンティティの作成・更新・削除を記録する。
func (c *Collector) RecordEntityOperation(entity, op string) {
	c.entityOps.WithLabelValues(entity, op).Inc()
}

// RecordSessionsCleaned は削除された期限切れセッション数を記録する。
func (c *Collector) RecordSessionsCleaned(count int) {
	c.sessionsCleaned.Add(float64(count))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエストのレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// RecordPanic はハンドラーで回復したpanicをルートパターン別に記録する。
func (c *Collector) RecordPanic(route string) {
	c.panics.WithLabelValues(route).Inc()
}

// IdleSocketOpened はアイドル監視WebSocketの接続を記録する。
func (c *Collector) IdleSocketOpened() { c.idleSockets.Inc() }

// IdleSocketClosed はアイドル監視WebSocketの切断を記録する。
func (c *Collector) IdleSocketClosed() { c.idleSockets.Dec() }

// Nop は何も記録しないMetricsCollector。
type Nop struct{}

func (Nop) RecordLogin(string)                  {}
func (Nop) RecordLogout(string)                 {}
func (Nop) RecordIdleWarning()                  {}
func (Nop) RecordValidationFailure(string)      {}
func (Nop) RecordEntityOperation(string, string) {}
func (Nop) RecordSessionsCleaned(int)           {}
func (Nop) RecordHTTPStatus(int)                {}
func (Nop) RecordRequestLatency(time.Duration)  {}
func (Nop) RecordPanic(string)                  {}
func (Nop) IdleSocketOpened()                   {}
func (Nop) IdleSocketClosed()                   {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
