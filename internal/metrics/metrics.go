// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ハンドラーやサービス層から利用する。
type MetricsCollector interface {
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
	RecordAuthAttempt(operation string, success bool)
	RecordObjectiveOperation(operation string)
	RecordRatingSubmitted(stars int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpStatus     *prometheus.CounterVec
	requestLatency prometheus.Histogram
	authAttempts   *prometheus.CounterVec
	objectiveOps   *prometheus.CounterVec
	ratings        *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskman_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "taskman_request_latency_seconds",
			Help:    "HTTPリクエスト処理のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		authAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskman_auth_attempts_total",
			Help: "認証操作の試行数（操作種別・成否別）",
		}, []string{"operation", "result"}),
		objectiveOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskman_objective_operations_total",
			Help: "目標に対する操作の合計数（操作種別別）",
		}, []string{"operation"}),
		ratings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskman_ratings_submitted_total",
			Help: "送信された評価の合計数（星数別）",
		}, []string{"stars"}),
	}

	reg.MustRegister(
		c.httpStatus,
		c.requestLatency,
		c.authAttempts,
		c.objectiveOps,
		c.ratings,
	)

	return c
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエスト処理のレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// RecordAuthAttempt は認証操作の試行を記録する。
// operationはsignup、signin、refresh、signoutのいずれか。
func (c *Collector) RecordAuthAttempt(operation string, success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	c.authAttempts.WithLabelValues(operation, result).Inc()
}

// RecordObjectiveOperation は目標に対する操作を記録する。
// operationはlist、create、update、deleteのいずれか。
func (c *Collector) RecordObjectiveOperation(operation string) {
	c.objectiveOps.WithLabelValues(operation).Inc()
}

// RecordRatingSubmitted は評価の送信を記録する。
func (c *Collector) RecordRatingSubmitted(stars int) {
	c.ratings.WithLabelValues(strconv.Itoa(stars)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// NewHTTPMetricsMiddleware はHTTPレスポンスのステータスとレイテンシを記録する
// ミドルウェアを返す。
func NewHTTPMetricsMiddleware(collector MetricsCollector) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusCapture{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rec, r)
			collector.RecordHTTPStatus(rec.statusCode)
			collector.RecordRequestLatency(time.Since(start))
		})
	}
}

// statusCapture はレスポンスのステータスコードを記録するためのラッパー。
type statusCapture struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (sc *statusCapture) WriteHeader(code int) {
	if !sc.written {
		sc.statusCode = code
		sc.written = true
	}
	sc.ResponseWriter.WriteHeader(code)
}

func (sc *statusCapture) Write(b []byte) (int, error) {
	if !sc.written {
		sc.statusCode = http.StatusOK
		sc.written = true
	}
	return sc.ResponseWriter.Write(b)
}
