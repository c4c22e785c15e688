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
// サービス層と外部APIクライアントから利用する。
type MetricsCollector interface {
	RecordUSDASuccess(endpoint string)
	RecordUSDAFailure(endpoint string, reason string)
	RecordUSDALatency(duration time.Duration)
	RecordHTTPStatus(statusCode int)
	RecordEntryLogged(mealType string)
	RecordFoodImported()
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	usdaSuccess   *prometheus.CounterVec
	usdaFail      *prometheus.CounterVec
	usdaLatency   prometheus.Histogram
	httpStatus    *prometheus.CounterVec
	entriesLogged *prometheus.CounterVec
	foodsImported prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		usdaSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nutrilog_usda_success_total",
			Help: "USDA API呼び出し成功の合計数",
		}, []string{"endpoint"}),
		usdaFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nutrilog_usda_fail_total",
			Help: "USDA API呼び出し失敗の合計数",
		}, []string{"endpoint", "reason"}),
		usdaLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "nutrilog_usda_latency_seconds",
			Help:    "USDA API呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nutrilog_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		entriesLogged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nutrilog_entries_logged_total",
			Help: "記録された食事エントリの合計数",
		}, []string{"meal_type"}),
		foodsImported: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nutrilog_foods_imported_total",
			Help: "USDAからインポートされた食品の合計数",
		}),
	}

	reg.MustRegister(
		c.usdaSuccess,
		c.usdaFail,
		c.usdaLatency,
		c.httpStatus,
		c.entriesLogged,
		c.foodsImported,
	)

	return c
}

// RecordUSDASuccess はUSDA API呼び出し成功を記録する。
func (c *Collector) RecordUSDASuccess(endpoint string) {
	c.usdaSuccess.WithLabelValues(endpoint).Inc()
}

// RecordUSDAFailure はUSDA API呼び出し失敗を記録する。
func (c *Collector) RecordUSDAFailure(endpoint string, reason string) {
	c.usdaFail.WithLabelValues(endpoint, reason).Inc()
}

// RecordUSDALatency はUSDA API呼び出しのレイテンシを記録する。
func (c *Collector) RecordUSDALatency(duration time.Duration) {
	c.usdaLatency.Observe(duration.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordEntryLogged は食事記録の作成を食事区分別に記録する。
func (c *Collector) RecordEntryLogged(mealType string) {
	c.entriesLogged.WithLabelValues(mealType).Inc()
}

// RecordFoodImported はUSDAからの食品インポートを記録する。
func (c *Collector) RecordFoodImported() {
	c.foodsImported.Inc()
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
