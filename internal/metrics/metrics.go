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
// サービス層やワーカーから利用する。
type MetricsCollector interface {
	RecordMatchQuery(candidates, matched int)
	RecordMatchQueryLatency(duration time.Duration)
	RecordMatchCreated()
	RecordMatchConflict()
	RecordContactShared(field string)
	RecordChatMessage()
	RecordGeocodeFailure()
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	matchQueries      prometheus.Counter
	matchCandidates   prometheus.Counter
	matchResults      prometheus.Counter
	matchQueryLatency prometheus.Histogram
	matchCreated      prometheus.Counter
	matchConflicts    prometheus.Counter
	contactShared     *prometheus.CounterVec
	chatMessages      prometheus.Counter
	geocodeFail       prometheus.Counter
	httpStatus        *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		matchQueries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "machiawase_match_queries_total",
			Help: "マッチング検索の実行回数",
		}),
		matchCandidates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "machiawase_match_candidates_total",
			Help: "粗い絞り込みを通過した候補の合計数",
		}),
		matchResults: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "machiawase_match_results_total",
			Help: "マッチ判定を通過した結果の合計数",
		}),
		matchQueryLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "machiawase_match_query_latency_seconds",
			Help:    "マッチング検索のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		matchCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "machiawase_matches_created_total",
			Help: "作成されたマッチの合計数",
		}),
		matchConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "machiawase_match_conflicts_total",
			Help: "重複により拒否されたマッチ作成の合計数",
		}),
		contactShared: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "machiawase_contact_shared_total",
			Help: "連絡先公開フラグが新規に設定された回数",
		}, []string{"field"}),
		chatMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "machiawase_chat_messages_total",
			Help: "投稿されたチャットメッセージの合計数",
		}),
		geocodeFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "machiawase_geocode_fail_total",
			Help: "逆ジオコーディング失敗の合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "machiawase_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.matchQueries,
		c.matchCandidates,
		c.matchResults,
		c.matchQueryLatency,
		c.matchCreated,
		c.matchConflicts,
		c.contactShared,
		c.chatMessages,
		c.geocodeFail,
		c.httpStatus,
	)

	return c
}

// RecordMatchQuery はマッチング検索の実行と候補数・結果数を記録する。
func (c *Collector) RecordMatchQuery(candidates, matched int) {
	c.matchQueries.Inc()
	c.matchCandidates.Add(float64(candidates))
	c.matchResults.Add(float64(matched))
}

// RecordMatchQueryLatency はマッチング検索のレイテンシを記録する。
func (c *Collector) RecordMatchQueryLatency(duration time.Duration) {
	c.matchQueryLatency.Observe(duration.Seconds())
}

// RecordMatchCreated はマッチ作成を記録する。
func (c *Collector) RecordMatchCreated() {
	c.matchCreated.Inc()
}

// RecordMatchConflict は重複によるマッチ作成拒否を記録する。
func (c *Collector) RecordMatchConflict() {
	c.matchConflicts.Inc()
}

// RecordContactShared は連絡先公開フラグの新規設定を記録する。
func (c *Collector) RecordContactShared(field string) {
	c.contactShared.WithLabelValues(field).Inc()
}

// RecordChatMessage はチャットメッセージの投稿を記録する。
func (c *Collector) RecordChatMessage() {
	c.chatMessages.Inc()
}

// RecordGeocodeFailure は逆ジオコーディング失敗を記録する。
func (c *Collector) RecordGeocodeFailure() {
	c.geocodeFail.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
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
