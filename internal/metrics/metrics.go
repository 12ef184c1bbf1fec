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
	RecordSignupSuccess()
	RecordSignupFailure(reason string)
	RecordSigninSuccess(provider string)
	RecordSigninFailure(provider string, reason string)
	RecordTokenVerifyFailure()
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	signupSuccess   prometheus.Counter
	signupFail      *prometheus.CounterVec
	signinSuccess   *prometheus.CounterVec
	signinFail      *prometheus.CounterVec
	tokenVerifyFail prometheus.Counter
	httpStatus      *prometheus.CounterVec
	requestLatency  prometheus.Histogram
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		signupSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ideaboard_signup_success_total",
			Help: "サインアップ成功の合計数",
		}),
		signupFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ideaboard_signup_fail_total",
			Help: "サインアップ失敗の合計数（理由別）",
		}, []string{"reason"}),
		signinSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ideaboard_signin_success_total",
			Help: "サインイン成功の合計数（プロバイダー別）",
		}, []string{"provider"}),
		signinFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ideaboard_signin_fail_total",
			Help: "サインイン失敗の合計数（プロバイダー・理由別）",
		}, []string{"provider", "reason"}),
		tokenVerifyFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ideaboard_token_verify_fail_total",
			Help: "セッショントークン検証失敗の合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ideaboard_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ideaboard_request_latency_seconds",
			Help:    "HTTPリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.signupSuccess,
		c.signupFail,
		c.signinSuccess,
		c.signinFail,
		c.tokenVerifyFail,
		c.httpStatus,
		c.requestLatency,
	)

	return c
}

// RecordSignupSuccess はサインアップ成功を記録する。
func (c *Collector) RecordSignupSuccess() {
	c.signupSuccess.Inc()
}

// RecordSignupFailure はサインアップ失敗を理由付きで記録する。
func (c *Collector) RecordSignupFailure(reason string) {
	c.signupFail.WithLabelValues(reason).Inc()
}

// RecordSigninSuccess はサインイン成功をプロバイダー付きで記録する。
func (c *Collector) RecordSigninSuccess(provider string) {
	c.signinSuccess.WithLabelValues(provider).Inc()
}

// RecordSigninFailure はサインイン失敗をプロバイダー・理由付きで記録する。
func (c *Collector) RecordSigninFailure(provider string, reason string) {
	c.signinFail.WithLabelValues(provider, reason).Inc()
}

// RecordTokenVerifyFailure はセッショントークンの検証失敗を記録する。
func (c *Collector) RecordTokenVerifyFailure() {
	c.tokenVerifyFail.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエストのレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
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
