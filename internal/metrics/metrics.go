// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector は認証イベントのPrometheusメトリクスを収集する。
type Collector struct {
	registrations  *prometheus.CounterVec
	logins         *prometheus.CounterVec
	oauthCallbacks *prometheus.CounterVec
	established    prometheus.Counter
	terminated     prometheus.Counter
	cleanedUp      prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "secrets_registrations_total",
			Help: "ローカル登録の結果別の合計数",
		}, []string{"result"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "secrets_logins_total",
			Help: "ローカルログインの結果別の合計数",
		}, []string{"result"}),
		oauthCallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "secrets_oauth_callbacks_total",
			Help: "OAuthコールバックの結果別の合計数",
		}, []string{"result"}),
		established: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "secrets_sessions_established_total",
			Help: "確立されたセッションの合計数",
		}),
		terminated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "secrets_sessions_terminated_total",
			Help: "明示的に破棄されたセッションの合計数",
		}),
		cleanedUp: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "secrets_sessions_cleaned_up_total",
			Help: "クリーンアップジョブが削除した期限切れセッションの合計数",
		}),
	}

	reg.MustRegister(
		c.registrations,
		c.logins,
		c.oauthCallbacks,
		c.established,
		c.terminated,
		c.cleanedUp,
	)

	return c
}

// RecordRegistration はローカル登録の結果を記録する。
func (c *Collector) RecordRegistration(result string) {
	c.registrations.WithLabelValues(result).Inc()
}

// RecordLogin はローカルログインの結果を記録する。
func (c *Collector) RecordLogin(result string) {
	c.logins.WithLabelValues(result).Inc()
}

// RecordOAuthCallback はOAuthコールバックの結果を記録する。
func (c *Collector) RecordOAuthCallback(result string) {
	c.oauthCallbacks.WithLabelValues(result).Inc()
}

// RecordSessionEstablished はセッション確立を記録する。
func (c *Collector) RecordSessionEstablished() {
	c.established.Inc()
}

// RecordSessionTerminated はセッション破棄を記録する。
func (c *Collector) RecordSessionTerminated() {
	c.terminated.Inc()
}

// RecordSessionsCleanedUp はクリーンアップで削除された期限切れセッション数を記録する。
func (c *Collector) RecordSessionsCleanedUp(count int64) {
	c.cleanedUp.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
