// Package metrics 收集投票、评论和 HTTP 请求的 Prometheus 指标。
// 所有方法对 nil *Metrics 安全，测试里可以直接传 nil。
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "contesthub"

// Outcome 标签的取值。
const (
	OutcomeOK       = "ok"
	OutcomeConflict = "conflict"
	OutcomeNotFound = "not_found"
	OutcomeInvalid  = "invalid"
	OutcomeDenied   = "forbidden"
	OutcomeError    = "error"
)

type Metrics struct {
	votes       *prometheus.CounterVec
	comments    *prometheus.CounterVec
	httpLatency *prometheus.HistogramVec
	cacheHits   *prometheus.CounterVec
}

// New 注册全部指标到 reg。reg 为 nil 时使用 prometheus.DefaultRegisterer。
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		votes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vote_operations_total",
			Help:      "Vote ledger mutations by action and outcome.",
		}, []string{"action", "outcome"}),
		comments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "comment_operations_total",
			Help:      "Comment store mutations by action and outcome.",
		}, []string{"action", "outcome"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "comment_page_cache_total",
			Help:      "Comment page cache lookups by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.votes, m.comments, m.httpLatency, m.cacheHits)
	return m
}

func (m *Metrics) ObserveVote(action, outcome string) {
	if m == nil {
		return
	}
	m.votes.WithLabelValues(action, outcome).Inc()
}

func (m *Metrics) ObserveComment(action, outcome string) {
	if m == nil {
		return
	}
	m.comments.WithLabelValues(action, outcome).Inc()
}

func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.httpLatency.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

func (m *Metrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheHits.WithLabelValues(result).Inc()
}
