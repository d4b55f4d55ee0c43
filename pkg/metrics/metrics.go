package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// 签到登记结果标签
const (
	ResultSuccess  = "success"
	ResultRejected = "rejected"
	ResultError    = "error"
)

// Metrics 业务与 HTTP 指标集合
type Metrics struct {
	AttendanceRegistrations *prometheus.CounterVec
	StatsRefreshes          prometheus.Counter
	VisitorDecisions        *prometheus.CounterVec
	HTTPRequests            *prometheus.CounterVec
	HTTPDuration            *prometheus.HistogramVec
}

// New 创建并注册指标；reg 为 nil 时不注册（测试场景）
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AttendanceRegistrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mac",
			Subsystem: "attendance",
			Name:      "registrations_total",
			Help:      "签到登记次数，按结果与原因区分",
		}, []string{"result", "reason"}),
		StatsRefreshes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mac",
			Subsystem: "attendance",
			Name:      "stats_refreshes_total",
			Help:      "出勤统计重算次数",
		}),
		VisitorDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mac",
			Subsystem: "visitors",
			Name:      "decisions_total",
			Help:      "校外访客审批次数",
		}, []string{"action"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mac",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP 请求数",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mac",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP 请求耗时",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.AttendanceRegistrations,
			m.StatsRefreshes,
			m.VisitorDecisions,
			m.HTTPRequests,
			m.HTTPDuration,
		)
	}
	return m
}

// Nop 返回未注册的指标集合
func Nop() *Metrics { return New(nil) }
