// Package metrics collects the service's Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Login results.
const (
	LoginSuccess            = "success"
	LoginInvalidCredentials = "invalid_credentials"
	LoginError              = "error"
)

// Recorder is the metrics interface used by handlers and background jobs.
type Recorder interface {
	RecordHTTPRequest(method, route string, status int, duration time.Duration)
	RecordLogin(result string)
	RecordSignup()
	SessionsRevoked(reason string, n int64)
	RecordTaskCreated()
}

// Collector implements Recorder on top of Prometheus.
type Collector struct {
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	logins          *prometheus.CounterVec
	signups         prometheus.Counter
	sessionsRevoked *prometheus.CounterVec
	tasksCreated    prometheus.Counter
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "task_manager_http_requests_total",
			Help: "HTTP requests by method, route pattern and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "task_manager_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "task_manager_logins_total",
			Help: "Login attempts by result.",
		}, []string{"result"}),
		signups: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "task_manager_signups_total",
			Help: "Accounts created.",
		}),
		sessionsRevoked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "task_manager_sessions_revoked_total",
			Help: "Sessions removed from session lists, by reason.",
		}, []string{"reason"}),
		tasksCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "task_manager_tasks_created_total",
			Help: "Tasks created.",
		}),
	}

	reg.MustRegister(
		c.httpRequests,
		c.httpDuration,
		c.logins,
		c.signups,
		c.sessionsRevoked,
		c.tasksCreated,
	)
	return c
}

func (c *Collector) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func (c *Collector) RecordLogin(result string) {
	c.logins.WithLabelValues(result).Inc()
}

func (c *Collector) RecordSignup() {
	c.signups.Inc()
}

func (c *Collector) SessionsRevoked(reason string, n int64) {
	if n > 0 {
		c.sessionsRevoked.WithLabelValues(reason).Add(float64(n))
	}
}

func (c *Collector) RecordTaskCreated() {
	c.tasksCreated.Inc()
}

// Handler returns the HTTP handler for Prometheus scrapes.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
