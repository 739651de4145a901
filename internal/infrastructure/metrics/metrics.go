package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MiguelValor/shopify-automator/internal/application/dispatcher"
	"github.com/MiguelValor/shopify-automator/internal/domain/event"
)

const namespace = "shopify_automator"

// Metrics holds the Prometheus collectors for the workflow engine
type Metrics struct {
	gatherer prometheus.Gatherer

	approvalsCreated *prometheus.CounterVec
	decisions        *prometheus.CounterVec
	expired          prometheus.Counter
	executions       *prometheus.CounterVec

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// New registers the collectors with reg. Pass a fresh registry in tests.
func New(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		gatherer: reg,

		approvalsCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "approvals_created_total",
				Help:      "Approval requests created, by action type and outcome",
			},
			[]string{"action_type", "outcome"},
		),
		decisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "approval_decisions_total",
				Help:      "Approval decisions recorded, by decision",
			},
			[]string{"decision"},
		),
		expired: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "approvals_expired_total",
				Help:      "Pending approvals moved to expired by the sweeper",
			},
		),
		executions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "approval_executions_total",
				Help:      "Approved changes dispatched to the store, by action type and result",
			},
			[]string{"action_type", "result"},
		),

		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

// Register subscribes the recorder to every approval event
func (m *Metrics) Register(d dispatcher.Dispatcher) {
	d.SubscribeAll("metrics", m.HandleEvent,
		event.TypeApprovalQueued,
		event.TypeApprovalApproved,
		event.TypeApprovalRejected,
		event.TypeApprovalsExpired,
		event.TypeApprovalExecuted,
		event.TypeApprovalExecutionFailed,
		event.TypeApprovalExecutionSkipped,
	)
}

// HandleEvent updates counters for one event
func (m *Metrics) HandleEvent(_ context.Context, evt *event.Event) error {
	actionType := evt.GetPayloadString("action_type")

	switch evt.Type {
	case event.TypeApprovalQueued:
		m.approvalsCreated.WithLabelValues(actionType, "pending").Inc()
	case event.TypeApprovalApproved:
		decision := "approved"
		if evt.GetPayloadString("trigger") == "AUTO_APPROVE" {
			decision = "auto_approved"
		}
		m.decisions.WithLabelValues(decision).Add(float64(countOf(evt)))
	case event.TypeApprovalRejected:
		m.decisions.WithLabelValues("rejected").Add(float64(countOf(evt)))
	case event.TypeApprovalsExpired:
		m.expired.Add(float64(evt.GetPayloadInt("count")))
	case event.TypeApprovalExecuted:
		m.executions.WithLabelValues(actionType, "succeeded").Inc()
	case event.TypeApprovalExecutionFailed:
		m.executions.WithLabelValues(actionType, "failed").Inc()
	case event.TypeApprovalExecutionSkipped:
		m.executions.WithLabelValues(actionType, "skipped").Inc()
	}
	return nil
}

func countOf(evt *event.Event) int64 {
	if n := evt.GetPayloadInt("count"); n > 0 {
		return n
	}
	return 1
}

// GinMiddleware records request count and latency per route
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler exposes the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
