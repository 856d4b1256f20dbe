// Package metrics exposes peerchat delivery and HTTP metrics to Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/coregx/peerchat"
	"github.com/coregx/peerchat/model"
)

// Push results.
const (
	PushDelivered = "delivered"
	PushOffline   = "offline"
	PushFailed    = "failed"
)

// Metrics holds every collector and implements peerchat.NotificationService.
type Metrics struct {
	MessagesSent        prometheus.Counter
	SendFailures        *prometheus.CounterVec
	Pushes              *prometheus.CounterVec
	LiveChannels        prometheus.Gauge
	ChannelReplacements prometheus.Counter
	HistoryRequests     prometheus.Counter

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		MessagesSent: f.NewCounter(prometheus.CounterOpts{
			Name: "peerchat_messages_sent_total",
			Help: "Messages persisted by the gateway",
		}),
		SendFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "peerchat_send_failures_total",
			Help: "Sends rejected before or during persistence",
		}, []string{"code"}),
		Pushes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "peerchat_pushes_total",
			Help: "Push attempts by result",
		}, []string{"result"}), // delivered, offline, failed
		LiveChannels: f.NewGauge(prometheus.GaugeOpts{
			Name: "peerchat_live_channels",
			Help: "Users with a registered live channel",
		}),
		ChannelReplacements: f.NewCounter(prometheus.CounterOpts{
			Name: "peerchat_channel_replacements_total",
			Help: "Live channels evicted by a newer registration for the same user",
		}),
		HistoryRequests: f.NewCounter(prometheus.CounterOpts{
			Name: "peerchat_history_requests_total",
			Help: "History fetches served",
		}),
		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "peerchat_http_requests_total",
			Help: "Total HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "peerchat_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"method", "path"}),
	}
}

// NotifyDelivered implements peerchat.NotificationService.
func (m *Metrics) NotifyDelivered(_ context.Context, _ model.Message) {
	m.MessagesSent.Inc()
	m.Pushes.WithLabelValues(PushDelivered).Inc()
}

// NotifyDeliveryMiss implements peerchat.NotificationService.
func (m *Metrics) NotifyDeliveryMiss(_ context.Context, _ model.Message, err error) {
	m.MessagesSent.Inc()
	if errors.Is(err, peerchat.ErrNoChannel) {
		m.Pushes.WithLabelValues(PushOffline).Inc()
		return
	}
	m.Pushes.WithLabelValues(PushFailed).Inc()
}

// NotifySendFailed implements peerchat.NotificationService.
func (m *Metrics) NotifySendFailed(_ context.Context, _ string, err error) {
	code := peerchat.CodeOf(err)
	if code == "" {
		code = "UNKNOWN"
	}
	m.SendFailures.WithLabelValues(code).Inc()
}

// NotifyChannelRegistered implements peerchat.NotificationService.
func (m *Metrics) NotifyChannelRegistered(_ string, replaced bool) {
	if replaced {
		m.ChannelReplacements.Inc()
		return
	}
	m.LiveChannels.Inc()
}

// NotifyChannelDeregistered implements peerchat.NotificationService.
func (m *Metrics) NotifyChannelDeregistered(_ string) {
	m.LiveChannels.Dec()
}

// Middleware records request counts and latency labelled by chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

var _ peerchat.NotificationService = (*Metrics)(nil)
