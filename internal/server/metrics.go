package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/iwvelando/ratio-dashboard/internal/view"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type metrics struct {
	requests      *prometheus.CounterVec
	queryDuration prometheus.Histogram
}

func newMetrics(reg prometheus.Registerer, views *view.Registry) *metrics {
	m := &metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ratio_dashboard",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern, method and status code.",
		}, []string{"route", "method", "status"}),
		queryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ratio_dashboard",
			Name:      "query_duration_seconds",
			Help:      "Time spent evaluating filter, statistics and rule queries.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
	}
	reg.MustRegister(
		m.requests,
		m.queryDuration,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "ratio_dashboard",
			Name:      "views",
			Help:      "Number of live server-side views.",
		}, func() float64 { return float64(views.Len()) }),
		collectors.NewGoCollector(),
	)
	return m
}

// instrument counts requests by chi route pattern so that view ids do not
// explode label cardinality.
func (m *metrics) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
	})
}

func (m *metrics) observeQuery(start time.Time) {
	m.queryDuration.Observe(time.Since(start).Seconds())
}
