package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "reviews", Name: "http_requests_total", Help: "HTTP requests."},
		[]string{"route", "method", "status"},
	)
	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "reviews", Name: "http_request_duration_seconds",
			Help:    "HTTP request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	ExternalRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "reviews", Name: "external_requests_total", Help: "Outbound store requests."},
		[]string{"service", "endpoint", "status"},
	)
	ExternalLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "reviews", Name: "external_request_duration_seconds",
			Help:    "Outbound store request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "endpoint"},
	)
	PipelineRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "reviews", Name: "pipeline_runs_total", Help: "Pipeline runs by outcome."},
		[]string{"source", "outcome"}, // outcome: ok|empty|not_found|error
	)
	PipelineRows = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "reviews", Name: "pipeline_rows_total", Help: "Rows at each pipeline stage."},
		[]string{"source", "stage"}, // stage: fetched|normalized|kept
	)
	ExportEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "reviews", Name: "export_store_events_total", Help: "Export store hits/misses/puts."},
		[]string{"store", "event"},
	)
)

// Serve starts a standalone metrics listener on addr; empty addr disables it.
func Serve(addr string, reg *prometheus.Registry) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", MetricsHandler(reg))

	go func() {
		srv := &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		log.Info().Str("addr", addr).Msg("metrics server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

func InitRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(HTTPRequests, HTTPLatency, ExternalRequests, ExternalLatency,
		PipelineRuns, PipelineRows, ExportEvents)
	return reg
}

func MetricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func ObserveHTTP(route, method string, status int, dur time.Duration) {
	HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPLatency.WithLabelValues(route, method).Observe(dur.Seconds())
}

// ObserveExternal records one outbound call; status 0 means no response.
func ObserveExternal(service, endpoint string, status int, dur time.Duration) {
	ExternalRequests.WithLabelValues(service, endpoint, strconv.Itoa(status)).Inc()
	ExternalLatency.WithLabelValues(service, endpoint).Observe(dur.Seconds())
}

func ObserveRun(source, outcome string) { PipelineRuns.WithLabelValues(source, outcome).Inc() }

func ObserveRows(source, stage string, n int) {
	PipelineRows.WithLabelValues(source, stage).Add(float64(n))
}

func ObserveExport(store, event string) { // event: hit|miss|put
	ExportEvents.WithLabelValues(store, event).Inc()
}
