package observability

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"comps_dedup/internal/dedup"
	"comps_dedup/internal/domain"
)

const namespace = "compdedup"

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "HTTP requests."},
		[]string{"route", "method", "status"},
	)
	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_duration_seconds",
			Help:    "HTTP request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	ExternalRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "external_requests_total", Help: "Outbound requests."},
		[]string{"service", "endpoint", "status"},
	)
	ExternalLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace, Name: "external_request_duration_seconds",
			Help:    "Outbound request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "endpoint"},
	)
	CacheEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "cache_events_total", Help: "Cache hits/misses/sets/dels."},
		[]string{"cache", "event"}, // event: hit|miss|set|del|error
	)

	DedupRuns = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: namespace, Name: "dedup_runs_total", Help: "Completed dedup runs."},
	)
	DedupMarked = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "dedup_marked_total", Help: "Records marked as duplicates before protection."},
		[]string{"pass"},
	)
	DedupRestored = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: namespace, Name: "dedup_restored_total", Help: "Marked records restored to keep the comparable floor."},
	)
	DedupBelowFloor = prometheus.NewGauge(
		prometheus.GaugeOpts{Namespace: namespace, Name: "dedup_subjects_below_floor", Help: "Subjects under the comparable floor after the last run."},
	)
	DedupDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace, Name: "dedup_run_duration_seconds",
			Help:    "Dedup run duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// Serve exposes reg on its own listener; an empty addr disables it.
func Serve(addr string, reg *prometheus.Registry) {
	if addr == "" {
		return // disabled
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
	reg.MustRegister(HTTPRequests, HTTPLatency, ExternalRequests, ExternalLatency, CacheEvents,
		DedupRuns, DedupMarked, DedupRestored, DedupBelowFloor, DedupDuration)
	return reg
}

func MetricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func ObserveHTTP(route, method string, status int, dur time.Duration) {
	HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPLatency.WithLabelValues(route, method).Observe(dur.Seconds())
}

func ObserveExternal(service, endpoint string, status int, dur time.Duration) {
	ExternalRequests.WithLabelValues(service, endpoint, strconv.Itoa(status)).Inc()
	ExternalLatency.WithLabelValues(service, endpoint).Observe(dur.Seconds())
}

func ObserveCache(cache, event string) { // event: hit|miss|set|del|error
	CacheEvents.WithLabelValues(cache, event).Inc()
}

// ObserveRun records one finished dedup run.
func ObserveRun(res dedup.Result, dur time.Duration) {
	DedupRuns.Inc()
	DedupMarked.WithLabelValues(string(domain.PassAddress)).Add(float64(res.Stats.AddressDuplicates))
	DedupMarked.WithLabelValues(string(domain.PassGeographic)).Add(float64(res.Stats.GeoDuplicates))
	restored := 0
	for _, r := range res.Restorations {
		restored += len(r.Restored)
	}
	DedupRestored.Add(float64(restored))
	DedupBelowFloor.Set(float64(len(res.BelowFloor)))
	DedupDuration.Observe(dur.Seconds())
}

// LabelErr names the dynamic type of err for low-cardinality log fields.
func LabelErr(err error) string {
	if err == nil {
		return "none"
	}
	return fmt.Sprintf("%T", err)
}
