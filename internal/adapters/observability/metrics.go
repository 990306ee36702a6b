package observability

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"bank_reviews/internal/domain"
)

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "bankreviews", Name: "http_requests_total", Help: "HTTP requests."},
		[]string{"route", "method", "status"},
	)
	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bankreviews", Name: "http_request_duration_seconds",
			Help:    "HTTP request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	CacheEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "bankreviews", Name: "cache_events_total", Help: "Cache hits/misses/sets/dels."},
		[]string{"cache", "event"}, // event: hit|miss|set|del
	)

	CrawlUnits = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "bankreviews", Name: "crawl_units_total", Help: "Crawl work units by outcome."},
		[]string{"kind", "outcome"}, // kind: query|branch, outcome: ok|failed
	)
	CrawlReviews = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "bankreviews", Name: "crawl_reviews_total", Help: "Review records emitted."},
	)
	MalformedEntries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "bankreviews", Name: "crawl_malformed_entries_total", Help: "Entries skipped for missing fields."},
		[]string{"role"},
	)
	PolitenessWait = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "bankreviews", Name: "crawl_politeness_wait_seconds",
			Help:    "Randomized pauses between interactions.",
			Buckets: []float64{0, 0.5, 1, 2, 3, 5, 8, 13},
		},
	)
	SessionOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "bankreviews", Name: "crawl_session_ops_total", Help: "Browser session operations."},
		[]string{"op", "status"}, // status: ok|not_ready|end|error
	)
	SessionLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bankreviews", Name: "crawl_session_op_duration_seconds",
			Help:    "Browser session operation duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)
)

func init() {
	// crawl metrics also land on the default registry so Serve exposes them
	prometheus.MustRegister(CrawlUnits, CrawlReviews, MalformedEntries, PolitenessWait, SessionOps, SessionLatency)
}

// Serve exposes the default registry on addr in the background and returns
// the server so the caller can close it. An empty addr disables it.
func Serve(addr string) *http.Server {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("metrics server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
	return srv
}

// InitRegistry builds the registry the API serves on /metrics.
func InitRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(HTTPRequests, HTTPLatency, CacheEvents)
	return reg
}

func MetricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func ObserveHTTP(route, method string, status int, dur time.Duration) {
	HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPLatency.WithLabelValues(route, method).Observe(dur.Seconds())
}

func ObserveCache(cache, event string) { // event: hit|miss|set|del
	CacheEvents.WithLabelValues(cache, event).Inc()
}

func ObserveUnit(kind domain.UnitKind, outcome string) {
	CrawlUnits.WithLabelValues(string(kind), outcome).Inc()
}

func ObserveReviews(n int) { CrawlReviews.Add(float64(n)) }

func ObserveMalformed(role domain.Role) { MalformedEntries.WithLabelValues(string(role)).Inc() }

func ObservePoliteness(d time.Duration) { PolitenessWait.Observe(d.Seconds()) }

func ObserveSession(op string, err error, dur time.Duration) {
	SessionOps.WithLabelValues(op, LabelErr(err)).Inc()
	SessionLatency.WithLabelValues(op).Observe(dur.Seconds())
}

// LabelErr maps a session error to a low-cardinality status label.
func LabelErr(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrTransientRender):
		return "not_ready"
	case errors.Is(err, domain.ErrEndOfFeed):
		return "end"
	default:
		return "error"
	}
}
