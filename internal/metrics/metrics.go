package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	generationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prelook_generations_total",
			Help: "Studio generation attempts by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	generationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "prelook_generation_duration_seconds",
			Help:    "Time spent waiting on the image gateway",
			Buckets: []float64{1, 2.5, 5, 10, 20, 40, 80, 160},
		},
		[]string{"operation"},
	)

	creditsSpent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prelook_credits_spent_total",
			Help: "Credits debited for generations",
		},
		[]string{"operation"},
	)

	missingAngles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prelook_unlock_missing_angles_total",
			Help: "Angles that came back empty from an unlock",
		},
		[]string{"angle"},
	)

	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "prelook_gateway_breaker_state",
			Help: "Gateway circuit breaker state (0 = closed, 1 = half-open, 2 = open)",
		},
		[]string{"name"},
	)

	bookingsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "prelook_bookings_completed_total",
		Help: "Bookings moved to COMPLETED by the sweeper",
	})

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prelook_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "prelook_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// ObserveGeneration records one gateway round trip. outcome is "ok", "failed" or "rejected".
func ObserveGeneration(operation, outcome string, took time.Duration) {
	generationsTotal.WithLabelValues(operation, outcome).Inc()
	if took > 0 {
		generationDuration.WithLabelValues(operation).Observe(took.Seconds())
	}
}

func CreditsSpent(operation string, amount int) {
	creditsSpent.WithLabelValues(operation).Add(float64(amount))
}

func MissingAngle(angle string) {
	missingAngles.WithLabelValues(angle).Inc()
}

func BreakerState(name string, state int) {
	breakerState.WithLabelValues(name).Set(float64(state))
}

func BookingsCompleted(n int64) {
	bookingsCompleted.Add(float64(n))
}

func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware counts requests by their chi route pattern so ids in paths do not explode cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
