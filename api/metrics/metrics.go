package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/fairplaylabs/fairplay/ledger"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fairplay_api_build_info",
			Help: "Build information of the Fairplay API",
		},
		[]string{"version", "commit", "date"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fairplay_api_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fairplay_api_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fairplay_api_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	LedgerOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fairplay_ledger_operations_total",
			Help: "Total number of ledger operations by outcome",
		},
		[]string{"operation", "outcome"},
	)

	DepositedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fairplay_ledger_deposited_amount_total",
			Help: "Cumulative amount deposited into escrow vaults",
		},
	)

	ClaimedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fairplay_ledger_claimed_amount_total",
			Help: "Cumulative amount claimed out of escrow vaults",
		},
	)
)

// Middleware returns a chi middleware that records HTTP metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		HTTPRequestsInFlight.Inc()
		defer HTTPRequestsInFlight.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		// Use the route pattern if available so path labels stay bounded.
		path := chi.RouteContext(r.Context()).RoutePattern()
		if path == "" {
			path = r.URL.Path
		}

		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(ww.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// RecordLedgerOperation records the outcome of one ledger operation. Typed
// ledger failures are labeled by kind; everything else is "error".
func RecordLedgerOperation(op ledger.Operation, err error) {
	LedgerOperationsTotal.WithLabelValues(string(op), outcome(err)).Inc()
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	for _, kind := range []struct {
		err   error
		label string
	}{
		{ledger.ErrAlreadyInitialized, "already_initialized"},
		{ledger.ErrNotInitialized, "not_initialized"},
		{ledger.ErrInvalidWindow, "invalid_window"},
		{ledger.ErrInvalidPool, "invalid_pool"},
		{ledger.ErrInvalidAmount, "invalid_amount"},
		{ledger.ErrUnauthorized, "unauthorized"},
		{ledger.ErrScoreOutOfRange, "score_out_of_range"},
		{ledger.ErrCampaignExpired, "campaign_expired"},
		{ledger.ErrFinalized, "finalized"},
		{ledger.ErrInsufficientFunds, "insufficient_funds"},
		{ledger.ErrNoTotalScore, "no_total_score"},
		{ledger.ErrAlreadyClaimed, "already_claimed"},
		{ledger.ErrAmountMismatch, "amount_mismatch"},
		{ledger.ErrNotScored, "not_scored"},
		{ledger.ErrContributorNotFound, "contributor_not_found"},
	} {
		if errors.Is(err, kind.err) {
			return kind.label
		}
	}
	return "error"
}
