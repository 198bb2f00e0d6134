// Package metrics holds the storefront's Prometheus collectors.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "storefront"

var (
	// HTTPRequestsTotal counts requests by route pattern, method and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by route, method and status.",
	}, []string{"route", "method", "status"})

	// HTTPRequestDuration tracks handler latency by route pattern.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})

	// CheckoutsTotal counts checkout attempts by result.
	CheckoutsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "checkouts_total",
		Help:      "Checkout attempts by result.",
	}, []string{"result"})

	// FulfillmentsTotal counts payment events by event type and result.
	FulfillmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fulfillments_total",
		Help:      "Payment provider events by type and result.",
	}, []string{"event_type", "result"})

	// SlotsCreatedTotal counts slots materialised by fulfillment.
	SlotsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "slots_created_total",
		Help:      "Slots created by product.",
	}, []string{"product"})

	// ActivationsTotal counts slot activation attempts by result code.
	ActivationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "slot_activations_total",
		Help:      "Slot activation attempts by result.",
	}, []string{"result"})

	// EntitlementChecksTotal counts bot entitlement checks by result.
	EntitlementChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "entitlement_checks_total",
		Help:      "Bot entitlement checks by result (active/inactive/error).",
	}, []string{"result"})

	// SlotsExpiredTotal counts slots flipped to expired by sweeps and lazy reads.
	SlotsExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "slots_expired_total",
		Help:      "Slots whose status was flipped to expired.",
	})

	// StreamClients tracks connected bot websocket clients.
	StreamClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "stream_clients",
		Help:      "Connected bot event stream clients.",
	})
)

// Result labels shared by several counters.
const (
	ResultOK       = "ok"
	ResultError    = "error"
	ResultNoop     = "noop"
	ResultActive   = "active"
	ResultInactive = "inactive"
)

// RecordCheckout records a checkout outcome.
func RecordCheckout(result string) {
	CheckoutsTotal.WithLabelValues(result).Inc()
}

// RecordFulfillment records the outcome of one payment event.
func RecordFulfillment(eventType, result string) {
	FulfillmentsTotal.WithLabelValues(eventType, result).Inc()
}

// RecordSlotsCreated adds n slots of product.
func RecordSlotsCreated(product string, n int) {
	if n > 0 {
		SlotsCreatedTotal.WithLabelValues(product).Add(float64(n))
	}
}

// RecordActivation records an activation attempt; result is "ok" or an error code.
func RecordActivation(result string) {
	ActivationsTotal.WithLabelValues(result).Inc()
}

// RecordEntitlementCheck records a bot entitlement lookup.
func RecordEntitlementCheck(result string) {
	EntitlementChecksTotal.WithLabelValues(result).Inc()
}

// RecordSlotsExpired adds n expired slots.
func RecordSlotsExpired(n int) {
	if n > 0 {
		SlotsExpiredTotal.Add(float64(n))
	}
}

// RecordHTTPRequest records one served request. route is the matched
// pattern, never the raw path, to keep label cardinality bounded.
func RecordHTTPRequest(route, method string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	HTTPRequestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}
