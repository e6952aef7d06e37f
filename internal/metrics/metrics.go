package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	allocationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tempchan",
			Subsystem: "slots",
			Name:      "allocations_total",
			Help:      "Allocation attempts by result (success, no_capacity, race_lost, create_failed, move_failed).",
		}, []string{"result"},
	)
	evictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tempchan",
			Subsystem: "slots",
			Name:      "evictions_total",
			Help:      "Slots removed, by reason (grace_elapsed, vanished, stale, manual).",
		}, []string{"reason"},
	)
	activeSlots = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "tempchan",
			Subsystem: "slots",
			Name:      "active",
			Help:      "Currently tracked slots per group.",
		}, []string{"group"},
	)
	pendingRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tempchan",
			Subsystem: "pending",
			Name:      "requests",
			Help:      "Outstanding name-pick requests.",
		},
	)
	allocationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "tempchan",
			Subsystem: "slots",
			Name:      "allocation_duration_seconds",
			Help:      "Duration of allocation handling including external calls.",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{allocationsTotal, evictionsTotal, activeSlots, pendingRequests, allocationDuration}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			// If already registered, ignore (allows double Register with default registry)
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler serving Prometheus metrics for the DefaultGatherer.
func Handler() http.Handler { return promhttp.Handler() }

// Helpers below no-op if Register hasn't been called.

func IncAllocation(result string) {
	if regOK.Load() {
		allocationsTotal.WithLabelValues(result).Inc()
	}
}

func IncEviction(reason string) {
	if regOK.Load() {
		evictionsTotal.WithLabelValues(reason).Inc()
	}
}

func SetActiveSlots(group string, n int) {
	if regOK.Load() {
		activeSlots.WithLabelValues(group).Set(float64(n))
	}
}

func SetPendingRequests(n int) {
	if regOK.Load() {
		pendingRequests.Set(float64(n))
	}
}

func ObserveAllocationDuration(seconds float64) {
	if regOK.Load() {
		allocationDuration.Observe(seconds)
	}
}
