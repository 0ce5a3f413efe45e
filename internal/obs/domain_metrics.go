package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// BookingCreateTotal counts booking creation outcomes.
	BookingCreateTotal *prometheus.CounterVec
	// BookingUpdateTotal counts booking update outcomes.
	BookingUpdateTotal *prometheus.CounterVec
	// BookingLinePartialTotal counts creations that persisted fewer line
	// items than submitted. A non-zero rate means the append-tolerant path
	// is truncating bookings.
	BookingLinePartialTotal prometheus.Counter
	// BookingLineFailures counts individual line item insert failures.
	BookingLineFailures prometheus.Counter
	// BookingNotifyTotal counts notification dispatch outcomes.
	BookingNotifyTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers booking domain
// collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		BookingCreateTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_create_total",
			Help:      "Count of booking creation outcomes.",
		}, []string{"result"})
		BookingUpdateTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_update_total",
			Help:      "Count of booking update outcomes.",
		}, []string{"result"})
		BookingLinePartialTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_line_items_partial_total",
			Help:      "Bookings created with fewer line items than submitted.",
		})
		BookingLineFailures = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_line_item_failures_total",
			Help:      "Individual line item insert failures during creation.",
		})
		BookingNotifyTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_notify_total",
			Help:      "Count of booking notification dispatch outcomes.",
		}, []string{"result"})

		mustRegisterCollector(reg, BookingCreateTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				BookingCreateTotal = v
			}
		})
		mustRegisterCollector(reg, BookingUpdateTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				BookingUpdateTotal = v
			}
		})
		mustRegisterCollector(reg, BookingLinePartialTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				BookingLinePartialTotal = v
			}
		})
		mustRegisterCollector(reg, BookingLineFailures, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				BookingLineFailures = v
			}
		})
		mustRegisterCollector(reg, BookingNotifyTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				BookingNotifyTotal = v
			}
		})
	})
}
