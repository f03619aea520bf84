package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// QuotesTotal counts computed quotes by billing mode and origin (panel, stateless).
	QuotesTotal *prometheus.CounterVec
	// WizardTransitionsTotal counts wizard step moves by action and outcome.
	WizardTransitionsTotal *prometheus.CounterVec
	// ValidationFailuresTotal counts blocked steps by step number.
	ValidationFailuresTotal *prometheus.CounterVec
	// OrderSubmissionsTotal counts submission attempts by billing mode and result.
	OrderSubmissionsTotal *prometheus.CounterVec
	// OrderMonthlyValue records the payable monthly amount of submitted orders, in major units.
	OrderMonthlyValue prometheus.Histogram
	// DomainEventsTotal counts events emitted on the bus by topic.
	DomainEventsTotal *prometheus.CounterVec
	// BreakerState reports circuit breaker state per target: 0 closed, 1 open, 2 half-open.
	BreakerState *prometheus.GaugeVec
	// BreakerTransitionsTotal counts breaker state changes.
	BreakerTransitionsTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		QuotesTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quotes_total",
			Help:      "Count of computed plan quotes.",
		}, []string{"billing", "origin"}))
		WizardTransitionsTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_transitions_total",
			Help:      "Count of checkout wizard step transitions.",
		}, []string{"action", "result"}))
		ValidationFailuresTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_validation_failures_total",
			Help:      "Count of checkout steps blocked by field validation.",
		}, []string{"step"}))
		OrderSubmissionsTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_submissions_total",
			Help:      "Count of order submission outcomes.",
		}, []string{"billing", "result"}))
		OrderMonthlyValue = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "order_monthly_value",
			Help:      "Payable monthly value of submitted orders in major currency units.",
			Buckets:   []float64{100, 250, 500, 1000, 2500, 5000, 10000, 25000},
		}))
		DomainEventsTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "domain_events_total",
			Help:      "Count of domain events emitted on the bus.",
		}, []string{"topic"}))
		BreakerState = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "breaker_state",
			Help:      "Current breaker state: 0=closed, 1=open, 2=half-open.",
		}, []string{"target"}))
		BreakerTransitionsTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "breaker_transitions_total",
			Help:      "Count of breaker state transitions.",
		}, []string{"target", "from", "to"}))
	})
}

// register adds c to reg, returning the already registered collector when one
// with the same descriptor exists.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
			return c
		}
		panic(fmt.Errorf("register metric: %w", err))
	}
	return c
}
