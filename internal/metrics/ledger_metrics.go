package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics содержит метрики операций order-to-cash леджера.
type LedgerMetrics struct {
	// Счётчики бизнес-операций
	ordersAccepted   prometheus.Counter
	ordersRejected   *prometheus.CounterVec
	ordersCancelled  prometheus.Counter
	invoicesIssued   prometheus.Counter
	paymentsRecorded prometheus.Counter

	// Гистограмма времени выполнения операций
	opDuration *prometheus.HistogramVec

	// Счётчики событий timeline/outbox
	timelineEvents prometheus.Counter
	outboxEvents   prometheus.Counter
}

// Причины отказа createOrder для лейбла reason.
const (
	RejectReasonNotFound    = "merchant_not_found"
	RejectReasonNotActive   = "account_not_active"
	RejectReasonCreditLimit = "credit_limit_exceeded"
	RejectReasonInvalid     = "invalid_order"
)

// NewLedgerMetrics создаёт метрики леджера в default-регистре.
func NewLedgerMetrics() *LedgerMetrics {
	return newLedgerMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newLedgerMetricsWithRegisterer(registerer prometheus.Registerer) *LedgerMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &LedgerMetrics{
		ordersAccepted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "infopharma_orders_accepted_total",
			Help: "Total number of orders accepted by the ledger",
		}),
		ordersRejected: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "infopharma_orders_rejected_total",
			Help: "Total number of rejected orders grouped by reason",
		}, []string{"reason"}),
		ordersCancelled: registerCounter(registerer, prometheus.CounterOpts{
			Name: "infopharma_orders_cancelled_total",
			Help: "Total number of cancelled orders",
		}),
		invoicesIssued: registerCounter(registerer, prometheus.CounterOpts{
			Name: "infopharma_invoices_issued_total",
			Help: "Total number of invoices issued",
		}),
		paymentsRecorded: registerCounter(registerer, prometheus.CounterOpts{
			Name: "infopharma_payments_recorded_total",
			Help: "Total number of merchant payments recorded",
		}),
		opDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "infopharma_ledger_op_duration_seconds",
			Help:    "Duration of ledger operations in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}, []string{"op"}),
		timelineEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "infopharma_timeline_events_total",
			Help: "Total number of order timeline events recorded",
		}),
		outboxEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "infopharma_outbox_events_total",
			Help: "Total number of outbox events enqueued",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}

// RecordOrderAccepted увеличивает счётчик принятых заказов.
func (m *LedgerMetrics) RecordOrderAccepted() {
	m.ordersAccepted.Inc()
}

// RecordOrderRejected увеличивает счётчик отклонённых заказов по причине.
func (m *LedgerMetrics) RecordOrderRejected(reason string) {
	m.ordersRejected.WithLabelValues(reason).Inc()
}

// RecordOrderCancelled увеличивает счётчик отменённых заказов.
func (m *LedgerMetrics) RecordOrderCancelled() {
	m.ordersCancelled.Inc()
}

// RecordInvoiceIssued увеличивает счётчик выставленных счетов.
func (m *LedgerMetrics) RecordInvoiceIssued() {
	m.invoicesIssued.Inc()
}

// RecordPaymentRecorded увеличивает счётчик платежей.
func (m *LedgerMetrics) RecordPaymentRecorded() {
	m.paymentsRecorded.Inc()
}

// RecordOpDuration записывает время выполнения операции леджера.
func (m *LedgerMetrics) RecordOpDuration(op string, duration time.Duration) {
	m.opDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordTimelineEvent увеличивает счётчик событий timeline.
func (m *LedgerMetrics) RecordTimelineEvent() {
	m.timelineEvents.Inc()
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *LedgerMetrics) RecordOutboxEvent() {
	m.outboxEvents.Inc()
}
