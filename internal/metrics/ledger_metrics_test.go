package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, counter prometheus.Counter) float64 {
	t.Helper()

	var metric dto.Metric
	if err := counter.Write(&metric); err != nil {
		t.Fatalf("write counter metric: %v", err)
	}
	return metric.GetCounter().GetValue()
}

func TestLedgerMetrics_Counters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newLedgerMetricsWithRegisterer(registry)

	m.RecordOrderAccepted()
	m.RecordOrderAccepted()
	m.RecordOrderCancelled()
	m.RecordInvoiceIssued()
	m.RecordPaymentRecorded()
	m.RecordTimelineEvent()
	m.RecordOutboxEvent()

	if got := counterValue(t, m.ordersAccepted); got != 2 {
		t.Fatalf("unexpected orders accepted: %v", got)
	}
	if got := counterValue(t, m.ordersCancelled); got != 1 {
		t.Fatalf("unexpected orders cancelled: %v", got)
	}
	if got := counterValue(t, m.invoicesIssued); got != 1 {
		t.Fatalf("unexpected invoices issued: %v", got)
	}
	if got := counterValue(t, m.paymentsRecorded); got != 1 {
		t.Fatalf("unexpected payments recorded: %v", got)
	}
	if got := counterValue(t, m.timelineEvents); got != 1 {
		t.Fatalf("unexpected timeline events: %v", got)
	}
	if got := counterValue(t, m.outboxEvents); got != 1 {
		t.Fatalf("unexpected outbox events: %v", got)
	}
}

func TestLedgerMetrics_RejectedByReason(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newLedgerMetricsWithRegisterer(registry)

	m.RecordOrderRejected(RejectReasonCreditLimit)
	m.RecordOrderRejected(RejectReasonCreditLimit)
	m.RecordOrderRejected(RejectReasonNotActive)

	if got := counterValue(t, m.ordersRejected.WithLabelValues(RejectReasonCreditLimit)); got != 2 {
		t.Fatalf("unexpected credit limit rejections: %v", got)
	}
	if got := counterValue(t, m.ordersRejected.WithLabelValues(RejectReasonNotActive)); got != 1 {
		t.Fatalf("unexpected not active rejections: %v", got)
	}
	if got := counterValue(t, m.ordersRejected.WithLabelValues(RejectReasonNotFound)); got != 0 {
		t.Fatalf("unexpected not found rejections: %v", got)
	}
}

func TestLedgerMetrics_OpDuration(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newLedgerMetricsWithRegisterer(registry)

	m.RecordOpDuration("create_order", 3*time.Millisecond)
	m.RecordOpDuration("create_order", 7*time.Millisecond)
	m.RecordOpDuration("raise_invoice", time.Millisecond)

	observer, ok := m.opDuration.WithLabelValues("create_order").(prometheus.Metric)
	if !ok {
		t.Fatal("histogram observer does not expose metric")
	}

	var metric dto.Metric
	if err := observer.Write(&metric); err != nil {
		t.Fatalf("write histogram metric: %v", err)
	}
	if got := metric.GetHistogram().GetSampleCount(); got != 2 {
		t.Fatalf("unexpected sample count: %d", got)
	}
	if got := metric.GetHistogram().GetSampleSum(); got < 0.009 || got > 0.011 {
		t.Fatalf("unexpected sample sum: %v", got)
	}
}

func TestLedgerMetrics_ReusesRegisteredCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()

	first := newLedgerMetricsWithRegisterer(registry)
	second := newLedgerMetricsWithRegisterer(registry)

	first.RecordOrderAccepted()
	second.RecordOrderAccepted()

	if got := counterValue(t, first.ordersAccepted); got != 2 {
		t.Fatalf("expected shared counter value 2, got %v", got)
	}
}

func TestLedgerMetrics_NilRegistererFallsBackToDefault(t *testing.T) {
	m := newLedgerMetricsWithRegisterer(nil)
	if m == nil {
		t.Fatal("expected metrics instance")
	}
	m.RecordOrderAccepted()
}
