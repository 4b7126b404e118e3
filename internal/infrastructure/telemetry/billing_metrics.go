package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ErrMeterNil is returned when metrics are built without a meter
var ErrMeterNil = errors.New("telemetry: meter cannot be nil")

// jobBuckets are histogram boundaries, in seconds, for scheduled jobs
var jobBuckets = []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30}

// BillingMetrics records the business counters of the billing engine.
// Amounts are counted in minor currency units.
type BillingMetrics struct {
	currency attribute.KeyValue

	invoicesCreated metric.Int64Counter
	paymentsTotal   metric.Int64Counter
	paymentAmount   metric.Int64Counter
	corrections     metric.Int64Counter
	lockContention  metric.Int64Counter
	jobDuration     metric.Float64Histogram
}

// NewBillingMetrics creates the billing instruments on meter
func NewBillingMetrics(meter metric.Meter, currency string) (*BillingMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	bm := &BillingMetrics{currency: AttrCurrency.String(currency)}
	counters := []struct {
		dst              *metric.Int64Counter
		name, desc, unit string
	}{
		{&bm.invoicesCreated, "billing_invoices_created_total", "Invoices drafted", "{invoice}"},
		{&bm.paymentsTotal, "billing_payments_recorded_total", "Payments posted to invoices", "{payment}"},
		{&bm.paymentAmount, "billing_payment_amount_total", "Amount posted to invoices in minor currency units", "{minor_unit}"},
		{&bm.corrections, "billing_corrections_total", "Corrections applied to invoices", "{correction}"},
		{&bm.lockContention, "billing_lock_contention_total", "Invoice mutations rejected because the invoice was busy", "{attempt}"},
	}
	var err error
	for _, c := range counters {
		*c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit(c.unit))
		if err != nil {
			return nil, fmt.Errorf("counter %s: %w", c.name, err)
		}
	}

	bm.jobDuration, err = meter.Float64Histogram("billing_job_duration_seconds",
		metric.WithDescription("Duration of scheduled billing jobs"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(jobBuckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("histogram billing_job_duration_seconds: %w", err)
	}
	return bm, nil
}

func (bm *BillingMetrics) InvoiceCreated(ctx context.Context) {
	bm.invoicesCreated.Add(ctx, 1, metric.WithAttributes(bm.currency))
}

func (bm *BillingMetrics) PaymentRecorded(ctx context.Context, method string, amount decimal.Decimal) {
	attrs := metric.WithAttributes(bm.currency, AttrPaymentMethod.String(method))
	bm.paymentsTotal.Add(ctx, 1, attrs)
	bm.paymentAmount.Add(ctx, amount.Shift(2).Round(0).IntPart(), attrs)
}

func (bm *BillingMetrics) CorrectionApplied(ctx context.Context, kind string) {
	bm.corrections.Add(ctx, 1, metric.WithAttributes(AttrCorrectionKind.String(kind)))
}

func (bm *BillingMetrics) LockContended(ctx context.Context) {
	bm.lockContention.Add(ctx, 1)
}

// JobFinished records one run of a scheduled job
func (bm *BillingMetrics) JobFinished(ctx context.Context, job string, d time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	bm.jobDuration.Record(ctx, d.Seconds(), metric.WithAttributes(AttrJob.String(job), AttrOutcome.String(outcome)))
}
