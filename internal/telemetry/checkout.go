package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type CheckoutMetrics struct {
	checkouts metric.Int64Counter
	duration  metric.Float64Histogram
}

func NewCheckoutMetrics(meter metric.Meter) (*CheckoutMetrics, error) {
	checkouts, err := meter.Int64Counter("storefront.checkout.total",
		metric.WithDescription("Checkout attempts by outcome."),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram("storefront.checkout.duration",
		metric.WithDescription("Duration of the checkout transaction."),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &CheckoutMetrics{checkouts: checkouts, duration: duration}, nil
}

func (m *CheckoutMetrics) Record(ctx context.Context, outcome string, elapsed time.Duration) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.checkouts.Add(ctx, 1, attrs)
	m.duration.Record(ctx, elapsed.Seconds(), attrs)
}
