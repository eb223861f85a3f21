package infrastructure

import (
	"context"
	"fmt"
	"net/http"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const (
	ServiceName    = "paycast"
	ServiceVersion = "1.0.0"
	MeterName      = "paycast"
)

// Metrics holds the application's OpenTelemetry instruments.
// They are exported in Prometheus format via Handler.
type Metrics struct {
	MeterProvider *sdkmetric.MeterProvider
	Meter         metric.Meter
	Handler       http.Handler

	PredictionsTotal   metric.Int64Counter
	PredictionDuration metric.Float64Histogram
	BatchItemsTotal    metric.Int64Counter
	TrainingDuration   metric.Float64Histogram
	ModelsTrained      metric.Int64Counter
}

// InitializeMetrics sets up the OpenTelemetry meter provider with a
// Prometheus exporter and registers the domain instruments.
func InitializeMetrics() (*Metrics, error) {
	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(ServiceName),
		semconv.ServiceVersion(ServiceVersion),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	// dedicated registry so repeated initialization (tests) cannot collide
	registry := promclient.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)
	otel.SetMeterProvider(provider)

	meter := provider.Meter(MeterName, metric.WithInstrumentationVersion(ServiceVersion))

	m := &Metrics{
		MeterProvider: provider,
		Meter:         meter,
		Handler:       promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}

	if m.PredictionsTotal, err = meter.Int64Counter("paycast_predictions_total",
		metric.WithDescription("Total single predictions served, by outcome"),
	); err != nil {
		return nil, fmt.Errorf("failed to create predictions counter: %w", err)
	}

	if m.PredictionDuration, err = meter.Float64Histogram("paycast_prediction_duration_seconds",
		metric.WithDescription("Latency of single predictions"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("failed to create prediction histogram: %w", err)
	}

	if m.BatchItemsTotal, err = meter.Int64Counter("paycast_batch_items_total",
		metric.WithDescription("Batch prediction items processed, by outcome"),
	); err != nil {
		return nil, fmt.Errorf("failed to create batch counter: %w", err)
	}

	if m.TrainingDuration, err = meter.Float64Histogram("paycast_training_duration_seconds",
		metric.WithDescription("Duration of full training runs"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("failed to create training histogram: %w", err)
	}

	if m.ModelsTrained, err = meter.Int64Counter("paycast_models_trained_total",
		metric.WithDescription("Individual (target, quantile) models trained"),
	); err != nil {
		return nil, fmt.Errorf("failed to create models counter: %w", err)
	}

	return m, nil
}

// Shutdown flushes and stops the meter provider
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m.MeterProvider == nil {
		return nil
	}
	return m.MeterProvider.Shutdown(ctx)
}
