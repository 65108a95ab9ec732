package telemetry

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/zap"
)

const meterName = "github.com/shaibs3/canvascache"

// Telemetry owns the meter provider and the registry exposed on /metrics
type Telemetry struct {
	Meter    metric.Meter
	provider *sdkmetric.MeterProvider
	registry *prometheus.Registry
	logger   *zap.Logger
}

func NewTelemetry(logger *zap.Logger) (*Telemetry, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	logger.Named("telemetry").Info("telemetry initialized")
	return &Telemetry{
		Meter:    provider.Meter(meterName),
		provider: provider,
		registry: registry,
		logger:   logger.Named("telemetry"),
	}, nil
}

// Handler serves the Prometheus exposition of every registered metric
func (t *Telemetry) Handler() http.Handler {
	return promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{})
}

func (t *Telemetry) Shutdown(ctx context.Context) error {
	if err := t.provider.Shutdown(ctx); err != nil {
		t.logger.Error("failed to shut down meter provider", zap.Error(err))
		return err
	}
	return nil
}
