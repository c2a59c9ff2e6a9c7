package observe

import (
	"context"
	"fmt"
	"log/slog"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// Provider is an in-process SDK MeterProvider whose readings can be
// summarised on demand.
type Provider struct {
	*sdkmetric.MeterProvider
	reader *sdkmetric.ManualReader
}

// NewProvider creates a MeterProvider backed by a ManualReader.
func NewProvider() *Provider {
	reader := sdkmetric.NewManualReader()
	return &Provider{
		MeterProvider: sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)),
		reader:        reader,
	}
}

// Collect gathers the current readings.
func (p *Provider) Collect(ctx context.Context) (metricdata.ResourceMetrics, error) {
	var rm metricdata.ResourceMetrics
	if err := p.reader.Collect(ctx, &rm); err != nil {
		return rm, fmt.Errorf("collecting metrics: %w", err)
	}
	return rm, nil
}

// LogSummary logs one debug line per recorded instrument.
func (p *Provider) LogSummary(ctx context.Context, log *slog.Logger) {
	rm, err := p.Collect(ctx)
	if err != nil {
		log.Warn("Metrics summary unavailable", "error", err)
		return
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			log.Debug("Metric", "name", m.Name, "value", summarize(m.Data))
		}
	}
}

func summarize(data metricdata.Aggregation) string {
	switch d := data.(type) {
	case metricdata.Sum[int64]:
		var total int64
		for _, dp := range d.DataPoints {
			total += dp.Value
		}
		return fmt.Sprintf("%d", total)
	case metricdata.Histogram[float64]:
		var count uint64
		var sum float64
		for _, dp := range d.DataPoints {
			count += dp.Count
			sum += dp.Sum
		}
		return fmt.Sprintf("count=%d sum=%.6f", count, sum)
	}
	return fmt.Sprintf("%T", data)
}
