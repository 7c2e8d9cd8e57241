package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	eventsIngested       metric.Int64Counter
	eventsSkipped        metric.Int64Counter
	aggregateRowsWritten metric.Int64Counter
	insightFlagsRaised   metric.Int64Counter
	insightFlagsResolved metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "marginlens"
	}
	meter := provider.Meter(name)

	eventsIngested, err := meter.Int64Counter("marginlens_events_ingested_total")
	if err != nil {
		return nil, err
	}
	eventsSkipped, err := meter.Int64Counter("marginlens_events_skipped_total")
	if err != nil {
		return nil, err
	}
	aggregateRowsWritten, err := meter.Int64Counter("marginlens_aggregate_rows_written_total")
	if err != nil {
		return nil, err
	}
	insightFlagsRaised, err := meter.Int64Counter("marginlens_insight_flags_raised_total")
	if err != nil {
		return nil, err
	}
	insightFlagsResolved, err := meter.Int64Counter("marginlens_insight_flags_resolved_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		eventsIngested:       eventsIngested,
		eventsSkipped:        eventsSkipped,
		aggregateRowsWritten: aggregateRowsWritten,
		insightFlagsRaised:   insightFlagsRaised,
		insightFlagsResolved: insightFlagsResolved,
	}, nil
}

// RecordEventIngested increments ingest counts by event kind.
func (m *Metrics) RecordEventIngested(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("event_kind", strings.TrimSpace(kind)))
	m.eventsIngested.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordEventSkipped increments the skip counter with a low-cardinality reason.
func (m *Metrics) RecordEventSkipped(ctx context.Context, kind, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("event_kind", strings.TrimSpace(kind)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.eventsSkipped.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordAggregateRows adds newly materialized aggregate row counts.
func (m *Metrics) RecordAggregateRows(ctx context.Context, count int64) {
	if m == nil || count <= 0 {
		return
	}
	m.aggregateRowsWritten.Add(ctx, count)
}

// RecordInsightRaised increments raised insight counts by type and severity.
func (m *Metrics) RecordInsightRaised(ctx context.Context, insightType, severity string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("insight_type", strings.TrimSpace(insightType)),
		attribute.String("severity", strings.TrimSpace(severity)),
	)
	m.insightFlagsRaised.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordInsightsResolved adds counts of flags retired during a refresh.
func (m *Metrics) RecordInsightsResolved(ctx context.Context, count int64) {
	if m == nil || count <= 0 {
		return
	}
	m.insightFlagsResolved.Add(ctx, count)
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"event_kind":   {},
	"event_type":   {},
	"insight_type": {},
	"severity":     {},
	"status_code":  {},
	"endpoint":     {},
	"reason":       {},
	"job":          {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
