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
	datasetUploads    metric.Int64Counter
	datasetDeletes    metric.Int64Counter
	datasetExports    metric.Int64Counter
	searchQueries     metric.Int64Counter
	assistantRequests metric.Int64Counter
	rateLimitDenied   metric.Int64Counter
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
		name = "oceandata"
	}
	meter := provider.Meter(name)

	datasetUploads, err := meter.Int64Counter("oceandata_dataset_uploads_total")
	if err != nil {
		return nil, err
	}
	datasetDeletes, err := meter.Int64Counter("oceandata_dataset_deletes_total")
	if err != nil {
		return nil, err
	}
	datasetExports, err := meter.Int64Counter("oceandata_dataset_exports_total")
	if err != nil {
		return nil, err
	}
	searchQueries, err := meter.Int64Counter("oceandata_search_queries_total")
	if err != nil {
		return nil, err
	}
	assistantRequests, err := meter.Int64Counter("oceandata_assistant_requests_total")
	if err != nil {
		return nil, err
	}
	rateLimitDenied, err := meter.Int64Counter("oceandata_rate_limit_denied_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		datasetUploads:    datasetUploads,
		datasetDeletes:    datasetDeletes,
		datasetExports:    datasetExports,
		searchQueries:     searchQueries,
		assistantRequests: assistantRequests,
		rateLimitDenied:   rateLimitDenied,
	}, nil
}

// RecordDatasetUpload increments accepted upload counts.
func (m *Metrics) RecordDatasetUpload(ctx context.Context, source, format string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("source", strings.TrimSpace(source)),
		attribute.String("format", strings.TrimSpace(format)),
	)
	m.datasetUploads.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordDatasetDelete(ctx context.Context) {
	if m == nil {
		return
	}
	m.datasetDeletes.Add(ctx, 1)
}

func (m *Metrics) RecordDatasetExport(ctx context.Context, format string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("format", strings.TrimSpace(format)))
	m.datasetExports.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordSearch increments search counts, split by whether a source filter was applied.
func (m *Metrics) RecordSearch(ctx context.Context, source string) {
	if m == nil {
		return
	}
	source = strings.TrimSpace(source)
	if source == "" {
		source = "all"
	}
	attrs := FilterAttributes(attribute.String("source", source))
	m.searchQueries.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordAssistantRequest increments chat and image analysis counts.
func (m *Metrics) RecordAssistantRequest(ctx context.Context, kind, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("kind", strings.TrimSpace(kind)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.assistantRequests.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRateLimitDenied increments rate limit deny counts.
func (m *Metrics) RecordRateLimitDenied(ctx context.Context, endpoint, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(attrs...))
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
	"endpoint":    {},
	"status_code": {},
	"source":      {},
	"format":      {},
	"kind":        {},
	"outcome":     {},
	"reason":      {},
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
