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
	completionRequests metric.Int64Counter
	admissionDenied    metric.Int64Counter
	usageEvents        metric.Int64Counter
	providerFailures   metric.Int64Counter
	tokensRecorded     metric.Int64Counter
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

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "freeway"
	}
	meter := provider.Meter(name)

	completionRequests, err := meter.Int64Counter("freeway_completion_requests_total")
	if err != nil {
		return nil, err
	}
	admissionDenied, err := meter.Int64Counter("freeway_admission_denied_total")
	if err != nil {
		return nil, err
	}
	usageEvents, err := meter.Int64Counter("freeway_usage_events_total")
	if err != nil {
		return nil, err
	}
	providerFailures, err := meter.Int64Counter("freeway_provider_failures_total")
	if err != nil {
		return nil, err
	}
	tokensRecorded, err := meter.Int64Counter("freeway_tokens_recorded_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		completionRequests: completionRequests,
		admissionDenied:    admissionDenied,
		usageEvents:        usageEvents,
		providerFailures:   providerFailures,
		tokensRecorded:     tokensRecorded,
	}, nil
}

// RecordCompletionRequest counts inbound completion requests per model.
func (m *Metrics) RecordCompletionRequest(ctx context.Context, model string, streamed bool) {
	if m == nil {
		return
	}
	mode := "sync"
	if streamed {
		mode = "stream"
	}
	attrs := FilterAttributes(
		attribute.String("model", strings.TrimSpace(model)),
		attribute.String("mode", mode),
	)
	m.completionRequests.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordAdmissionDenied counts quota denials by reason.
func (m *Metrics) RecordAdmissionDenied(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("reason", strings.TrimSpace(reason)))
	m.admissionDenied.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordUsageEvent counts ledger appends per model.
func (m *Metrics) RecordUsageEvent(ctx context.Context, model string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("model", strings.TrimSpace(model)))
	m.usageEvents.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordProviderFailure counts upstream completion failures.
func (m *Metrics) RecordProviderFailure(ctx context.Context, model string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("model", strings.TrimSpace(model)))
	m.providerFailures.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordTokens counts prompt and completion tokens written to the ledger.
func (m *Metrics) RecordTokens(ctx context.Context, model, kind string, count int64) {
	if m == nil || count <= 0 {
		return
	}
	attrs := FilterAttributes(
		attribute.String("model", strings.TrimSpace(model)),
		attribute.String("kind", strings.TrimSpace(kind)),
	)
	m.tokensRecorded.Add(ctx, count, metric.WithAttributes(attrs...))
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
	"model":       {},
	"mode":        {},
	"kind":        {},
	"reason":      {},
	"endpoint":    {},
	"backend":     {},
	"status_code": {},
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
