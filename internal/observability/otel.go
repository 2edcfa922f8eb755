package observability

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"

	"github.com/yungbote/galaxychat-backend/internal/platform/logger"
)

type OtelConfig struct {
	Enabled     bool
	ServiceName string
	Environment string
	Version     string

	// Endpoint is the OTLP/HTTP collector host:port; empty selects the stdout exporter.
	Endpoint    string
	Headers     map[string]string
	Insecure    bool
	SampleRatio float64
}

// InitOTel installs the global tracer provider and propagators. The returned func
// flushes and stops the provider; it is a no-op when tracing is disabled.
func InitOTel(ctx context.Context, log *logger.Logger, cfg OtelConfig) func(context.Context) error {
	noop := func(context.Context) error { return nil }
	if !cfg.Enabled {
		return noop
	}
	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "galaxychat"
	}
	res, err := resource.New(
		ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(strings.TrimSpace(cfg.Version)),
			attribute.String("deployment.environment", strings.TrimSpace(cfg.Environment)),
		),
	)
	if err != nil {
		log.Warn("otel resource init failed (continuing)", "error", err)
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(clampRatio(cfg.SampleRatio)))),
		sdktrace.WithResource(res),
	}
	exporter, err := buildTraceExporter(ctx, log, cfg)
	if err != nil {
		log.Warn("otel exporter init failed (continuing)", "error", err)
	} else {
		opts = append(opts, sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)))
	}

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	log.Info("otel tracing initialized", "service", serviceName, "endpoint", cfg.Endpoint)
	return tp.Shutdown
}

func clampRatio(f float64) float64 {
	switch {
	case f <= 0:
		return 0.1
	case f > 1:
		return 1
	default:
		return f
	}
}

func buildTraceExporter(ctx context.Context, log *logger.Logger, cfg OtelConfig) (sdktrace.SpanExporter, error) {
	if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		if len(cfg.Headers) > 0 {
			opts = append(opts, otlptracehttp.WithHeaders(cfg.Headers))
		}
		return otlptracehttp.New(ctx, opts...)
	}
	log.Warn("otel using stdout exporter (no OTLP endpoint configured)")
	return stdouttrace.New(stdouttrace.WithPrettyPrint())
}

// ParseHeaders reads the "k1=v1,k2=v2" form of OTEL_EXPORTER_OTLP_HEADERS.
func ParseHeaders(raw string) map[string]string {
	headers := map[string]string{}
	for _, part := range strings.Split(raw, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if !ok || k == "" || v == "" {
			continue
		}
		headers[k] = v
	}
	if len(headers) == 0 {
		return nil
	}
	return headers
}
