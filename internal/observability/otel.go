package observability

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"

	"github.com/pandoapps/videoSoryBoard/internal/platform/logger"
)

type OtelConfig struct {
	ServiceName string
	Environment string
	Version     string
}

// TraceExportConfig is read from OTEL_* variables. Headers use envconfig's
// map form: "key1:value1,key2:value2".
type TraceExportConfig struct {
	Enabled      bool              `envconfig:"ENABLED" default:"false"`
	SamplerRatio float64           `envconfig:"SAMPLER_RATIO" default:"0.1"`
	Endpoint     string            `envconfig:"EXPORTER_OTLP_ENDPOINT"`
	Headers      map[string]string `envconfig:"EXPORTER_OTLP_HEADERS"`
	Insecure     bool              `envconfig:"EXPORTER_OTLP_INSECURE" default:"false"`
}

func LoadTraceExportConfig() (TraceExportConfig, error) {
	var c TraceExportConfig
	if err := envconfig.Process("OTEL", &c); err != nil {
		return TraceExportConfig{}, fmt.Errorf("load otel config: %w", err)
	}
	c.Endpoint = strings.TrimSpace(c.Endpoint)
	if c.SamplerRatio < 0 {
		c.SamplerRatio = 0
	}
	if c.SamplerRatio > 1 {
		c.SamplerRatio = 1
	}
	return c, nil
}

var (
	otelOnce     sync.Once
	otelShutdown func(context.Context) error
)

// InitOTel installs the global tracer provider once per process. It returns nil
// when tracing is disabled.
func InitOTel(ctx context.Context, log *logger.Logger, cfg OtelConfig) func(context.Context) error {
	otelOnce.Do(func() {
		exp, err := LoadTraceExportConfig()
		if err != nil {
			log.Warn("otel config invalid; tracing disabled", "error", err)
			return
		}
		if !exp.Enabled {
			return
		}
		serviceName := strings.TrimSpace(cfg.ServiceName)
		if serviceName == "" {
			serviceName = "videosoryboard"
		}
		res, err := resource.New(ctx, resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(strings.TrimSpace(cfg.Version)),
			attribute.String("deployment.environment", strings.TrimSpace(cfg.Environment)),
		))
		if err != nil {
			log.Warn("otel resource init failed (continuing)", "error", err)
		}

		opts := []sdktrace.TracerProviderOption{
			sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(exp.SamplerRatio))),
			sdktrace.WithResource(res),
		}
		exporter, err := newSpanExporter(ctx, log, exp)
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
		otelShutdown = tp.Shutdown
		log.Info("otel tracing initialized", "service", serviceName, "endpoint", exp.Endpoint, "ratio", exp.SamplerRatio)
	})
	return otelShutdown
}

// newSpanExporter ships over OTLP/HTTP when an endpoint is set, else prints spans.
func newSpanExporter(ctx context.Context, log *logger.Logger, cfg TraceExportConfig) (sdktrace.SpanExporter, error) {
	if cfg.Endpoint == "" {
		log.Warn("otel using stdout exporter (no OTLP endpoint configured)")
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	}
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(cfg.Headers))
	}
	return otlptracehttp.New(ctx, opts...)
}
