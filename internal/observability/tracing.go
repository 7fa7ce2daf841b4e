package observability

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/signalsfoundry/repeater-blackhole-sim/internal/logging"
)

const (
	defaultServiceName  = "bhsim"
	defaultOTLPEndpoint = "localhost:4317"
)

// TracingConfig selects where request spans go. It is read from the
// environment and may be overridden by the tracing section of a sweep file.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	ServiceName string  `yaml:"service_name"`
	Exporter    string  `yaml:"exporter" validate:"omitempty,oneof=stdout otlp otlpgrpc"`
	Endpoint    string  `yaml:"endpoint"`
	SampleRatio float64 `yaml:"sample_ratio" validate:"gte=0,lte=1"`
	// Sweep labels every span with the sweep that produced it.
	Sweep string `yaml:"-"`
}

// DefaultTracingConfig is disabled tracing with a stdout exporter that
// samples every request once enabled.
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{ServiceName: defaultServiceName, Exporter: "stdout", SampleRatio: 1}
}

// TracingConfigFromEnv applies BHSIM_TRACING_ENABLED, BHSIM_TRACING_EXPORTER,
// BHSIM_TRACING_SERVICE_NAME, BHSIM_TRACING_SAMPLE_RATIO and
// BHSIM_OTLP_ENDPOINT over the defaults. Unparseable or out-of-range ratios
// are ignored.
func TracingConfigFromEnv() TracingConfig {
	cfg := DefaultTracingConfig()
	cfg.Enabled = strings.EqualFold(os.Getenv("BHSIM_TRACING_ENABLED"), "true")
	if v := os.Getenv("BHSIM_TRACING_EXPORTER"); v != "" {
		cfg.Exporter = strings.ToLower(v)
	}
	if v := os.Getenv("BHSIM_TRACING_SERVICE_NAME"); v != "" {
		cfg.ServiceName = v
	}
	if v := os.Getenv("BHSIM_TRACING_SAMPLE_RATIO"); v != "" {
		if r, err := strconv.ParseFloat(v, 64); err == nil && r >= 0 && r <= 1 {
			cfg.SampleRatio = r
		}
	}
	cfg.Endpoint = os.Getenv("BHSIM_OTLP_ENDPOINT")
	return cfg
}

// Merge overlays the set fields of file on c. Tracing is on when either
// side enables it.
func (c TracingConfig) Merge(file TracingConfig) TracingConfig {
	out := c
	out.Enabled = c.Enabled || file.Enabled
	if file.ServiceName != "" {
		out.ServiceName = file.ServiceName
	}
	if file.Exporter != "" {
		out.Exporter = strings.ToLower(file.Exporter)
	}
	if file.Endpoint != "" {
		out.Endpoint = file.Endpoint
	}
	if file.SampleRatio > 0 {
		out.SampleRatio = file.SampleRatio
	}
	if file.Sweep != "" {
		out.Sweep = file.Sweep
	}
	return out
}

type exporterFactory func(ctx context.Context, cfg TracingConfig) (sdktrace.SpanExporter, error)

func stdoutExporter(context.Context, TracingConfig) (sdktrace.SpanExporter, error) {
	return stdouttrace.New(
		stdouttrace.WithWriter(os.Stderr),
		stdouttrace.WithPrettyPrint(),
		stdouttrace.WithoutTimestamps(),
	)
}

func otlpExporter(ctx context.Context, cfg TracingConfig) (sdktrace.SpanExporter, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultOTLPEndpoint
	}
	return otlptrace.New(ctx, otlptracegrpc.NewClient(
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	))
}

var exporters = map[string]exporterFactory{
	"":         stdoutExporter,
	"stdout":   stdoutExporter,
	"otlp":     otlpExporter,
	"otlpgrpc": otlpExporter,
}

// InitTracing installs the global tracer provider for cfg and returns the
// function that flushes it. Disabled tracing installs a noop provider.
func InitTracing(ctx context.Context, cfg TracingConfig, log logging.Logger) (func(context.Context) error, error) {
	if log == nil {
		log = logging.Noop()
	}
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	if !cfg.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		log.Debug(ctx, "tracing disabled")
		return func(context.Context) error { return nil }, nil
	}

	newExporter, ok := exporters[strings.ToLower(cfg.Exporter)]
	if !ok {
		return nil, fmt.Errorf("unsupported tracing exporter: %s", cfg.Exporter)
	}
	exp, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create %s exporter: %w", cfg.Exporter, err)
	}

	if cfg.ServiceName == "" {
		cfg.ServiceName = defaultServiceName
	}
	attrs := []attribute.KeyValue{
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.namespace", "repeater-blackhole-sim"),
	}
	if cfg.Sweep != "" {
		attrs = append(attrs, attribute.String("bhsim.sweep", cfg.Sweep))
	}
	res, err := resource.New(ctx, resource.WithAttributes(attrs...))
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	log.Info(ctx, "tracing enabled",
		logging.String("exporter", cfg.Exporter),
		logging.String("service_name", cfg.ServiceName),
		logging.Any("sample_ratio", cfg.SampleRatio),
		logging.String("sweep", cfg.Sweep),
	)
	return tp.Shutdown, nil
}

// ShutdownWithTimeout flushes spans within five seconds and logs a failure.
func ShutdownWithTimeout(ctx context.Context, shutdown func(context.Context) error, log logging.Logger) {
	if shutdown == nil {
		return
	}
	if log == nil {
		log = logging.Noop()
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		log.Warn(ctx, "tracing shutdown failed", logging.String("error", err.Error()))
	}
}
