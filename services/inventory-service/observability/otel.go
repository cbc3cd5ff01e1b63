package observability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/zap/zapcore"
)

const (
	TracesPath = "/v1/traces"
	LogsPath   = "/v1/logs"
)

// Settings configures the OTLP/HTTP exporters. An empty Endpoint disables
// export entirely.
type Settings struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	AuthHeader     string
	Insecure       bool
	ExportTimeout  time.Duration
	MaxQueueSize   int
}

func (s Settings) withDefaults() Settings {
	if s.ExportTimeout <= 0 {
		s.ExportTimeout = 30 * time.Second
	}
	if s.MaxQueueSize <= 0 {
		s.MaxQueueSize = 2048
	}
	return s
}

func (s Settings) headers() map[string]string {
	if s.AuthHeader == "" {
		return nil
	}
	return map[string]string{"Authorization": s.AuthHeader}
}

// NewResource describes this service to the collector.
func NewResource(s Settings) *resource.Resource {
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(s.ServiceName),
		semconv.ServiceVersion(s.ServiceVersion),
	)
}

func noopShutdown(context.Context) error { return nil }

// SetupTracingSDK installs the global tracer provider and the W3C trace
// context propagator. tp is nil when export is disabled.
func SetupTracingSDK(ctx context.Context, s Settings) (tp *sdktrace.TracerProvider, shutdown func(context.Context) error, err error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	if s.Endpoint == "" {
		return nil, noopShutdown, nil
	}
	s = s.withDefaults()

	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(s.Endpoint),
		otlptracehttp.WithURLPath(TracesPath),
		otlptracehttp.WithHeaders(s.headers()),
	}
	if s.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("OTLP trace exporter: %w", err)
	}

	tp = sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
		sdktrace.WithResource(NewResource(s)),
		sdktrace.WithSpanProcessor(sdktrace.NewBatchSpanProcessor(exporter,
			sdktrace.WithExportTimeout(s.ExportTimeout),
			sdktrace.WithMaxQueueSize(s.MaxQueueSize),
		)),
	)
	otel.SetTracerProvider(tp)
	return tp, tp.Shutdown, nil
}

// SetupLoggingSDK installs the global OpenTelemetry logger provider that
// NewOTelCore writes to.
func SetupLoggingSDK(ctx context.Context, s Settings) (shutdown func(context.Context) error, err error) {
	if s.Endpoint == "" {
		return noopShutdown, nil
	}
	s = s.withDefaults()

	opts := []otlploghttp.Option{
		otlploghttp.WithEndpoint(s.Endpoint),
		otlploghttp.WithURLPath(LogsPath),
		otlploghttp.WithHeaders(s.headers()),
	}
	if s.Insecure {
		opts = append(opts, otlploghttp.WithInsecure())
	}
	exporter, err := otlploghttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("OTLP log exporter: %w", err)
	}

	provider := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter,
			sdklog.WithExportTimeout(s.ExportTimeout),
			sdklog.WithMaxQueueSize(s.MaxQueueSize),
		)),
		sdklog.WithResource(NewResource(s)),
	)
	global.SetLoggerProvider(provider)
	return provider.Shutdown, nil
}

// NewOTelCore bridges zap entries into the global logger provider.
func NewOTelCore(scope string) zapcore.Core {
	return otelzap.NewCore(scope, otelzap.WithLoggerProvider(global.GetLoggerProvider()))
}

// Shutdown runs every shutdown function and joins their errors.
func Shutdown(ctx context.Context, fns ...func(context.Context) error) error {
	var err error
	for _, fn := range fns {
		if fn != nil {
			err = errors.Join(err, fn(ctx))
		}
	}
	return err
}
