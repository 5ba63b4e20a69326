package observability

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// DefaultEndpoint is the LangSmith API base URL.
const DefaultEndpoint = "https://api.smith.langchain.com"

// TracingConfig selects where spans go.
type TracingConfig struct {
	// Enabled mirrors LANGSMITH_TRACING. When false Setup installs nothing.
	Enabled bool
	// APIKey authenticates to the OTLP endpoint. Empty selects the stdout exporter.
	APIKey string
	// Project names the trace project and the service. Default: "default".
	Project string
	// Endpoint is the API base URL. Default: DefaultEndpoint.
	Endpoint string
	// Writer receives spans from the stdout exporter. Default: os.Stderr.
	Writer io.Writer
}

// ShutdownFunc flushes and stops the tracer provider.
type ShutdownFunc func(context.Context) error

// Setup installs a global OpenTelemetry tracer provider for cfg.
//
// Disabled tracing installs nothing and returns a no-op shutdown. With an API
// key, spans are batched to {Endpoint}/otel/v1/traces over OTLP/HTTP with the
// x-api-key and Langsmith-Project headers. Without a key, spans are written
// to cfg.Writer so a tutorial run still shows its trace.
func Setup(ctx context.Context, cfg TracingConfig) (ShutdownFunc, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}
	if cfg.Project == "" {
		cfg.Project = "default"
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Writer == nil {
		cfg.Writer = os.Stderr
	}

	exporter, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", cfg.Project),
		attribute.String("langsmith.project", cfg.Project),
	)

	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if cfg.APIKey == "" {
		opts = append(opts, sdktrace.WithSyncer(exporter))
	} else {
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return tp.Shutdown, nil
}

func newExporter(ctx context.Context, cfg TracingConfig) (sdktrace.SpanExporter, error) {
	if cfg.APIKey == "" {
		return stdouttrace.New(stdouttrace.WithWriter(cfg.Writer), stdouttrace.WithPrettyPrint())
	}
	return otlptracehttp.New(ctx,
		otlptracehttp.WithEndpointURL(TracesURL(cfg.Endpoint)),
		otlptracehttp.WithHeaders(map[string]string{
			"x-api-key":         cfg.APIKey,
			"Langsmith-Project": cfg.Project,
		}),
	)
}

// TracesURL returns the OTLP traces URL under an API base URL.
func TracesURL(endpoint string) string {
	return strings.TrimRight(endpoint, "/") + "/otel/v1/traces"
}
