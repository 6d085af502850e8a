//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package trace provides the OpenTelemetry tracer used by graph runs and
// a Start helper that wires an OTLP exporter.
package trace

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
)

// InstrumentName is the instrumentation scope of all spans.
const InstrumentName = "trpc.group/trpc-go/trpc-swarm-go"

const (
	protocolGRPC = "grpc"
	protocolHTTP = "http"

	defaultServiceName      = "trpc-swarm-go"
	defaultServiceNamespace = "trpc-go-agent"
)

// Tracer is the tracer used across the module. It delegates to the global
// provider until Start installs an exporter-backed one.
var Tracer trace.Tracer = otel.Tracer(InstrumentName)

type options struct {
	protocol           string
	endpoint           string
	endpointURL        string
	headers            map[string]string
	serviceName        string
	serviceNamespace   string
	serviceVersion     string
	resourceAttributes []attribute.KeyValue
	dialOptions        []grpc.DialOption
	exportTimeout      time.Duration
}

// Option configures Start.
type Option func(*options)

// WithProtocol selects the OTLP protocol: "grpc" (default) or "http".
func WithProtocol(protocol string) Option {
	return func(o *options) { o.protocol = protocol }
}

// WithEndpoint sets the collector host:port.
func WithEndpoint(endpoint string) Option {
	return func(o *options) { o.endpoint = endpoint }
}

// WithEndpointURL sets a full collector URL. For HTTP the path is used as
// the traces path; for gRPC it is passed through unchanged.
func WithEndpointURL(endpointURL string) Option {
	return func(o *options) { o.endpointURL = endpointURL }
}

// WithHeaders adds headers sent with every export.
func WithHeaders(headers map[string]string) Option {
	return func(o *options) { o.headers = headers }
}

// WithServiceName sets service.name. OTEL_SERVICE_NAME wins over it.
func WithServiceName(name string) Option {
	return func(o *options) { o.serviceName = name }
}

// WithServiceNamespace sets service.namespace.
func WithServiceNamespace(namespace string) Option {
	return func(o *options) { o.serviceNamespace = namespace }
}

// WithServiceVersion sets service.version.
func WithServiceVersion(version string) Option {
	return func(o *options) { o.serviceVersion = version }
}

// WithResourceAttributes adds resource attributes. They override
// OTEL_RESOURCE_ATTRIBUTES for the same keys.
func WithResourceAttributes(attrs ...attribute.KeyValue) Option {
	return func(o *options) { o.resourceAttributes = append(o.resourceAttributes, attrs...) }
}

// WithGRPCDialOptions adds dial options for the gRPC exporter, e.g.
// transport credentials. Ignored for HTTP.
func WithGRPCDialOptions(dialOpts ...grpc.DialOption) Option {
	return func(o *options) { o.dialOptions = append(o.dialOptions, dialOpts...) }
}

// WithExportTimeout bounds each export, including the final flush on
// shutdown. Zero keeps the exporter default.
func WithExportTimeout(d time.Duration) Option {
	return func(o *options) { o.exportTimeout = d }
}

// Start installs a tracer provider exporting over OTLP and returns a
// cleanup function that flushes and shuts it down.
func Start(ctx context.Context, opts ...Option) (clean func() error, err error) {
	o := &options{
		protocol:         protocolGRPC,
		serviceName:      defaultServiceName,
		serviceNamespace: defaultServiceNamespace,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.endpoint == "" {
		o.endpoint = tracesEndpoint(o.protocol)
	}

	res, err := buildResource(ctx, o)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	var exporter sdktrace.SpanExporter
	switch o.protocol {
	case protocolHTTP:
		exporter, err = newHTTPExporter(ctx, o)
	default:
		exporter, err = newGRPCExporter(ctx, o)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(provider)
	Tracer = provider.Tracer(InstrumentName)

	return func() error {
		return provider.Shutdown(context.Background())
	}, nil
}

func newGRPCExporter(ctx context.Context, o *options) (sdktrace.SpanExporter, error) {
	grpcOpts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(o.endpoint),
		otlptracegrpc.WithInsecure(),
	}
	if o.endpointURL != "" {
		grpcOpts = append(grpcOpts, otlptracegrpc.WithEndpointURL(o.endpointURL))
	}
	if len(o.headers) > 0 {
		grpcOpts = append(grpcOpts, otlptracegrpc.WithHeaders(o.headers))
	}
	if len(o.dialOptions) > 0 {
		grpcOpts = append(grpcOpts, otlptracegrpc.WithDialOption(o.dialOptions...))
	}
	if o.exportTimeout > 0 {
		grpcOpts = append(grpcOpts, otlptracegrpc.WithTimeout(o.exportTimeout))
	}
	return otlptracegrpc.New(ctx, grpcOpts...)
}

func newHTTPExporter(ctx context.Context, o *options) (sdktrace.SpanExporter, error) {
	endpoint := o.endpoint
	var urlPath string
	if o.endpointURL != "" {
		var err error
		endpoint, urlPath, err = parseEndpointURL(o.endpointURL)
		if err != nil {
			return nil, err
		}
	}
	httpOpts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	}
	if urlPath != "" {
		httpOpts = append(httpOpts, otlptracehttp.WithURLPath(urlPath))
	}
	if len(o.headers) > 0 {
		httpOpts = append(httpOpts, otlptracehttp.WithHeaders(o.headers))
	}
	if o.exportTimeout > 0 {
		httpOpts = append(httpOpts, otlptracehttp.WithTimeout(o.exportTimeout))
	}
	return otlptracehttp.New(ctx, httpOpts...)
}

// buildResource merges code attributes, then the OTEL_* environment, then
// explicit resource attributes; later sources win.
func buildResource(ctx context.Context, o *options) (*resource.Resource, error) {
	base := []attribute.KeyValue{semconv.ServiceName(o.serviceName)}
	if o.serviceNamespace != "" {
		base = append(base, semconv.ServiceNamespace(o.serviceNamespace))
	}
	if o.serviceVersion != "" {
		base = append(base, semconv.ServiceVersion(o.serviceVersion))
	}
	return resource.New(ctx,
		resource.WithAttributes(base...),
		resource.WithFromEnv(),
		resource.WithAttributes(o.resourceAttributes...),
	)
}

// parseEndpointURL splits a collector URL into host:port and path. A URL
// without scheme is treated as http.
func parseEndpointURL(raw string) (endpoint, urlPath string, err error) {
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("parse endpoint url: %w", err)
	}
	if u.Host == "" {
		return "", "", fmt.Errorf("endpoint url %q has no host", raw)
	}
	urlPath = u.Path
	if urlPath == "" {
		urlPath = "/"
	}
	return u.Host, urlPath, nil
}

// tracesEndpoint resolves the endpoint from the environment, preferring
// the traces-specific variable.
func tracesEndpoint(protocol string) string {
	if ep := os.Getenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"); ep != "" {
		return ep
	}
	if ep := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); ep != "" {
		return ep
	}
	if protocol == protocolHTTP {
		return "localhost:4318"
	}
	return "localhost:4317"
}
