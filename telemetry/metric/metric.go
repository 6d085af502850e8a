//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package metric provides the swarm's OpenTelemetry instruments and a
// Start helper that wires an OTLP metric exporter.
package metric

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// Instrument and attribute names.
const (
	MeterName = "trpc.group/trpc-go/trpc-swarm-go"

	MetricSwarmHandoffCnt  = "swarm.handoff.count"
	MetricGraphNodeRunCnt  = "graph.node.run.count"
	AttributeAgentName     = "swarm.agent.name"
	AttributeGraphNodeID   = "graph.node.id"
	AttributeGraphNodeType = "graph.node.type"
)

const (
	protocolGRPC = "grpc"
	protocolHTTP = "http"
)

var (
	mu            sync.RWMutex
	meterProvider metric.MeterProvider
	handoffCnt    metric.Int64Counter
	nodeRunCnt    metric.Int64Counter
)

func init() {
	if err := InitMeterProvider(noop.NewMeterProvider()); err != nil {
		panic(err)
	}
}

// InitMeterProvider (re)creates the instruments on mp.
func InitMeterProvider(mp metric.MeterProvider) error {
	meter := mp.Meter(MeterName)
	handoffs, err := meter.Int64Counter(
		MetricSwarmHandoffCnt,
		metric.WithDescription("Number of handoffs between swarm agents"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create metric %s: %w", MetricSwarmHandoffCnt, err)
	}
	nodeRuns, err := meter.Int64Counter(
		MetricGraphNodeRunCnt,
		metric.WithDescription("Number of graph node executions"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create metric %s: %w", MetricGraphNodeRunCnt, err)
	}

	mu.Lock()
	defer mu.Unlock()
	meterProvider = mp
	handoffCnt = handoffs
	nodeRunCnt = nodeRuns
	return nil
}

// GetMeterProvider returns the provider the instruments were created on.
func GetMeterProvider() metric.MeterProvider {
	mu.RLock()
	defer mu.RUnlock()
	return meterProvider
}

// RecordHandoff counts a transfer of control to agent.
func RecordHandoff(ctx context.Context, agent string) {
	mu.RLock()
	counter := handoffCnt
	mu.RUnlock()
	counter.Add(ctx, 1, metric.WithAttributes(attribute.String(AttributeAgentName, agent)))
}

// RecordNodeRun counts one execution of a graph node.
func RecordNodeRun(ctx context.Context, nodeID, nodeType string) {
	mu.RLock()
	counter := nodeRunCnt
	mu.RUnlock()
	counter.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttributeGraphNodeID, nodeID),
		attribute.String(AttributeGraphNodeType, nodeType),
	))
}

type options struct {
	protocol      string
	endpoint      string
	serviceName   string
	exportTimeout time.Duration
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

// WithServiceName sets service.name on the exported resource.
func WithServiceName(name string) Option {
	return func(o *options) { o.serviceName = name }
}

// WithExportTimeout bounds each export, including the final flush on
// shutdown. Zero keeps the exporter default.
func WithExportTimeout(d time.Duration) Option {
	return func(o *options) { o.exportTimeout = d }
}

// Start installs a meter provider with a periodic OTLP reader and returns
// a cleanup function that flushes and shuts it down.
func Start(ctx context.Context, opts ...Option) (clean func() error, err error) {
	o := &options{protocol: protocolGRPC, serviceName: "trpc-swarm-go"}
	for _, opt := range opts {
		opt(o)
	}
	if o.endpoint == "" {
		o.endpoint = metricsEndpoint(o.protocol)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(o.serviceName)),
		resource.WithFromEnv(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	var exporter sdkmetric.Exporter
	switch o.protocol {
	case protocolHTTP:
		httpOpts := []otlpmetrichttp.Option{
			otlpmetrichttp.WithEndpoint(o.endpoint),
			otlpmetrichttp.WithInsecure(),
		}
		if o.exportTimeout > 0 {
			httpOpts = append(httpOpts, otlpmetrichttp.WithTimeout(o.exportTimeout))
		}
		exporter, err = otlpmetrichttp.New(ctx, httpOpts...)
	default:
		grpcOpts := []otlpmetricgrpc.Option{
			otlpmetricgrpc.WithEndpoint(o.endpoint),
			otlpmetricgrpc.WithInsecure(),
		}
		if o.exportTimeout > 0 {
			grpcOpts = append(grpcOpts, otlpmetricgrpc.WithTimeout(o.exportTimeout))
		}
		exporter, err = otlpmetricgrpc.New(ctx, grpcOpts...)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}

	var readerOpts []sdkmetric.PeriodicReaderOption
	if o.exportTimeout > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithTimeout(o.exportTimeout))
	}
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
	)
	if err := InitMeterProvider(provider); err != nil {
		_ = provider.Shutdown(context.Background())
		return nil, err
	}
	otel.SetMeterProvider(provider)
	return func() error {
		return provider.Shutdown(context.Background())
	}, nil
}

func metricsEndpoint(protocol string) string {
	if ep := os.Getenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT"); ep != "" {
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
