package tracing

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/exporters/zipkin"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Config configures the optional OpenTelemetry export of a simulation run.
// Adapted from the teacher's internal/gateway/tracing.Config: same fields,
// same defaults, now describing spans over simulated events instead of
// gateway HTTP requests.
type Config struct {
	Enable       bool
	ServiceName  string
	Endpoint     string
	Exporter     string // "jaeger" or "zipkin"
	SampleRate   float64
	Environment  string
	BatchTimeout int
	MaxQueueSize int
	RunID        string // correlates this run's spans with its log lines, see internal/runid
}

// DefaultConfig returns tracing disabled, matching the simulator's default
// of emitting no external telemetry unless an operator opts in.
func DefaultConfig() *Config {
	return &Config{
		Enable:       false,
		ServiceName:  "quantumsim",
		Endpoint:     "http://localhost:14268/api/traces",
		Exporter:     "jaeger",
		SampleRate:   1.0,
		Environment:  "development",
		BatchTimeout: 5,
		MaxQueueSize: 2048,
	}
}

// Provider owns the OpenTelemetry TracerProvider for a run and exposes it
// as a Hook.
type Provider struct {
	config   *Config
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
	logger   *zap.Logger
}

// NewProvider builds a Provider. If cfg.Enable is false it returns a
// Provider whose Hook is a NopHook, so callers can wire it unconditionally.
func NewProvider(cfg *Config, logger *zap.Logger) (*Provider, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if !cfg.Enable {
		logger.Info("tracing disabled")
		return &Provider{config: cfg, logger: logger}, nil
	}

	attrs := []attribute.KeyValue{
		semconv.ServiceName(cfg.ServiceName),
		semconv.DeploymentEnvironment(cfg.Environment),
	}
	if cfg.RunID != "" {
		attrs = append(attrs, attribute.String("run_id", cfg.RunID))
	}
	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(attrs...),
	)
	if err != nil {
		return nil, fmt.Errorf("tracing: creating resource: %w", err)
	}

	var exporter sdktrace.SpanExporter
	switch cfg.Exporter {
	case "jaeger":
		exporter, err = jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(cfg.Endpoint)))
		if err != nil {
			return nil, fmt.Errorf("tracing: creating jaeger exporter: %w", err)
		}
	case "zipkin":
		exporter, err = zipkin.New(cfg.Endpoint)
		if err != nil {
			return nil, fmt.Errorf("tracing: creating zipkin exporter: %w", err)
		}
	default:
		return nil, fmt.Errorf("tracing: unsupported exporter %q", cfg.Exporter)
	}

	var sampler sdktrace.Sampler
	switch {
	case cfg.SampleRate >= 1.0:
		sampler = sdktrace.AlwaysSample()
	case cfg.SampleRate <= 0.0:
		sampler = sdktrace.NeverSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(cfg.SampleRate)
	}

	batcher := sdktrace.NewBatchSpanProcessor(
		exporter,
		sdktrace.WithBatchTimeout(time.Duration(cfg.BatchTimeout)*time.Second),
		sdktrace.WithMaxQueueSize(cfg.MaxQueueSize),
	)

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
		sdktrace.WithSpanProcessor(batcher),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info("tracing initialized",
		zap.String("service", cfg.ServiceName),
		zap.String("exporter", cfg.Exporter),
		zap.Float64("sample_rate", cfg.SampleRate),
	)

	return &Provider{
		config:   cfg,
		provider: provider,
		tracer:   provider.Tracer(cfg.ServiceName),
		logger:   logger,
	}, nil
}

// Hook returns a Hook that emits one span per simulator event. When
// tracing is disabled it returns NopHook.
func (p *Provider) Hook() Hook {
	if p.tracer == nil {
		return NopHook{}
	}
	return &otelHook{tracer: p.tracer}
}

// Shutdown flushes and stops the underlying span processor, if any.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.provider == nil {
		return nil
	}
	return p.provider.Shutdown(ctx)
}

type otelHook struct {
	tracer trace.Tracer
}

// OnEvent implements Hook by starting and immediately ending a span per
// simulated event, carrying the simulated time as an attribute since real
// wall-clock span timing is meaningless for a logical clock.
func (h *otelHook) OnEvent(e Event) {
	_, span := h.tracer.Start(context.Background(), e.Kind)
	span.SetAttributes(
		attribute.Float64("sim.time", e.Time),
		attribute.String("sim.target", e.Target),
		attribute.String("sim.detail", e.Detail),
	)
	span.End()
}
