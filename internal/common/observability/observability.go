package observability

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Observability owns the OTel meter and tracer providers of the process.
type Observability struct {
	meterProvider  *metric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer
	reqCounter     otelmetric.Int64Counter
	reqDuration    otelmetric.Float64Histogram
}

// Options configure New. A nil Registerer means prometheus.DefaultRegisterer.
// SpanProcessors are only used when Tracing is set.
type Options struct {
	ServiceName    string
	ServiceVersion string
	Tracing        bool
	Registerer     prometheus.Registerer
	SpanProcessors []sdktrace.SpanProcessor
}

// New installs the global meter provider and, with Tracing, the global tracer provider.
// Metrics are exported through the Prometheus registry so they appear on the same
// /metrics endpoint as promauto vectors. Without Tracing spans are no-ops.
func New(opts Options) (*Observability, error) {
	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	exporter, err := otelprom.New(otelprom.WithRegisterer(reg))
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	res := resource.NewSchemaless(
		semconv.ServiceName(opts.ServiceName),
		semconv.ServiceVersion(opts.ServiceVersion),
	)

	mp := metric.NewMeterProvider(metric.WithReader(exporter), metric.WithResource(res))
	otel.SetMeterProvider(mp)

	var (
		tp     *sdktrace.TracerProvider
		tracer trace.Tracer
	)
	if opts.Tracing {
		tpOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
		for _, sp := range opts.SpanProcessors {
			tpOpts = append(tpOpts, sdktrace.WithSpanProcessor(sp))
		}
		tp = sdktrace.NewTracerProvider(tpOpts...)
		otel.SetTracerProvider(tp)
		tracer = tp.Tracer(opts.ServiceName)
	} else {
		tracer = noop.NewTracerProvider().Tracer(opts.ServiceName)
	}

	meter := mp.Meter(opts.ServiceName)

	reqCounter, err := meter.Int64Counter(
		"http.server.requests",
		otelmetric.WithDescription("Number of HTTP requests served"),
	)
	if err != nil {
		return nil, err
	}

	reqDuration, err := meter.Float64Histogram(
		"http.server.duration",
		otelmetric.WithDescription("HTTP request duration"),
		otelmetric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &Observability{
		meterProvider:  mp,
		tracerProvider: tp,
		tracer:         tracer,
		reqCounter:     reqCounter,
		reqDuration:    reqDuration,
	}, nil
}

// Tracer returns the tracer of this process.
func (o *Observability) Tracer() trace.Tracer {
	return o.tracer
}

// RecordRequest counts one request and its duration.
func (o *Observability) RecordRequest(ctx context.Context, route string, status int, duration time.Duration) {
	attrs := otelmetric.WithAttributes(
		attribute.String("http.route", route),
		attribute.Int("http.status_code", status),
	)
	o.reqCounter.Add(ctx, 1, attrs)
	o.reqDuration.Record(ctx, float64(duration.Microseconds())/1000, attrs)
}

func (o *Observability) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var firstErr error
	if o.tracerProvider != nil {
		if err := o.tracerProvider.Shutdown(ctx); err != nil {
			firstErr = err
		}
	}
	if err := o.meterProvider.Shutdown(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
