package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"aircall-sync/internal/observability/logger"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// ServiceVersion is reported as service.version on traces and metrics.
const ServiceVersion = "1.0.0"

const exporterDialTimeout = 10 * time.Second

// Options configures OTLP export.
type Options struct {
	ServiceName   string
	Endpoint      string
	SamplingRatio float64
}

// Providers groups the OTLP providers. Any field may be nil when its exporter
// could not start.
type Providers struct {
	Tracer  *sdktrace.TracerProvider
	Meter   *sdkmetric.MeterProvider
	Metrics *Metrics
}

// Init starts tracing and metrics export. Failures are logged and leave the
// matching provider nil: telemetry never prevents the service from starting.
func Init(ctx context.Context, opts Options, log *logger.Logger) *Providers {
	p := &Providers{}

	tp, err := InitTracer(ctx, opts.ServiceName, opts.Endpoint, opts.SamplingRatio)
	if err != nil {
		log.Warn(ctx, "failed to initialize tracer, continuing without tracing", zap.Error(err))
	} else {
		p.Tracer = tp
	}

	mp, m, err := InitMetrics(ctx, opts.ServiceName, opts.Endpoint)
	if err != nil {
		log.Warn(ctx, "failed to initialize metrics, continuing without metrics", zap.Error(err))
	} else {
		p.Meter = mp
		p.Metrics = m
	}

	log.Info(ctx, "telemetry initialized",
		zap.String("endpoint", opts.Endpoint),
		zap.Bool("tracing", p.Tracer != nil),
		zap.Bool("metrics", p.Metrics != nil),
	)
	return p
}

// Shutdown flushes and stops every started provider.
func (p *Providers) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	var errs []error
	if p.Tracer != nil {
		if err := p.Tracer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider: %w", err))
		}
	}
	if p.Meter != nil {
		if err := p.Meter.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider: %w", err))
		}
	}
	return errors.Join(errs...)
}

func newResource(ctx context.Context, serviceName string) (*resource.Resource, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return res, nil
}

// dialOptions returns the gRPC options shared by both exporters. The collector
// is expected on a local sidecar, so the connection is plaintext.
func dialOptions() []grpc.DialOption {
	return []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}
}
