package observability

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/zatekoja/trialmatch"

// Metrics holds all application metrics. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	RequestCount     metric.Int64Counter
	RequestDuration  metric.Float64Histogram
	ScreeningCount   metric.Int64Counter
	MatchesReturned  metric.Int64Histogram
	FallbackCount    metric.Int64Counter
	GeocodeCacheHits metric.Int64Counter
	GeocodeCacheMiss metric.Int64Counter
	TrialsIngested   metric.Int64Counter
	TrialsRejected   metric.Int64Counter
}

// Setup initializes OpenTelemetry tracing and metrics export and starts
// runtime instrumentation.
func Setup(ctx context.Context, serviceName, serviceVersion, endpoint string) (func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	// Set up trace exporter
	traceExporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	// Set up metric exporter
	metricExporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(endpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		_ = tracerProvider.Shutdown(ctx)
		return nil, err
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(meterProvider)

	if err := runtime.Start(runtime.WithMeterProvider(meterProvider)); err != nil {
		_ = tracerProvider.Shutdown(ctx)
		_ = meterProvider.Shutdown(ctx)
		return nil, err
	}

	shutdown := func(ctx context.Context) error {
		return errors.Join(
			tracerProvider.Shutdown(ctx),
			meterProvider.Shutdown(ctx),
		)
	}

	return shutdown, nil
}

// InitMetrics initializes application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter(instrumentationName)

	requestCount, err := meter.Int64Counter(
		"http.server.request.count",
		metric.WithDescription("Number of HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.server.request.duration",
		metric.WithDescription("HTTP request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	screeningCount, err := meter.Int64Counter(
		"trialmatch.screening.count",
		metric.WithDescription("Number of patient screenings"),
	)
	if err != nil {
		return nil, err
	}

	matchesReturned, err := meter.Int64Histogram(
		"trialmatch.matches.returned",
		metric.WithDescription("Number of trial matches returned per screening"),
	)
	if err != nil {
		return nil, err
	}

	fallbackCount, err := meter.Int64Counter(
		"trialmatch.collaborator.fallback.count",
		metric.WithDescription("Number of times a remote collaborator failed and a local fallback was used"),
	)
	if err != nil {
		return nil, err
	}

	cacheHits, err := meter.Int64Counter(
		"trialmatch.geocode.cache.hit.count",
		metric.WithDescription("Number of geocode cache hits"),
	)
	if err != nil {
		return nil, err
	}

	cacheMiss, err := meter.Int64Counter(
		"trialmatch.geocode.cache.miss.count",
		metric.WithDescription("Number of geocode cache misses"),
	)
	if err != nil {
		return nil, err
	}

	ingested, err := meter.Int64Counter(
		"trialmatch.catalog.trials.ingested",
		metric.WithDescription("Number of trial rows accepted into the catalog"),
	)
	if err != nil {
		return nil, err
	}

	rejected, err := meter.Int64Counter(
		"trialmatch.catalog.trials.rejected",
		metric.WithDescription("Number of trial rows rejected during ingestion"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RequestCount:     requestCount,
		RequestDuration:  requestDuration,
		ScreeningCount:   screeningCount,
		MatchesReturned:  matchesReturned,
		FallbackCount:    fallbackCount,
		GeocodeCacheHits: cacheHits,
		GeocodeCacheMiss: cacheMiss,
		TrialsIngested:   ingested,
		TrialsRejected:   rejected,
	}, nil
}

// StartSpan starts a new trace span
func StartSpan(ctx context.Context, spanName string) (context.Context, trace.Span) {
	tracer := otel.Tracer(instrumentationName)
	return tracer.Start(ctx, spanName)
}

// RecordError records an error in the current span
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
	}
}

// SetSpanAttributes sets attributes on a span
func SetSpanAttributes(span trace.Span, attrs ...attribute.KeyValue) {
	span.SetAttributes(attrs...)
}

// RecordRequestMetric records a metric with attributes
func RecordRequestMetric(ctx context.Context, metrics *Metrics, method, path string, statusCode int, duration time.Duration) {
	if metrics == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.route", path),
		attribute.Int("http.status_code", statusCode),
	}

	metrics.RequestCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	metrics.RequestDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
}

// RecordScreening records one completed screening and its result size.
func RecordScreening(ctx context.Context, metrics *Metrics, matches int, geoFiltered bool) {
	if metrics == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.Bool("screening.geo_filtered", geoFiltered))
	metrics.ScreeningCount.Add(ctx, 1, attrs)
	metrics.MatchesReturned.Record(ctx, int64(matches), attrs)
}

// RecordFallback records that a remote collaborator was bypassed.
func RecordFallback(ctx context.Context, metrics *Metrics, collaborator string) {
	if metrics == nil {
		return
	}
	metrics.FallbackCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("collaborator", collaborator),
	))
}

// RecordCacheHit records a geocode cache hit
func RecordCacheHit(ctx context.Context, metrics *Metrics, provider string) {
	if metrics == nil {
		return
	}
	metrics.GeocodeCacheHits.Add(ctx, 1, metric.WithAttributes(
		attribute.String("geocoder", provider),
	))
}

// RecordCacheMiss records a geocode cache miss
func RecordCacheMiss(ctx context.Context, metrics *Metrics, provider string) {
	if metrics == nil {
		return
	}
	metrics.GeocodeCacheMiss.Add(ctx, 1, metric.WithAttributes(
		attribute.String("geocoder", provider),
	))
}

// RecordIngestion records how many rows a catalog load accepted and rejected.
func RecordIngestion(ctx context.Context, metrics *Metrics, source string, accepted, rejected int) {
	if metrics == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("catalog.source", source))
	metrics.TrialsIngested.Add(ctx, int64(accepted), attrs)
	metrics.TrialsRejected.Add(ctx, int64(rejected), attrs)
}
