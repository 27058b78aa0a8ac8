// Package internal contains the telemetry layer shared across the library.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

/////////////
//  SETUP  //
/////////////

var (
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider

	traceRatio = 0.05
)

// SetTraceRatio sets the sampling ratio for traces.
// It must be called before InitTelemetry.
func SetTraceRatio(ratio float64) {
	traceRatio = ratio
}

// isCollectorReachable checks if the OTLP collector port is reachable
func isCollectorReachable(endpoint string) bool {
	conn, err := net.DialTimeout("tcp", endpoint, 2*time.Second)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// InitTelemetry initializes the logger and OpenTelemetry.
//
// The default slog logger always gets the tint handler. When the OTLP
// collector at endpoint is reachable, the logger is also bridged to
// OpenTelemetry and the trace/meter providers are installed, together
// with the Go runtime instrumentation. Otherwise a warning is printed
// and telemetry export stays disabled.
func InitTelemetry(ctx context.Context, serviceName, endpoint string) {
	w := os.Stderr
	tintHandler := tint.NewHandler(colorable.NewColorable(w), &tint.Options{
		NoColor: !isatty.IsTerminal(w.Fd()),
	})

	if !isCollectorReachable(endpoint) {
		slog.SetDefault(slog.New(tintHandler))
		slog.Warn("OpenTelemetry collector is not reachable, telemetry export is disabled", "endpoint", endpoint)
		return
	}

	slog.SetDefault(slog.New(newTeeHandler(tintHandler, otelslog.NewHandler(serviceName))))

	// Create gRPC connection
	grpcTransport := grpc.WithTransportCredentials(insecure.NewCredentials())
	grpcConn, err := grpc.NewClient(endpoint, grpcTransport)
	if err != nil {
		panic(err)
	}

	// Resource
	resource := newResource(serviceName)

	// Trace
	traceExporter := newTraceExporter(ctx, grpcConn)
	tracerProvider = newTraceProvider(resource, traceExporter)
	otel.SetTracerProvider(tracerProvider)

	// Trace Propagator
	otel.SetTextMapPropagator(propagation.TraceContext{})

	// Meter
	meterExporter := newMeterExporter(ctx, grpcConn)
	meterProvider = newMeterProvider(resource, meterExporter)
	otel.SetMeterProvider(meterProvider)

	// Runtime
	if err := runtime.Start(runtime.WithMinimumReadMemStatsInterval(time.Second)); err != nil {
		panic(err)
	}
}

// CloseTelemetry shuts down the OpenTelemetry providers,
// flushing the pending telemetry.
func CloseTelemetry() {
	ctx := context.Background()

	if tracerProvider != nil {
		if err := tracerProvider.Shutdown(ctx); err != nil {
			slog.Error("failed to shut down tracer provider", tint.Err(err))
		}
	}

	if meterProvider != nil {
		if err := meterProvider.Shutdown(ctx); err != nil {
			slog.Error("failed to shut down meter provider", tint.Err(err))
		}
	}
}

func newResource(serviceName string) *resource.Resource {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion("0.1.0"),
		),
	)

	if err != nil {
		panic(err)
	}

	return res
}

func newTraceExporter(ctx context.Context, conn *grpc.ClientConn) *otlptrace.Exporter {
	exporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		panic(err)
	}
	return exporter
}

func newTraceProvider(resource *resource.Resource, exporter sdktrace.SpanExporter) *sdktrace.TracerProvider {
	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(traceRatio)),
	)
}

func newMeterExporter(ctx context.Context, conn *grpc.ClientConn) *otlpmetricgrpc.Exporter {
	exporter, err := otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithGRPCConn(conn))
	if err != nil {
		panic(err)
	}
	return exporter
}

func newMeterProvider(resource *resource.Resource, exporter sdkmetric.Exporter) *sdkmetric.MeterProvider {
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(resource),
		sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(time.Second)),
		),
	)
}

///////////////////
//  LOG HANDLER  //
///////////////////

// teeHandler fans every record out to all the wrapped handlers.
type teeHandler struct {
	handlers []slog.Handler
}

func newTeeHandler(handlers ...slog.Handler) *teeHandler {
	return &teeHandler{
		handlers: handlers,
	}
}

func (h *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *teeHandler) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, handler := range h.handlers {
		if !handler.Enabled(ctx, record.Level) {
			continue
		}

		if err := handler.Handle(ctx, record.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for idx, handler := range h.handlers {
		handlers[idx] = handler.WithAttrs(attrs)
	}
	return &teeHandler{handlers: handlers}
}

func (h *teeHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for idx, handler := range h.handlers {
		handlers[idx] = handler.WithGroup(name)
	}
	return &teeHandler{handlers: handlers}
}

/////////////////
//  TELEMETRY  //
/////////////////

// Telemetry bundles the logger, the meter and the tracer of a component.
// Every log record and instrument it emits carries the kind/name pair
// of the owning component.
type Telemetry struct {
	logger *slog.Logger
	meter  metric.Meter
	tracer trace.Tracer
}

// NewTelemetry returns the telemetry for the component
// identified by the kind/name pair.
func NewTelemetry(kind, name string) *Telemetry {
	scope := fmt.Sprintf("staffetta.%s.%s", kind, name)

	return &Telemetry{
		logger: slog.Default().With("kind", kind, "name", name),
		meter:  otel.Meter(scope),
		tracer: otel.Tracer(scope),
	}
}

// LogInfo logs an info message.
func (t *Telemetry) LogInfo(msg string, args ...any) {
	t.logger.Info(msg, args...)
}

// LogWarn logs a warning message.
func (t *Telemetry) LogWarn(msg string, args ...any) {
	t.logger.Warn(msg, args...)
}

// LogError logs an error message.
func (t *Telemetry) LogError(msg string, err error, args ...any) {
	t.logger.Error(msg, append([]any{tint.Err(err)}, args...)...)
}

// NewCounter registers a monotonic counter observed through the callback.
func (t *Telemetry) NewCounter(name string, cb func() int64) {
	_, err := t.meter.Int64ObservableCounter(name,
		metric.WithInt64Callback(func(_ context.Context, obs metric.Int64Observer) error {
			obs.Observe(cb())
			return nil
		}),
	)
	if err != nil {
		t.LogError("failed to create counter", err, "metric", name)
	}
}

// NewUpDownCounter registers a non-monotonic counter observed through the callback.
func (t *Telemetry) NewUpDownCounter(name string, cb func() int64) {
	_, err := t.meter.Int64ObservableUpDownCounter(name,
		metric.WithInt64Callback(func(_ context.Context, obs metric.Int64Observer) error {
			obs.Observe(cb())
			return nil
		}),
	)
	if err != nil {
		t.LogError("failed to create up/down counter", err, "metric", name)
	}
}

// Histogram records a distribution of int64 values.
type Histogram struct {
	hist metric.Int64Histogram
}

// Record adds the value to the histogram.
func (h *Histogram) Record(ctx context.Context, value int64) {
	if h.hist == nil {
		return
	}
	h.hist.Record(ctx, value)
}

// NewHistogram returns a new histogram.
func (t *Telemetry) NewHistogram(name string, opts ...metric.Int64HistogramOption) *Histogram {
	hist, err := t.meter.Int64Histogram(name, opts...)
	if err != nil {
		t.LogError("failed to create histogram", err, "metric", name)
		return &Histogram{}
	}

	return &Histogram{
		hist: hist,
	}
}

// NewTrace starts a new trace span.
func (t *Telemetry) NewTrace(ctx context.Context, name string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name)
}
