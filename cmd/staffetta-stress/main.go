package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/FerroO2000/staffetta"
	"github.com/FerroO2000/staffetta/internal"
	"github.com/FerroO2000/staffetta/internal/config"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "staffetta-stress"

var errOutOfOrder = errors.New("item popped out of order")

///////////////
//  METRICS  //
///////////////

type stressMetrics struct {
	tel *internal.Telemetry

	pushedItems     atomic.Int64
	poppedItems     atomic.Int64
	fullRejections  atomic.Int64
	emptyRejections atomic.Int64

	pushStallTime *internal.Histogram
	popStallTime  *internal.Histogram
}

func newStressMetrics(tel *internal.Telemetry) *stressMetrics {
	return &stressMetrics{
		tel: tel,
	}
}

func (sm *stressMetrics) init() {
	sm.tel.NewCounter("pushed_items", func() int64 { return sm.pushedItems.Load() })
	sm.tel.NewCounter("popped_items", func() int64 { return sm.poppedItems.Load() })
	sm.tel.NewCounter("full_rejections", func() int64 { return sm.fullRejections.Load() })
	sm.tel.NewCounter("empty_rejections", func() int64 { return sm.emptyRejections.Load() })

	sm.pushStallTime = sm.tel.NewHistogram("push_stall_time", metric.WithUnit("us"))
	sm.popStallTime = sm.tel.NewHistogram("pop_stall_time", metric.WithUnit("us"))
}

func (sm *stressMetrics) incrementPushedItems() {
	sm.pushedItems.Add(1)
}

func (sm *stressMetrics) incrementPoppedItems() {
	sm.poppedItems.Add(1)
}

func (sm *stressMetrics) incrementFullRejections() {
	sm.fullRejections.Add(1)
}

func (sm *stressMetrics) incrementEmptyRejections() {
	sm.emptyRejections.Add(1)
}

func (sm *stressMetrics) recordPushStall(ctx context.Context, stallStart time.Time) {
	sm.pushStallTime.Record(ctx, time.Since(stallStart).Microseconds())
}

func (sm *stressMetrics) recordPopStall(ctx context.Context, stallStart time.Time) {
	sm.popStallTime.Record(ctx, time.Since(stallStart).Microseconds())
}

//////////////
//  RUNNER  //
//////////////

type runner struct {
	tel *internal.Telemetry

	cfg *Config

	prod *staffetta.Producer[uint64]
	cons *staffetta.Consumer[uint64]

	metrics *stressMetrics

	doneCh chan struct{}

	// failed states whether the consumer observed an ordering violation.
	failed atomic.Bool
}

func newRunner(tel *internal.Telemetry, cfg *Config) (*runner, error) {
	prod, cons, err := staffetta.NewPair[uint64](cfg.Capacity)
	if err != nil {
		return nil, err
	}

	return &runner{
		tel: tel,

		cfg: cfg,

		prod: prod,
		cons: cons,

		metrics: newStressMetrics(tel),

		doneCh: make(chan struct{}),
	}, nil
}

func (r *runner) init() {
	r.tel.LogInfo("initializing", "capacity", r.cfg.Capacity, "ops", r.cfg.Ops, "spins", r.cfg.Spins)

	r.metrics.init()

	r.tel.NewUpDownCounter("buffered_items", func() int64 { return int64(r.cons.ReadAvailable()) })
}

func (r *runner) run(ctx context.Context) bool {
	ctx, span := r.tel.NewTrace(ctx, "stress run")
	defer span.End()

	span.SetAttributes(
		attribute.Int("capacity", r.cfg.Capacity),
		attribute.Int("ops", r.cfg.Ops),
	)

	r.tel.LogInfo("running")

	startTime := time.Now()

	workersWg := &sync.WaitGroup{}
	workersWg.Add(2)

	go func() {
		defer workersWg.Done()
		r.runProducer(ctx)
	}()

	go func() {
		defer workersWg.Done()
		r.runConsumer(ctx)
	}()

	reporterWg := &sync.WaitGroup{}
	reporterWg.Add(1)

	go func() {
		defer reporterWg.Done()
		r.runReporter(ctx)
	}()

	workersWg.Wait()
	close(r.doneCh)
	reporterWg.Wait()

	return r.close(span, time.Since(startTime))
}

// runProducer pushes a monotonically increasing counter.
func (r *runner) runProducer(ctx context.Context) {
	pinThread(r.tel, "producer", r.cfg.ProducerCPU)

	var stallStart time.Time
	failedAttempts := 0

	for produced := uint64(0); produced < uint64(r.cfg.Ops); {
		if ctx.Err() != nil {
			return
		}

		if r.prod.Push(produced) != nil {
			r.metrics.incrementFullRejections()

			// A dead consumer keeps the buffer full forever
			if r.failed.Load() {
				return
			}

			if stallStart.IsZero() {
				stallStart = time.Now()
			}

			failedAttempts++
			if failedAttempts >= r.cfg.Spins {
				failedAttempts = 0
				runtime.Gosched()
			}

			continue
		}

		if !stallStart.IsZero() {
			r.metrics.recordPushStall(ctx, stallStart)
			stallStart = time.Time{}
		}

		produced++
		r.metrics.incrementPushedItems()
	}
}

// runConsumer pops every item and checks that none is skipped,
// duplicated or observed out of order.
func (r *runner) runConsumer(ctx context.Context) {
	pinThread(r.tel, "consumer", r.cfg.ConsumerCPU)

	var stallStart time.Time
	failedAttempts := 0

	for expected := uint64(0); expected < uint64(r.cfg.Ops); {
		if ctx.Err() != nil {
			return
		}

		item, err := r.cons.Pop()
		if err != nil {
			r.metrics.incrementEmptyRejections()

			if stallStart.IsZero() {
				stallStart = time.Now()
			}

			failedAttempts++
			if failedAttempts >= r.cfg.Spins {
				failedAttempts = 0
				runtime.Gosched()
			}

			continue
		}

		if !stallStart.IsZero() {
			r.metrics.recordPopStall(ctx, stallStart)
			stallStart = time.Time{}
		}

		if item != expected {
			r.failed.Store(true)
			r.tel.LogError("ordering violation", errOutOfOrder, "expected", expected, "actual", item)
			return
		}

		expected++
		r.metrics.incrementPoppedItems()
	}
}

func (r *runner) runReporter(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.ReportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-r.doneCh:
			return

		case <-ticker.C:
			r.tel.LogInfo("progress",
				"pushed", r.metrics.pushedItems.Load(),
				"popped", r.metrics.poppedItems.Load(),
				"buffered", r.cons.ReadAvailable(),
				"full_rejections", r.metrics.fullRejections.Load(),
				"empty_rejections", r.metrics.emptyRejections.Load())
		}
	}
}

func (r *runner) close(span trace.Span, duration time.Duration) bool {
	r.tel.LogInfo("closing")

	pushed := r.metrics.pushedItems.Load()
	popped := r.metrics.poppedItems.Load()

	itemsPerSec := int64(float64(popped) / duration.Seconds())

	completed := popped == int64(r.cfg.Ops) && !r.failed.Load()

	span.SetAttributes(
		attribute.Int64("popped_items", popped),
		attribute.Int64("items_per_sec", itemsPerSec),
		attribute.Bool("completed", completed),
	)

	if !completed {
		r.tel.LogWarn("run did not complete",
			"pushed", pushed, "popped", popped, "ordering_violation", r.failed.Load())
		return false
	}

	r.tel.LogInfo("run completed",
		"duration", duration.String(),
		"items_per_sec", itemsPerSec,
		"full_rejections", r.metrics.fullRejections.Load(),
		"empty_rejections", r.metrics.emptyRejections.Load())

	return true
}

////////////
//  MAIN  //
////////////

func parseFlags() *Config {
	cfg := NewConfig()

	flag.IntVar(&cfg.Capacity, "capacity", cfg.Capacity, "capacity of the ring buffer")
	flag.IntVar(&cfg.Ops, "ops", cfg.Ops, "number of items to push through the ring buffer")
	flag.IntVar(&cfg.Spins, "spins", cfg.Spins, "failed attempts before yielding the processor")
	flag.DurationVar(&cfg.ReportInterval, "report", cfg.ReportInterval, "time between progress reports")
	flag.IntVar(&cfg.ProducerCPU, "producer-cpu", cfg.ProducerCPU, "CPU to pin the producer to (negative to disable)")
	flag.IntVar(&cfg.ConsumerCPU, "consumer-cpu", cfg.ConsumerCPU, "CPU to pin the consumer to (negative to disable)")
	flag.StringVar(&cfg.OTelEndpoint, "otel-endpoint", cfg.OTelEndpoint, "OpenTelemetry collector endpoint")
	flag.Float64Var(&cfg.TraceRatio, "trace-ratio", cfg.TraceRatio, "sampling ratio for the traces")

	flag.Parse()

	return cfg
}

func run() bool {
	cfg := parseFlags()

	// Fix the configuration before it drives the telemetry setup
	configValidator := config.NewValidator(internal.NewTelemetry("stress", "config"))
	configValidator.Validate(cfg)

	ctx, cancelCtx := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer cancelCtx()

	internal.SetTraceRatio(cfg.TraceRatio)
	internal.InitTelemetry(ctx, serviceName, cfg.OTelEndpoint)
	defer internal.CloseTelemetry()

	tel := internal.NewTelemetry("stress", "harness")

	runner, err := newRunner(tel, cfg)
	if err != nil {
		panic(err)
	}

	runner.init()

	return runner.run(ctx)
}

func main() {
	if !run() {
		os.Exit(1)
	}
}
