package main

import (
	"runtime"
	"time"

	"github.com/FerroO2000/staffetta/internal/config"
)

// Default values for the stress run configuration.
const (
	DefaultConfigCapacity       = 1024
	DefaultConfigOps            = 10_000_000
	DefaultConfigReportInterval = time.Second
	DefaultConfigOTelEndpoint   = "localhost:4317"
	DefaultConfigTraceRatio     = 0.05
)

// DefaultConfigSpins returns the default number of failed attempts
// before yielding the processor.
func DefaultConfigSpins() int {
	return runtime.NumCPU() * 32
}

// Config contains the configuration for a stress run.
type Config struct {
	// Capacity is the capacity of the ring buffer under stress.
	Capacity int
	// Ops is the number of items pushed through the ring buffer.
	Ops int
	// Spins is the number of failed push/pop attempts before yielding
	// the processor.
	Spins int
	// ReportInterval is the time between progress reports.
	ReportInterval time.Duration

	// ProducerCPU is the CPU the producer goroutine is pinned to.
	// A negative value disables the pinning.
	ProducerCPU int
	// ConsumerCPU is the CPU the consumer goroutine is pinned to.
	// A negative value disables the pinning.
	ConsumerCPU int

	// OTelEndpoint is the OpenTelemetry collector endpoint.
	OTelEndpoint string
	// TraceRatio is the sampling ratio for the traces.
	TraceRatio float64
}

// NewConfig returns the default configuration for a stress run.
func NewConfig() *Config {
	return &Config{
		Capacity:       DefaultConfigCapacity,
		Ops:            DefaultConfigOps,
		Spins:          DefaultConfigSpins(),
		ReportInterval: DefaultConfigReportInterval,

		ProducerCPU: -1,
		ConsumerCPU: -1,

		OTelEndpoint: DefaultConfigOTelEndpoint,
		TraceRatio:   DefaultConfigTraceRatio,
	}
}

// Validate checks the configuration.
func (c *Config) Validate(ac *config.AnomalyCollector) {
	config.CheckNotNegative(ac, "Capacity", &c.Capacity, DefaultConfigCapacity)
	config.CheckNotZero(ac, "Capacity", &c.Capacity, DefaultConfigCapacity)

	config.CheckNotNegative(ac, "Ops", &c.Ops, DefaultConfigOps)
	config.CheckNotZero(ac, "Ops", &c.Ops, DefaultConfigOps)

	config.CheckNotLower(ac, "Spins", &c.Spins, 1)

	config.CheckNotNegative(ac, "ReportInterval", &c.ReportInterval, DefaultConfigReportInterval)
	config.CheckNotZero(ac, "ReportInterval", &c.ReportInterval, DefaultConfigReportInterval)

	lastCPU := runtime.NumCPU() - 1
	config.CheckNotGreaterThan(ac, "ProducerCPU", "last CPU", &c.ProducerCPU, lastCPU)
	config.CheckNotGreaterThan(ac, "ConsumerCPU", "last CPU", &c.ConsumerCPU, lastCPU)

	config.CheckNotEmpty(ac, "OTelEndpoint", &c.OTelEndpoint, DefaultConfigOTelEndpoint)

	config.CheckNotNegative(ac, "TraceRatio", &c.TraceRatio, DefaultConfigTraceRatio)
	config.CheckNotGreaterThan(ac, "TraceRatio", "1.0", &c.TraceRatio, 1)
}
