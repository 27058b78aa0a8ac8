package config

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/FerroO2000/staffetta/internal"
)

func Test_Checks(t *testing.T) {
	t.Run("not-negative", func(t *testing.T) {
		assert := assert.New(t)

		ac := newAnomalyCollector()

		ok := 5
		CheckNotNegative(ac, "ok", &ok, 1)
		assert.Equal(5, ok)
		assert.Empty(ac.anomalies)

		bad := -3
		CheckNotNegative(ac, "bad", &bad, 1)
		assert.Equal(1, bad)
		assert.Len(ac.anomalies, 1)
		assert.Equal("bad", ac.anomalies[0].field)
	})

	t.Run("not-zero", func(t *testing.T) {
		assert := assert.New(t)

		ac := newAnomalyCollector()

		ok := uint64(1024)
		CheckNotZero(ac, "ok", &ok, 64)
		assert.Equal(uint64(1024), ok)
		assert.Empty(ac.anomalies)

		bad := uint64(0)
		CheckNotZero(ac, "bad", &bad, 64)
		assert.Equal(uint64(64), bad)
		assert.Len(ac.anomalies, 1)
	})

	t.Run("not-lower", func(t *testing.T) {
		assert := assert.New(t)

		ac := newAnomalyCollector()

		ok := 200
		CheckNotLower(ac, "ok", &ok, 100)
		assert.Equal(200, ok)
		assert.Empty(ac.anomalies)

		bad := 50
		CheckNotLower(ac, "bad", &bad, 100)
		assert.Equal(100, bad)
		assert.Len(ac.anomalies, 1)
	})

	t.Run("not-greater-than", func(t *testing.T) {
		assert := assert.New(t)

		ac := newAnomalyCollector()

		ok := 10
		CheckNotGreaterThan(ac, "ok", "limit", &ok, 100)
		assert.Equal(10, ok)
		assert.Empty(ac.anomalies)

		bad := 1000
		CheckNotGreaterThan(ac, "bad", "limit", &bad, 100)
		assert.Equal(100, bad)
		assert.Len(ac.anomalies, 1)
	})

	t.Run("not-empty", func(t *testing.T) {
		assert := assert.New(t)

		ac := newAnomalyCollector()

		ok := "filled"
		CheckNotEmpty(ac, "ok", &ok, "fallback")
		assert.Equal("filled", ok)
		assert.Empty(ac.anomalies)

		bad := ""
		CheckNotEmpty(ac, "bad", &bad, "fallback")
		assert.Equal("fallback", bad)
		assert.Len(ac.anomalies, 1)
	})
}

type stubConfig struct {
	capacity int
	spins    int
	name     string
}

func (c *stubConfig) Validate(ac *AnomalyCollector) {
	CheckNotZero(ac, "capacity", &c.capacity, 64)
	CheckNotNegative(ac, "spins", &c.spins, 0)
	CheckNotEmpty(ac, "name", &c.name, "default")
}

func Test_Validator(t *testing.T) {
	assert := assert.New(t)

	validator := NewValidator(internal.NewTelemetry("test", "config"))

	cfg := &stubConfig{capacity: 0, spins: -1, name: ""}
	validator.Validate(cfg)

	assert.Equal(64, cfg.capacity)
	assert.Equal(0, cfg.spins)
	assert.Equal("default", cfg.name)
}
