package force

import (
	"fmt"
	"math"
	"runtime"
)

const (
	DefaultTheta              = 0.5
	DefaultRepulsionStrength  = 1.0
	DefaultAttractionStrength = 0.1
	DefaultBatchSize          = 50
)

// Config is fixed for the lifetime of a Calculator.
type Config struct {
	// Theta is the Barnes-Hut opening threshold. 0 disables approximation.
	Theta              float64
	RepulsionStrength  float64
	AttractionStrength float64
	// BatchSize is the number of query points per parallel chunk.
	BatchSize int
	// Concurrency bounds how many chunks are evaluated at once.
	Concurrency int
}

// DefaultConfig returns the stock configuration. Concurrency is read from
// GOMAXPROCS here, once, so the calculator itself never consults the runtime.
func DefaultConfig() Config {
	return Config{
		Theta:              DefaultTheta,
		RepulsionStrength:  DefaultRepulsionStrength,
		AttractionStrength: DefaultAttractionStrength,
		BatchSize:          DefaultBatchSize,
		Concurrency:        runtime.GOMAXPROCS(0),
	}
}

// Validate rejects configurations that would produce silently wrong forces.
func (c Config) Validate() error {
	checks := []struct {
		name  string
		value float64
	}{
		{"theta", c.Theta},
		{"repulsion strength", c.RepulsionStrength},
		{"attraction strength", c.AttractionStrength},
	}
	for _, chk := range checks {
		if math.IsNaN(chk.value) || math.IsInf(chk.value, 0) || chk.value < 0 {
			return fmt.Errorf("%w: %s must be a non-negative finite number, got %v", ErrInvalidConfig, chk.name, chk.value)
		}
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("%w: batch size must be positive, got %d", ErrInvalidConfig, c.BatchSize)
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("%w: concurrency must be positive, got %d", ErrInvalidConfig, c.Concurrency)
	}
	return nil
}
