package estimator

import (
	"strings"

	"github.com/pkg/errors"
)

// PredictionMode selects trajectory prediction algorithm
type PredictionMode uint16

const (
	// PredictionShort fits straight line to three samples and predicts one point
	PredictionShort PredictionMode = iota
	// PredictionLong fits quadratic curve to a long history and predicts three points
	PredictionLong
)

func (mode PredictionMode) String() string {
	switch mode {
	case PredictionShort:
		return "short"
	case PredictionLong:
		return "long"
	default:
		return "unknown"
	}
}

// ParsePredictionMode parses mode name ("short" or "long")
func ParsePredictionMode(name string) (PredictionMode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "short", "linear":
		return PredictionShort, nil
	case "long", "quadratic":
		return PredictionLong, nil
	default:
		return PredictionShort, errors.Errorf("Unknown prediction mode '%s'", name)
	}
}

// Config is configuration of Estimator
type Config struct {
	// Prediction algorithm
	Mode PredictionMode
	// Compute kinematics in world-plane coordinates instead of pixels
	UseWorld bool
	// Minimal number of samples for an object to be estimated
	MinSamples int

	// Relative deviation from previous smoothed value which switches damping to the responsive gain
	OutlierRatio float64
	// Gain used while new values stay close to the previous smoothed value
	GainSmooth float64
	// Gain used when deviation exceeds OutlierRatio
	GainResponsive float64

	// Distance in frames between samples used by the linear prediction
	LinearStep int
	// Look-ahead offset (frames) for the linear prediction
	LinearLookAhead float64

	// Minimal number of samples for the quadratic prediction
	QuadraticMinSamples int
	// Number of newest samples the quadratic curve is fitted to
	QuadraticWindow int
	// Look-ahead offsets (frames) for the quadratic prediction: short, medium and long horizon
	QuadraticLookAhead [3]float64

	// Guard for denominators of least-squares solves
	Epsilon float64
}

// DefaultConfig returns default estimator configuration
func DefaultConfig() Config {
	return Config{
		Mode:                PredictionShort,
		UseWorld:            false,
		MinSamples:          3,
		OutlierRatio:        0.25,
		GainSmooth:          0.1,
		GainResponsive:      0.4,
		LinearStep:          2,
		LinearLookAhead:     3,
		QuadraticMinSamples: 10,
		QuadraticWindow:     12,
		QuadraticLookAhead:  [3]float64{5, 10, 15},
		Epsilon:             1e-9,
	}
}

// Validate checks configuration values
func (cfg Config) Validate() error {
	if cfg.Mode != PredictionShort && cfg.Mode != PredictionLong {
		return errors.Errorf("Unknown prediction mode %d", cfg.Mode)
	}
	if cfg.MinSamples < 3 {
		return errors.Errorf("MinSamples must be at least 3, got %d", cfg.MinSamples)
	}
	if cfg.OutlierRatio <= 0 {
		return errors.Errorf("OutlierRatio must be positive, got %f", cfg.OutlierRatio)
	}
	if cfg.GainSmooth <= 0 || cfg.GainSmooth > 1 {
		return errors.Errorf("GainSmooth must be in (0, 1], got %f", cfg.GainSmooth)
	}
	if cfg.GainResponsive <= 0 || cfg.GainResponsive > 1 {
		return errors.Errorf("GainResponsive must be in (0, 1], got %f", cfg.GainResponsive)
	}
	if cfg.LinearStep < 1 {
		return errors.Errorf("LinearStep must be positive, got %d", cfg.LinearStep)
	}
	if cfg.LinearLookAhead <= 0 {
		return errors.Errorf("LinearLookAhead must be positive, got %f", cfg.LinearLookAhead)
	}
	if cfg.QuadraticMinSamples < 3 {
		return errors.Errorf("QuadraticMinSamples must be at least 3, got %d", cfg.QuadraticMinSamples)
	}
	if cfg.QuadraticWindow < cfg.QuadraticMinSamples {
		return errors.Errorf("QuadraticWindow (%d) must not be less than QuadraticMinSamples (%d)", cfg.QuadraticWindow, cfg.QuadraticMinSamples)
	}
	prev := 0.0
	for i, ahead := range cfg.QuadraticLookAhead {
		if ahead <= prev {
			return errors.Errorf("QuadraticLookAhead must be positive and increasing, got %v at #%d", cfg.QuadraticLookAhead, i)
		}
		prev = ahead
	}
	if cfg.Epsilon <= 0 {
		return errors.Errorf("Epsilon must be positive, got %g", cfg.Epsilon)
	}
	return nil
}
