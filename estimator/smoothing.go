package estimator

import (
	"math"
	"sort"
)

// Damper suppresses jitter of noisy scalar series (speed, acceleration).
// The newest raw value is pulled toward the median of the last three raw values: weakly when
// it is close to the median, strongly when it deviates from the median beyond OutlierRatio.
type Damper struct {
	OutlierRatio   float64
	GainSmooth     float64
	GainResponsive float64
	Epsilon        float64
}

// NewDamper creates damper from estimator configuration
func NewDamper(cfg Config) Damper {
	return Damper{
		OutlierRatio:   cfg.OutlierRatio,
		GainSmooth:     cfg.GainSmooth,
		GainResponsive: cfg.GainResponsive,
		Epsilon:        cfg.Epsilon,
	}
}

// Smooth returns damped value of the newest (last) raw value.
// Only last three raw values are taken into account. Empty series gives zero
func (damper Damper) Smooth(raw []float64) float64 {
	if len(raw) == 0 {
		return 0
	}
	if len(raw) > 3 {
		raw = raw[len(raw)-3:]
	}
	current := raw[len(raw)-1]
	target := median(raw)
	k := damper.GainSmooth
	if math.Abs(current-target) > damper.OutlierRatio*math.Max(math.Abs(target), damper.Epsilon) {
		k = damper.GainResponsive
	}
	return current + k*(target-current)
}

func median(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}
