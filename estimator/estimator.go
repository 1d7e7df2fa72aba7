package estimator

import (
	"log/slog"
	"math"

	"github.com/LdDl/movement-params/mot"
	"github.com/pkg/errors"
)

var (
	// ErrNoProjector is returned when world coordinates are requested without a way back to pixels
	ErrNoProjector = errors.New("World coordinates require projector")
	// ErrInsufficientHistory is returned for objects observed too few times
	ErrInsufficientHistory = errors.New("Insufficient history")
)

// WorldProjector maps world-plane coordinates back to pixels.
// calibration.CoordinateMapper satisfies it.
type WorldProjector interface {
	WorldToCamera(coord mot.Point) (mot.Point, error)
}

// Option configures Estimator
type Option func(*Estimator)

// WithLogger sets logger
func WithLogger(logger *slog.Logger) Option {
	return func(estimator *Estimator) {
		estimator.logger = logger
	}
}

// Estimator computes speed, acceleration and predicted trajectory of tracked objects.
// Results are written into the newest sample of every object only.
type Estimator struct {
	cfg       Config
	damper    Damper
	projector WorldProjector
	logger    *slog.Logger
}

// NewEstimator creates estimator. Projector is required only when cfg.UseWorld is set
func NewEstimator(cfg Config, projector WorldProjector, opts ...Option) (*Estimator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "Invalid estimator configuration")
	}
	if cfg.UseWorld && projector == nil {
		return nil, ErrNoProjector
	}
	estimator := &Estimator{
		cfg:       cfg,
		damper:    NewDamper(cfg),
		projector: projector,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(estimator)
	}
	return estimator, nil
}

// Config returns estimator configuration
func (estimator *Estimator) Config() Config {
	return estimator.cfg
}

// Process estimates every object of the frame
func (estimator *Estimator) Process(frame *mot.Frame) error {
	for _, object := range frame.Objects {
		estimator.Update(object)
	}
	return nil
}

// Update enriches the newest sample of the object.
// Returns false when the object has not enough samples (with positions in the selected coordinate space).
func (estimator *Estimator) Update(object *mot.TrackedObject) bool {
	return estimator.Estimate(object) == nil
}

// Estimate is the same as Update, but reports the reason of skipping
func (estimator *Estimator) Estimate(object *mot.TrackedObject) error {
	samples := object.GetSamples()
	n := len(samples)
	if n < estimator.cfg.MinSamples {
		return errors.Wrapf(ErrInsufficientHistory, "%d samples of %d required", n, estimator.cfg.MinSamples)
	}

	// Trailing samples which have positions. In world mode history may start before calibration
	first := n
	for first > 0 {
		if _, ok := samples[first-1].Position(estimator.cfg.UseWorld); !ok {
			break
		}
		first--
	}
	track := samples[first:]
	m := len(track)
	if m < estimator.cfg.MinSamples {
		return errors.Wrapf(ErrInsufficientHistory, "%d of %d samples have positions", m, n)
	}
	points := make([]mot.Point, m)
	for i := range track {
		points[i], _ = track[i].Position(estimator.cfg.UseWorld)
	}

	// Velocities are needed for the last three accelerations, so the last four intervals are enough.
	// Zero intervals repeat the velocity of the interval before them, so start from a measurable one
	start := maxInt(1, m-4)
	for start > 1 && elapsed(&track[start-1], &track[start]) <= 0 {
		start--
	}
	velocities := make([]mot.Point, m)
	for i := start; i < m; i++ {
		dt := elapsed(&track[i-1], &track[i])
		if dt <= 0 {
			if i > start {
				velocities[i] = velocities[i-1]
			}
			continue
		}
		velocities[i] = velocity(points[i-1], points[i], dt)
	}
	rawSpeeds := make([]float64, 0, 3)
	for i := maxInt(1, m-3); i < m; i++ {
		rawSpeeds = append(rawSpeeds, velocities[i].Norm())
	}
	rawAccelerations := make([]float64, 0, 3)
	for i := maxInt(2, m-3); i < m; i++ {
		dt := elapsed(&track[i-1], &track[i])
		if dt <= 0 {
			rawAccelerations = append(rawAccelerations, 0)
			continue
		}
		rawAccelerations = append(rawAccelerations, velocities[i].Sub(velocities[i-1]).Norm()/dt)
	}

	latest := object.LatestSample()
	latest.SpeedVector = velocities[m-1]
	latest.Speed = estimator.damper.Smooth(rawSpeeds)
	latest.Acceleration = estimator.damper.Smooth(rawAccelerations)
	latest.Estimated = true
	latest.Predicted = estimator.predict(points)
	return nil
}

func (estimator *Estimator) predict(points []mot.Point) []mot.Point {
	var predicted []mot.Point
	switch estimator.cfg.Mode {
	case PredictionLong:
		predicted = estimator.predictQuadratic(points)
	default:
		predicted = estimator.predictLinear(points)
	}
	if !estimator.cfg.UseWorld || len(predicted) == 0 {
		return predicted
	}
	pixels := make([]mot.Point, 0, len(predicted))
	for _, p := range predicted {
		pixel, err := estimator.projector.WorldToCamera(p)
		if err != nil {
			estimator.logger.Debug("skip predicted point", "point", p, "error", err)
			continue
		}
		pixels = append(pixels, pixel)
	}
	return pixels
}

// elapsed returns seconds between two samples
func elapsed(prev, next *mot.MovementSample) float64 {
	return next.Observed.Sub(prev.Observed).Seconds()
}

// velocity returns displacement per second. Zero or negative interval gives zero vector
func velocity(from, to mot.Point, dt float64) mot.Point {
	if dt <= 0 {
		return mot.Point{}
	}
	v := to.Sub(from).Scale(1 / dt)
	if math.IsNaN(v.X) || math.IsNaN(v.Y) || math.IsInf(v.X, 0) || math.IsInf(v.Y, 0) {
		return mot.Point{}
	}
	return v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
