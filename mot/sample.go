package mot

import "time"

// MaxPredictedPoints is the maximum number of predicted positions stored in a sample
const MaxPredictedPoints = 3

// MovementSample is a single kinematic observation of a tracked object.
// Samples are appended once per frame the object is observed in and are never reordered.
type MovementSample struct {
	// Time when frame containing the observation was created
	Observed time.Time
	// Center of the bounding box in pixels
	Pixel Point
	// World-plane coordinates. Valid only when HasWorld is true
	World    Point
	HasWorld bool
	// Smoothed scalar speed and acceleration (units per second and units per second squared)
	Speed        float64
	Acceleration float64
	// Velocity as a 2-D vector (units per second)
	SpeedVector Point
	// Predicted future positions in pixel space, nearest horizon first
	Predicted []Point
	// Estimated is true once speed and acceleration have been written for this sample
	Estimated bool
}

// NewMovementSample creates sample holding only pixel position and observation time
func NewMovementSample(pixel Point, observed time.Time) MovementSample {
	return MovementSample{
		Observed: observed,
		Pixel:    pixel,
	}
}

// Position returns world coordinates when requested and available, pixel coordinates otherwise.
// Second value is false when world coordinates are requested but missing.
func (sample *MovementSample) Position(world bool) (Point, bool) {
	if !world {
		return sample.Pixel, true
	}
	if !sample.HasWorld {
		return Point{}, false
	}
	return sample.World, true
}

// SetWorld attaches world-plane coordinates to the sample
func (sample *MovementSample) SetWorld(p Point) {
	sample.World = p
	sample.HasWorld = true
}
