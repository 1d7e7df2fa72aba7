package mot

import (
	"time"

	"github.com/pkg/errors"
)

// ErrIdentityAssigned is returned when identity is going to be assigned twice
var ErrIdentityAssigned = errors.New("Object already has identity")

// TrackedObject is a detection enriched with identity and movement history.
type TrackedObject struct {
	id         int64
	hasID      bool
	box        BoundingBox
	label      string
	confidence float64
	samples    []MovementSample
	worldPos   Point
	hasWorld   bool
}

// NewTrackedObject creates fresh object (no identity yet) with a single sample
// positioned at the box center.
func NewTrackedObject(box BoundingBox, label string, confidence float64, observed time.Time) *TrackedObject {
	object := TrackedObject{
		box:        box,
		label:      label,
		confidence: confidence,
		samples:    make([]MovementSample, 0, 16),
	}
	object.samples = append(object.samples, NewMovementSample(box.Center(), observed))
	return &object
}

// GetID returns object's identifier. Second value is false while identity is not assigned yet
func (object *TrackedObject) GetID() (int64, bool) {
	return object.id, object.hasID
}

// assignID sets identity once. Identity is immutable afterwards
func (object *TrackedObject) assignID(id int64) error {
	if object.hasID {
		return errors.Wrapf(ErrIdentityAssigned, "Can't assign id %d over %d", id, object.id)
	}
	object.id = id
	object.hasID = true
	return nil
}

// GetBBox returns object's current bounding box
func (object *TrackedObject) GetBBox() BoundingBox {
	return object.box
}

// GetCenter returns object's current center
func (object *TrackedObject) GetCenter() Point {
	return object.box.Center()
}

// GetLabel returns classification label
func (object *TrackedObject) GetLabel() string {
	return object.label
}

// GetConfidence returns detector confidence
func (object *TrackedObject) GetConfidence() float64 {
	return object.confidence
}

// GetSamples returns object's movement history, newest last. Be careful: this is not copy of history, but reference to it
func (object *TrackedObject) GetSamples() []MovementSample {
	return object.samples
}

// NumSamples returns number of accumulated samples
func (object *TrackedObject) NumSamples() int {
	return len(object.samples)
}

// LatestSample returns pointer to the newest sample, so callers can enrich it in place.
// Returns nil for an object without samples.
func (object *TrackedObject) LatestSample() *MovementSample {
	if len(object.samples) == 0 {
		return nil
	}
	return &object.samples[len(object.samples)-1]
}

// AppendSample adds sample to the end of history
func (object *TrackedObject) AppendSample(sample MovementSample) {
	object.samples = append(object.samples, sample)
}

// SetWorldPosition caches current world position and attaches it to the newest sample
func (object *TrackedObject) SetWorldPosition(p Point) {
	object.worldPos = p
	object.hasWorld = true
	if latest := object.LatestSample(); latest != nil {
		latest.SetWorld(p)
	}
}

// GetWorldPosition returns cached world position. Second value is false when it was never computed
func (object *TrackedObject) GetWorldPosition() (Point, bool) {
	return object.worldPos, object.hasWorld
}

// GetSpeed returns speed from the newest sample
func (object *TrackedObject) GetSpeed() float64 {
	if latest := object.LatestSample(); latest != nil {
		return latest.Speed
	}
	return 0
}

// GetAcceleration returns acceleration from the newest sample
func (object *TrackedObject) GetAcceleration() float64 {
	if latest := object.LatestSample(); latest != nil {
		return latest.Acceleration
	}
	return 0
}

// GetPredicted returns predicted pixel positions from the newest sample
func (object *TrackedObject) GetPredicted() []Point {
	if latest := object.LatestSample(); latest != nil {
		return latest.Predicted
	}
	return nil
}

// mergeWith continues previous object: takes its identity and prepends its history.
func (object *TrackedObject) mergeWith(previous *TrackedObject) error {
	err := object.assignID(previous.id)
	if err != nil {
		return err
	}
	history := make([]MovementSample, 0, len(previous.samples)+len(object.samples))
	history = append(history, previous.samples...)
	history = append(history, object.samples...)
	object.samples = history
	return nil
}
