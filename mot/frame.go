package mot

import (
	"image"
	"time"

	"github.com/google/uuid"
)

// Frame is a single image with objects detected and tracked on it.
// It is passed by pointer through the processing chain and enriched in place.
type Frame struct {
	ID      uuid.UUID
	Created time.Time
	Image   image.Image
	Objects []*TrackedObject
	// Free-form text for renderers, set by the caller
	Info string
}

// NewFrame creates frame with no objects
func NewFrame(img image.Image, created time.Time) *Frame {
	return &Frame{
		ID:      uuid.New(),
		Created: created,
		Image:   img,
		Objects: make([]*TrackedObject, 0),
	}
}

// AddObject appends fresh object observed on the frame
func (frame *Frame) AddObject(box BoundingBox, label string, confidence float64) *TrackedObject {
	object := NewTrackedObject(box, label, confidence, frame.Created)
	frame.Objects = append(frame.Objects, object)
	return object
}
