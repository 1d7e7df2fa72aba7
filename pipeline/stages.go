package pipeline

import (
	"image"

	"github.com/LdDl/movement-params/mot"
	"github.com/pkg/errors"
)

// Detection is a single labelled box found by a Detector
type Detection struct {
	Label      string
	Confidence float64
	Box        mot.BoundingBox
}

// Detector finds objects on image
type Detector interface {
	Detect(img image.Image) ([]Detection, error)
}

// DetectionStage fills frame with fresh objects found by detector
type DetectionStage struct {
	detector Detector
	labels   map[string]struct{}
}

// NewDetectionStage creates stage. When labels are given, detections with other labels are ignored
func NewDetectionStage(detector Detector, labels ...string) *DetectionStage {
	stage := &DetectionStage{
		detector: detector,
	}
	if len(labels) > 0 {
		stage.labels = make(map[string]struct{}, len(labels))
		for _, label := range labels {
			stage.labels[label] = struct{}{}
		}
	}
	return stage
}

// Accepts returns true when detections with the label are kept
func (stage *DetectionStage) Accepts(label string) bool {
	if stage.labels == nil {
		return true
	}
	_, ok := stage.labels[label]
	return ok
}

// Process implements Processor
func (stage *DetectionStage) Process(frame *mot.Frame) error {
	detections, err := stage.detector.Detect(frame.Image)
	if err != nil {
		return errors.Wrap(err, "Detection failed")
	}
	for _, detection := range detections {
		if !stage.Accepts(detection.Label) {
			continue
		}
		if detection.Box.Area() == 0 {
			continue
		}
		frame.AddObject(detection.Box, detection.Label, detection.Confidence)
	}
	return nil
}

// NestedFilterStage drops objects whose boxes lie entirely inside boxes of other objects.
// Put it before tracking so nested boxes never get identities.
type NestedFilterStage struct{}

// Process implements Processor
func (NestedFilterStage) Process(frame *mot.Frame) error {
	frame.Objects = mot.FilterNested(frame.Objects)
	return nil
}
