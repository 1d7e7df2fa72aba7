package calibration

import (
	"image"

	"github.com/LdDl/movement-params/mot"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"
)

// MarkerLocalizer finds fiducial markers on image.
// Result maps marker identifier to its corner points in pixels.
type MarkerLocalizer interface {
	FindMarkers(img image.Image) (map[int][]mot.Point, error)
}

// PlaneFinder extracts camera plane quadrilateral from four configured markers
type PlaneFinder struct {
	ids [4]int
}

// NewPlaneFinder creates finder for markers with given identifiers.
// Order of identifiers defines order of quadrilateral points.
func NewPlaneFinder(ids [4]int) (*PlaneFinder, error) {
	for i := 0; i < 4; i++ {
		for j := i + 1; j < 4; j++ {
			if ids[i] == ids[j] {
				return nil, errors.Errorf("Marker identifiers must be unique, %d is repeated", ids[i])
			}
		}
	}
	return &PlaneFinder{ids: ids}, nil
}

// IDs returns configured marker identifiers
func (finder *PlaneFinder) IDs() [4]int {
	return finder.ids
}

// Find returns quadrilateral made of marker centroids.
// Second value is false unless all four markers are observed.
func (finder *PlaneFinder) Find(markers map[int][]mot.Point) (Quad, bool) {
	var quad Quad
	for i, id := range finder.ids {
		corners, ok := markers[id]
		if !ok || len(corners) == 0 {
			return Quad{}, false
		}
		quad[i] = centroid(corners)
	}
	return quad, true
}

func centroid(points []mot.Point) mot.Point {
	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i] = p.X
		ys[i] = p.Y
	}
	return mot.Point{
		X: stat.Mean(xs, nil),
		Y: stat.Mean(ys, nil),
	}
}
