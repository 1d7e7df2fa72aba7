package calibration

import (
	"math"

	"github.com/LdDl/movement-params/mot"
	"github.com/pkg/errors"
)

var (
	// ErrMalformedCorrespondence is returned for quadrilaterals which can't define a perspective transform
	ErrMalformedCorrespondence = errors.New("Malformed planar correspondence")
	// ErrNotCalibrated is returned while camera plane has not been observed yet
	ErrNotCalibrated = errors.New("Camera plane is not calibrated")
	// ErrPointAtInfinity is returned when point is mapped onto the horizon line (homogeneous w is zero)
	ErrPointAtInfinity = errors.New("Point is mapped to infinity")
)

const epsilon = 1e-9

// Quad is a planar quadrilateral: top-left, top-right, bottom-right, bottom-left.
// Both sides of a correspondence must use the same order.
type Quad [4]mot.Point

// NewQuad creates quadrilateral from [x, y] pairs
func NewQuad(points [][2]float64) (Quad, error) {
	var quad Quad
	if len(points) != 4 {
		return quad, errors.Wrapf(ErrMalformedCorrespondence, "Expected 4 points, got %d", len(points))
	}
	for i, p := range points {
		quad[i] = mot.Point{X: p[0], Y: p[1]}
	}
	return quad, quad.Validate()
}

// Validate checks that quadrilateral has 4 distinct points and no three of them are collinear
func (quad Quad) Validate() error {
	for i := 0; i < 4; i++ {
		for j := i + 1; j < 4; j++ {
			if mot.Distance(quad[i], quad[j]) < epsilon {
				return errors.Wrapf(ErrMalformedCorrespondence, "Points #%d and #%d coincide: %v", i, j, quad[i])
			}
		}
	}
	for i := 0; i < 4; i++ {
		a, b, c := quad[i], quad[(i+1)%4], quad[(i+2)%4]
		if math.Abs(cross(b.Sub(a), c.Sub(a))) < epsilon {
			return errors.Wrapf(ErrMalformedCorrespondence, "Points %v, %v, %v are collinear", a, b, c)
		}
	}
	return nil
}

// Points returns quadrilateral as [x, y] pairs
func (quad Quad) Points() [][2]float64 {
	points := make([][2]float64, 4)
	for i, p := range quad {
		points[i] = [2]float64{p.X, p.Y}
	}
	return points
}

func cross(u, v mot.Point) float64 {
	return u.X*v.Y - u.Y*v.X
}
