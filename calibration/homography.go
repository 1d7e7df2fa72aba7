package calibration

import (
	"math"

	"github.com/LdDl/movement-params/mot"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// LocationConverter converts points between camera pixel plane and world plane
// using four points with known locations in both planes.
type LocationConverter struct {
	camera  Quad
	world   Quad
	forward *mat.Dense
	inverse *mat.Dense
}

// NewLocationConverter computes forward (camera to world) and inverse perspective transforms
func NewLocationConverter(camera, world Quad) (*LocationConverter, error) {
	if err := world.Validate(); err != nil {
		return nil, errors.Wrap(err, "Bad world quadrilateral")
	}
	converter := LocationConverter{
		world: world,
	}
	if err := converter.SetCameraMatrix(camera); err != nil {
		return nil, err
	}
	return &converter, nil
}

// SetCameraMatrix replaces camera quadrilateral and recomputes both transforms.
// World quadrilateral stays the same. On error converter keeps previous state.
func (converter *LocationConverter) SetCameraMatrix(camera Quad) error {
	if err := camera.Validate(); err != nil {
		return errors.Wrap(err, "Bad camera quadrilateral")
	}
	forward, err := perspectiveTransform(camera, converter.world)
	if err != nil {
		return errors.Wrap(err, "Can't compute camera to world transform")
	}
	inverse, err := perspectiveTransform(converter.world, camera)
	if err != nil {
		return errors.Wrap(err, "Can't compute world to camera transform")
	}
	converter.camera = camera
	converter.forward = forward
	converter.inverse = inverse
	return nil
}

// CameraToWorld converts pixel coordinates to world coordinates
func (converter *LocationConverter) CameraToWorld(pixel mot.Point) (mot.Point, error) {
	return applyHomography(converter.forward, pixel)
}

// WorldToCamera converts world coordinates to pixel coordinates
func (converter *LocationConverter) WorldToCamera(coord mot.Point) (mot.Point, error) {
	return applyHomography(converter.inverse, coord)
}

// CameraQuad returns current camera quadrilateral
func (converter *LocationConverter) CameraQuad() Quad {
	return converter.camera
}

// WorldQuad returns world quadrilateral
func (converter *LocationConverter) WorldQuad() Quad {
	return converter.world
}

// Forward returns copy of camera to world matrix
func (converter *LocationConverter) Forward() *mat.Dense {
	return mat.DenseCopyOf(converter.forward)
}

// Inverse returns copy of world to camera matrix
func (converter *LocationConverter) Inverse() *mat.Dense {
	return mat.DenseCopyOf(converter.inverse)
}

// perspectiveTransform computes 3x3 matrix H mapping src[i] to dst[i].
// H is normalized so H[2][2] = 1, which leaves 8 unknowns solved from an 8x8 system:
//
//	x' = (h00 X + h01 Y + h02) / (h20 X + h21 Y + 1)
//	y' = (h10 X + h11 Y + h12) / (h20 X + h21 Y + 1)
func perspectiveTransform(src, dst Quad) (*mat.Dense, error) {
	a := mat.NewDense(8, 8, nil)
	b := mat.NewVecDense(8, nil)
	for i := 0; i < 4; i++ {
		X, Y := src[i].X, src[i].Y
		x, y := dst[i].X, dst[i].Y
		r := 2 * i
		a.SetRow(r, []float64{X, Y, 1, 0, 0, 0, -X * x, -Y * x})
		b.SetVec(r, x)
		a.SetRow(r+1, []float64{0, 0, 0, X, Y, 1, -X * y, -Y * y})
		b.SetVec(r+1, y)
	}
	var h mat.VecDense
	if err := h.SolveVec(a, b); err != nil {
		return nil, errors.Wrapf(ErrMalformedCorrespondence, "Singular system: %v", err)
	}
	data := make([]float64, 9)
	for i := 0; i < 8; i++ {
		data[i] = h.AtVec(i)
	}
	data[8] = 1
	return mat.NewDense(3, 3, data), nil
}

// applyHomography multiplies homogeneous point by matrix and performs perspective divide
func applyHomography(h *mat.Dense, p mot.Point) (mot.Point, error) {
	src := mat.NewVecDense(3, []float64{p.X, p.Y, 1})
	var dst mat.VecDense
	dst.MulVec(h, src)
	w := dst.AtVec(2)
	if math.Abs(w) < epsilon {
		return mot.Point{}, errors.Wrapf(ErrPointAtInfinity, "Can't map %v", p)
	}
	return mot.Point{
		X: dst.AtVec(0) / w,
		Y: dst.AtVec(1) / w,
	}, nil
}
