package calibration

import (
	"image"
	"testing"
	"time"

	"github.com/LdDl/movement-params/mot"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

var (
	testCamera = Quad{{X: 100, Y: 100}, {X: 500, Y: 120}, {X: 520, Y: 400}, {X: 80, Y: 380}}
	testWorld  = Quad{{X: 10, Y: 10}, {X: 20, Y: 10}, {X: 20, Y: 20}, {X: 10, Y: 20}}
	testIDs    = [4]int{61, 62, 63, 60}
)

// markersAround builds square marker corners around each quadrilateral point
func markersAround(ids [4]int, quad Quad) map[int][]mot.Point {
	markers := make(map[int][]mot.Point, 4)
	for i, id := range ids {
		c := quad[i]
		markers[id] = []mot.Point{
			{X: c.X - 5, Y: c.Y - 5},
			{X: c.X + 5, Y: c.Y - 5},
			{X: c.X + 5, Y: c.Y + 5},
			{X: c.X - 5, Y: c.Y + 5},
		}
	}
	return markers
}

func TestQuadValidate(t *testing.T) {
	assert.NoError(t, testCamera.Validate())

	duplicates := Quad{{X: 1, Y: 0}, {X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}}
	assert.True(t, errors.Is(duplicates.Validate(), ErrMalformedCorrespondence))

	collinear := Quad{{X: 0, Y: 0}, {X: 1, Y: 1}, {X: 2, Y: 2}, {X: 0, Y: 5}}
	assert.True(t, errors.Is(collinear.Validate(), ErrMalformedCorrespondence))
}

func TestNewQuad(t *testing.T) {
	quad, err := NewQuad([][2]float64{{0, 0}, {100, 0}, {100, 100}, {0, 100}})
	require.NoError(t, err)
	assert.Equal(t, mot.Point{X: 100, Y: 100}, quad[2])
	assert.Equal(t, [][2]float64{{0, 0}, {100, 0}, {100, 100}, {0, 100}}, quad.Points())

	_, err = NewQuad([][2]float64{{0, 0}, {100, 0}, {100, 100}})
	assert.True(t, errors.Is(err, ErrMalformedCorrespondence))
}

func TestLocationConverterCorners(t *testing.T) {
	converter, err := NewLocationConverter(testCamera, testWorld)
	require.NoError(t, err)
	for i := range testCamera {
		world, err := converter.CameraToWorld(testCamera[i])
		require.NoError(t, err)
		assert.InDelta(t, testWorld[i].X, world.X, 1e-6)
		assert.InDelta(t, testWorld[i].Y, world.Y, 1e-6)

		pixel, err := converter.WorldToCamera(testWorld[i])
		require.NoError(t, err)
		assert.InDelta(t, testCamera[i].X, pixel.X, 1e-6)
		assert.InDelta(t, testCamera[i].Y, pixel.Y, 1e-6)
	}
}

func TestLocationConverterRoundTrip(t *testing.T) {
	converter, err := NewLocationConverter(testCamera, testWorld)
	require.NoError(t, err)
	for x := 120.0; x <= 480; x += 45 {
		for y := 140.0; y <= 360; y += 35 {
			p := mot.Point{X: x, Y: y}
			world, err := converter.CameraToWorld(p)
			require.NoError(t, err)
			back, err := converter.WorldToCamera(world)
			require.NoError(t, err)
			assert.InDelta(t, p.X, back.X, 1e-6)
			assert.InDelta(t, p.Y, back.Y, 1e-6)
		}
	}
}

func TestLocationConverterIdentity(t *testing.T) {
	converter, err := NewLocationConverter(testWorld, testWorld)
	require.NoError(t, err)
	identity := mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
	assert.True(t, mat.EqualApprox(identity, converter.Forward(), 1e-9))
	assert.True(t, mat.EqualApprox(identity, converter.Inverse(), 1e-9))
}

func TestSetCameraMatrixIdempotent(t *testing.T) {
	converter, err := NewLocationConverter(testWorld, testWorld)
	require.NoError(t, err)

	require.NoError(t, converter.SetCameraMatrix(testCamera))
	forward := converter.Forward()
	inverse := converter.Inverse()

	require.NoError(t, converter.SetCameraMatrix(testCamera))
	assert.True(t, mat.Equal(forward, converter.Forward()))
	assert.True(t, mat.Equal(inverse, converter.Inverse()))
	assert.Equal(t, testCamera, converter.CameraQuad())
	assert.Equal(t, testWorld, converter.WorldQuad())
}

func TestSetCameraMatrixRejectsMalformed(t *testing.T) {
	converter, err := NewLocationConverter(testCamera, testWorld)
	require.NoError(t, err)
	forward := converter.Forward()

	bad := Quad{{X: 1, Y: 0}, {X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}}
	err = converter.SetCameraMatrix(bad)
	assert.True(t, errors.Is(err, ErrMalformedCorrespondence))
	assert.Equal(t, testCamera, converter.CameraQuad())
	assert.True(t, mat.Equal(forward, converter.Forward()))

	_, err = NewLocationConverter(testCamera, bad)
	assert.True(t, errors.Is(err, ErrMalformedCorrespondence))
}

func TestPlaneFinder(t *testing.T) {
	_, err := NewPlaneFinder([4]int{1, 2, 3, 1})
	assert.Error(t, err)

	finder, err := NewPlaneFinder(testIDs)
	require.NoError(t, err)
	assert.Equal(t, testIDs, finder.IDs())

	quad, ok := finder.Find(markersAround(testIDs, testCamera))
	require.True(t, ok)
	for i := range quad {
		assert.InDelta(t, testCamera[i].X, quad[i].X, 1e-9)
		assert.InDelta(t, testCamera[i].Y, quad[i].Y, 1e-9)
	}

	partial := markersAround(testIDs, testCamera)
	delete(partial, 63)
	_, ok = finder.Find(partial)
	assert.False(t, ok)

	empty := markersAround(testIDs, testCamera)
	empty[60] = nil
	_, ok = finder.Find(empty)
	assert.False(t, ok)
}

type fakeLocalizer struct {
	frames []map[int][]mot.Point
	calls  int
}

func (localizer *fakeLocalizer) FindMarkers(img image.Image) (map[int][]mot.Point, error) {
	if localizer.calls >= len(localizer.frames) {
		return nil, errors.New("no more frames")
	}
	markers := localizer.frames[localizer.calls]
	localizer.calls++
	return markers, nil
}

func testMapperConfig() MapperConfig {
	return MapperConfig{
		CameraCorners: Quad{{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 100, Y: 100}, {X: 0, Y: 100}},
		WorldCorners:  testWorld,
		MarkerIDs:     testIDs,
	}
}

func TestCoordinateMapperNotCalibrated(t *testing.T) {
	mapper, err := NewCoordinateMapper(testMapperConfig(), nil)
	require.NoError(t, err)
	assert.False(t, mapper.Calibrated())

	frame := mot.NewFrame(nil, time.Now())
	object := frame.AddObject(mot.NewBoundingBox(10, 10, 30, 30), "car", 1)
	require.NoError(t, mapper.Process(frame))
	_, ok := object.GetWorldPosition()
	assert.False(t, ok)
	assert.False(t, object.LatestSample().HasWorld)

	_, err = mapper.CameraToWorld(mot.Point{X: 1, Y: 1})
	assert.True(t, errors.Is(err, ErrNotCalibrated))
	_, err = mapper.WorldToCamera(mot.Point{X: 1, Y: 1})
	assert.True(t, errors.Is(err, ErrNotCalibrated))
}

func TestCoordinateMapperStaticCalibration(t *testing.T) {
	cfg := testMapperConfig()
	cfg.StaticCalibration = true
	mapper, err := NewCoordinateMapper(cfg, nil)
	require.NoError(t, err)
	require.True(t, mapper.Calibrated())

	frame := mot.NewFrame(nil, time.Now())
	// Center is (50, 50): the middle of both planes
	object := frame.AddObject(mot.NewBoundingBox(40, 40, 60, 60), "car", 1)
	require.NoError(t, mapper.Process(frame))
	world, ok := object.GetWorldPosition()
	require.True(t, ok)
	assert.InDelta(t, 15.0, world.X, 1e-6)
	assert.InDelta(t, 15.0, world.Y, 1e-6)
	assert.True(t, object.LatestSample().HasWorld)
}

func TestCoordinateMapperObserve(t *testing.T) {
	mapper, err := NewCoordinateMapper(testMapperConfig(), nil)
	require.NoError(t, err)

	partial := markersAround(testIDs, testCamera)
	delete(partial, 61)
	assert.False(t, mapper.Observe(partial))
	assert.False(t, mapper.Calibrated())

	assert.True(t, mapper.Observe(markersAround(testIDs, testCamera)))
	assert.True(t, mapper.Calibrated())
	// Same plane again: nothing to recompute
	assert.False(t, mapper.Observe(markersAround(testIDs, testCamera)))

	moved := testCamera
	moved[0] = mot.Point{X: 90, Y: 95}
	assert.True(t, mapper.Observe(markersAround(testIDs, moved)))
	assert.Equal(t, moved, mapper.Converter().CameraQuad())
}

func TestCoordinateMapperPlaneLoss(t *testing.T) {
	localizer := &fakeLocalizer{}
	for i := 0; i < 5; i++ {
		localizer.frames = append(localizer.frames, markersAround(testIDs, testCamera))
	}
	// Markers disappear on the sixth frame
	localizer.frames = append(localizer.frames, map[int][]mot.Point{})

	mapper, err := NewCoordinateMapper(testMapperConfig(), localizer)
	require.NoError(t, err)

	var forward *mat.Dense
	for i := 0; i < 6; i++ {
		frame := mot.NewFrame(nil, time.Now())
		object := frame.AddObject(mot.NewBoundingBox(290, 240, 310, 260), "car", 1)
		require.NoError(t, mapper.Process(frame))
		require.True(t, mapper.Calibrated(), "frame %d", i)
		_, ok := object.GetWorldPosition()
		assert.True(t, ok, "frame %d", i)
		if i == 4 {
			forward = mapper.Converter().Forward()
		}
	}
	assert.True(t, mat.Equal(forward, mapper.Converter().Forward()))
	assert.Equal(t, testCamera, mapper.Converter().CameraQuad())

	// Localizer failure is not fatal either
	frame := mot.NewFrame(nil, time.Now())
	require.NoError(t, mapper.Process(frame))
	assert.True(t, mapper.Calibrated())
}

func TestNewCoordinateMapperErrors(t *testing.T) {
	cfg := testMapperConfig()
	cfg.MarkerIDs = [4]int{1, 1, 2, 3}
	_, err := NewCoordinateMapper(cfg, nil)
	assert.Error(t, err)

	cfg = testMapperConfig()
	cfg.CameraCorners = Quad{{X: 1, Y: 0}, {X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}}
	_, err = NewCoordinateMapper(cfg, nil)
	assert.True(t, errors.Is(err, ErrMalformedCorrespondence))
}
