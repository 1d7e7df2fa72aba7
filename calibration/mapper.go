package calibration

import (
	"log/slog"

	"github.com/LdDl/movement-params/mot"
	"github.com/pkg/errors"
)

// MapperConfig is configuration of CoordinateMapper
type MapperConfig struct {
	// Initial camera quadrilateral. Used as transform source only when StaticCalibration is set
	CameraCorners Quad
	// World quadrilateral. Never changes
	WorldCorners Quad
	// Markers defining camera plane, in the same order as WorldCorners
	MarkerIDs [4]int
	// Treat CameraCorners as measured plane and start calibrated
	StaticCalibration bool
}

// MapperOption configures CoordinateMapper
type MapperOption func(*CoordinateMapper)

// WithLogger sets logger for calibration events
func WithLogger(logger *slog.Logger) MapperOption {
	return func(mapper *CoordinateMapper) {
		mapper.logger = logger
	}
}

// CoordinateMapper attaches world positions to objects.
// Camera plane is recalibrated every time all four markers are visible and their plane changed.
// Until the plane is observed at least once (or static calibration is configured) objects pass through unmodified.
type CoordinateMapper struct {
	converter  *LocationConverter
	finder     *PlaneFinder
	localizer  MarkerLocalizer
	calibrated bool
	logger     *slog.Logger
}

// NewCoordinateMapper creates mapper. Localizer may be nil: then only Observe or static calibration can calibrate it.
// Malformed quadrilaterals and repeated marker identifiers are reported as errors.
func NewCoordinateMapper(cfg MapperConfig, localizer MarkerLocalizer, opts ...MapperOption) (*CoordinateMapper, error) {
	converter, err := NewLocationConverter(cfg.CameraCorners, cfg.WorldCorners)
	if err != nil {
		return nil, errors.Wrap(err, "Can't create location converter")
	}
	finder, err := NewPlaneFinder(cfg.MarkerIDs)
	if err != nil {
		return nil, errors.Wrap(err, "Can't create plane finder")
	}
	mapper := &CoordinateMapper{
		converter:  converter,
		finder:     finder,
		localizer:  localizer,
		calibrated: cfg.StaticCalibration,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(mapper)
	}
	return mapper, nil
}

// Calibrated returns true once camera plane is known
func (mapper *CoordinateMapper) Calibrated() bool {
	return mapper.calibrated
}

// Converter returns underlying converter
func (mapper *CoordinateMapper) Converter() *LocationConverter {
	return mapper.converter
}

// Observe recalibrates camera plane from markers observed on a frame.
// Returns true when transforms were recomputed.
func (mapper *CoordinateMapper) Observe(markers map[int][]mot.Point) bool {
	quad, ok := mapper.finder.Find(markers)
	if !ok {
		return false
	}
	if mapper.calibrated && quad == mapper.converter.CameraQuad() {
		return false
	}
	err := mapper.converter.SetCameraMatrix(quad)
	if err != nil {
		mapper.logger.Warn("skip camera plane", "quad", quad, "error", err)
		return false
	}
	mapper.calibrated = true
	mapper.logger.Info("camera plane recalibrated", "quad", quad)
	return true
}

// CameraToWorld converts pixel to world coordinates. Fails with ErrNotCalibrated before calibration
func (mapper *CoordinateMapper) CameraToWorld(pixel mot.Point) (mot.Point, error) {
	if !mapper.calibrated {
		return mot.Point{}, ErrNotCalibrated
	}
	return mapper.converter.CameraToWorld(pixel)
}

// WorldToCamera converts world to pixel coordinates. Fails with ErrNotCalibrated before calibration
func (mapper *CoordinateMapper) WorldToCamera(coord mot.Point) (mot.Point, error) {
	if !mapper.calibrated {
		return mot.Point{}, ErrNotCalibrated
	}
	return mapper.converter.WorldToCamera(coord)
}

// Process looks for markers on the frame and attaches world positions to its objects
func (mapper *CoordinateMapper) Process(frame *mot.Frame) error {
	if mapper.localizer != nil {
		markers, err := mapper.localizer.FindMarkers(frame.Image)
		if err != nil {
			mapper.logger.Debug("markers not found", "frame", frame.ID, "error", err)
		} else {
			mapper.Observe(markers)
		}
	}
	if !mapper.calibrated {
		return nil
	}
	for _, object := range frame.Objects {
		world, err := mapper.converter.CameraToWorld(object.GetCenter())
		if err != nil {
			mapper.logger.Debug("skip world position", "frame", frame.ID, "error", err)
			continue
		}
		object.SetWorldPosition(world)
	}
	return nil
}
