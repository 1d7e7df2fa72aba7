package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/LdDl/movement-params/calibration"
	"github.com/LdDl/movement-params/estimator"
	"github.com/LdDl/movement-params/mot"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig wraps every validation failure
var ErrInvalidConfig = errors.New("Invalid configuration")

// SmoothingConfig holds damping parameters of speed and acceleration
type SmoothingConfig struct {
	OutlierRatio   float64 `yaml:"outlier_ratio"`
	GainSmooth     float64 `yaml:"gain_smooth"`
	GainResponsive float64 `yaml:"gain_responsive"`
}

// PredictionConfig holds trajectory prediction parameters
type PredictionConfig struct {
	LinearStep          int        `yaml:"linear_step"`
	LinearLookAhead     float64    `yaml:"linear_look_ahead"`
	QuadraticMinSamples int        `yaml:"quadratic_min_samples"`
	QuadraticWindow     int        `yaml:"quadratic_window"`
	QuadraticLookAhead  [3]float64 `yaml:"quadratic_look_ahead"`
}

// Config is the full application configuration
type Config struct {
	// Minimal (exclusive) IoU of boxes on consecutive frames to continue identity
	IoUThreshold float64 `yaml:"iou_threshold"`
	// "greedy" or "hungarian"
	Association string `yaml:"association"`
	// "short" (linear) or "long" (quadratic)
	PredictionMode string `yaml:"prediction_mode"`
	// Estimate kinematics in world units
	UseWorldCoordinates bool `yaml:"use_world_coordinates"`
	// World-plane quadrilateral matching the markers: top-left, top-right, bottom-right, bottom-left
	WorldCorners [][2]float64 `yaml:"world_corners"`
	// Camera quadrilateral used until markers are observed (or always, with static calibration)
	CameraCornersDefault [][2]float64 `yaml:"camera_corners_default"`
	// ArUco identifiers in the same order as WorldCorners
	MarkerIDs []int `yaml:"marker_ids"`
	// Treat CameraCornersDefault as measured plane
	StaticCalibration bool `yaml:"static_calibration"`
	// Allowed detection labels. Empty means all of them
	Labels []string `yaml:"labels"`

	Smoothing  SmoothingConfig  `yaml:"smoothing"`
	Prediction PredictionConfig `yaml:"prediction"`

	// Pause between polls of a source without a fresh frame, e.g. "5ms"
	PollInterval string `yaml:"poll_interval"`
	// debug, info, warn or error
	LogLevel string `yaml:"log_level"`
}

// Default returns configuration with default values
func Default() *Config {
	est := estimator.DefaultConfig()
	return &Config{
		IoUThreshold:         mot.DefaultIoUThreshold,
		Association:          mot.MatchingAlgorithmGreedy.String(),
		PredictionMode:       est.Mode.String(),
		UseWorldCoordinates:  false,
		WorldCorners:         [][2]float64{{10, 10}, {20, 10}, {20, 20}, {10, 20}},
		CameraCornersDefault: [][2]float64{{0, 0}, {100, 0}, {100, 100}, {0, 100}},
		MarkerIDs:            []int{61, 62, 63, 60},
		StaticCalibration:    false,
		Labels:               []string{},
		Smoothing: SmoothingConfig{
			OutlierRatio:   est.OutlierRatio,
			GainSmooth:     est.GainSmooth,
			GainResponsive: est.GainResponsive,
		},
		Prediction: PredictionConfig{
			LinearStep:          est.LinearStep,
			LinearLookAhead:     est.LinearLookAhead,
			QuadraticMinSamples: est.QuadraticMinSamples,
			QuadraticWindow:     est.QuadraticWindow,
			QuadraticLookAhead:  est.QuadraticLookAhead,
		},
		PollInterval: "5ms",
		LogLevel:     "info",
	}
}

// Load reads YAML file. Keys absent from the file keep default values
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, errors.Wrapf(err, "Can't read config '%s'", path)
	}
	cfg := Default()
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't parse config '%s'", path)
	}
	err = cfg.Validate()
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Resolve returns validated configuration: defaults when path is empty, file contents otherwise
func Resolve(path string) (*Config, error) {
	if path != "" {
		return Load(path)
	}
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes configuration as YAML
func (cfg *Config) Save(path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "Can't marshal config")
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks every value and the way they fit each other
func (cfg *Config) Validate() error {
	if cfg.IoUThreshold <= 0 || cfg.IoUThreshold > 1 {
		return errors.Wrapf(ErrInvalidConfig, "iou_threshold must be in (0, 1], got %f", cfg.IoUThreshold)
	}
	if _, err := cfg.MatchingAlgorithm(); err != nil {
		return errors.Wrapf(ErrInvalidConfig, "association: %v", err)
	}
	if _, err := cfg.CalibrationConfig(); err != nil {
		return errors.Wrapf(ErrInvalidConfig, "calibration: %v", err)
	}
	est, err := cfg.EstimatorConfig()
	if err != nil {
		return errors.Wrapf(ErrInvalidConfig, "estimator: %v", err)
	}
	if err := est.Validate(); err != nil {
		return errors.Wrapf(ErrInvalidConfig, "estimator: %v", err)
	}
	if _, err := cfg.PollDuration(); err != nil {
		return errors.Wrapf(ErrInvalidConfig, "poll_interval: %v", err)
	}
	if _, err := cfg.Level(); err != nil {
		return errors.Wrapf(ErrInvalidConfig, "log_level: %v", err)
	}
	return nil
}

// MatchingAlgorithm returns tracker association algorithm
func (cfg *Config) MatchingAlgorithm() (mot.MatchingAlgorithm, error) {
	return mot.ParseMatchingAlgorithm(cfg.Association)
}

// CalibrationConfig converts configuration to coordinate mapper settings
func (cfg *Config) CalibrationConfig() (calibration.MapperConfig, error) {
	world, err := calibration.NewQuad(cfg.WorldCorners)
	if err != nil {
		return calibration.MapperConfig{}, errors.Wrap(err, "world_corners")
	}
	camera, err := calibration.NewQuad(cfg.CameraCornersDefault)
	if err != nil {
		return calibration.MapperConfig{}, errors.Wrap(err, "camera_corners_default")
	}
	if len(cfg.MarkerIDs) != 4 {
		return calibration.MapperConfig{}, errors.Errorf("marker_ids must hold 4 identifiers, got %d", len(cfg.MarkerIDs))
	}
	var ids [4]int
	copy(ids[:], cfg.MarkerIDs)
	if _, err := calibration.NewPlaneFinder(ids); err != nil {
		return calibration.MapperConfig{}, errors.Wrap(err, "marker_ids")
	}
	return calibration.MapperConfig{
		CameraCorners:     camera,
		WorldCorners:      world,
		MarkerIDs:         ids,
		StaticCalibration: cfg.StaticCalibration,
	}, nil
}

// EstimatorConfig converts configuration to estimator settings
func (cfg *Config) EstimatorConfig() (estimator.Config, error) {
	mode, err := estimator.ParsePredictionMode(cfg.PredictionMode)
	if err != nil {
		return estimator.Config{}, err
	}
	est := estimator.DefaultConfig()
	est.Mode = mode
	est.UseWorld = cfg.UseWorldCoordinates
	est.OutlierRatio = cfg.Smoothing.OutlierRatio
	est.GainSmooth = cfg.Smoothing.GainSmooth
	est.GainResponsive = cfg.Smoothing.GainResponsive
	est.LinearStep = cfg.Prediction.LinearStep
	est.LinearLookAhead = cfg.Prediction.LinearLookAhead
	est.QuadraticMinSamples = cfg.Prediction.QuadraticMinSamples
	est.QuadraticWindow = cfg.Prediction.QuadraticWindow
	est.QuadraticLookAhead = cfg.Prediction.QuadraticLookAhead
	return est, nil
}

// PollDuration parses PollInterval
func (cfg *Config) PollDuration() (time.Duration, error) {
	d, err := time.ParseDuration(cfg.PollInterval)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, errors.Errorf("must be positive, got %s", d)
	}
	return d, nil
}

// Level parses LogLevel
func (cfg *Config) Level() (slog.Level, error) {
	var level slog.Level
	err := level.UnmarshalText([]byte(cfg.LogLevel))
	return level, err
}
