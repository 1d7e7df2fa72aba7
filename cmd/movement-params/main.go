package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/LdDl/movement-params/calibration"
	"github.com/LdDl/movement-params/config"
	"github.com/LdDl/movement-params/cvio"
	"github.com/LdDl/movement-params/estimator"
	"github.com/LdDl/movement-params/mot"
	"github.com/LdDl/movement-params/pipeline"
	"github.com/LdDl/movement-params/store"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// options are command line flags
type options struct {
	configPath   string
	writeConfig  string
	input        string
	photo        string
	detector     string
	modelCfg     string
	modelWeights string
	modelNames   string
	aruco        bool
	dbPath       string
	window       bool
	output       string
	timestamp    bool
	debug        bool
}

func main() {
	opts := options{}
	flag.StringVar(&opts.configPath, "config", "", "Path to YAML configuration (defaults are used when empty)")
	flag.StringVar(&opts.writeConfig, "write-config", "", "Write effective configuration to this path and exit")
	flag.StringVar(&opts.input, "input", "0", "Camera index, stream URL or video file")
	flag.StringVar(&opts.photo, "photo", "", "Process a single image instead of -input")
	flag.StringVar(&opts.detector, "detector", "darknet", "Detector: darknet or motion")
	flag.StringVar(&opts.modelCfg, "model-cfg", "yolov4.cfg", "Darknet network configuration")
	flag.StringVar(&opts.modelWeights, "model-weights", "yolov4.weights", "Darknet network weights")
	flag.StringVar(&opts.modelNames, "model-names", "", "Class names file (COCO names when empty)")
	flag.BoolVar(&opts.aruco, "aruco", false, "Recalibrate camera plane from ArUco markers")
	flag.StringVar(&opts.dbPath, "db", "", "SQLite database to store observations in")
	flag.BoolVar(&opts.window, "window", false, "Show annotated frames in a window")
	flag.StringVar(&opts.output, "output", "", "Write annotated frames to this image file")
	flag.BoolVar(&opts.timestamp, "timestamp", false, "Add unix time suffix to every written image")
	flag.BoolVar(&opts.debug, "debug", false, "Debug logging (overrides log_level)")
	flag.Parse()

	if err := execute(opts); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func execute(opts options) error {
	cfg, err := config.Resolve(opts.configPath)
	if err != nil {
		return errors.Wrap(err, "Can't load configuration")
	}
	if opts.writeConfig != "" {
		return cfg.Save(opts.writeConfig)
	}

	level, err := cfg.Level()
	if err != nil {
		return errors.Wrap(err, "Bad log level")
	}
	if opts.debug {
		level = slog.LevelDebug
	}
	logger := NewLogger(level)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	app := &application{
		cfg:    cfg,
		logger: logger,
	}
	defer app.Close()

	err = app.setup(opts.detector, opts.modelCfg, opts.modelWeights, opts.modelNames, opts.aruco)
	if err != nil {
		return errors.Wrap(err, "Can't build processing chain")
	}
	err = app.setupSinks(opts.dbPath, opts.window, opts.output, opts.timestamp, cancel)
	if err != nil {
		return errors.Wrap(err, "Can't open outputs")
	}
	err = app.run(ctx, opts.input, opts.photo)
	if err != nil && !errors.Is(err, context.Canceled) {
		return errors.Wrap(err, "Processing stopped")
	}
	return nil
}

// application owns every component and releases them on exit
type application struct {
	cfg        *config.Config
	logger     *slog.Logger
	processors []pipeline.Processor
	sinks      []pipeline.Sink
	closers    []io.Closer
}

func (app *application) setup(detectorName, modelCfg, modelWeights, modelNames string, aruco bool) error {
	var detector pipeline.Detector
	switch detectorName {
	case "darknet":
		darknet, err := cvio.NewDarknetDetector(modelCfg, modelWeights, modelNames)
		if err != nil {
			return err
		}
		app.closers = append(app.closers, darknet)
		detector = darknet
	case "motion":
		motion := cvio.NewMotionDetector(cvio.DefaultMinMotionArea)
		app.closers = append(app.closers, motion)
		detector = motion
	default:
		return errors.Errorf("Unknown detector '%s'", detectorName)
	}

	algorithm, err := app.cfg.MatchingAlgorithm()
	if err != nil {
		return err
	}
	tracker := mot.NewIoUTracker(app.cfg.IoUThreshold, algorithm)

	app.processors = []pipeline.Processor{
		pipeline.NewDetectionStage(detector, app.cfg.Labels...),
		pipeline.NestedFilterStage{},
		tracker,
	}

	var projector estimator.WorldProjector
	if aruco || app.cfg.StaticCalibration || app.cfg.UseWorldCoordinates {
		mapperCfg, err := app.cfg.CalibrationConfig()
		if err != nil {
			return err
		}
		var localizer calibration.MarkerLocalizer
		if aruco {
			arucoLocalizer := cvio.NewArucoLocalizer()
			app.closers = append(app.closers, arucoLocalizer)
			localizer = arucoLocalizer
		}
		mapper, err := calibration.NewCoordinateMapper(mapperCfg, localizer, calibration.WithLogger(app.logger))
		if err != nil {
			return err
		}
		app.processors = append(app.processors, mapper)
		projector = mapper
	}

	estCfg, err := app.cfg.EstimatorConfig()
	if err != nil {
		return err
	}
	est, err := estimator.NewEstimator(estCfg, projector, estimator.WithLogger(app.logger))
	if err != nil {
		return err
	}
	app.processors = append(app.processors, est)
	app.logger.Info("processing chain ready",
		"detector", detectorName,
		"association", algorithm.String(),
		"prediction", estCfg.Mode.String(),
		"world", estCfg.UseWorld,
	)
	return nil
}

func (app *application) setupSinks(dbPath string, window bool, output string, timestamp bool, cancel context.CancelFunc) error {
	if dbPath != "" {
		db, err := store.NewDB(dbPath)
		if err != nil {
			return err
		}
		app.closers = append(app.closers, db)
		app.sinks = append(app.sinks, db)
	}
	if window {
		windowSink := cvio.NewWindowSink("movement-params", cancel)
		app.closers = append(app.closers, windowSink)
		app.sinks = append(app.sinks, windowSink)
	}
	if output != "" {
		app.sinks = append(app.sinks, cvio.NewPhotoSink(output, timestamp))
	}
	return nil
}

func (app *application) run(ctx context.Context, input, photo string) error {
	poll, err := app.cfg.PollDuration()
	if err != nil {
		return errors.Wrap(err, "Bad poll interval")
	}
	processing := pipeline.New(app.processors, app.sinks, pipeline.WithLogger(app.logger), pipeline.WithPollInterval(poll))

	if photo != "" {
		source, err := cvio.NewPhotoSource(photo)
		if err != nil {
			return err
		}
		return processing.Run(ctx, source)
	}

	if _, err := os.Stat(input); err == nil {
		source, err := cvio.NewVideoFileSource(input)
		if err != nil {
			return err
		}
		app.closers = append(app.closers, source)
		return processing.Run(ctx, source)
	}

	stream, err := cvio.NewStreamSource(input, app.logger)
	if err != nil {
		return err
	}
	app.closers = append(app.closers, stream)
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return stream.Run(groupCtx)
	})
	group.Go(func() error {
		return processing.Run(groupCtx, stream)
	})
	err = group.Wait()
	app.logger.Info("stream closed", "dropped", stream.Dropped())
	return err
}

// Close releases components in reverse order
func (app *application) Close() {
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i].Close(); err != nil {
			app.logger.Warn("can't release component", "error", err)
		}
	}
}
