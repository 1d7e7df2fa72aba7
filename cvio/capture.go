package cvio

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/LdDl/movement-params/mot"
	"github.com/LdDl/movement-params/pipeline"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// StreamSource captures camera device or network stream on a background goroutine.
// Only the newest frame is kept: processing which is slower than the stream skips frames.
type StreamSource struct {
	capture *gocv.VideoCapture
	latest  *pipeline.LatestFrame
	period  time.Duration
	logger  *slog.Logger
}

// NewStreamSource opens device index ("0") or stream URL
func NewStreamSource(device string, logger *slog.Logger) (*StreamSource, error) {
	var capture *gocv.VideoCapture
	var err error
	if id, convErr := strconv.Atoi(device); convErr == nil {
		capture, err = gocv.VideoCaptureDevice(id)
	} else {
		capture, err = gocv.VideoCaptureFile(device)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "Can't open stream '%s'", device)
	}
	capture.Set(gocv.VideoCaptureBufferSize, 1)
	period := time.Duration(0)
	if fps := capture.Get(gocv.VideoCaptureFPS); fps > 0 {
		period = time.Duration(float64(time.Second) / fps)
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("stream opened", "device", device, "period", period)
	return &StreamSource{
		capture: capture,
		latest:  pipeline.NewLatestFrame(),
		period:  period,
		logger:  logger,
	}, nil
}

// Run reads frames until context is cancelled or stream ends.
// It is meant to be started on its own goroutine.
func (source *StreamSource) Run(ctx context.Context) error {
	defer source.latest.Close()
	img := gocv.NewMat()
	defer img.Close()
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		started := time.Now()
		if ok := source.capture.Read(&img); !ok {
			source.logger.Info("stream ended")
			return nil
		}
		if img.Empty() {
			continue
		}
		frame, err := frameFromMat(img, started)
		if err != nil {
			source.logger.Warn("skip captured frame", "error", err)
			continue
		}
		source.latest.Put(frame)
		if wait := source.period - time.Since(started); wait > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(wait):
			}
		}
	}
}

// GetFrame implements pipeline.Source
func (source *StreamSource) GetFrame() (*mot.Frame, error) {
	return source.latest.GetFrame()
}

// Dropped returns number of captured frames which were never processed
func (source *StreamSource) Dropped() int64 {
	return source.latest.Dropped()
}

// Close releases capture device
func (source *StreamSource) Close() error {
	return source.capture.Close()
}

// VideoFileSource reads video file frame by frame.
// Frame time is the start time shifted by the position of the frame in the video,
// so kinematics do not depend on processing speed.
type VideoFileSource struct {
	capture *gocv.VideoCapture
	img     gocv.Mat
	start   time.Time
}

// NewVideoFileSource opens video file
func NewVideoFileSource(path string) (*VideoFileSource, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrapf(err, "Can't open video '%s'", path)
	}
	capture, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't open video '%s'", path)
	}
	return &VideoFileSource{
		capture: capture,
		img:     gocv.NewMat(),
		start:   time.Now(),
	}, nil
}

// GetFrame implements pipeline.Source
func (source *VideoFileSource) GetFrame() (*mot.Frame, error) {
	for {
		if ok := source.capture.Read(&source.img); !ok {
			return nil, io.EOF
		}
		if !source.img.Empty() {
			break
		}
	}
	position := time.Duration(source.capture.Get(gocv.VideoCapturePosMsec) * float64(time.Millisecond))
	return frameFromMat(source.img, source.start.Add(position))
}

// Close releases file
func (source *VideoFileSource) Close() error {
	source.img.Close()
	return source.capture.Close()
}

// PhotoSource yields a single still image
type PhotoSource struct {
	path string
	done bool
}

// NewPhotoSource checks that image file exists
func NewPhotoSource(path string) (*PhotoSource, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrapf(err, "Can't open image '%s'", path)
	}
	return &PhotoSource{path: path}, nil
}

// GetFrame implements pipeline.Source
func (source *PhotoSource) GetFrame() (*mot.Frame, error) {
	if source.done {
		return nil, io.EOF
	}
	source.done = true
	img := gocv.IMRead(source.path, gocv.IMReadColor)
	defer img.Close()
	if img.Empty() {
		return nil, errors.Errorf("Can't decode image '%s'", source.path)
	}
	return frameFromMat(img, time.Now())
}
