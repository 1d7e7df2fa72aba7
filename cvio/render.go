package cvio

import (
	"fmt"
	"image"
	"image/color"
	"path/filepath"
	"strings"
	"time"

	"github.com/LdDl/movement-params/mot"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

var (
	boxColor       = color.RGBA{0, 255, 0, 0}
	predictedColor = color.RGBA{0, 0, 255, 0}
	textColor      = color.RGBA{255, 255, 255, 0}
)

// drawFrame draws boxes, identities, speeds and predicted points of every object.
// Caption is shown after frame.Info; the frame itself is not changed
func drawFrame(mat *gocv.Mat, frame *mot.Frame, caption string) {
	for _, object := range frame.Objects {
		box := object.GetBBox()
		gocv.Rectangle(mat, box.Rect(), boxColor, 2)

		title := object.GetLabel()
		if id, ok := object.GetID(); ok {
			title = fmt.Sprintf("#%d %s %.1f", id, title, object.GetSpeed())
		}
		gocv.PutText(mat, title, image.Pt(box.Left, box.Top-5), gocv.FontHersheySimplex, 0.5, boxColor, 1)

		if world, ok := object.GetWorldPosition(); ok {
			gocv.PutText(mat, fmt.Sprintf("(%.1f, %.1f)", world.X, world.Y), image.Pt(box.Left, box.Bottom+15), gocv.FontHersheySimplex, 0.4, boxColor, 1)
		}
		for _, p := range object.GetPredicted() {
			gocv.Circle(mat, p.Image(), 4, predictedColor, -1)
		}
	}
	if text := strings.TrimSpace(frame.Info + " " + caption); text != "" {
		gocv.PutText(mat, text, image.Pt(10, 20), gocv.FontHersheySimplex, 0.6, textColor, 2)
	}
}

// fpsMeter turns creation times of consecutive frames into FPS caption
type fpsMeter struct {
	last time.Time
}

func (meter *fpsMeter) caption(created time.Time) string {
	text := ""
	if !meter.last.IsZero() {
		if elapsed := created.Sub(meter.last).Seconds(); elapsed > 0 {
			text = fmt.Sprintf("FPS: %.1f", 1/elapsed)
		}
	}
	meter.last = created
	return text
}

// WindowSink shows annotated frames in a window
type WindowSink struct {
	window   *gocv.Window
	fps      fpsMeter
	onEscape func()
}

// NewWindowSink opens window. onEscape (may be nil) is called when ESC is pressed
func NewWindowSink(title string, onEscape func()) *WindowSink {
	return &WindowSink{
		window:   gocv.NewWindow(title),
		onEscape: onEscape,
	}
}

// Push implements pipeline.Sink
func (sink *WindowSink) Push(frame *mot.Frame) error {
	mat, err := toMat(frame.Image)
	if err != nil {
		return err
	}
	defer mat.Close()
	drawFrame(&mat, frame, sink.fps.caption(frame.Created))
	sink.window.IMShow(mat)
	if sink.window.WaitKey(1) == 27 && sink.onEscape != nil {
		sink.onEscape()
	}
	return nil
}

// Close closes window
func (sink *WindowSink) Close() error {
	return sink.window.Close()
}

// PhotoSink writes annotated frames to image files.
// With timestamp suffix every frame gets its own file: name_<unix seconds>.ext
type PhotoSink struct {
	base      string
	ext       string
	timestamp bool
}

// NewPhotoSink creates sink writing to path
func NewPhotoSink(path string, timestamp bool) *PhotoSink {
	ext := filepath.Ext(path)
	if ext == "" {
		ext = ".jpg"
	}
	return &PhotoSink{
		base:      strings.TrimSuffix(path, filepath.Ext(path)),
		ext:       ext,
		timestamp: timestamp,
	}
}

// Path returns file name for the frame
func (sink *PhotoSink) Path(frame *mot.Frame) string {
	if sink.timestamp {
		return fmt.Sprintf("%s_%d%s", sink.base, frame.Created.Unix(), sink.ext)
	}
	return sink.base + sink.ext
}

// Push implements pipeline.Sink
func (sink *PhotoSink) Push(frame *mot.Frame) error {
	mat, err := toMat(frame.Image)
	if err != nil {
		return err
	}
	defer mat.Close()
	drawFrame(&mat, frame, "")
	path := sink.Path(frame)
	if ok := gocv.IMWrite(path, mat); !ok {
		return errors.Errorf("Can't write image '%s'", path)
	}
	return nil
}
