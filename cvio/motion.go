package cvio

import (
	"image"

	"github.com/LdDl/movement-params/mot"
	"github.com/LdDl/movement-params/pipeline"
	"gocv.io/x/gocv"
)

const (
	// DefaultMinMotionArea is minimal contour area (px) of a moving region
	DefaultMinMotionArea = 10000
	// MotionLabel is label of regions found by MotionDetector
	MotionLabel = "movement"
)

// MotionDetector finds moving regions by difference of consecutive frames.
// The first frame only primes the detector.
type MotionDetector struct {
	previous gocv.Mat
	kernel   gocv.Mat
	minArea  float64
}

// NewMotionDetector creates detector. Non-positive minArea means DefaultMinMotionArea
func NewMotionDetector(minArea float64) *MotionDetector {
	if minArea <= 0 {
		minArea = DefaultMinMotionArea
	}
	return &MotionDetector{
		previous: gocv.NewMat(),
		kernel:   gocv.GetStructuringElement(gocv.MorphRect, image.Pt(3, 3)),
		minArea:  minArea,
	}
}

// Detect implements pipeline.Detector
func (detector *MotionDetector) Detect(img image.Image) ([]pipeline.Detection, error) {
	current, err := toMat(img)
	if err != nil {
		return nil, err
	}
	defer func() {
		detector.previous.Close()
		detector.previous = current
	}()
	if detector.previous.Empty() || detector.previous.Rows() != current.Rows() || detector.previous.Cols() != current.Cols() {
		return nil, nil
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(detector.previous, current, &diff)

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(diff, &gray, gocv.ColorBGRToGray)
	gocv.GaussianBlur(gray, &gray, image.Pt(5, 5), 0, 0, gocv.BorderDefault)

	mask := gocv.NewMat()
	defer mask.Close()
	gocv.Threshold(gray, &mask, 20, 255, gocv.ThresholdBinary)
	for i := 0; i < 3; i++ {
		gocv.Dilate(mask, &mask, detector.kernel)
	}

	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()
	detections := make([]pipeline.Detection, 0)
	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)
		if gocv.ContourArea(contour) < detector.minArea {
			continue
		}
		detections = append(detections, pipeline.Detection{
			Label:      MotionLabel,
			Confidence: 1,
			Box:        mot.NewBoundingBoxFrom(gocv.BoundingRect(contour)),
		})
	}
	return detections, nil
}

// Close releases buffers
func (detector *MotionDetector) Close() error {
	detector.kernel.Close()
	return detector.previous.Close()
}
