package cvio

import (
	"image"

	"github.com/LdDl/movement-params/mot"
	"gocv.io/x/gocv"
)

// ArucoLocalizer finds ArUco markers of 4x4 dictionary
type ArucoLocalizer struct {
	detector gocv.ArucoDetector
}

// NewArucoLocalizer creates localizer with default detection parameters
func NewArucoLocalizer() *ArucoLocalizer {
	dictionary := gocv.GetPredefinedDictionary(gocv.ArucoDict4x4_100)
	return &ArucoLocalizer{
		detector: gocv.NewArucoDetectorWithParams(dictionary, gocv.NewArucoDetectorParameters()),
	}
}

// FindMarkers implements calibration.MarkerLocalizer
func (localizer *ArucoLocalizer) FindMarkers(img image.Image) (map[int][]mot.Point, error) {
	mat, err := toMat(img)
	if err != nil {
		return nil, err
	}
	defer mat.Close()
	corners, ids, _ := localizer.detector.DetectMarkers(mat)
	markers := make(map[int][]mot.Point, len(ids))
	for i, id := range ids {
		points := make([]mot.Point, len(corners[i]))
		for j, corner := range corners[i] {
			points[j] = mot.Point{X: float64(corner.X), Y: float64(corner.Y)}
		}
		markers[id] = points
	}
	return markers, nil
}

// Close releases detector
func (localizer *ArucoLocalizer) Close() error {
	localizer.detector.Close()
	return nil
}
