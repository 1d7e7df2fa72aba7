// Package cvio binds the processing chain to OpenCV: capture devices, video files,
// still images, neural and motion detectors, ArUco markers and on-screen rendering.
package cvio

import (
	"image"
	"time"

	"github.com/LdDl/movement-params/mot"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// toMat converts image to BGR matrix. Caller must close the result unless error is returned
func toMat(img image.Image) (gocv.Mat, error) {
	if img == nil {
		return gocv.Mat{}, errors.New("Frame has no image")
	}
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return gocv.Mat{}, errors.Wrap(err, "Can't convert image to matrix")
	}
	return mat, nil
}

// frameFromMat creates frame holding a copy of matrix pixels
func frameFromMat(mat gocv.Mat, created time.Time) (*mot.Frame, error) {
	img, err := mat.ToImage()
	if err != nil {
		return nil, errors.Wrap(err, "Can't convert matrix to image")
	}
	return mot.NewFrame(img, created), nil
}
