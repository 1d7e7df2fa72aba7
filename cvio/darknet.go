package cvio

import (
	"bufio"
	"image"
	"os"
	"sort"
	"strings"

	"github.com/LdDl/movement-params/mot"
	"github.com/LdDl/movement-params/pipeline"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

const (
	// DefaultConfidenceThreshold is minimal class score of a detection
	DefaultConfidenceThreshold = 0.5
	// DefaultNMSThreshold is IoU above which weaker boxes of the same class are suppressed
	DefaultNMSThreshold = 0.5
	// DefaultNetworkSize is width and height of the network input
	DefaultNetworkSize = 416
)

// DarknetDetector runs YOLO network in darknet format with OpenCV DNN module
type DarknetDetector struct {
	net                 gocv.Net
	outputNames         []string
	classes             []string
	confidenceThreshold float32
	nmsThreshold        float64
	networkSize         int
}

// NewDarknetDetector loads network. When namesPath is empty COCO class names are used
func NewDarknetDetector(cfgPath, weightsPath, namesPath string) (*DarknetDetector, error) {
	net := gocv.ReadNetFromDarknet(cfgPath, weightsPath)
	if net.Empty() {
		return nil, errors.Errorf("Can't read network from '%s' and '%s'", cfgPath, weightsPath)
	}
	classes := cocoNames
	if namesPath != "" {
		var err error
		classes, err = readNames(namesPath)
		if err != nil {
			net.Close()
			return nil, err
		}
	}
	layers := net.GetLayerNames()
	outputNames := make([]string, 0)
	for _, id := range net.GetUnconnectedOutLayers() {
		outputNames = append(outputNames, layers[id-1])
	}
	return &DarknetDetector{
		net:                 net,
		outputNames:         outputNames,
		classes:             classes,
		confidenceThreshold: DefaultConfidenceThreshold,
		nmsThreshold:        DefaultNMSThreshold,
		networkSize:         DefaultNetworkSize,
	}, nil
}

// Detect implements pipeline.Detector
func (detector *DarknetDetector) Detect(img image.Image) ([]pipeline.Detection, error) {
	mat, err := toMat(img)
	if err != nil {
		return nil, err
	}
	defer mat.Close()
	blob := gocv.BlobFromImage(mat, 1.0/255.0, image.Pt(detector.networkSize, detector.networkSize), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()
	detector.net.SetInput(blob, "")
	outputs := detector.net.ForwardLayers(detector.outputNames)
	defer func() {
		for i := range outputs {
			outputs[i].Close()
		}
	}()

	width, height := float32(mat.Cols()), float32(mat.Rows())
	detections := make([]pipeline.Detection, 0)
	for _, out := range outputs {
		// Row layout: center x, center y, width, height (relative), objectness, class scores...
		for row := 0; row < out.Rows(); row++ {
			classID := -1
			best := float32(0)
			for col := 5; col < out.Cols(); col++ {
				score := out.GetFloatAt(row, col)
				if score > best {
					best = score
					classID = col - 5
				}
			}
			if classID < 0 || best <= detector.confidenceThreshold {
				continue
			}
			cx := out.GetFloatAt(row, 0) * width
			cy := out.GetFloatAt(row, 1) * height
			w := out.GetFloatAt(row, 2) * width
			h := out.GetFloatAt(row, 3) * height
			box := mot.NewBoundingBox(int(cx-w/2), int(cy-h/2), int(cx+w/2), int(cy+h/2))
			detections = append(detections, pipeline.Detection{
				Label:      detector.className(classID),
				Confidence: float64(best),
				Box:        box,
			})
		}
	}
	return suppress(detections, detector.nmsThreshold), nil
}

// Close releases network
func (detector *DarknetDetector) Close() error {
	detector.net.Close()
	return nil
}

func (detector *DarknetDetector) className(id int) string {
	if id < len(detector.classes) {
		return detector.classes[id]
	}
	return "unknown"
}

// suppress performs per-class non-maximum suppression: strongest boxes first
func suppress(detections []pipeline.Detection, threshold float64) []pipeline.Detection {
	sort.SliceStable(detections, func(i, j int) bool {
		return detections[i].Confidence > detections[j].Confidence
	})
	kept := make([]pipeline.Detection, 0, len(detections))
	for _, candidate := range detections {
		overlapped := false
		for _, strong := range kept {
			if strong.Label == candidate.Label && mot.IoU(strong.Box, candidate.Box) > threshold {
				overlapped = true
				break
			}
		}
		if !overlapped {
			kept = append(kept, candidate)
		}
	}
	return kept
}

func readNames(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't open class names '%s'", path)
	}
	defer file.Close()
	names := make([]string, 0)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		name := strings.TrimSpace(scanner.Text())
		if name != "" {
			names = append(names, name)
		}
	}
	return names, scanner.Err()
}

var cocoNames = []string{
	"person", "bicycle", "car", "motorbike", "aeroplane", "bus", "train", "truck", "boat", "traffic light",
	"fire hydrant", "stop sign", "parking meter", "bench", "bird", "cat", "dog", "horse", "sheep", "cow",
	"elephant", "bear", "zebra", "giraffe", "backpack", "umbrella", "handbag", "tie", "suitcase", "frisbee",
	"skis", "snowboard", "sports ball", "kite", "baseball bat", "baseball glove", "skateboard", "surfboard", "tennis racket", "bottle",
	"wine glass", "cup", "fork", "knife", "spoon", "bowl", "banana", "apple", "sandwich", "orange",
	"broccoli", "carrot", "hot dog", "pizza", "donut", "cake", "chair", "sofa", "pottedplant", "bed",
	"diningtable", "toilet", "tvmonitor", "laptop", "mouse", "remote", "keyboard", "cell phone", "microwave", "oven",
	"toaster", "sink", "refrigerator", "book", "clock", "vase", "scissors", "teddy bear", "hair drier", "toothbrush",
}
