package mot

import (
	"strings"

	"github.com/arthurkushman/go-hungarian"
	"github.com/pkg/errors"
)

// MatchingAlgorithm is for algorithm type for matching current objects to previous ones
type MatchingAlgorithm uint16

const (
	// MatchingAlgorithmGreedy takes current objects in input order and picks best remaining previous object
	MatchingAlgorithmGreedy MatchingAlgorithm = iota
	// MatchingAlgorithmHungarian uses the Hungarian algorithm (Kuhn-Munkres) for maximum total IoU assignment
	MatchingAlgorithmHungarian
)

func (algorithm MatchingAlgorithm) String() string {
	switch algorithm {
	case MatchingAlgorithmGreedy:
		return "greedy"
	case MatchingAlgorithmHungarian:
		return "hungarian"
	default:
		return "unknown"
	}
}

// ParseMatchingAlgorithm parses algorithm name ("greedy" or "hungarian")
func ParseMatchingAlgorithm(name string) (MatchingAlgorithm, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "greedy":
		return MatchingAlgorithmGreedy, nil
	case "hungarian":
		return MatchingAlgorithmHungarian, nil
	default:
		return MatchingAlgorithmGreedy, errors.Errorf("Unknown matching algorithm '%s'", name)
	}
}

// iouMatrix builds matrix where rows are current objects and columns are previous ones
func iouMatrix(current, previous []*TrackedObject) [][]float64 {
	matrix := make([][]float64, len(current))
	for i, object := range current {
		row := make([]float64, len(previous))
		for j, prev := range previous {
			row[j] = IoU(object.box, prev.box)
		}
		matrix[i] = row
	}
	return matrix
}

// matchHungarian returns mapping from current object index to previous object index.
// Assignment maximizes total IoU; pairs not exceeding the threshold are dropped afterwards.
func (tracker *IoUTracker) matchHungarian(newObjects []*TrackedObject) map[int]int {
	matches := make(map[int]int)
	numCurrent := len(newObjects)
	numPrevious := len(tracker.lastObjects)
	if numCurrent == 0 || numPrevious == 0 {
		return matches
	}
	matrix := iouMatrix(newObjects, tracker.lastObjects)

	// Rectangular matrix - pad to make it square. Padding is done with 0.0 values (lowest IoU)
	paddedSize := maxInt(numCurrent, numPrevious)
	paddedMatrix := make([][]float64, paddedSize)
	for i := 0; i < paddedSize; i++ {
		paddedMatrix[i] = make([]float64, paddedSize)
		if i < numCurrent {
			copy(paddedMatrix[i], matrix[i])
		}
	}

	assignments := hungarian.SolveMax(paddedMatrix)
	for currentIdx, rowMap := range assignments {
		if currentIdx >= numCurrent {
			continue
		}
		for previousIdx := range rowMap {
			if previousIdx >= numPrevious {
				continue
			}
			if matrix[currentIdx][previousIdx] > tracker.iouThreshold {
				matches[currentIdx] = previousIdx
			}
		}
	}
	return matches
}
