package mot

import (
	"github.com/pkg/errors"
)

// DefaultIoUThreshold is minimal (exclusive) IoU for two boxes on consecutive frames to be the same object
const DefaultIoUThreshold = 0.7

// IoUTracker associates objects of the current frame with objects of the previous frame by IoU.
// It looks only one frame back: object missing for a frame gets a new identity on reappearance.
//
// Greedy matching (default) is order-dependent: when two current objects best-match the same
// previous object, the one processed first wins and the other one gets a new identity.
type IoUTracker struct {
	// IoU threshold for matching (strict)
	iouThreshold float64
	// Algorithm to use for matching
	algorithm MatchingAlgorithm
	// Next identity to be issued. Never reused
	nextID int64
	// Objects observed on the previous frame
	lastObjects []*TrackedObject
}

// NewDefaultIoUTracker creates a default instance of IoUTracker.
// Default values: iouThreshold=0.7, greedy matching
func NewDefaultIoUTracker() *IoUTracker {
	return NewIoUTracker(DefaultIoUThreshold, MatchingAlgorithmGreedy)
}

// NewIoUTracker creates a new instance of IoUTracker with specified parameters.
func NewIoUTracker(iouThreshold float64, algorithm MatchingAlgorithm) *IoUTracker {
	return &IoUTracker{
		iouThreshold: iouThreshold,
		algorithm:    algorithm,
		nextID:       0,
		lastObjects:  make([]*TrackedObject, 0),
	}
}

// MatchObjects assigns identity to every object of the current frame.
// Matched objects inherit identity and full history of their predecessor.
// Objects must be fresh (without identity).
func (tracker *IoUTracker) MatchObjects(newObjects []*TrackedObject) error {
	for i, object := range newObjects {
		if _, ok := object.GetID(); ok {
			return errors.Wrapf(ErrIdentityAssigned, "Object #%d is not fresh", i)
		}
	}

	var matches map[int]int
	switch tracker.algorithm {
	case MatchingAlgorithmHungarian:
		matches = tracker.matchHungarian(newObjects)
	default:
		matches = tracker.matchGreedy(newObjects)
	}

	// Identities are issued in input order for both algorithms
	for i, object := range newObjects {
		if prevIdx, ok := matches[i]; ok {
			err := object.mergeWith(tracker.lastObjects[prevIdx])
			if err != nil {
				return errors.Wrapf(err, "Can't merge object #%d", i)
			}
			continue
		}
		err := object.assignID(tracker.nextID)
		if err != nil {
			return errors.Wrapf(err, "Can't register object #%d", i)
		}
		tracker.nextID++
	}

	tracker.lastObjects = append(make([]*TrackedObject, 0, len(newObjects)), newObjects...)
	return nil
}

// matchGreedy returns mapping from current object index to previous object index.
func (tracker *IoUTracker) matchGreedy(newObjects []*TrackedObject) map[int]int {
	matches := make(map[int]int)
	// Prevent double update of previous objects
	reserved := make([]bool, len(tracker.lastObjects))
	for i, object := range newObjects {
		maxIoU := -1.0
		maxIdx := -1
		for j, previous := range tracker.lastObjects {
			if reserved[j] {
				continue
			}
			iouValue := IoU(object.box, previous.box)
			if iouValue > tracker.iouThreshold && iouValue > maxIoU {
				maxIoU = iouValue
				maxIdx = j
			}
		}
		if maxIdx >= 0 {
			matches[i] = maxIdx
			reserved[maxIdx] = true
		}
	}
	return matches
}

// Process assigns identities to objects of the frame
func (tracker *IoUTracker) Process(frame *Frame) error {
	return tracker.MatchObjects(frame.Objects)
}

// LastObjects returns objects observed on the previous frame.
// The slice is a copy, objects themselves are shared with the tracker
func (tracker *IoUTracker) LastObjects() []*TrackedObject {
	objects := make([]*TrackedObject, len(tracker.lastObjects))
	copy(objects, tracker.lastObjects)
	return objects
}

// IssuedIDs returns number of identities issued so far
func (tracker *IoUTracker) IssuedIDs() int64 {
	return tracker.nextID
}
