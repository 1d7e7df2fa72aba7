package pipeline

import (
	"io"
	"sync"

	"github.com/LdDl/movement-params/mot"
)

// LatestFrame is a single-slot buffer between a capture goroutine and the processing loop.
// Put overwrites the slot, so slow processing drops stale frames instead of queueing them.
type LatestFrame struct {
	mu      sync.Mutex
	frame   *mot.Frame
	closed  bool
	dropped int64
}

// NewLatestFrame creates empty buffer
func NewLatestFrame() *LatestFrame {
	return &LatestFrame{}
}

// Put stores frame replacing the previous one if it was not taken yet
func (latest *LatestFrame) Put(frame *mot.Frame) {
	latest.mu.Lock()
	defer latest.mu.Unlock()
	if latest.frame != nil {
		latest.dropped++
	}
	latest.frame = frame
}

// GetFrame takes frame out of the buffer. Returns (nil, nil) when buffer is empty
// and io.EOF once it is closed and drained.
func (latest *LatestFrame) GetFrame() (*mot.Frame, error) {
	latest.mu.Lock()
	defer latest.mu.Unlock()
	frame := latest.frame
	latest.frame = nil
	if frame == nil && latest.closed {
		return nil, io.EOF
	}
	return frame, nil
}

// Close marks that no more frames will be put
func (latest *LatestFrame) Close() {
	latest.mu.Lock()
	defer latest.mu.Unlock()
	latest.closed = true
}

// Dropped returns number of frames overwritten before being taken
func (latest *LatestFrame) Dropped() int64 {
	latest.mu.Lock()
	defer latest.mu.Unlock()
	return latest.dropped
}
