package mot

import (
	"testing"
	"time"
)

func framesObjects(boxes []BoundingBox, observed time.Time) []*TrackedObject {
	objects := make([]*TrackedObject, len(boxes))
	for i, box := range boxes {
		objects[i] = NewTrackedObject(box, "car", 1.0, observed)
	}
	return objects
}

func mustID(t *testing.T, object *TrackedObject) int64 {
	t.Helper()
	id, ok := object.GetID()
	if !ok {
		t.Fatalf("Object %v has no identity", object.GetBBox())
	}
	return id
}

func TestNewIoUTracker(t *testing.T) {
	tracker := NewIoUTracker(0.3, MatchingAlgorithmHungarian)

	if tracker == nil {
		t.Fatal("NewIoUTracker returned nil")
	}

	if tracker.iouThreshold != 0.3 {
		t.Errorf("Expected iouThreshold 0.3, got %f", tracker.iouThreshold)
	}

	if tracker.algorithm != MatchingAlgorithmHungarian {
		t.Errorf("Expected hungarian algorithm, got %s", tracker.algorithm)
	}
}

func TestNewDefaultIoUTracker(t *testing.T) {
	tracker := NewDefaultIoUTracker()

	if tracker.iouThreshold != 0.7 {
		t.Errorf("Expected default iouThreshold 0.7, got %f", tracker.iouThreshold)
	}

	if tracker.algorithm != MatchingAlgorithmGreedy {
		t.Errorf("Expected default greedy algorithm, got %s", tracker.algorithm)
	}

	if tracker.IssuedIDs() != 0 {
		t.Errorf("Expected no issued identities, got %d", tracker.IssuedIDs())
	}
}

func TestIoUTrackerContinuation(t *testing.T) {
	tracker := NewDefaultIoUTracker()
	t0 := time.Date(2022, 5, 1, 12, 0, 0, 0, time.UTC)

	frame1 := framesObjects([]BoundingBox{NewBoundingBox(100, 100, 200, 200)}, t0)
	if err := tracker.MatchObjects(frame1); err != nil {
		t.Fatalf("Frame 1 failed: %v", err)
	}
	firstID := mustID(t, frame1[0])
	if firstID != 0 {
		t.Errorf("Expected first identity 0, got %d", firstID)
	}

	// Shifted by one pixel
	frame2 := framesObjects([]BoundingBox{NewBoundingBox(101, 100, 201, 200)}, t0.Add(time.Second))
	if err := tracker.MatchObjects(frame2); err != nil {
		t.Fatalf("Frame 2 failed: %v", err)
	}
	if mustID(t, frame2[0]) != firstID {
		t.Errorf("Expected identity %d to be kept, got %d", firstID, mustID(t, frame2[0]))
	}
	if frame2[0].NumSamples() != frame1[0].NumSamples()+1 {
		t.Errorf("Expected history length %d, got %d", frame1[0].NumSamples()+1, frame2[0].NumSamples())
	}
	first := frame2[0].GetSamples()[0]
	if first.Pixel != frame1[0].GetSamples()[0].Pixel || !first.Observed.Equal(t0) {
		t.Errorf("History should start with the first observation")
	}
	if !frame2[0].LatestSample().Observed.Equal(t0.Add(time.Second)) {
		t.Errorf("Newest sample should be the current observation")
	}
}

func TestIoUTrackerNewIdentity(t *testing.T) {
	tracker := NewDefaultIoUTracker()
	now := time.Now()

	frame1 := framesObjects([]BoundingBox{
		NewBoundingBox(0, 0, 100, 100),
		NewBoundingBox(300, 300, 400, 400),
	}, now)
	if err := tracker.MatchObjects(frame1); err != nil {
		t.Fatalf("Frame 1 failed: %v", err)
	}

	// IoU with the first box is 50*100/(20000-5000) = 0.33
	frame2 := framesObjects([]BoundingBox{NewBoundingBox(50, 0, 150, 100)}, now)
	if err := tracker.MatchObjects(frame2); err != nil {
		t.Fatalf("Frame 2 failed: %v", err)
	}
	newID := mustID(t, frame2[0])
	for _, previous := range frame1 {
		if newID <= mustID(t, previous) {
			t.Errorf("Expected identity greater than %d, got %d", mustID(t, previous), newID)
		}
	}
	if frame2[0].NumSamples() != 1 {
		t.Errorf("New object should have single sample, got %d", frame2[0].NumSamples())
	}
}

func TestIoUTrackerThresholdIsStrict(t *testing.T) {
	// IoU of these boxes is exactly 0.5
	tracker := NewIoUTracker(0.5, MatchingAlgorithmGreedy)
	now := time.Now()
	frame1 := framesObjects([]BoundingBox{NewBoundingBox(0, 0, 90, 100)}, now)
	if err := tracker.MatchObjects(frame1); err != nil {
		t.Fatal(err)
	}
	frame2 := framesObjects([]BoundingBox{NewBoundingBox(30, 0, 120, 100)}, now)
	if err := tracker.MatchObjects(frame2); err != nil {
		t.Fatal(err)
	}
	if mustID(t, frame2[0]) == mustID(t, frame1[0]) {
		t.Errorf("IoU equal to threshold must not match")
	}
}

func TestIoUTrackerGapIssuesNewIdentity(t *testing.T) {
	tracker := NewDefaultIoUTracker()
	now := time.Now()
	box := NewBoundingBox(0, 0, 100, 100)

	frame1 := framesObjects([]BoundingBox{box}, now)
	if err := tracker.MatchObjects(frame1); err != nil {
		t.Fatal(err)
	}
	// Object is missing on the second frame
	if err := tracker.MatchObjects([]*TrackedObject{}); err != nil {
		t.Fatal(err)
	}
	frame3 := framesObjects([]BoundingBox{box}, now)
	if err := tracker.MatchObjects(frame3); err != nil {
		t.Fatal(err)
	}
	if mustID(t, frame3[0]) == mustID(t, frame1[0]) {
		t.Errorf("Object reappearing after a gap should get new identity")
	}
	if len(tracker.LastObjects()) != 1 {
		t.Errorf("Expected 1 last object, got %d", len(tracker.LastObjects()))
	}
}

func TestIoUTrackerGreedyOrderDependence(t *testing.T) {
	tracker := NewDefaultIoUTracker()
	now := time.Now()
	frame1 := framesObjects([]BoundingBox{NewBoundingBox(0, 0, 100, 100)}, now)
	if err := tracker.MatchObjects(frame1); err != nil {
		t.Fatal(err)
	}
	// Both overlap the previous box above threshold; the second one overlaps more
	frame2 := framesObjects([]BoundingBox{
		NewBoundingBox(5, 0, 105, 100),
		NewBoundingBox(2, 0, 102, 100),
	}, now)
	if err := tracker.MatchObjects(frame2); err != nil {
		t.Fatal(err)
	}
	if mustID(t, frame2[0]) != mustID(t, frame1[0]) {
		t.Errorf("First processed object should win the match")
	}
	if mustID(t, frame2[1]) == mustID(t, frame1[0]) {
		t.Errorf("Second object should be demoted to a new identity")
	}
}

func TestIoUTrackerHungarian(t *testing.T) {
	tracker := NewIoUTracker(DefaultIoUThreshold, MatchingAlgorithmHungarian)
	now := time.Now()
	frame1 := framesObjects([]BoundingBox{NewBoundingBox(0, 0, 100, 100)}, now)
	if err := tracker.MatchObjects(frame1); err != nil {
		t.Fatal(err)
	}
	frame2 := framesObjects([]BoundingBox{
		NewBoundingBox(5, 0, 105, 100),
		NewBoundingBox(2, 0, 102, 100),
	}, now)
	if err := tracker.MatchObjects(frame2); err != nil {
		t.Fatal(err)
	}
	if mustID(t, frame2[1]) != mustID(t, frame1[0]) {
		t.Errorf("Best overlapping object should keep identity regardless of order")
	}
	if mustID(t, frame2[0]) == mustID(t, frame1[0]) {
		t.Errorf("Worse overlapping object should get new identity")
	}
}

func TestIoUTrackerHungarianMultipleObjects(t *testing.T) {
	tracker := NewIoUTracker(DefaultIoUThreshold, MatchingAlgorithmHungarian)
	now := time.Now()
	frame1 := framesObjects([]BoundingBox{
		NewBoundingBox(0, 0, 100, 100),
		NewBoundingBox(300, 0, 400, 100),
		NewBoundingBox(600, 0, 700, 100),
	}, now)
	if err := tracker.MatchObjects(frame1); err != nil {
		t.Fatal(err)
	}
	// Reversed order, moved a bit, plus one newcomer
	frame2 := framesObjects([]BoundingBox{
		NewBoundingBox(1000, 0, 1100, 100),
		NewBoundingBox(602, 0, 702, 100),
		NewBoundingBox(302, 0, 402, 100),
		NewBoundingBox(2, 0, 102, 100),
	}, now)
	if err := tracker.MatchObjects(frame2); err != nil {
		t.Fatal(err)
	}
	if mustID(t, frame2[1]) != mustID(t, frame1[2]) || mustID(t, frame2[2]) != mustID(t, frame1[1]) || mustID(t, frame2[3]) != mustID(t, frame1[0]) {
		t.Errorf("Objects should keep their identities")
	}
	if mustID(t, frame2[0]) != 3 {
		t.Errorf("Expected newcomer identity 3, got %d", mustID(t, frame2[0]))
	}
}

func TestIoUTrackerRejectsIdentifiedObjects(t *testing.T) {
	tracker := NewDefaultIoUTracker()
	objects := framesObjects([]BoundingBox{NewBoundingBox(0, 0, 10, 10)}, time.Now())
	if err := tracker.MatchObjects(objects); err != nil {
		t.Fatal(err)
	}
	if err := tracker.MatchObjects(objects); err == nil {
		t.Errorf("Expected error for objects with identity")
	}
}

func TestIoUTrackerProcessFrame(t *testing.T) {
	tracker := NewDefaultIoUTracker()
	frame := NewFrame(nil, time.Now())
	frame.AddObject(NewBoundingBox(0, 0, 10, 10), "car", 0.9)
	frame.AddObject(NewBoundingBox(20, 20, 30, 30), "person", 0.8)
	if err := tracker.Process(frame); err != nil {
		t.Fatal(err)
	}
	for i, object := range frame.Objects {
		if mustID(t, object) != int64(i) {
			t.Errorf("Expected identity %d, got %d", i, mustID(t, object))
		}
	}
}

func TestParseMatchingAlgorithm(t *testing.T) {
	algorithm, err := ParseMatchingAlgorithm("Hungarian")
	if err != nil || algorithm != MatchingAlgorithmHungarian {
		t.Errorf("Expected hungarian, got %s (%v)", algorithm, err)
	}
	algorithm, err = ParseMatchingAlgorithm("")
	if err != nil || algorithm != MatchingAlgorithmGreedy {
		t.Errorf("Expected greedy, got %s (%v)", algorithm, err)
	}
	if _, err = ParseMatchingAlgorithm("bipartite"); err == nil {
		t.Errorf("Expected error for unknown algorithm")
	}
}

func TestIoUTrackerLastObjectsCopy(t *testing.T) {
	tracker := NewDefaultIoUTracker()
	now := time.Now()
	frame1 := framesObjects([]BoundingBox{NewBoundingBox(0, 0, 100, 100)}, now)
	if err := tracker.MatchObjects(frame1); err != nil {
		t.Fatal(err)
	}
	last := tracker.LastObjects()
	last = append(last[:0], NewTrackedObject(NewBoundingBox(500, 500, 600, 600), "car", 1, now))

	frame2 := framesObjects([]BoundingBox{NewBoundingBox(0, 0, 100, 100)}, now)
	if err := tracker.MatchObjects(frame2); err != nil {
		t.Fatal(err)
	}
	if mustID(t, frame2[0]) != mustID(t, frame1[0]) {
		t.Errorf("Changing returned slice should not affect tracker state")
	}
	if len(last) != 1 {
		t.Errorf("Expected 1 object in returned slice, got %d", len(last))
	}
}
