package mot

// IoU calculates Intersection over Union between two bounding boxes.
// Returns 0 for disjoint boxes and for the degenerate case where union area is zero.
func IoU(b1, b2 BoundingBox) float64 {
	interArea := intersectionArea(b1, b2)
	if interArea == 0 {
		return 0.0
	}
	unionArea := b1.Area() + b2.Area() - interArea
	if unionArea <= 0 {
		return 0.0
	}
	return float64(interArea) / float64(unionArea)
}

// BelongsTo returns fraction of b1 area contained in b2.
// Value 1 means b1 is wholly inside b2. Zero-area b1 gives 0.
func BelongsTo(b1, b2 BoundingBox) float64 {
	area := b1.Area()
	if area == 0 {
		return 0.0
	}
	return float64(intersectionArea(b1, b2)) / float64(area)
}

func intersectionArea(b1, b2 BoundingBox) int {
	xA := maxInt(b1.Left, b2.Left)
	yA := maxInt(b1.Top, b2.Top)
	xB := minInt(b1.Right, b2.Right)
	yB := minInt(b1.Bottom, b2.Bottom)
	return maxInt(0, xB-xA) * maxInt(0, yB-yA)
}

// FilterNested drops objects whose box is fully contained in a box of another object.
// For identical boxes the first one in input order survives.
// Input slice is not modified.
func FilterNested(objects []*TrackedObject) []*TrackedObject {
	kept := make([]*TrackedObject, 0, len(objects))
	for i, object := range objects {
		nested := false
		for j, other := range objects {
			if i == j {
				continue
			}
			if BelongsTo(object.box, other.box) < 1 {
				continue
			}
			// Identical boxes are both "inside" each other: keep the earliest one
			if object.box == other.box && i < j {
				continue
			}
			nested = true
			break
		}
		if !nested {
			kept = append(kept, object)
		}
	}
	return kept
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
