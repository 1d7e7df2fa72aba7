package mot

import (
	"image"
	"math"
)

// Point is a 2-D point. Used for both pixel and world-plane coordinates.
type Point struct {
	X float64
	Y float64
}

func NewPoint(x, y float64) Point {
	return Point{
		X: x,
		Y: y,
	}
}

func NewPointFrom(point image.Point) Point {
	return Point{
		X: float64(point.X),
		Y: float64(point.Y),
	}
}

// Image rounds point to the nearest pixel
func (p Point) Image() image.Point {
	return image.Point{
		X: int(math.Round(p.X)),
		Y: int(math.Round(p.Y)),
	}
}

// Sub returns p - other
func (p Point) Sub(other Point) Point {
	return Point{X: p.X - other.X, Y: p.Y - other.Y}
}

// Scale returns p multiplied by k
func (p Point) Scale(k float64) Point {
	return Point{X: p.X * k, Y: p.Y * k}
}

// Norm returns length of p treated as a vector
func (p Point) Norm() float64 {
	return math.Hypot(p.X, p.Y)
}

// BoundingBox is axis-aligned box with integer borders.
// Left and Top are inclusive, Right and Bottom are exclusive: Right-Left is the width.
type BoundingBox struct {
	Left   int
	Top    int
	Right  int
	Bottom int
}

func NewBoundingBox(left, top, right, bottom int) BoundingBox {
	return BoundingBox{
		Left:   left,
		Top:    top,
		Right:  right,
		Bottom: bottom,
	}
}

// NewBoundingBoxXYWH creates box from its top-left corner and dimensions (detector output layout)
func NewBoundingBoxXYWH(x, y, width, height int) BoundingBox {
	return BoundingBox{
		Left:   x,
		Top:    y,
		Right:  x + width,
		Bottom: y + height,
	}
}

func NewBoundingBoxFrom(rect image.Rectangle) BoundingBox {
	return BoundingBox{
		Left:   rect.Min.X,
		Top:    rect.Min.Y,
		Right:  rect.Max.X,
		Bottom: rect.Max.Y,
	}
}

// Width returns box width. Never negative.
func (box BoundingBox) Width() int {
	return maxInt(0, box.Right-box.Left)
}

// Height returns box height. Never negative.
func (box BoundingBox) Height() int {
	return maxInt(0, box.Bottom-box.Top)
}

// Area returns box area. Degenerate box has zero area.
func (box BoundingBox) Area() int {
	return box.Width() * box.Height()
}

// Center returns box center
func (box BoundingBox) Center() Point {
	return Point{
		X: float64(box.Left+box.Right) / 2.0,
		Y: float64(box.Top+box.Bottom) / 2.0,
	}
}

// Diagonal returns length of box diagonal
func (box BoundingBox) Diagonal() float64 {
	return math.Hypot(float64(box.Width()), float64(box.Height()))
}

func (box BoundingBox) Rect() image.Rectangle {
	return image.Rect(box.Left, box.Top, box.Right, box.Bottom)
}

// Distance returns euclidean distance between two points
func Distance(p1, p2 Point) float64 {
	return euclideanDistance(p1, p2)
}

func euclideanDistance(p1, p2 Point) float64 {
	return math.Sqrt(math.Pow(p1.X-p2.X, 2) + math.Pow(p1.Y-p2.Y, 2))
}
