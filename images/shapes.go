// Package images - Image processing utilities
package images

import (
	"fmt"

	"github.com/chewxy/math32"
)

// Rect is a bounding box in normalized [0, 1] image coordinates.
//
// X1 <= X2 and Y1 <= Y2 is expected from a well-behaved detector but is not
// enforced; inverted boxes are carried as-is.
type Rect struct {
	X1, Y1, X2, Y2 float32
}

// Area returns the signed area of the box. Inverted boxes yield a negative or zero area.
func (r Rect) Area() float32 {
	return (r.X2 - r.X1) * (r.Y2 - r.Y1)
}

// Center returns the midpoint of the box.
func (r Rect) Center() (x, y float32) {
	return (r.X1 + r.X2) / 2, (r.Y1 + r.Y2) / 2
}

// Scale maps the normalized box into pixel space as (x, y, width, height).
func (r Rect) Scale(width, height int) (x, y, w, h float32) {
	fw, fh := float32(width), float32(height)
	return r.X1 * fw, r.Y1 * fh, (r.X2 - r.X1) * fw, (r.Y2 - r.Y1) * fh
}

func (r Rect) String() string {
	return fmt.Sprintf("[%.4f, %.4f, %.4f, %.4f]", r.X1, r.Y1, r.X2, r.Y2)
}

// CalculateIoU returns the Intersection over Union of two boxes.
//
//	IoU = Area(A ∩ B) / (Area(A) + Area(B) - Area(A ∩ B))
//
// The overlap rectangle takes the max of the leading edges and the min of the
// trailing edges of both boxes on each axis, so CalculateIoU(a, b) equals
// CalculateIoU(b, a). A non-positive overlap extent contributes zero. A union
// that is zero or negative (degenerate or inverted boxes) yields 0.
//
// Arguments:
//   - a: The first box.
//   - b: The second box.
//
// Returns:
//   - float32: The IoU score, 1.0 for identical boxes with positive area.
//
// Example:
//
// ```go
//
//	a := Rect{X1: 0, Y1: 0, X2: 0.5, Y2: 0.5}
//	b := Rect{X1: 0.25, Y1: 0.25, X2: 0.75, Y2: 0.75}
//	iou := CalculateIoU(a, b) // 0.0625 / (0.25 + 0.25 - 0.0625) = 0.142857
//
// ```
func CalculateIoU(a, b Rect) float32 {
	interW := math32.Max(0, math32.Min(a.X2, b.X2)-math32.Max(a.X1, b.X1))
	interH := math32.Max(0, math32.Min(a.Y2, b.Y2)-math32.Max(a.Y1, b.Y1))
	intersection := interW * interH

	union := a.Area() + b.Area() - intersection
	if union <= 0 || math32.IsNaN(union) {
		return 0
	}
	return intersection / union
}
