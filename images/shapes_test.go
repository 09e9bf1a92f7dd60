package images

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestIoU_Correctness validates the IoU implementation against known test cases
func TestIoU_Correctness(t *testing.T) {
	tests := []struct {
		name     string
		r1       Rect
		r2       Rect
		expected float32
	}{
		{
			name:     "Identical rectangles",
			r1:       Rect{0.1, 0.1, 0.5, 0.5},
			r2:       Rect{0.1, 0.1, 0.5, 0.5},
			expected: 1.0,
		},
		{
			name:     "No overlap",
			r1:       Rect{0, 0, 0.2, 0.2},
			r2:       Rect{0.5, 0.5, 0.7, 0.7},
			expected: 0.0,
		},
		{
			name:     "Touching edges",
			r1:       Rect{0, 0, 0.5, 0.5},
			r2:       Rect{0.5, 0, 1, 0.5},
			expected: 0.0,
		},
		{
			name:     "Quarter offset",
			r1:       Rect{0, 0, 0.5, 0.5},
			r2:       Rect{0.25, 0.25, 0.75, 0.75},
			expected: 1.0 / 7.0, // 0.0625 / (0.25 + 0.25 - 0.0625)
		},
		{
			name:     "One inside other",
			r1:       Rect{0, 0, 0.4, 0.4},
			r2:       Rect{0.1, 0.1, 0.3, 0.3},
			expected: 0.25,
		},
		{
			name:     "Overlap only on x axis",
			r1:       Rect{0, 0, 0.5, 0.2},
			r2:       Rect{0.25, 0.6, 0.75, 0.8},
			expected: 0.0,
		},
		{
			name:     "Zero area boxes",
			r1:       Rect{0.3, 0.3, 0.3, 0.3},
			r2:       Rect{0.3, 0.3, 0.3, 0.3},
			expected: 0.0,
		},
		{
			name:     "Inverted boxes have no positive union",
			r1:       Rect{0.5, 0.5, 0.1, 0.1},
			r2:       Rect{0.6, 0.6, 0.2, 0.2},
			expected: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, CalculateIoU(tt.r1, tt.r2), 1e-5)
		})
	}
}

// TestIoU_Symmetry asserts IoU(a, b) == IoU(b, a), including boxes whose bottom
// edges differ, which an implementation reading the other box's bottom edge twice gets wrong.
func TestIoU_Symmetry(t *testing.T) {
	pairs := [][2]Rect{
		{{0.1, 0.1, 0.6, 0.9}, {0.2, 0.3, 0.7, 0.5}},
		{{0.0, 0.0, 0.5, 0.3}, {0.1, 0.1, 0.4, 0.8}},
		{{0.2, 0.2, 0.4, 0.4}, {0.3, 0.1, 0.9, 0.35}},
		{{0.0, 0.0, 1.0, 1.0}, {0.45, 0.45, 0.55, 0.55}},
	}

	for _, p := range pairs {
		ab := CalculateIoU(p[0], p[1])
		ba := CalculateIoU(p[1], p[0])
		assert.InDelta(t, ab, ba, 1e-6, "IoU must be symmetric for %v and %v", p[0], p[1])
	}

	// Bottom edges 0.9 and 0.5: the overlap must stop at 0.5.
	a := Rect{0.1, 0.1, 0.6, 0.9}
	b := Rect{0.2, 0.3, 0.7, 0.5}
	intersection := float32(0.4 * 0.2)
	union := a.Area() + b.Area() - intersection
	assert.InDelta(t, intersection/union, CalculateIoU(a, b), 1e-5)
}

func TestRect_CenterAndScale(t *testing.T) {
	r := Rect{0.25, 0.5, 0.75, 1.0}

	cx, cy := r.Center()
	assert.InDelta(t, 0.5, cx, 1e-6)
	assert.InDelta(t, 0.75, cy, 1e-6)

	x, y, w, h := r.Scale(320, 240)
	assert.InDelta(t, 80, x, 1e-4)
	assert.InDelta(t, 120, y, 1e-4)
	assert.InDelta(t, 160, w, 1e-4)
	assert.InDelta(t, 120, h, 1e-4)
}
