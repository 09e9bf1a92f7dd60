package postprocess

import (
	"math/rand"
	"testing"

	"github.com/nvr-ai/go-facetrack/images"
)

// Full-size RFB-320 outputs: 4420 anchors, with the share of anchors above the
// score threshold varied to cover a quiet frame and a crowded one.

func benchmarkOutputs(anchors int, faceRatio float32) (boxes, scores []float32) {
	r := rand.New(rand.NewSource(42))
	boxes = make([]float32, anchors*4)
	scores = make([]float32, anchors*2)
	for i := 0; i < anchors; i++ {
		x, y := r.Float32()*0.8, r.Float32()*0.8
		w, h := 0.05+r.Float32()*0.15, 0.05+r.Float32()*0.15
		copy(boxes[i*4:], []float32{x, y, x + w, y + h})

		fg := r.Float32() * 0.5
		if r.Float32() < faceRatio {
			fg = 0.5 + r.Float32()*0.5
		}
		scores[i*2], scores[i*2+1] = 1-fg, fg
	}
	return boxes, scores
}

// BenchmarkDecode measures the stride-2 score scan over every anchor.
func BenchmarkDecode(b *testing.B) {
	boxes, scores := benchmarkOutputs(4420, 0.01)

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_ = Decode(boxes, scores, 0.5)
	}
}

// BenchmarkNonMaxSuppression_Sparse is the common case: a handful of anchors
// fire around one or two faces.
func BenchmarkNonMaxSuppression_Sparse(b *testing.B) {
	boxes, scores := benchmarkOutputs(4420, 0.01)

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_ = NonMaxSuppression(boxes, scores, 0.5, 0.3)
	}
}

// BenchmarkNonMaxSuppression_Dense stresses the quadratic suppression pass.
func BenchmarkNonMaxSuppression_Dense(b *testing.B) {
	boxes, scores := benchmarkOutputs(4420, 0.2)

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_ = NonMaxSuppression(boxes, scores, 0.5, 0.3)
	}
}

// BenchmarkIoU_PartialOverlap is the inner step of suppression.
func BenchmarkIoU_PartialOverlap(b *testing.B) {
	r1 := images.Rect{X1: 0, Y1: 0, X2: 0.4, Y2: 0.4}
	r2 := images.Rect{X1: 0.2, Y1: 0.2, X2: 0.6, Y2: 0.6}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_ = images.CalculateIoU(r1, r2)
	}
}
