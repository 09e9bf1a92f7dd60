package postprocess

import "github.com/nvr-ai/go-facetrack/images"

// Decode extracts candidates from the raw detector outputs.
//
// scores holds (background, foreground) pairs per anchor and boxes holds
// (x1, y1, x2, y2) per anchor. Anchor i is kept when scores[2i+1] is strictly
// greater than scoreThreshold. A trailing unpaired score is ignored, and decoding
// stops early if boxes has fewer anchors than scores.
//
// Arguments:
//   - boxes: Flat box output, 4 values per anchor.
//   - scores: Flat score output, 2 values per anchor.
//   - scoreThreshold: Minimum foreground score, exclusive.
//
// Returns:
//   - []Candidate: Kept candidates in anchor order; nil if none pass.
func Decode(boxes, scores []float32, scoreThreshold float32) []Candidate {
	var out []Candidate
	for i := 0; 2*i+1 < len(scores); i++ {
		if 4*i+4 > len(boxes) {
			break
		}
		score := scores[2*i+1]
		if !(score > scoreThreshold) {
			continue
		}
		out = append(out, Candidate{
			Box:   images.Rect{X1: boxes[4*i], Y1: boxes[4*i+1], X2: boxes[4*i+2], Y2: boxes[4*i+3]},
			Score: score,
			Index: i,
		})
	}
	return out
}
