// Package postprocess - provides Non-Maximum Suppression for detection results.
package postprocess

import (
	"sort"

	"github.com/nvr-ai/go-facetrack/images"
)

// NMSConfig defines parameters for Non-Maximum Suppression.
type NMSConfig struct {
	// ScoreThreshold is the exclusive minimum foreground score used while decoding.
	ScoreThreshold float32 `json:"score_threshold" yaml:"score_threshold"`
	// IoUThreshold is the overlap at or above which a lower scored box is suppressed.
	IoUThreshold float32 `json:"iou_threshold" yaml:"iou_threshold"`
}

// ApplyGreedyNMS performs standard greedy Non-Maximum Suppression.
//
// Candidates are ordered by descending score, ties resolved by ascending Index so
// the output is deterministic. The best remaining candidate is emitted and every
// remaining candidate whose IoU with it is >= IoUThreshold is dropped. The input
// slice is not modified.
//
// Arguments:
//   - candidates: Decoded candidates in any order.
//   - config: NMS configuration.
//
// Returns:
//   - []Candidate: Survivors in emission order. If no candidates are provided, returns nil.
func ApplyGreedyNMS(candidates []Candidate, config *NMSConfig) []Candidate {
	n := len(candidates)
	if n == 0 {
		return nil
	}

	sorted := make([]Candidate, n)
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}
		return sorted[i].Index < sorted[j].Index
	})

	filtered := make([]Candidate, 0, n)
	used := make([]bool, n)

	for i := 0; i < n; i++ {
		if used[i] {
			continue
		}

		anchor := sorted[i]
		filtered = append(filtered, anchor)
		used[i] = true

		for j := i + 1; j < n; j++ {
			if used[j] {
				continue
			}
			if images.CalculateIoU(anchor.Box, sorted[j].Box) >= config.IoUThreshold {
				used[j] = true
			}
		}
	}

	return filtered
}

// NonMaxSuppression decodes raw detector outputs and suppresses overlapping boxes.
//
// Arguments:
//   - boxes: Flat box output, 4 values per anchor.
//   - scores: Flat score output, 2 values per anchor.
//   - scoreThreshold: Minimum foreground score, exclusive.
//   - iouThreshold: Suppression overlap, inclusive.
//
// Returns:
//   - []Candidate: The surviving detections, highest score first.
func NonMaxSuppression(boxes, scores []float32, scoreThreshold, iouThreshold float32) []Candidate {
	return ApplyGreedyNMS(Decode(boxes, scores, scoreThreshold), &NMSConfig{
		ScoreThreshold: scoreThreshold,
		IoUThreshold:   iouThreshold,
	})
}
