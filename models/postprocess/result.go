// Package postprocess - Postprocessing utilities for models.
package postprocess

import "github.com/nvr-ai/go-facetrack/images"

// Candidate represents a single face detection before or after suppression.
type Candidate struct {
	// The bounding box of the candidate in normalized coordinates.
	Box images.Rect `json:"box" yaml:"box"`
	// The foreground confidence score of the candidate.
	Score float32 `json:"score" yaml:"score"`
	// Index is the anchor position the candidate was decoded from.
	Index int `json:"index" yaml:"index"`
}
