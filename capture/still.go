package capture

import (
	"context"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/nvr-ai/go-facetrack/images"
	"github.com/pkg/errors"
)

// Still serves a single image file, scaled to the requested size.
type Still struct {
	mu     sync.Mutex
	frame  images.Frame
	repeat bool
	served bool
}

var _ Source = (*Still)(nil)

// OpenStill decodes an image file, applying its EXIF orientation.
//
// Arguments:
//   - path: Image file path.
//   - size: Delivered frame size; the image is stretched to it.
//   - repeat: If true every Capture returns the image, otherwise the second returns ErrExhausted.
//
// Returns:
//   - *Still: The source.
//   - error: If the file cannot be decoded.
func OpenStill(path string, size Size, repeat bool) (*Still, error) {
	if err := size.Validate(); err != nil {
		return nil, err
	}
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.Wrapf(err, "opening image %s", path)
	}
	resized := imaging.Resize(img, size.Width, size.Height, imaging.Linear)
	return &Still{frame: images.FromImage(resized), repeat: repeat}, nil
}

// Capture returns the image.
func (s *Still) Capture(ctx context.Context) (images.Frame, error) {
	if err := ctx.Err(); err != nil {
		return images.Frame{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.served && !s.repeat {
		return images.Frame{}, ErrExhausted
	}
	s.served = true

	pix := make([]byte, len(s.frame.Pix))
	copy(pix, s.frame.Pix)
	f := s.frame
	f.Pix = pix
	return f, nil
}

// Close is a no-op.
func (s *Still) Close() error {
	return nil
}
