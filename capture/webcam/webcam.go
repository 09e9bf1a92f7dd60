// Package webcam - gocv backed capture.Source for video devices.
//
// It lives apart from capture so that packages consuming capture.Source build
// without OpenCV.
package webcam

import (
	"context"
	"image"
	"sync"

	"github.com/nvr-ai/go-facetrack/capture"
	"github.com/nvr-ai/go-facetrack/images"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// maxEmptyReads bounds how many consecutive empty frames are skipped before failing.
const maxEmptyReads = 30

// Camera reads frames from a video capture device.
type Camera struct {
	mu       sync.Mutex
	deviceID int
	size     capture.Size
	capture  *gocv.VideoCapture
	raw      gocv.Mat
	resized  gocv.Mat
	rgba     gocv.Mat
}

var _ capture.Source = (*Camera)(nil)

// Open opens a capture device.
//
// Arguments:
//   - deviceID: The device index, 0 for the default camera.
//   - size: The delivered frame size; frames are scaled to it.
//
// Returns:
//   - *Camera: The open source. The caller must Close it.
//   - error: If the device cannot be opened.
func Open(deviceID int, size capture.Size) (*Camera, error) {
	if err := size.Validate(); err != nil {
		return nil, err
	}
	vc, err := gocv.OpenVideoCapture(deviceID)
	if err != nil {
		return nil, errors.Wrapf(err, "opening capture device %d", deviceID)
	}
	return &Camera{
		deviceID: deviceID,
		size:     size,
		capture:  vc,
		raw:      gocv.NewMat(),
		resized:  gocv.NewMat(),
		rgba:     gocv.NewMat(),
	}, nil
}

// Capture reads the next frame, scales it and converts BGR to RGBA.
func (w *Camera) Capture(ctx context.Context) (images.Frame, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.capture == nil {
		return images.Frame{}, errors.New("webcam closed")
	}

	for empty := 0; ; empty++ {
		if err := ctx.Err(); err != nil {
			return images.Frame{}, err
		}
		if ok := w.capture.Read(&w.raw); !ok {
			return images.Frame{}, errors.Errorf("cannot read device %d", w.deviceID)
		}
		if !w.raw.Empty() {
			break
		}
		if empty >= maxEmptyReads {
			return images.Frame{}, errors.Errorf("device %d returned %d empty frames", w.deviceID, empty+1)
		}
	}

	gocv.Resize(w.raw, &w.resized, image.Pt(w.size.Width, w.size.Height), 0, 0, gocv.InterpolationLinear)
	gocv.CvtColor(w.resized, &w.rgba, gocv.ColorBGRToRGBA)

	pix, err := w.rgba.DataPtrUint8()
	if err != nil {
		return images.Frame{}, errors.Wrap(err, "reading frame pixels")
	}
	frame := images.NewFrame(w.size.Width, w.size.Height, 4)
	copy(frame.Pix, pix)
	return frame, nil
}

// Close releases the device and the frame buffers.
func (w *Camera) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.capture == nil {
		return nil
	}
	err := w.capture.Close()
	w.capture = nil
	_ = w.raw.Close()
	_ = w.resized.Close()
	_ = w.rgba.Close()
	return err
}
