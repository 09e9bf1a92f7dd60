package capture

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
	"github.com/nvr-ai/go-facetrack/images"
	"github.com/pkg/errors"
)

// ImageFile represents a frame file on disk.
type ImageFile struct {
	// Path is the path to the image file.
	Path string
	// Frame is the frame number parsed from a "frame-N" file name.
	Frame int
}

// ListFrameFiles lists the image files of a directory ordered by frame number.
//
// Files are expected to be named frame-N.{jpg,jpeg,png,bmp}; other extensions
// and subdirectories are skipped.
//
// Arguments:
//   - dir: Directory path containing image files.
//
// Returns:
//   - []ImageFile: Files in ascending frame order.
//   - error: If the directory cannot be read or an image name has no frame number.
func ListFrameFiles(dir string) ([]ImageFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "reading frame directory %s", dir)
	}

	var files []ImageFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		ext := filepath.Ext(entry.Name())
		switch strings.ToLower(ext) {
		case ".jpg", ".jpeg", ".png", ".bmp":
			frame, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(entry.Name(), "frame-"), ext))
			if err != nil {
				return nil, errors.Wrapf(err, "parsing frame number from %s", entry.Name())
			}
			files = append(files, ImageFile{
				Path:  filepath.Join(dir, entry.Name()),
				Frame: frame,
			})
		}
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Frame < files[j].Frame
	})

	return files, nil
}

// Directory replays a directory of frame files in order.
type Directory struct {
	mu    sync.Mutex
	files []ImageFile
	next  int
	size  Size
	loop  bool
}

var _ Source = (*Directory)(nil)

// OpenDirectory lists the frames of dir.
//
// Arguments:
//   - dir: Directory of frame-N images.
//   - size: Delivered frame size.
//   - loop: If true the replay restarts after the last frame instead of returning ErrExhausted.
//
// Returns:
//   - *Directory: The source.
//   - error: If the directory holds no frames.
func OpenDirectory(dir string, size Size, loop bool) (*Directory, error) {
	if err := size.Validate(); err != nil {
		return nil, err
	}
	files, err := ListFrameFiles(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, errors.Errorf("no frame images in %s", dir)
	}
	return &Directory{files: files, size: size, loop: loop}, nil
}

// Len returns the number of frames in the replay.
func (d *Directory) Len() int {
	return len(d.files)
}

// Capture decodes and scales the next frame.
func (d *Directory) Capture(ctx context.Context) (images.Frame, error) {
	if err := ctx.Err(); err != nil {
		return images.Frame{}, err
	}

	d.mu.Lock()
	if d.next >= len(d.files) {
		if !d.loop {
			d.mu.Unlock()
			return images.Frame{}, ErrExhausted
		}
		d.next = 0
	}
	file := d.files[d.next]
	d.next++
	d.mu.Unlock()

	img, err := imaging.Open(file.Path)
	if err != nil {
		return images.Frame{}, errors.Wrapf(err, "decoding frame %d", file.Frame)
	}
	scaled := resize.Resize(uint(d.size.Width), uint(d.size.Height), img, resize.Bilinear)
	return images.FromImage(scaled), nil
}

// Close is a no-op.
func (d *Directory) Close() error {
	return nil
}
