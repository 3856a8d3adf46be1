package camera

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go-elife-client/images"
	"go-elife-client/models"
)

var ErrNoFrames = errors.New("camera: no image files in directory")

var supportedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".jp2":  true,
}

// DirCamera plays back the image files of a directory as camera frames, in
// name order, wrapping around at the end.
type DirCamera struct {
	paths     []string
	maxWidth  int
	maxHeight int

	mutex sync.Mutex
	next  int
	taken int
	// failures maps 1-based capture numbers to the error returned for them.
	failures map[int]error
}

type Option func(*DirCamera)

// WithMaxSize bounds the size of produced frames.
func WithMaxSize(width, height int) Option {
	return func(c *DirCamera) {
		c.maxWidth = width
		c.maxHeight = height
	}
}

// WithFailure makes capture number n (1-based, counted across all calls) fail with err.
func WithFailure(n int, err error) Option {
	return func(c *DirCamera) {
		c.failures[n] = err
	}
}

func NewDirCamera(dir string, opts ...Option) (*DirCamera, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read camera directory %s: %w", dir, err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if supportedExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	if len(paths) == 0 {
		return nil, ErrNoFrames
	}
	sort.Strings(paths)

	c := &DirCamera{
		paths:     paths,
		maxWidth:  1280,
		maxHeight: 1280,
		failures:  map[int]error{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Capture returns the next frame re-encoded at the given quality.
func (c *DirCamera) Capture(ctx context.Context, quality float64) (models.ImageFile, error) {
	if err := ctx.Err(); err != nil {
		return models.ImageFile{}, err
	}

	c.mutex.Lock()
	c.taken++
	number := c.taken
	path := c.paths[c.next]
	c.next = (c.next + 1) % len(c.paths)
	injected := c.failures[number]
	c.mutex.Unlock()

	if injected != nil {
		slog.Debug("Injected capture failure", "capture", number)
		return models.ImageFile{}, injected
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return models.ImageFile{}, fmt.Errorf("failed to read frame: %w", err)
	}

	name := fmt.Sprintf("frame-%03d.jpg", number)
	return images.PrepareFrame(name, data, images.FrameOptions{
		MaxWidth:  c.maxWidth,
		MaxHeight: c.maxHeight,
		Quality:   quality,
	})
}

// Captures reports how many captures were attempted.
func (c *DirCamera) Captures() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.taken
}
