package recording

import (
	"fmt"
	"image"
	"sync"
)

// Recorder accumulates the screenshots of one test
type Recorder struct {
	mu     sync.Mutex
	frames []image.Image
	opts   Options
}

// NewRecorder creates an empty recorder
func NewRecorder(opts Options) *Recorder {
	if opts.FrameDelayMs == 0 {
		opts.FrameDelayMs = 800
	}
	return &Recorder{opts: opts}
}

// AddPNG decodes a screenshot and appends it as a frame
func (r *Recorder) AddPNG(data []byte) error {
	img, err := Decode(data)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.frames = append(r.frames, img)
	r.mu.Unlock()
	return nil
}

// Len returns the number of frames recorded
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

// Save writes the frames as a GIF at path
func (r *Recorder) Save(path string) error {
	r.mu.Lock()
	frames := append([]image.Image(nil), r.frames...)
	r.mu.Unlock()

	if len(frames) == 0 {
		return fmt.Errorf("no frames recorded")
	}
	if _, err := WriteGIF(frames, path, r.opts); err != nil {
		return fmt.Errorf("failed to write recording: %w", err)
	}
	return nil
}
