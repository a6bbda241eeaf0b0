// Package video writes captured frames into the raw video artifact.
package video

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"log"
	"sync"

	"github.com/icza/mjpeg"
)

// ErrClosed is returned when a frame is written after Close.
var ErrClosed = errors.New("video sink closed")

// DefaultQuality is the JPEG quality used for each intraframe.
const DefaultQuality = 90

// Sink receives encoded frames. It is owned by a single writer.
type Sink interface {
	WriteFrame(img *image.RGBA) error
	Frames() int
	Close() error
}

// MJPEGSink encodes every frame as a JPEG and stores it in an AVI container.
type MJPEGSink struct {
	path          string
	width, height int
	quality       int

	mu     sync.Mutex
	aw     mjpeg.AviWriter
	buf    bytes.Buffer
	frames int
	closed bool
}

// NewMJPEGSink creates the AVI file at path. All frames must match the
// given dimensions.
func NewMJPEGSink(path string, width, height, fps, quality int) (*MJPEGSink, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", width, height)
	}
	if fps <= 0 {
		return nil, fmt.Errorf("invalid frame rate %d", fps)
	}
	if quality < 1 || quality > 100 {
		quality = DefaultQuality
	}
	aw, err := mjpeg.New(path, int32(width), int32(height), int32(fps))
	if err != nil {
		return nil, fmt.Errorf("create video %s: %w", path, err)
	}
	log.Printf("video: opened %s (%dx%d @ %d fps, q=%d)", path, width, height, fps, quality)
	return &MJPEGSink{path: path, width: width, height: height, quality: quality, aw: aw}, nil
}

// Path returns the file backing the sink.
func (s *MJPEGSink) Path() string { return s.path }

func (s *MJPEGSink) WriteFrame(img *image.RGBA) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	b := img.Bounds()
	if b.Dx() != s.width || b.Dy() != s.height {
		return fmt.Errorf("frame size %dx%d does not match stream %dx%d", b.Dx(), b.Dy(), s.width, s.height)
	}
	s.buf.Reset()
	if err := jpeg.Encode(&s.buf, img, &jpeg.Options{Quality: s.quality}); err != nil {
		return fmt.Errorf("encode frame %d: %w", s.frames, err)
	}
	if err := s.aw.AddFrame(s.buf.Bytes()); err != nil {
		return fmt.Errorf("append frame %d: %w", s.frames, err)
	}
	s.frames++
	return nil
}

func (s *MJPEGSink) Frames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// Close finalizes the AVI index. Calling it twice is a no-op.
func (s *MJPEGSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.aw.Close(); err != nil {
		return fmt.Errorf("finalize video %s: %w", s.path, err)
	}
	log.Printf("video: closed %s after %d frames", s.path, s.frames)
	return nil
}
