package video

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"
)

func solidFrame(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestMJPEGSinkWritesAVI(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raw.avi")
	sink, err := NewMJPEGSink(path, 64, 48, 20, 80)
	if err != nil {
		t.Fatalf("NewMJPEGSink: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := sink.WriteFrame(solidFrame(64, 48, color.RGBA{R: uint8(i * 80), A: 255})); err != nil {
			t.Fatalf("WriteFrame %d: %v", i, err)
		}
	}
	if got := sink.Frames(); got != 3 {
		t.Errorf("Frames() = %d, want 3", got)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read avi: %v", err)
	}
	if len(data) < 12 || !bytes.Equal(data[:4], []byte("RIFF")) || !bytes.Equal(data[8:12], []byte("AVI ")) {
		t.Fatalf("output is not a RIFF/AVI container")
	}
}

func TestMJPEGSinkRejectsMismatchedFrame(t *testing.T) {
	sink, err := NewMJPEGSink(filepath.Join(t.TempDir(), "raw.avi"), 32, 32, 10, 0)
	if err != nil {
		t.Fatalf("NewMJPEGSink: %v", err)
	}
	defer sink.Close()

	if err := sink.WriteFrame(solidFrame(16, 16, color.RGBA{A: 255})); err == nil {
		t.Error("expected size mismatch error")
	}
	if sink.Frames() != 0 {
		t.Errorf("rejected frame must not be counted")
	}
}

func TestMJPEGSinkWriteAfterClose(t *testing.T) {
	sink, err := NewMJPEGSink(filepath.Join(t.TempDir(), "raw.avi"), 8, 8, 10, 0)
	if err != nil {
		t.Fatalf("NewMJPEGSink: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := sink.WriteFrame(solidFrame(8, 8, color.RGBA{A: 255})); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestNewMJPEGSinkValidation(t *testing.T) {
	dir := t.TempDir()
	if _, err := NewMJPEGSink(filepath.Join(dir, "a.avi"), 0, 10, 10, 0); err == nil {
		t.Error("expected error for zero width")
	}
	if _, err := NewMJPEGSink(filepath.Join(dir, "b.avi"), 10, 10, 0, 0); err == nil {
		t.Error("expected error for zero fps")
	}
}
