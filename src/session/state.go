package session

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"
)

// State is the position of a Session in its lifecycle.
type State int

const (
	Idle State = iota
	CountingDown
	Recording
	Paused
	Stopping
	Finalizing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case CountingDown:
		return "counting down"
	case Recording:
		return "recording"
	case Paused:
		return "paused"
	case Stopping:
		return "stopping"
	case Finalizing:
		return "finalizing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Active reports whether the state holds a countdown or live capture that
// closing the host would interrupt.
func (s State) Active() bool {
	return s == CountingDown || s == Recording || s == Paused
}

var (
	ErrBusy             = errors.New("recorder is busy")
	ErrNotRecording     = errors.New("no recording in progress")
	ErrInvalidRegion    = errors.New("invalid capture region")
	ErrAnotherRecording = errors.New("another recording is already running")
)

// FrameRates are the selectable capture rates.
var FrameRates = []int{10, 15, 20, 25, 30, 40, 50, 60}

const DefaultFrameRate = 20

func ValidFrameRate(fps int) bool {
	for _, r := range FrameRates {
		if r == fps {
			return true
		}
	}
	return false
}

// CaptureConfig is fixed for the lifetime of one recording.
type CaptureConfig struct {
	FrameRate       int
	HighlightCursor bool
	AudioEnabled    bool
	// AudioDevice names the input device; empty selects the default input.
	AudioDevice string
}

const timestampLayout = "20060102_150405"

// DefaultOutputPath returns screen_recording_<timestamp>.mp4 inside dir.
func DefaultOutputPath(dir string, now time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("screen_recording_%s.mp4", now.Format(timestampLayout)))
}

func tempPaths(dir string, now time.Time, id string) (videoPath, audioPath string) {
	ts := now.Format(timestampLayout)
	return filepath.Join(dir, fmt.Sprintf("temp_video_%s_%s.avi", ts, id)),
		filepath.Join(dir, fmt.Sprintf("temp_audio_%s_%s.wav", ts, id))
}
