// Package mux combines the raw video and audio tracks into the final file
// using an external ffmpeg, falling back to relocating the raw video when
// the encoder is unavailable or fails.
package mux

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os/exec"
	"strings"

	"screen-recorder/src/fileutil"
)

var (
	ErrToolMissing = errors.New("encoder tool missing")
	ErrToolFailure = errors.New("encoder tool failed")
	ErrFileIO      = errors.New("file relocation failed")
)

const (
	DefaultAudioCodec   = "aac"
	DefaultAudioBitrate = "192k"
)

// Outcome classifies how the final artifact was produced.
type Outcome int

const (
	// Muxed means the encoder combined both tracks.
	Muxed Outcome = iota
	// VideoOnly means no audio was supplied and the raw video was relocated.
	VideoOnly
	// Fallback means the encoder was missing or failed and the raw video was
	// relocated without audio.
	Fallback
	// Failed means even relocation failed; RecoveryPath points at the raw video.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Muxed:
		return "muxed"
	case VideoOnly:
		return "video-only"
	case Fallback:
		return "fallback"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result describes the produced artifact.
type Result struct {
	Outcome Outcome
	// Path is the final file when Outcome != Failed.
	Path string
	// RecoveryPath is the retained raw video when Outcome == Failed.
	RecoveryPath string
	// Warning carries the non-fatal cause for Fallback.
	Warning error
}

// Muxer runs ffmpeg. Zero values fall back to package defaults.
type Muxer struct {
	FFmpegPath   string
	AudioCodec   string
	AudioBitrate string
	// Stderr, when set, receives the encoder's diagnostic output.
	Stderr func(string)
}

func (m Muxer) binary() string {
	if strings.TrimSpace(m.FFmpegPath) == "" {
		return "ffmpeg"
	}
	return m.FFmpegPath
}

// Args builds the encoder command line: video copied as-is, audio encoded.
func (m Muxer) Args(rawVideo, rawAudio, final string) []string {
	codec := m.AudioCodec
	if codec == "" {
		codec = DefaultAudioCodec
	}
	bitrate := m.AudioBitrate
	if bitrate == "" {
		bitrate = DefaultAudioBitrate
	}
	return []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", rawVideo,
		"-i", rawAudio,
		"-c:v", "copy",
		"-c:a", codec,
		"-b:a", bitrate,
		final,
	}
}

// Merge produces final from the raw tracks. An empty rawAudio means the
// session had no audio and the video is relocated directly. The returned
// error is non-nil only when Outcome == Failed.
func (m Muxer) Merge(ctx context.Context, rawVideo, rawAudio, final string) (Result, error) {
	if rawAudio == "" {
		return relocate(rawVideo, final, VideoOnly, nil)
	}

	bin := m.binary()
	resolved, err := exec.LookPath(bin)
	if err != nil {
		warn := fmt.Errorf("%w: %s: %v", ErrToolMissing, bin, err)
		log.Printf("mux: %v, saving video without audio", warn)
		return relocate(rawVideo, final, Fallback, warn)
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, resolved, m.Args(rawVideo, rawAudio, final)...)
	cmd.Stderr = &stderr
	hideWindow(cmd)
	log.Printf("mux: running %s", resolved)
	if err := cmd.Run(); err != nil {
		out := strings.TrimSpace(stderr.String())
		if m.Stderr != nil && out != "" {
			m.Stderr(out)
		}
		warn := fmt.Errorf("%w: %v", ErrToolFailure, err)
		if out != "" {
			warn = fmt.Errorf("%w: %v: %s", ErrToolFailure, err, lastLine(out))
		}
		log.Printf("mux: %v, saving video without audio", warn)
		_ = fileutil.RemoveIfExists(final)
		return relocate(rawVideo, final, Fallback, warn)
	}
	if !fileutil.Exists(final) {
		warn := fmt.Errorf("%w: encoder produced no output", ErrToolFailure)
		log.Printf("mux: %v, saving video without audio", warn)
		return relocate(rawVideo, final, Fallback, warn)
	}

	if err := fileutil.RemoveIfExists(rawVideo); err != nil {
		log.Printf("mux: remove %s: %v", rawVideo, err)
	}
	if err := fileutil.RemoveIfExists(rawAudio); err != nil {
		log.Printf("mux: remove %s: %v", rawAudio, err)
	}
	return Result{Outcome: Muxed, Path: final}, nil
}

func relocate(rawVideo, final string, outcome Outcome, warn error) (Result, error) {
	if err := fileutil.Move(rawVideo, final); err != nil {
		log.Printf("mux: relocation failed, raw video kept at %s: %v", rawVideo, err)
		return Result{Outcome: Failed, RecoveryPath: rawVideo, Warning: warn},
			fmt.Errorf("%w: %v", ErrFileIO, err)
	}
	return Result{Outcome: outcome, Path: final, Warning: warn}, nil
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
