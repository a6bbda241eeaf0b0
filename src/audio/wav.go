package audio

import (
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WriteWAV stores the buffer as a PCM WAV file. An empty buffer is an
// error; callers should skip the artifact instead.
func WriteWAV(path string, buf *Buffer) error {
	if buf == nil || buf.Len() == 0 {
		return fmt.Errorf("no audio to write")
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, SampleRate, BitDepth, Channels, 1)
	ib := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: Channels,
			SampleRate:  SampleRate,
		},
		Data:           buf.Samples(),
		SourceBitDepth: BitDepth,
	}
	if err := enc.Write(ib); err != nil {
		_ = enc.Close()
		return fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalize wav: %w", err)
	}
	return f.Close()
}
