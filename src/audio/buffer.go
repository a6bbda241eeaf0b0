package audio

import (
	"encoding/binary"
	"time"
)

// Buffer is the append-only PCM sequence (mono, s16le).
type Buffer struct {
	data   []byte
	chunks int
}

func NewBuffer() *Buffer { return &Buffer{} }

// Append copies chunk onto the end of the sequence.
func (b *Buffer) Append(chunk []byte) {
	b.data = append(b.data, chunk...)
	b.chunks++
}

func (b *Buffer) Chunks() int   { return b.chunks }
func (b *Buffer) Len() int      { return len(b.data) }
func (b *Buffer) Bytes() []byte { return b.data }

// Duration is the playback length of the buffered samples.
func (b *Buffer) Duration() time.Duration {
	frames := len(b.data) / (Channels * BitDepth / 8)
	return time.Duration(frames) * time.Second / SampleRate
}

// Samples decodes the little-endian PCM into ints for the WAV encoder.
func (b *Buffer) Samples() []int {
	out := make([]int, len(b.data)/2)
	for i := range out {
		out[i] = int(int16(binary.LittleEndian.Uint16(b.data[2*i:])))
	}
	return out
}
