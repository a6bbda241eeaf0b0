// Package audio records microphone PCM into memory and writes the raw WAV
// artifact once recording has stopped.
package audio

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"
)

const (
	SampleRate  = 44100
	Channels    = 1
	BitDepth    = 16
	ChunkFrames = 1024
	ChunkBytes  = ChunkFrames * Channels * BitDepth / 8

	// PauseQuantum is how long the loop sleeps per iteration while paused.
	PauseQuantum = 100 * time.Millisecond
)

// ErrDeviceUnavailable covers a missing microphone, an open failure and a
// dead stream.
var ErrDeviceUnavailable = errors.New("audio device unavailable")

// Device is an opened input stream. Read blocks for one chunk.
type Device interface {
	Start() error
	Stop() error
	Read() ([]byte, error)
	Close() error
}

// Capture pulls chunks from one device until its context ends. The device
// handle and the buffer belong to the capture goroutine until Wait returns.
type Capture struct {
	dev     Device
	onError func(error)

	paused  atomic.Bool
	started atomic.Bool
	chunks  atomic.Int64

	buf  *Buffer
	done chan struct{}
	err  error
}

// New wraps an opened device. onError, if set, is called once when the
// stream dies early.
func New(dev Device, onError func(error)) *Capture {
	return &Capture{
		dev:     dev,
		onError: onError,
		buf:     NewBuffer(),
		done:    make(chan struct{}),
	}
}

// Start starts the device stream and the read loop.
func (c *Capture) Start(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return errors.New("audio capture already started")
	}
	if err := c.dev.Start(); err != nil {
		close(c.done)
		_ = c.dev.Close()
		c.err = fmt.Errorf("%w: start stream: %v", ErrDeviceUnavailable, err)
		return c.err
	}
	go c.run(ctx)
	return nil
}

// Pause and Resume only flip a flag; the loop stops and restarts the
// stream itself at the next iteration so the handle is never shared.
func (c *Capture) Pause()  { c.paused.Store(true) }
func (c *Capture) Resume() { c.paused.Store(false) }

// Chunks returns how many chunks have been buffered so far.
func (c *Capture) Chunks() int { return int(c.chunks.Load()) }

// Wait blocks until the loop has exited and the device is closed. The
// returned buffer holds everything read up to that point, even when err
// is non-nil.
func (c *Capture) Wait() (*Buffer, error) {
	<-c.done
	return c.buf, c.err
}

func (c *Capture) run(ctx context.Context) {
	defer close(c.done)
	log.Printf("audio: capture started")

	running := true
	for ctx.Err() == nil {
		if c.paused.Load() {
			if running {
				if err := c.dev.Stop(); err != nil {
					log.Printf("audio: stop stream on pause: %v", err)
				}
				running = false
			}
			sleepCtx(ctx, PauseQuantum)
			continue
		}
		if !running {
			if err := c.dev.Start(); err != nil {
				c.fail(fmt.Errorf("%w: restart stream: %v", ErrDeviceUnavailable, err))
				break
			}
			running = true
		}
		chunk, err := c.dev.Read()
		if err != nil {
			c.fail(fmt.Errorf("%w: read: %v", ErrDeviceUnavailable, err))
			break
		}
		c.buf.Append(chunk)
		c.chunks.Add(1)
	}

	if running {
		if err := c.dev.Stop(); err != nil {
			log.Printf("audio: stop stream: %v", err)
		}
	}
	if err := c.dev.Close(); err != nil {
		log.Printf("audio: close device: %v", err)
	}
	log.Printf("audio: capture stopped after %d chunks (%s)", c.buf.Chunks(), c.buf.Duration().Round(time.Millisecond))
}

func (c *Capture) fail(err error) {
	c.err = err
	log.Printf("audio: %v", err)
	if c.onError != nil {
		c.onError(err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
