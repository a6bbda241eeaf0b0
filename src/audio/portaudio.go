package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/gordonklaus/portaudio"
)

// DeviceInfo describes one input-capable device.
type DeviceInfo struct {
	Name          string
	HostAPI       string
	InputChannels int
	Default       bool
}

// InputDevices lists devices with at least one input channel.
func InputDevices() ([]DeviceInfo, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("%w: initialize: %v", ErrDeviceUnavailable, err)
	}
	defer portaudio.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("%w: list devices: %v", ErrDeviceUnavailable, err)
	}
	var defName string
	if def, err := portaudio.DefaultInputDevice(); err == nil && def != nil {
		defName = def.Name
	}

	var out []DeviceInfo
	for _, d := range devices {
		if d.MaxInputChannels <= 0 {
			continue
		}
		info := DeviceInfo{Name: d.Name, InputChannels: d.MaxInputChannels, Default: d.Name == defName}
		if d.HostApi != nil {
			info.HostAPI = d.HostApi.Name
		}
		out = append(out, info)
	}
	return out, nil
}

// PortAudioDevice is a blocking mono s16 input stream.
type PortAudioDevice struct {
	name   string
	stream *portaudio.Stream
	in     []int16
	out    []byte
}

// OpenDevice opens the named input device, or the default one when name is
// empty. Any failure is ErrDeviceUnavailable.
func OpenDevice(name string) (*PortAudioDevice, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("%w: initialize: %v", ErrDeviceUnavailable, err)
	}
	dev, err := findInput(name)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, err
	}

	in := make([]int16, ChunkFrames*Channels)
	params := portaudio.HighLatencyParameters(dev, nil)
	params.Input.Channels = Channels
	params.SampleRate = SampleRate
	params.FramesPerBuffer = ChunkFrames
	stream, err := portaudio.OpenStream(params, in)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("%w: open %q: %v", ErrDeviceUnavailable, dev.Name, err)
	}
	log.Printf("audio: opened input %q (%d Hz, %d ch, %d frames/chunk)", dev.Name, SampleRate, Channels, ChunkFrames)
	return &PortAudioDevice{name: dev.Name, stream: stream, in: in, out: make([]byte, ChunkBytes)}, nil
}

func findInput(name string) (*portaudio.DeviceInfo, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		dev, err := portaudio.DefaultInputDevice()
		if err != nil || dev == nil {
			return nil, fmt.Errorf("%w: no default input device", ErrDeviceUnavailable)
		}
		return dev, nil
	}
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("%w: list devices: %v", ErrDeviceUnavailable, err)
	}
	for _, d := range devices {
		if d.MaxInputChannels > 0 && strings.EqualFold(d.Name, name) {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: input device %q not found", ErrDeviceUnavailable, name)
}

// Name returns the resolved device name.
func (d *PortAudioDevice) Name() string { return d.name }

func (d *PortAudioDevice) Start() error { return d.stream.Start() }
func (d *PortAudioDevice) Stop() error  { return d.stream.Stop() }

// Read blocks for one chunk. Input overflow drops samples but keeps the
// stream usable, so it is not reported as an error.
func (d *PortAudioDevice) Read() ([]byte, error) {
	if err := d.stream.Read(); err != nil && !errors.Is(err, portaudio.InputOverflowed) {
		return nil, err
	}
	for i, s := range d.in {
		binary.LittleEndian.PutUint16(d.out[2*i:], uint16(s))
	}
	chunk := make([]byte, len(d.out))
	copy(chunk, d.out)
	return chunk, nil
}

func (d *PortAudioDevice) Close() error {
	err := d.stream.Close()
	if terr := portaudio.Terminate(); terr != nil && err == nil {
		err = terr
	}
	return err
}
