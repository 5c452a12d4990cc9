// Package test contains fixtures for busreader tests. Fixtures are
// generated in memory so tests don't depend on binary assets.
package test

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-audio/aiff"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const wavFormatPCM = 1

// Fixture describes generated PCM data. Every channel carries a constant
// level, so routing can be verified by value.
type Fixture struct {
	SampleRate int
	Channels   int
	Frames     int
	BitDepth   int
}

// All fixtures used by tests.
var (
	// Stereo2s is 2 seconds of 44100 Hz stereo.
	Stereo2s = Fixture{SampleRate: 44100, Channels: 2, Frames: 88200, BitDepth: 16}
	// Mono1s is 1 second of 44100 Hz mono.
	Mono1s = Fixture{SampleRate: 44100, Channels: 1, Frames: 44100, BitDepth: 16}
	// Stereo48k is 1 second of 48000 Hz stereo.
	Stereo48k = Fixture{SampleRate: 48000, Channels: 2, Frames: 48000, BitDepth: 16}
	// Quad is half a second of 44100 Hz four channels.
	Quad = Fixture{SampleRate: 44100, Channels: 4, Frames: 22050, BitDepth: 24}
	// Stereo8bit is half a second of 44100 Hz 8 bit stereo.
	Stereo8bit = Fixture{SampleRate: 44100, Channels: 2, Frames: 22050, BitDepth: 8}
)

// Level returns the value of channel samples in float.
func Level(channel int) float32 {
	return float32(channel+1) / 10
}

func (f Fixture) buffer() *audio.IntBuffer {
	peak := 1<<(f.BitDepth-1) - 1
	data := make([]int, f.Frames*f.Channels)
	for i := range data {
		data[i] = int(Level(i%f.Channels) * float32(peak))
	}
	return &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: f.Channels,
			SampleRate:  f.SampleRate,
		},
		Data:           data,
		SourceBitDepth: f.BitDepth,
	}
}

// WAV returns fixture encoded as WAV. 8 bit WAV samples are unsigned.
func (f Fixture) WAV() ([]byte, error) {
	buf := f.buffer()
	if f.BitDepth == 8 {
		for i := range buf.Data {
			buf.Data[i] += 128
		}
	}
	ws := &writeSeeker{}
	e := wav.NewEncoder(ws, f.SampleRate, f.BitDepth, f.Channels, wavFormatPCM)
	if err := e.Write(buf); err != nil {
		return nil, err
	}
	if err := e.Close(); err != nil {
		return nil, err
	}
	return ws.Bytes(), nil
}

// AIFF returns fixture encoded as AIFF.
func (f Fixture) AIFF() ([]byte, error) {
	ws := &writeSeeker{}
	e := aiff.NewEncoder(ws, f.SampleRate, f.BitDepth, f.Channels)
	if err := e.Write(f.buffer()); err != nil {
		return nil, err
	}
	if err := e.Close(); err != nil {
		return nil, err
	}
	return ws.Bytes(), nil
}

// WriteWAV writes fixture into dir and returns file path.
func (f Fixture) WriteWAV(dir, name string) (string, error) {
	data, err := f.WAV()
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", err
	}
	return path, nil
}

// writeSeeker is an in-memory io.WriteSeeker required by encoders.
type writeSeeker struct {
	buf []byte
	pos int
}

func (w *writeSeeker) Write(p []byte) (int, error) {
	if end := w.pos + len(p); end > len(w.buf) {
		w.buf = append(w.buf, make([]byte, end-len(w.buf))...)
	}
	n := copy(w.buf[w.pos:], p)
	w.pos += n
	return n, nil
}

func (w *writeSeeker) Seek(offset int64, whence int) (int64, error) {
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = int64(w.pos) + offset
	case io.SeekEnd:
		pos = int64(len(w.buf)) + offset
	default:
		return 0, errors.New("invalid whence")
	}
	if pos < 0 {
		return 0, errors.New("negative position")
	}
	w.pos = int(pos)
	return pos, nil
}

func (w *writeSeeker) Bytes() []byte {
	return w.buf
}

// Capture is a live input that produces fixture data and then io.EOF.
type Capture struct {
	Fixture
	// Err is returned from Start if set.
	Err error

	mu      sync.Mutex
	read    int
	Started bool
	Stopped bool
	Closed  bool
}

// SampleRate of the capture.
func (c *Capture) SampleRate() int { return c.Fixture.SampleRate }

// Channels of the capture.
func (c *Capture) Channels() int { return c.Fixture.Channels }

// Start starts the capture.
func (c *Capture) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	c.Started = true
	return nil
}

// Read fills dst with channel levels.
func (c *Capture) Read(dst []float32) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	frames := len(dst) / c.Fixture.Channels
	if left := c.Frames - c.read; left < frames {
		frames = left
	}
	if frames == 0 {
		return 0, io.EOF
	}
	for i := 0; i < frames*c.Fixture.Channels; i++ {
		dst[i] = Level(i % c.Fixture.Channels)
	}
	c.read += frames
	return frames * c.Fixture.Channels, nil
}

// Stop stops the capture.
func (c *Capture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Stopped = true
	return nil
}

// Close closes the capture.
func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Closed = true
	return nil
}

// IsClosed returns true if capture was closed.
func (c *Capture) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Closed
}
