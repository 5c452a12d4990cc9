// Package assemble builds a planar audio bus out of a completed decode
// request.
package assemble

import (
	"errors"
	"time"

	"github.com/chewxy/math32"

	"github.com/pipelined/busreader"
	"github.com/pipelined/busreader/signal"
)

var (
	// ErrFailedResult is returned when result of a failed request is
	// assembled.
	ErrFailedResult = errors.New("can't assemble failed result")
	// ErrNoFrontLeft is returned when nothing was collected for the
	// front-left channel.
	ErrNoFrontLeft = errors.New("no front-left channel")
)

// Bus is a planar float32 audio bus.
type Bus struct {
	SampleRate float64
	Channels   [][]float32
}

// FromResult copies collected fragments into a bus. The number of frames
// is defined by the front-left channel. Front-right is truncated or
// padded with silence to that length. Mono bus carries front-left only.
func FromResult(r *busreader.Result) (*Bus, error) {
	if r == nil || r.Failed() {
		return nil, ErrFailedResult
	}
	fl := r.FrontLeft()
	if fl == nil {
		return nil, ErrNoFrontLeft
	}
	frames := fl.Frames()
	b := &Bus{
		SampleRate: r.SampleRate,
		Channels:   make([][]float32, r.Channels),
	}
	b.Channels[0] = fill(make([]float32, frames), fl)
	if r.Channels > 1 {
		b.Channels[1] = make([]float32, frames)
		if fr := r.FrontRight(); fr != nil {
			fill(b.Channels[1], fr)
		}
	}
	return b, nil
}

// fill copies collector samples into dst until it's full.
func fill(dst []float32, c *busreader.Collector) []float32 {
	var n int
	for _, f := range c.Fragments() {
		if n == len(dst) {
			break
		}
		n += copy(dst[n:], f.Samples)
	}
	return dst
}

// NumChannels returns number of channels in the bus.
func (b *Bus) NumChannels() int {
	return len(b.Channels)
}

// Frames returns number of frames in the bus.
func (b *Bus) Frames() int {
	if len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// Duration returns time duration of the bus.
func (b *Bus) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(b.Frames()) / b.SampleRate * float64(time.Second))
}

// Peak returns the maximum absolute sample value of the channel.
func (b *Bus) Peak(channel int) float32 {
	var peak float32
	for _, v := range b.Channels[channel] {
		peak = math32.Max(peak, math32.Abs(v))
	}
	return peak
}

// Interleaved returns bus samples interleaved frame by frame.
func (b *Bus) Interleaved() []float32 {
	channels := b.NumChannels()
	frames := b.Frames()
	out := make([]float32, frames*channels)
	for i, ch := range b.Channels {
		for j, v := range ch {
			out[j*channels+i] = v
		}
	}
	return out
}

// Float32 returns bus as non-interleaved signal.
func (b *Bus) Float32() signal.Float32 {
	return signal.Float32(b.Channels)
}
