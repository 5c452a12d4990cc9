// Package signal provides audio value types shared by the decode engine
// and the channel collectors. It allows to:
//	- label channels with speaker positions
//	- describe negotiated raw audio caps
//	- convert interleaved int data to float32 and split it per channel
package signal

import (
	"fmt"
	"math"
	"time"
)

// Position is a speaker position of a single channel.
type Position int

// Speaker positions known to the engine.
const (
	Unknown Position = iota
	FrontLeft
	FrontRight
	FrontCenter
	LFE
	RearLeft
	RearRight
	SideLeft
	SideRight
)

var positionNames = [...]string{
	Unknown:     "unknown",
	FrontLeft:   "front-left",
	FrontRight:  "front-right",
	FrontCenter: "front-center",
	LFE:         "lfe",
	RearLeft:    "rear-left",
	RearRight:   "rear-right",
	SideLeft:    "side-left",
	SideRight:   "side-right",
}

func (p Position) String() string {
	if p < 0 || int(p) >= len(positionNames) {
		return positionNames[Unknown]
	}
	return positionNames[p]
}

// extensible is the WAVE_FORMAT_EXTENSIBLE channel order.
var extensible = []Position{FrontLeft, FrontRight, FrontCenter, LFE, RearLeft, RearRight, SideLeft, SideRight}

// Layout returns default positions for provided number of channels.
// Single channel is carried as front-left. Channels beyond the known
// layouts are labeled Unknown.
func Layout(channels int) []Position {
	if channels <= 0 {
		return nil
	}
	switch channels {
	case 4:
		return []Position{FrontLeft, FrontRight, RearLeft, RearRight}
	case 5:
		return []Position{FrontLeft, FrontRight, FrontCenter, RearLeft, RearRight}
	}
	layout := make([]Position, channels)
	for i := range layout {
		if i < len(extensible) {
			layout[i] = extensible[i]
		}
	}
	return layout
}

// Caps describes a negotiated raw audio stream. Samples are always
// 32-bit float.
type Caps struct {
	SampleRate int
	Channels   int
	Positions  []Position
}

// String returns caps in a familiar media-type form.
func (c Caps) String() string {
	return fmt.Sprintf("audio/x-raw, format=F32, rate=%d, channels=%d, positions=%v", c.SampleRate, c.Channels, c.Positions)
}

// Fragment is a run of samples of a single channel. Fragments are moved
// from the engine into exactly one collector and must not be modified
// after delivery.
type Fragment struct {
	Position   Position
	Samples    []float32
	SampleRate int
	// Seq is the arrival sequence number within the channel.
	Seq int64
}

// Frames returns number of frames in the fragment.
func (f *Fragment) Frames() int {
	return len(f.Samples)
}

// Duration returns time duration of the fragment.
func (f *Fragment) Duration() time.Duration {
	return DurationOf(f.SampleRate, int64(len(f.Samples)))
}

// DurationOf returns time duration of passed samples for this sample rate.
func DurationOf(sampleRate int, samples int64) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(samples) / float64(sampleRate) * float64(time.Second))
}

// FramesOf returns number of frames that fit into duration at sample rate.
func FramesOf(sampleRate int, d time.Duration) int {
	return int(math.Round(d.Seconds() * float64(sampleRate)))
}

const (
	// BitDepth8 is 8 bit depth.
	BitDepth8 = BitDepth(8)
	// BitDepth16 is 16 bit depth.
	BitDepth16 = BitDepth(16)
	// BitDepth24 is 24 bit depth.
	BitDepth24 = BitDepth(24)
	// BitDepth32 is 32 bit depth.
	BitDepth32 = BitDepth(32)
)

// BitDepth contains values required for int-to-float conversion.
type BitDepth int

// devider is used when int to float conversion is done.
func (bitDepth BitDepth) devider() int {
	switch bitDepth {
	case BitDepth8:
		return math.MaxInt8
	case BitDepth16:
		return math.MaxInt16
	case BitDepth24:
		return 1<<23 - 1
	case BitDepth32:
		return math.MaxInt32
	default:
		return 1
	}
}

// InterInt is an interleaved int signal.
type InterInt struct {
	Data        []int
	NumChannels int
	BitDepth
}

// AsFloat32 converts interleaved int signal to interleaved float32. Result
// is written into dst if it has enough capacity.
func (ints InterInt) AsFloat32(dst []float32) []float32 {
	if ints.Data == nil || ints.NumChannels == 0 {
		return nil
	}
	if cap(dst) < len(ints.Data) {
		dst = make([]float32, len(ints.Data))
	}
	dst = dst[:len(ints.Data)]
	devider := float32(ints.BitDepth.devider())
	for i, v := range ints.Data {
		dst[i] = float32(v) / devider
	}
	return dst
}

// Float32 is a non-interleaved float32 signal.
type Float32 [][]float32

// Deinterleave splits interleaved samples into channels. Trailing samples
// of an incomplete frame are dropped.
func Deinterleave(data []float32, numChannels int) Float32 {
	if numChannels <= 0 || len(data) < numChannels {
		return nil
	}
	frames := len(data) / numChannels
	floats := make([][]float32, numChannels)
	for i := range floats {
		floats[i] = make([]float32, frames)
		for j := 0; j < frames; j++ {
			floats[i][j] = data[j*numChannels+i]
		}
	}
	return floats
}

// NumChannels returns number of channels in this sample slice.
func (floats Float32) NumChannels() int {
	return len(floats)
}

// Size returns number of samples in single block in this sample slice.
func (floats Float32) Size() int {
	if floats.NumChannels() == 0 {
		return 0
	}
	return len(floats[0])
}

// Append buffers set to existing one.
// New buffer is returned if floats is nil.
func (floats Float32) Append(source Float32) Float32 {
	if floats == nil {
		floats = make([][]float32, source.NumChannels())
		for i := range floats {
			floats[i] = make([]float32, 0, source.Size())
		}
	}
	for i := range source {
		floats[i] = append(floats[i], source[i]...)
	}
	return floats
}
