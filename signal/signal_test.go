package signal_test

import (
	"math"
	"testing"
	"time"

	"github.com/pipelined/busreader/signal"
	"github.com/stretchr/testify/assert"
)

func TestInterIntAsFloat32(t *testing.T) {
	tests := []struct {
		ints        []int
		numChannels int
		bitDepth    signal.BitDepth
		expected    []float32
	}{
		{
			ints:        []int{1, 2, 1, 2},
			numChannels: 2,
			expected:    []float32{1, 2, 1, 2},
		},
		{
			ints:        []int{math.MaxInt16, -math.MaxInt16},
			numChannels: 2,
			bitDepth:    signal.BitDepth16,
			expected:    []float32{1, -1},
		},
		{
			ints:        []int{1<<23 - 1},
			numChannels: 1,
			bitDepth:    signal.BitDepth24,
			expected:    []float32{1},
		},
		{
			ints:     nil,
			expected: nil,
		},
		{
			ints:     []int{1, 2, 3},
			expected: nil,
		},
	}

	for _, test := range tests {
		ints := signal.InterInt{
			Data:        test.ints,
			NumChannels: test.numChannels,
			BitDepth:    test.bitDepth,
		}
		assert.Equal(t, test.expected, ints.AsFloat32(nil))
	}
}

func TestDeinterleave(t *testing.T) {
	tests := []struct {
		data        []float32
		numChannels int
		expected    signal.Float32
	}{
		{
			data:        []float32{1, 2, 1, 2, 1, 2},
			numChannels: 2,
			expected:    signal.Float32{{1, 1, 1}, {2, 2, 2}},
		},
		{
			data:        []float32{1, 2, 1, 2, 1},
			numChannels: 2,
			expected:    signal.Float32{{1, 1}, {2, 2}},
		},
		{
			data:        []float32{1, 2, 3},
			numChannels: 1,
			expected:    signal.Float32{{1, 2, 3}},
		},
		{
			data:        []float32{1},
			numChannels: 2,
			expected:    nil,
		},
		{
			data:        []float32{1, 2},
			numChannels: 0,
			expected:    nil,
		},
	}

	for _, test := range tests {
		result := signal.Deinterleave(test.data, test.numChannels)
		assert.Equal(t, test.expected, result)
	}
}

func TestAppend(t *testing.T) {
	var floats signal.Float32
	floats = floats.Append(signal.Float32{{1, 2}, {3, 4}})
	floats = floats.Append(signal.Float32{{5}, {6}})
	assert.Equal(t, 2, floats.NumChannels())
	assert.Equal(t, 3, floats.Size())
	assert.Equal(t, signal.Float32{{1, 2, 5}, {3, 4, 6}}, floats)
}

func TestLayout(t *testing.T) {
	tests := []struct {
		channels int
		expected []signal.Position
	}{
		{channels: 0, expected: nil},
		{channels: 1, expected: []signal.Position{signal.FrontLeft}},
		{channels: 2, expected: []signal.Position{signal.FrontLeft, signal.FrontRight}},
		{channels: 4, expected: []signal.Position{signal.FrontLeft, signal.FrontRight, signal.RearLeft, signal.RearRight}},
		{
			channels: 6,
			expected: []signal.Position{
				signal.FrontLeft, signal.FrontRight, signal.FrontCenter,
				signal.LFE, signal.RearLeft, signal.RearRight,
			},
		},
		{
			channels: 9,
			expected: []signal.Position{
				signal.FrontLeft, signal.FrontRight, signal.FrontCenter,
				signal.LFE, signal.RearLeft, signal.RearRight,
				signal.SideLeft, signal.SideRight, signal.Unknown,
			},
		},
	}
	for _, test := range tests {
		assert.Equal(t, test.expected, signal.Layout(test.channels))
	}
}

func TestPositionString(t *testing.T) {
	assert.Equal(t, "front-left", signal.FrontLeft.String())
	assert.Equal(t, "front-right", signal.FrontRight.String())
	assert.Equal(t, "unknown", signal.Position(100).String())
	assert.Equal(t, "unknown", signal.Position(-1).String())
}

func TestFragment(t *testing.T) {
	f := &signal.Fragment{
		Position:   signal.FrontLeft,
		Samples:    make([]float32, 22050),
		SampleRate: 44100,
	}
	assert.Equal(t, 22050, f.Frames())
	assert.Equal(t, 500*time.Millisecond, f.Duration())
	assert.Equal(t, time.Duration(0), signal.DurationOf(0, 10))
	assert.Equal(t, 88200, signal.FramesOf(44100, 2*time.Second))
}
