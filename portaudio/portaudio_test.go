//go:build portaudio

package portaudio_test

import (
	"context"
	"errors"
	"testing"
	"time"

	pa "github.com/gordonklaus/portaudio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipelined/busreader"
	"github.com/pipelined/busreader/portaudio"
)

func TestHostAPIType(t *testing.T) {
	tests := []struct {
		name     string
		expected pa.HostApiType
		err      error
	}{
		{name: "ALSA", expected: pa.ALSA},
		{name: "coreaudio", expected: pa.CoreAudio},
		{name: "WASAPI", expected: pa.WASAPI},
		{name: "pulse", err: portaudio.ErrUnknownHostAPI},
	}
	for _, test := range tests {
		typ, err := portaudio.HostAPIType(test.name)
		if test.err != nil {
			assert.True(t, errors.Is(err, test.err), test.name)
			continue
		}
		assert.NoError(t, err)
		assert.Equal(t, test.expected, typ)
	}
}

func TestUnknownDevice(t *testing.T) {
	_, err := portaudio.NewCapture(portaudio.WithDevice("no such device"))
	assert.True(t, errors.Is(err, portaudio.ErrUnknownDevice))
}

func TestCapture(t *testing.T) {
	devices, err := portaudio.Devices()
	require.NoError(t, err)
	if len(devices) == 0 {
		t.Skip("no input devices")
	}

	capture, err := portaudio.NewCapture(portaudio.WithChannels(1))
	require.NoError(t, err)
	r := busreader.NewLiveReader(capture)
	defer r.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	result, err := r.CreateBus(ctx, float64(capture.SampleRate()), true)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	require.NotNil(t, result)
	assert.NotZero(t, result.FrontLeft().Frames())
}
