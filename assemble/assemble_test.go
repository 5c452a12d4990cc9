package assemble_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/pipelined/busreader"
	"github.com/pipelined/busreader/assemble"
	"github.com/pipelined/busreader/internal/mock"
	"github.com/pipelined/busreader/signal"
	"github.com/pipelined/busreader/test"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func result(t *testing.T, g *mock.Graph, mono bool) *busreader.Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	r := busreader.NewFileReader("test.wav", busreader.WithGraph(func() busreader.Graph {
		return g
	}))
	res, _ := r.CreateBus(ctx, 44100, mono)
	require.NotNil(t, res)
	return res
}

func TestFromResult(t *testing.T) {
	tests := []struct {
		description string
		setup       func(*mock.Graph)
		mono        bool
		channels    int
		frames      int
		// frames of front-right carrying signal
		signal int
	}{
		{
			description: "stereo",
			channels:    2,
			frames:      2048,
			signal:      2048,
		},
		{
			description: "front-right truncated",
			setup: func(g *mock.Graph) {
				g.Lengths = map[signal.Position]int{signal.FrontRight: 600}
			},
			channels: 2,
			frames:   2048,
			signal:   2048,
		},
		{
			description: "front-right padded",
			setup: func(g *mock.Graph) {
				g.Lengths = map[signal.Position]int{signal.FrontRight: 500}
			},
			channels: 2,
			frames:   2048,
			signal:   2000,
		},
		{
			description: "missing front-right is silent",
			setup: func(g *mock.Graph) {
				g.Positions = []signal.Position{signal.FrontLeft}
			},
			channels: 2,
			frames:   2048,
			signal:   0,
		},
		{
			description: "mono",
			mono:        true,
			channels:    1,
			frames:      2048,
		},
	}
	for _, c := range tests {
		g := mock.New()
		if c.setup != nil {
			c.setup(g)
		}
		bus, err := assemble.FromResult(result(t, g, c.mono))
		require.NoError(t, err, c.description)

		assert.Equal(t, 44100.0, bus.SampleRate, c.description)
		assert.Equal(t, c.channels, bus.NumChannels(), c.description)
		assert.Equal(t, c.frames, bus.Frames(), c.description)
		for _, ch := range bus.Channels {
			assert.Len(t, ch, c.frames, c.description)
		}
		assert.Equal(t, test.Level(0), bus.Peak(0), c.description)
		if c.channels < 2 {
			continue
		}
		fr := bus.Channels[1]
		for i, v := range fr {
			if i < c.signal {
				assert.Equal(t, test.Level(1), v, "%s: %d", c.description, i)
			} else {
				assert.Equal(t, float32(0), v, "%s: %d", c.description, i)
			}
		}
	}
}

func TestFailedResult(t *testing.T) {
	g := mock.New()
	g.OpenError = busreader.ErrSourceOpen
	_, err := assemble.FromResult(result(t, g, false))
	assert.Equal(t, assemble.ErrFailedResult, err)

	_, err = assemble.FromResult(nil)
	assert.Equal(t, assemble.ErrFailedResult, err)
}

func TestBus(t *testing.T) {
	bus := &assemble.Bus{
		SampleRate: 4,
		Channels:   [][]float32{{1, -2, 3, 4}, {5, 6, 7, 8}},
	}
	assert.Equal(t, time.Second, bus.Duration())
	assert.Equal(t, float32(4), bus.Peak(0))
	assert.Equal(t, []float32{1, 5, -2, 6, 3, 7, 4, 8}, bus.Interleaved())
	assert.Equal(t, signal.Float32{{1, -2, 3, 4}, {5, 6, 7, 8}}, bus.Float32())
	assert.Equal(t, 0, (&assemble.Bus{}).Frames())
	assert.Equal(t, time.Duration(0), (&assemble.Bus{}).Duration())
}

func TestEngine(t *testing.T) {
	data, err := test.Stereo2s.WAV()
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	res, err := busreader.NewMemoryReader(data).CreateBus(ctx, 44100, false)
	require.NoError(t, err)

	bus, err := assemble.FromResult(res)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, bus.Duration())
	assert.InDelta(t, test.Level(0), bus.Peak(0), 1e-3)
	assert.InDelta(t, test.Level(1), bus.Peak(1), 1e-3)
}
