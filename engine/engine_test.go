package engine_test

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/pipelined/busreader/engine"
	"github.com/pipelined/busreader/signal"
	"github.com/pipelined/busreader/test"
)

const timeout = 10 * time.Second

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// result of a driven graph.
type result struct {
	streams   []engine.StreamPadAdded
	channels  []engine.ChannelPadAdded
	samples   map[signal.Position][]*signal.Fragment
	warnings  []engine.Warning
	err       *engine.Error
	eos       bool
	noMore    bool
	lateLinks bool
}

func (r result) frames(p signal.Position) int {
	var n int
	for _, f := range r.samples[p] {
		n += f.Frames()
	}
	return n
}

// drive does what reader does: links stream to splitter, collects every
// channel and starts flow on no more pads.
func drive(t *testing.T, g *engine.Graph, caps signal.Caps, live bool) result {
	t.Helper()
	r := result{samples: make(map[signal.Position][]*signal.Fragment)}
	var splitter, splitterSink string
	addSplitter := func(pad string) {
		var err error
		splitter, splitterSink, err = g.AddSplitter(caps)
		require.NoError(t, err)
		require.NoError(t, g.Link(pad, splitterSink))
	}
	if live {
		_, pad, err := g.AddLiveSource(&test.Capture{Fixture: test.Stereo48k})
		require.NoError(t, err)
		addSplitter(pad)
		require.NoError(t, g.SetState(engine.Playing))
	} else {
		require.NoError(t, g.SetState(engine.Paused))
	}

	deadline := time.After(timeout)
	for {
		select {
		case m := <-g.Bus():
			switch m := m.(type) {
			case engine.StreamPadAdded:
				r.streams = append(r.streams, m)
				addSplitter(m.Pad)
			case engine.ChannelPadAdded:
				assert.Equal(t, splitter, m.Element)
				if r.noMore {
					r.lateLinks = true
				}
				r.channels = append(r.channels, m)
				_, sink, err := g.AddAppSink()
				require.NoError(t, err)
				require.NoError(t, g.Link(m.Pad, sink))
			case engine.NoMorePads:
				if m.Element == splitter {
					r.noMore = true
					require.NoError(t, g.SetState(engine.Playing))
				}
			case engine.Sample:
				assert.True(t, r.noMore, "sample before no more pads")
				r.samples[m.Fragment.Position] = append(r.samples[m.Fragment.Position], m.Fragment)
			case engine.Warning:
				r.warnings = append(r.warnings, m)
			case engine.Error:
				r.err = &m
				return r
			case engine.EOS:
				r.eos = true
				return r
			}
		case <-deadline:
			t.Fatal("timeout")
			return r
		}
	}
}

func TestDecode(t *testing.T) {
	stereo, err := test.Stereo2s.WAV()
	require.NoError(t, err)
	mono, err := test.Mono1s.WAV()
	require.NoError(t, err)
	quad, err := test.Quad.WAV()
	require.NoError(t, err)
	aiff, err := test.Stereo2s.AIFF()
	require.NoError(t, err)
	stereo8bit, err := test.Stereo8bit.WAV()
	require.NoError(t, err)

	tests := []struct {
		description string
		data        []byte
		caps        signal.Caps
		format      string
		positions   []signal.Position
		frames      int
		levels      map[signal.Position]float32
		// level tolerance, 1e-3 if zero
		delta       float64
		warnings    int
	}{
		{
			description: "stereo wav",
			data:        stereo,
			caps:        signal.Caps{SampleRate: 44100, Channels: 2},
			format:      "wav",
			positions:   []signal.Position{signal.FrontLeft, signal.FrontRight},
			frames:      88200,
			levels: map[signal.Position]float32{
				signal.FrontLeft:  test.Level(0),
				signal.FrontRight: test.Level(1),
			},
		},
		{
			description: "stereo aiff",
			data:        aiff,
			caps:        signal.Caps{SampleRate: 44100, Channels: 2},
			format:      "aiff",
			positions:   []signal.Position{signal.FrontLeft, signal.FrontRight},
			frames:      88200,
		},
		{
			description: "unsigned 8 bit wav",
			data:        stereo8bit,
			caps:        signal.Caps{SampleRate: 44100, Channels: 2},
			format:      "wav",
			positions:   []signal.Position{signal.FrontLeft, signal.FrontRight},
			frames:      22050,
			levels: map[signal.Position]float32{
				signal.FrontLeft:  test.Level(0),
				signal.FrontRight: test.Level(1),
			},
			delta: 1e-2,
		},
		{
			description: "mono stays mono",
			data:        mono,
			caps:        signal.Caps{SampleRate: 44100, Channels: 2},
			format:      "wav",
			positions:   []signal.Position{signal.FrontLeft},
			frames:      44100,
			levels: map[signal.Position]float32{
				signal.FrontLeft: test.Level(0),
			},
		},
		{
			description: "quad keeps layout",
			data:        quad,
			caps:        signal.Caps{SampleRate: 44100},
			format:      "wav",
			positions: []signal.Position{
				signal.FrontLeft,
				signal.FrontRight,
				signal.RearLeft,
				signal.RearRight,
			},
			frames: 22050,
			levels: map[signal.Position]float32{
				signal.RearLeft:  test.Level(2),
				signal.RearRight: test.Level(3),
			},
		},
		{
			description: "quad folded into stereo",
			data:        quad,
			caps:        signal.Caps{SampleRate: 44100, Channels: 2},
			format:      "wav",
			positions:   []signal.Position{signal.FrontLeft, signal.FrontRight},
			frames:      22050,
			levels: map[signal.Position]float32{
				signal.FrontLeft:  test.Level(0) + test.Level(2)*0.70710677,
				signal.FrontRight: test.Level(1) + test.Level(3)*0.70710677,
			},
			warnings: 1,
		},
	}

	for _, c := range tests {
		g := engine.New(engine.WithBufferSize(1000))
		_, err := g.AddDecodeBin(engine.Memory(c.data))
		require.NoError(t, err, c.description)
		r := drive(t, g, c.caps, false)
		assert.NoError(t, g.Close(), c.description)

		assert.Nil(t, r.err, c.description)
		assert.True(t, r.eos, c.description)
		assert.False(t, r.lateLinks, c.description)
		require.Len(t, r.streams, 1, c.description)
		assert.Equal(t, c.format, r.streams[0].Format, c.description)
		assert.Equal(t, engine.KindAudio, r.streams[0].Kind, c.description)
		assert.Len(t, r.warnings, c.warnings, c.description)

		var positions []signal.Position
		for _, ch := range r.channels {
			positions = append(positions, ch.Position)
		}
		assert.Equal(t, c.positions, positions, c.description)
		for _, p := range c.positions {
			assert.Equal(t, c.frames, r.frames(p), "%s: %v", c.description, p)
			for i, f := range r.samples[p] {
				assert.Equal(t, int64(i), f.Seq, c.description)
			}
		}
		delta := c.delta
		if delta == 0 {
			delta = 1e-3
		}
		for p, level := range c.levels {
			require.NotEmpty(t, r.samples[p], c.description)
			assert.InDelta(t, level, r.samples[p][0].Samples[0], delta, "%s: %v", c.description, p)
		}
	}
}

func TestResample(t *testing.T) {
	data, err := test.Stereo48k.WAV()
	require.NoError(t, err)
	g := engine.New()
	_, err = g.AddDecodeBin(engine.Memory(data))
	require.NoError(t, err)
	r := drive(t, g, signal.Caps{SampleRate: 44100, Channels: 2}, false)
	assert.NoError(t, g.Close())

	assert.True(t, r.eos)
	assert.InDelta(t, 44100, r.frames(signal.FrontLeft), 512)
	assert.InDelta(t, r.frames(signal.FrontLeft), r.frames(signal.FrontRight), 0)
	for _, f := range r.samples[signal.FrontLeft] {
		assert.Equal(t, 44100, f.SampleRate)
	}
}

func TestLive(t *testing.T) {
	g := engine.New()
	r := drive(t, g, signal.Caps{SampleRate: 48000, Channels: 2}, true)
	assert.NoError(t, g.Close())

	assert.True(t, r.eos)
	assert.Empty(t, r.streams)
	assert.Equal(t, test.Stereo48k.Frames, r.frames(signal.FrontLeft))
	assert.Equal(t, test.Stereo48k.Frames, r.frames(signal.FrontRight))
}

func TestErrors(t *testing.T) {
	tests := []struct {
		description string
		source      engine.Source
		code        engine.ErrorCode
		err         error
	}{
		{
			description: "missing file",
			source:      engine.File("does-not-exist.wav"),
			code:        engine.CodeSourceOpen,
			err:         engine.ErrSourceOpen,
		},
		{
			description: "empty path",
			source:      engine.File(""),
			code:        engine.CodeSourceOpen,
			err:         engine.ErrSourceOpen,
		},
		{
			description: "unknown format",
			source:      engine.Memory([]byte("definitely not audio")),
			code:        engine.CodeTypeNotFound,
			err:         engine.ErrTypeNotFound,
		},
	}
	for _, c := range tests {
		g := engine.New()
		_, err := g.AddDecodeBin(c.source)
		require.NoError(t, err)
		r := drive(t, g, signal.Caps{SampleRate: 44100, Channels: 2}, false)
		assert.NoError(t, g.Close())

		require.NotNil(t, r.err, c.description)
		assert.Equal(t, c.code, r.err.Code, c.description)
		assert.True(t, errors.Is(r.err.Err, c.err), c.description)
		assert.Empty(t, r.channels, c.description)
	}
}

func TestLink(t *testing.T) {
	g := engine.New()
	defer g.Close()

	_, splitterSink, err := g.AddSplitter(signal.Caps{})
	require.NoError(t, err)
	_, appSink, err := g.AddAppSink()
	require.NoError(t, err)
	_, livePad, err := g.AddLiveSource(&test.Capture{Fixture: test.Mono1s})
	require.NoError(t, err)

	tests := []struct {
		description string
		src, sink   string
		err         error
	}{
		{description: "unknown pad", src: "unknown", sink: splitterSink, err: engine.ErrPadLink},
		{description: "wrong direction", src: splitterSink, sink: appSink, err: engine.ErrPadLink},
		{description: "incompatible", src: livePad, sink: appSink, err: engine.ErrPadLink},
		{description: "ok", src: livePad, sink: splitterSink},
		{description: "already linked", src: livePad, sink: splitterSink, err: engine.ErrPadLink},
	}
	for _, c := range tests {
		err := g.Link(c.src, c.sink)
		if c.err != nil {
			assert.True(t, errors.Is(err, c.err), c.description)
		} else {
			assert.NoError(t, err, c.description)
		}
	}
}

func TestState(t *testing.T) {
	g := engine.New()
	assert.NoError(t, g.SetState(engine.Ready))
	assert.NoError(t, g.SetState(engine.Paused))
	assert.NoError(t, g.SetState(engine.Paused))
	assert.True(t, errors.Is(g.SetState(engine.Ready), engine.ErrInvalidState))
	assert.NoError(t, g.SetState(engine.Null))
	assert.NoError(t, g.Close())
	assert.Equal(t, engine.ErrClosed, g.SetState(engine.Playing))
	_, err := g.AddDecodeBin(engine.File("test.wav"))
	assert.Equal(t, engine.ErrClosed, err)

	// bus is closed after graph is closed
	for range g.Bus() {
	}
}

// Close must not wait for data that will never come.
func TestCloseBeforeFlow(t *testing.T) {
	data, err := test.Stereo2s.WAV()
	require.NoError(t, err)
	g := engine.New()
	_, err = g.AddDecodeBin(engine.Memory(data))
	require.NoError(t, err)
	require.NoError(t, g.SetState(engine.Paused))

	m := <-g.Bus()
	for {
		if _, ok := m.(engine.StreamPadAdded); ok {
			break
		}
		m = <-g.Bus()
	}
	assert.NoError(t, g.Close())
	assert.NoError(t, g.Close())
}

func TestCloseLive(t *testing.T) {
	capture := &test.Capture{Fixture: test.Stereo48k}
	g := engine.New()
	_, _, err := g.AddLiveSource(capture)
	require.NoError(t, err)
	require.NoError(t, g.SetState(engine.Playing))
	assert.NoError(t, g.Close())
	assert.True(t, capture.IsClosed())
}

func TestRegistry(t *testing.T) {
	r := engine.DefaultRegistry()
	assert.Equal(t, []string{"aiff", "mp3", "vorbis", "wav"}, r.Formats())

	tests := []struct {
		header []byte
		format string
	}{
		{header: []byte("RIFF\x00\x00\x00\x00WAVE"), format: "wav"},
		{header: []byte("FORM\x00\x00\x00\x00AIFF"), format: "aiff"},
		{header: []byte("FORM\x00\x00\x00\x00AIFC"), format: "aiff"},
		{header: []byte("OggS\x00\x02"), format: "vorbis"},
		{header: []byte("ID3\x03\x00"), format: "mp3"},
		{header: []byte{0xFF, 0xFB, 0x90, 0x00}, format: "mp3"},
		{header: []byte("RIFF\x00\x00\x00\x00AVI "), format: ""},
		{header: nil, format: ""},
	}
	for _, c := range tests {
		f, ok := r.Lookup(c.header)
		assert.Equal(t, c.format != "", ok, c.format)
		assert.Equal(t, c.format, f.Name)
	}

	r.Register(engine.Format{
		Name:  "raw",
		Match: func(h []byte) bool { return len(h) > 0 && h[0] == 0 },
		Open: func(io.ReadSeeker) (engine.Stream, error) {
			return nil, errors.New("not implemented")
		},
	})
	f, ok := r.Lookup([]byte{0, 1})
	assert.True(t, ok)
	assert.Equal(t, "raw", f.Name)
}
