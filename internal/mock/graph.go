// Package mock provides a scripted media graph to test the reader without
// decoding real data.
package mock

import (
	"fmt"
	"strings"

	"github.com/pipelined/busreader/engine"
	"github.com/pipelined/busreader/signal"
	"github.com/pipelined/busreader/test"
)

const busSize = 4096

// Graph mocks the engine graph. It's driven synchronously by the reader:
//	- Paused posts stream pads, or an open error;
//	- linking the splitter sink posts channel pads and no more pads;
//	- once Playing and every channel pad is linked, fragments are posted
//	  for every channel, including the discarded ones, followed by EOS.
type Graph struct {
	// Streams exposed by the decoder. Audio stream by default.
	Streams []engine.StreamKind
	// Positions exposed by the splitter. Stereo by default.
	Positions []signal.Position
	// Fragments per channel and frames per fragment.
	Fragments int
	Frames    int
	// Lengths overrides Frames for positions.
	Lengths map[signal.Position]int
	// LiveError is returned from AddLiveSource.
	LiveError error
	// OpenError is posted as source open failure on Paused.
	OpenError error
	// FailErr is posted after FailAfter fragment rounds.
	FailErr   error
	FailAfter int
	// FailLink is a pad that can't be linked.
	FailLink string
	// NilFragment makes the first front-left delivery nil.
	NilFragment bool
	// EarlySample posts a sample before no more pads.
	EarlySample bool
	// Warning is posted with stream pads.
	Warning error

	// Caps requested for the splitter.
	Caps signal.Caps
	// Calls made by the reader in order.
	Calls []string
	// Closed counts Close calls.
	Closed int

	busc    chan engine.Message
	live    bool
	playing bool
	flowed  bool
	sinks   int
	links   map[string]string
}

// New returns stereo graph mock.
func New() *Graph {
	return &Graph{
		Streams:   []engine.StreamKind{engine.KindAudio},
		Positions: []signal.Position{signal.FrontLeft, signal.FrontRight},
		Fragments: 4,
		Frames:    512,
		busc:      make(chan engine.Message, busSize),
		links:     make(map[string]string),
	}
}

// Bus returns message channel.
func (g *Graph) Bus() <-chan engine.Message {
	return g.busc
}

func (g *Graph) post(m engine.Message) {
	g.busc <- m
}

func (g *Graph) record(format string, args ...interface{}) {
	g.Calls = append(g.Calls, fmt.Sprintf(format, args...))
}

// AddDecodeBin mocks decode bin.
func (g *Graph) AddDecodeBin(src engine.Source) (string, error) {
	g.record("add-decodebin")
	return "decodebin", nil
}

// AddLiveSource mocks live source.
func (g *Graph) AddLiveSource(c engine.Capture) (string, string, error) {
	g.record("add-livesource")
	if g.LiveError != nil {
		return "", "", g.LiveError
	}
	g.live = true
	return "livesrc", "livesrc.src", nil
}

// AddSplitter mocks splitter.
func (g *Graph) AddSplitter(caps signal.Caps) (string, string, error) {
	g.record("add-splitter")
	g.Caps = caps
	return "splitter", "splitter.sink", nil
}

// AddAppSink mocks app sink.
func (g *Graph) AddAppSink() (string, string, error) {
	id := fmt.Sprintf("appsink%d", g.sinks)
	g.sinks++
	g.record("add-appsink")
	return id, id + ".sink", nil
}

// AddFakeSink mocks fake sink.
func (g *Graph) AddFakeSink() (string, string, error) {
	id := fmt.Sprintf("fakesink%d", g.sinks)
	g.sinks++
	g.record("add-fakesink")
	return id, id + ".sink", nil
}

// Link records link and triggers scripted messages.
func (g *Graph) Link(src, sink string) error {
	g.record("link %s", src)
	if src == g.FailLink {
		return fmt.Errorf("%w: %s", engine.ErrPadLink, src)
	}
	if sink == "splitter.sink" {
		g.negotiate()
		return nil
	}
	g.links[src] = strings.TrimSuffix(sink, ".sink")
	g.flow()
	return nil
}

// SetState records state and triggers scripted messages.
func (g *Graph) SetState(s engine.State) error {
	g.record("set-state %v", s)
	g.post(engine.StateChanged{Element: "graph", New: s})
	switch s {
	case engine.Paused:
		if g.live {
			return nil
		}
		if g.OpenError != nil {
			g.post(engine.Error{Element: "decodebin", Code: engine.CodeSourceOpen, Err: g.OpenError, Debug: "mock"})
			return nil
		}
		if g.Warning != nil {
			g.post(engine.Warning{Element: "decodebin", Code: engine.CodeFailed, Err: g.Warning})
		}
		for i, kind := range g.Streams {
			g.post(engine.StreamPadAdded{
				Element: "decodebin",
				Pad:     fmt.Sprintf("stream%d", i),
				Kind:    kind,
			})
		}
		g.post(engine.NoMorePads{Element: "decodebin"})
	case engine.Playing:
		g.playing = true
		g.flow()
	}
	return nil
}

// Close counts calls.
func (g *Graph) Close() error {
	g.record("close")
	g.Closed++
	return nil
}

func channelPad(i int) string {
	return fmt.Sprintf("splitter.ch%d", i)
}

func (g *Graph) negotiate() {
	for i, p := range g.Positions {
		g.post(engine.ChannelPadAdded{
			Element:  "splitter",
			Pad:      channelPad(i),
			Position: p,
		})
	}
	if g.EarlySample {
		g.post(engine.Sample{Element: "appsink0", Fragment: g.fragment(0, 0)})
	}
	g.post(engine.NoMorePads{Element: "splitter"})
}

// fragment is filled with the level of its channel.
func (g *Graph) fragment(channel, seq int) *signal.Fragment {
	position := g.Positions[channel]
	frames := g.Frames
	if n, ok := g.Lengths[position]; ok {
		frames = n
	}
	samples := make([]float32, frames)
	for i := range samples {
		samples[i] = test.Level(channel)
	}
	return &signal.Fragment{
		Position:   position,
		Samples:    samples,
		SampleRate: g.Caps.SampleRate,
		Seq:        int64(seq),
	}
}

func (g *Graph) flow() {
	if !g.playing || g.flowed || len(g.links) < len(g.Positions) {
		return
	}
	g.flowed = true
	for round := 0; round < g.Fragments; round++ {
		if g.FailErr != nil && round == g.FailAfter {
			g.post(engine.Error{Element: "splitter", Code: engine.CodeDecode, Err: g.FailErr})
			return
		}
		for i := range g.Positions {
			f := g.fragment(i, round)
			if g.NilFragment && round == 0 && i == 0 {
				f = nil
			}
			g.post(engine.Sample{Element: g.links[channelPad(i)], Fragment: f})
		}
	}
	if g.FailErr != nil && g.FailAfter >= g.Fragments {
		g.post(engine.Error{Element: "splitter", Code: engine.CodeFailed, Err: g.FailErr})
		return
	}
	g.post(engine.EOS{Element: "graph"})
}
