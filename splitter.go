package busreader

import (
	"fmt"
	"math"

	"github.com/pipelined/busreader/signal"
)

// targetChannels is the fixed channel count of splitter output.
const targetChannels = 2

// splitterStage wraps the engine splitter and attaches sinks to its
// channel pads.
type splitterStage struct {
	g       Graph
	element string
	sinkPad string
}

func newSplitterStage(g Graph, sampleRate float64) (*splitterStage, error) {
	caps := signal.Caps{
		SampleRate: int(math.Round(sampleRate)),
		Channels:   targetChannels,
	}
	element, sinkPad, err := g.AddSplitter(caps)
	if err != nil {
		return nil, fmt.Errorf("%w: splitter: %v", ErrEngine, err)
	}
	return &splitterStage{
		g:       g,
		element: element,
		sinkPad: sinkPad,
	}, nil
}

// link connects upstream pad to the splitter.
func (s *splitterStage) link(pad string) error {
	if err := s.g.Link(pad, s.sinkPad); err != nil {
		return fmt.Errorf("%w: %v", ErrPadLink, err)
	}
	return nil
}

// attach connects channel pad to an app sink and returns a new collector
// if collect is true. Otherwise the pad is connected to a fake sink.
func (s *splitterStage) attach(pad string, position signal.Position, collect bool) (*Collector, error) {
	if !collect {
		_, sinkPad, err := s.g.AddFakeSink()
		if err != nil {
			return nil, fmt.Errorf("%w: fakesink: %v", ErrEngine, err)
		}
		if err := s.g.Link(pad, sinkPad); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPadLink, err)
		}
		return nil, nil
	}
	sink, sinkPad, err := s.g.AddAppSink()
	if err != nil {
		return nil, fmt.Errorf("%w: appsink: %v", ErrEngine, err)
	}
	if err := s.g.Link(pad, sinkPad); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPadLink, err)
	}
	return newCollector(position, sink), nil
}
