package busreader

import (
	"sort"

	"github.com/pipelined/busreader/signal"
)

// Result is the completion signal of a decode request. It keeps the data
// collected before a failure.
type Result struct {
	// SampleRate is the declared sample rate of collected fragments.
	SampleRate float64
	// Channels is the requested number of channels: 1 for mono mix, 2
	// otherwise. It doesn't affect which collectors are populated.
	Channels int
	// Frames is the front-left total, authoritative for bus sizing.
	Frames int
	// Err is the error which failed the request.
	Err        error
	collectors map[signal.Position]*Collector
}

// Failed returns true if an error occurred.
func (r *Result) Failed() bool {
	return r.Err != nil
}

// Collector returns collector for position or nil.
func (r *Result) Collector(p signal.Position) *Collector {
	return r.collectors[p]
}

// FrontLeft returns front-left collector or nil.
func (r *Result) FrontLeft() *Collector {
	return r.collectors[signal.FrontLeft]
}

// FrontRight returns front-right collector or nil.
func (r *Result) FrontRight() *Collector {
	return r.collectors[signal.FrontRight]
}

// Collectors returns all populated collectors ordered by position.
func (r *Result) Collectors() []*Collector {
	collectors := make([]*Collector, 0, len(r.collectors))
	for _, c := range r.collectors {
		collectors = append(collectors, c)
	}
	sort.Slice(collectors, func(i, j int) bool {
		return collectors[i].position < collectors[j].position
	})
	return collectors
}
