package engine

import (
	"github.com/pipelined/busreader/metric"
	"github.com/pipelined/busreader/signal"
)

// appSink posts every fragment to the bus.
type appSink struct {
	id      string
	g       *Graph
	measure metric.MeasureFunc
}

func (a *appSink) render(f *signal.Fragment) error {
	if a.measure == nil {
		a.measure = metric.Meter(a, f.SampleRate)
	}
	a.measure(int64(f.Frames()))
	a.g.post(Sample{Element: a.id, Fragment: f})
	return nil
}

func (a *appSink) close() error {
	return nil
}

// fakeSink drops every fragment.
type fakeSink struct {
	id      string
	measure metric.MeasureFunc
}

func (f *fakeSink) render(fragment *signal.Fragment) error {
	if f.measure == nil {
		f.measure = metric.Meter(f, fragment.SampleRate)
	}
	f.measure(int64(fragment.Frames()))
	return nil
}

func (f *fakeSink) close() error {
	return nil
}
