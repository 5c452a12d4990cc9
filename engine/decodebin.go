package engine

import (
	"fmt"
	"sync"

	"github.com/pipelined/busreader/signal"
)

// decodeBin opens the source, finds the format and exposes a single raw
// audio pad.
type decodeBin struct {
	id  string
	src Source
}

func (d *decodeBin) stream(g *Graph) {
	g.post(StreamStatus{Element: d.id, Status: StatusEnter})
	defer g.post(StreamStatus{Element: d.id, Status: StatusLeave})

	rs, err := d.src.open()
	if err != nil {
		g.post(Error{
			Element: d.id,
			Code:    CodeSourceOpen,
			Err:     fmt.Errorf("%w: %v", ErrSourceOpen, err),
			Debug:   d.src.String(),
		})
		return
	}
	defer rs.Close()

	format, s, err := g.registry.open(rs)
	if err != nil {
		g.post(Error{
			Element: d.id,
			Code:    CodeTypeNotFound,
			Err:     err,
			Debug:   d.src.String(),
		})
		return
	}
	defer s.Close()

	caps := signal.Caps{
		SampleRate: s.SampleRate(),
		Channels:   s.Channels(),
		Positions:  signal.Layout(s.Channels()),
	}
	p := g.addPad(d.id, srcPad, rawPad, caps, nil, nil)
	g.log.Debug(fmt.Sprintf("%v: found %v stream %v", d.id, format, caps))
	g.post(StreamPadAdded{
		Element: d.id,
		Pad:     p.id,
		Kind:    KindAudio,
		Caps:    caps,
		Format:  format,
	})
	g.post(NoMorePads{Element: d.id})
	g.push(d.id, p, s)
}

// interrupt is no-op, decoders stop on done check between reads.
func (d *decodeBin) interrupt() {}

func (d *decodeBin) close() error {
	return nil
}

// liveSource pulls data from capture device.
type liveSource struct {
	id      string
	capture Capture
	pad     *pad

	mu      sync.Mutex
	started bool
	stopped bool
}

func (l *liveSource) stream(g *Graph) {
	g.post(StreamStatus{Element: l.id, Status: StatusEnter})
	defer g.post(StreamStatus{Element: l.id, Status: StatusLeave})

	if err := l.start(); err != nil {
		g.post(Error{
			Element: l.id,
			Code:    CodeSourceOpen,
			Err:     fmt.Errorf("%w: %v", ErrSourceOpen, err),
			Debug:   "capture",
		})
		return
	}
	g.push(l.id, l.pad, l.capture)
}

func (l *liveSource) start() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return errFlushing
	}
	if err := l.capture.Start(); err != nil {
		return err
	}
	l.started = true
	return nil
}

// interrupt stops capture to unblock pending reads.
func (l *liveSource) interrupt() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopped = true
	if l.started {
		l.started = false
		l.capture.Stop()
	}
}

func (l *liveSource) close() error {
	return l.capture.Close()
}
