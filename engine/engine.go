// Package engine is a small media graph that decodes encoded audio into
// per-channel float32 fragments. Elements and pads are identified by
// string ids and all asynchronous events are posted as messages on the
// graph bus:
//
//	decodebin ! splitter (convert ! resample ! capsfilter ! deinterleave) ! appsink
//
// Every source element runs its own streaming goroutine. Data leaves a
// source only after its downstream splitter has exposed all channel pads,
// every one of them is linked and the graph is Playing.
package engine

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/rs/xid"

	"github.com/pipelined/busreader/log"
	"github.com/pipelined/busreader/signal"
)

// DefaultBufferSize is the number of frames read from a source at once.
const DefaultBufferSize = 4096

var (
	// ErrSourceOpen is returned when source can't be opened.
	ErrSourceOpen = errors.New("could not open source")
	// ErrTypeNotFound is returned when no decodable audio is found.
	ErrTypeNotFound = errors.New("no decodable audio stream")
	// ErrDecode is returned when stream fails mid-way.
	ErrDecode = errors.New("decode failed")
	// ErrPadLink is returned when pads can't be linked.
	ErrPadLink = errors.New("pad link failed")
	// ErrClosed is returned when graph is already closed.
	ErrClosed = errors.New("graph is closed")
	// ErrInvalidState is returned on unsupported state change.
	ErrInvalidState = errors.New("invalid state change")

	// errFlushing is returned inside streaming goroutines on teardown.
	errFlushing = errors.New("flushing")
)

// State of the graph.
type State int

const (
	// Null is the initial and the final state.
	Null State = iota
	// Ready means elements are allocated.
	Ready
	// Paused means streaming goroutines are started, but no data flows.
	Paused
	// Playing means data flows.
	Playing
)

func (s State) String() string {
	switch s {
	case Null:
		return "null"
	case Ready:
		return "ready"
	case Paused:
		return "paused"
	case Playing:
		return "playing"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

type direction int

const (
	srcPad direction = iota
	sinkPad
)

// padKind defines what flows through the pad. Only pads of the same kind
// can be linked.
type padKind int

const (
	// interleaved raw audio
	rawPad padKind = iota
	// single channel fragments
	channelPad
)

type pad struct {
	id      string
	element string
	dir     direction
	kind    padKind
	caps    signal.Caps
	// set for sink pads
	raw     rawSink
	channel channelSink
	// peer is set once, before linked is closed.
	peer   *pad
	linked chan struct{}
}

// rawSink receives interleaved data from a source.
type rawSink interface {
	negotiate(signal.Caps) error
	chain([]float32) error
	eos() error
}

// channelSink receives single channel fragments.
type channelSink interface {
	render(*signal.Fragment) error
}

type element interface {
	close() error
}

// streamer is an element that owns a streaming goroutine.
type streamer interface {
	element
	stream(*Graph)
	interrupt()
}

// Option configures the graph.
type Option func(*Graph)

// WithLogger sets logger to the graph.
func WithLogger(l log.Logger) Option {
	return func(g *Graph) {
		g.log = l
	}
}

// WithBufferSize sets the number of frames read from sources at once.
func WithBufferSize(frames int) Option {
	return func(g *Graph) {
		if frames > 0 {
			g.bufferSize = frames
		}
	}
}

// WithRegistry sets the format registry used by decode bins.
func WithRegistry(r *Registry) Option {
	return func(g *Graph) {
		g.registry = r
	}
}

// Graph is a container of linked elements.
type Graph struct {
	uid        string
	log        log.Logger
	registry   *Registry
	bufferSize int
	bus        *bus

	mu        sync.Mutex
	state     State
	closed    bool
	started   bool
	elements  map[string]element
	streamers []streamer
	pads      map[string]*pad

	playc     chan struct{}
	playOnce  sync.Once
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
	wg        sync.WaitGroup
}

// New creates a graph in Null state and starts its bus.
func New(options ...Option) *Graph {
	g := &Graph{
		uid:        newUID(),
		log:        log.Silent,
		bufferSize: DefaultBufferSize,
		bus:        newBus(),
		elements:   make(map[string]element),
		pads:       make(map[string]*pad),
		playc:      make(chan struct{}),
		done:       make(chan struct{}),
	}
	for _, option := range options {
		option(g)
	}
	if g.registry == nil {
		g.registry = DefaultRegistry()
	}
	go g.bus.run(g.done)
	return g
}

// ID returns graph id. It's used as Src of graph-wide messages.
func (g *Graph) ID() string {
	return g.uid
}

// Bus returns channel of graph messages. It's closed after graph is closed.
func (g *Graph) Bus() <-chan Message {
	return g.bus.out
}

func (g *Graph) post(m Message) {
	g.bus.post(m)
}

// AddDecodeBin adds element that decodes provided source. Source is opened
// when graph reaches Paused. Returns element id.
func (g *Graph) AddDecodeBin(src Source) (string, error) {
	d := &decodeBin{
		id:  newUID(),
		src: src,
	}
	if err := g.add(d.id, d); err != nil {
		return "", err
	}
	g.log.Debug(fmt.Sprintf("%v: added decodebin %v for %v", g.uid, d.id, src))
	return d.id, nil
}

// AddLiveSource adds capture input. Its source pad exists immediately.
// Returns element id and source pad id.
func (g *Graph) AddLiveSource(c Capture) (string, string, error) {
	l := &liveSource{
		id:      newUID(),
		capture: c,
	}
	if err := g.add(l.id, l); err != nil {
		return "", "", err
	}
	caps := signal.Caps{
		SampleRate: c.SampleRate(),
		Channels:   c.Channels(),
		Positions:  signal.Layout(c.Channels()),
	}
	l.pad = g.addPad(l.id, srcPad, rawPad, caps, nil, nil)
	return l.id, l.pad.id, nil
}

// AddSplitter adds convert ! resample ! capsfilter ! deinterleave chain.
// Zero values in caps keep the stream values. Returns element id and
// sink pad id.
func (g *Graph) AddSplitter(caps signal.Caps) (string, string, error) {
	s := &splitter{
		id:     newUID(),
		g:      g,
		target: caps,
	}
	if err := g.add(s.id, s); err != nil {
		return "", "", err
	}
	p := g.addPad(s.id, sinkPad, rawPad, caps, s, nil)
	return s.id, p.id, nil
}

// AddAppSink adds sink that posts every fragment as Sample message.
// Returns element id and sink pad id.
func (g *Graph) AddAppSink() (string, string, error) {
	a := &appSink{
		id: newUID(),
		g:  g,
	}
	if err := g.add(a.id, a); err != nil {
		return "", "", err
	}
	p := g.addPad(a.id, sinkPad, channelPad, signal.Caps{}, nil, a)
	return a.id, p.id, nil
}

// AddFakeSink adds sink that discards all fragments.
// Returns element id and sink pad id.
func (g *Graph) AddFakeSink() (string, string, error) {
	f := &fakeSink{
		id: newUID(),
	}
	if err := g.add(f.id, f); err != nil {
		return "", "", err
	}
	p := g.addPad(f.id, sinkPad, channelPad, signal.Caps{}, nil, f)
	return f.id, p.id, nil
}

func (g *Graph) add(id string, e element) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return ErrClosed
	}
	g.elements[id] = e
	if s, ok := e.(streamer); ok {
		g.streamers = append(g.streamers, s)
		// elements added to a running graph start streaming at once
		if g.started {
			g.startStreaming(s)
		}
	}
	return nil
}

func (g *Graph) addPad(element string, dir direction, kind padKind, caps signal.Caps, raw rawSink, channel channelSink) *pad {
	p := &pad{
		id:      newUID(),
		element: element,
		dir:     dir,
		kind:    kind,
		caps:    caps,
		raw:     raw,
		channel: channel,
		linked:  make(chan struct{}),
	}
	g.mu.Lock()
	g.pads[p.id] = p
	g.mu.Unlock()
	return p
}

// Link connects source pad to sink pad.
func (g *Graph) Link(src, sink string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return fmt.Errorf("%w: %v", ErrPadLink, ErrClosed)
	}
	s, ok := g.pads[src]
	if !ok {
		return fmt.Errorf("%w: unknown pad %s", ErrPadLink, src)
	}
	d, ok := g.pads[sink]
	if !ok {
		return fmt.Errorf("%w: unknown pad %s", ErrPadLink, sink)
	}
	if s.dir != srcPad || d.dir != sinkPad {
		return fmt.Errorf("%w: wrong direction %s -> %s", ErrPadLink, src, sink)
	}
	if s.kind != d.kind {
		return fmt.Errorf("%w: incompatible pads %s -> %s", ErrPadLink, src, sink)
	}
	if s.peer != nil || d.peer != nil {
		return fmt.Errorf("%w: already linked %s -> %s", ErrPadLink, src, sink)
	}
	s.peer, d.peer = d, s
	close(s.linked)
	close(d.linked)
	return nil
}

// SetState changes graph state. Paused starts streaming goroutines,
// Playing lets data flow, Null closes the graph. States can't go back
// other than to Null.
func (g *Graph) SetState(s State) error {
	if s == Null {
		return g.Close()
	}
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return ErrClosed
	}
	old := g.state
	if s == old {
		g.mu.Unlock()
		return nil
	}
	if s < old {
		g.mu.Unlock()
		return fmt.Errorf("%w: %v -> %v", ErrInvalidState, old, s)
	}
	g.state = s
	if s >= Paused && !g.started {
		g.started = true
		for _, st := range g.streamers {
			g.startStreaming(st)
		}
	}
	if s == Playing {
		g.playOnce.Do(func() {
			close(g.playc)
		})
	}
	g.mu.Unlock()
	g.log.Debug(fmt.Sprintf("%v: state %v -> %v", g.uid, old, s))
	g.post(StateChanged{Element: g.uid, Old: old, New: s})
	return nil
}

// startStreaming must be called with mutex locked.
func (g *Graph) startStreaming(s streamer) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		s.stream(g)
	}()
}

// Close stops all streaming goroutines and releases elements. It's safe
// to call Close multiple times.
func (g *Graph) Close() error {
	g.closeOnce.Do(func() {
		g.mu.Lock()
		old := g.state
		g.state = Null
		g.closed = true
		streamers := g.streamers
		g.mu.Unlock()

		close(g.done)
		for _, s := range streamers {
			s.interrupt()
		}
		g.wg.Wait()

		var errs []error
		for id, e := range g.elements {
			if err := e.close(); err != nil {
				errs = append(errs, fmt.Errorf("%v: %w", id, err))
			}
		}
		g.closeErr = errors.Join(errs...)
		g.log.Debug(fmt.Sprintf("%v: state %v -> %v", g.uid, old, Null))
	})
	return g.closeErr
}

func (g *Graph) waitPlaying() bool {
	select {
	case <-g.playc:
		return true
	case <-g.done:
		return false
	}
}

func (g *Graph) waitLinked(p *pad) bool {
	select {
	case <-p.linked:
		return true
	case <-g.done:
		return false
	}
}

// reader is what sources pull data from.
type reader interface {
	Read([]float32) (int, error)
}

// push runs on streaming goroutine. It negotiates caps with the peer,
// waits for Playing and pushes data until EOF or error.
func (g *Graph) push(element string, p *pad, r reader) {
	if !g.waitLinked(p) {
		return
	}
	peer := p.peer.raw
	if err := peer.negotiate(p.caps); err != nil {
		if !errors.Is(err, errFlushing) {
			g.post(Error{Element: element, Code: CodeNegotiation, Err: err, Debug: p.caps.String()})
		}
		return
	}
	if !g.waitPlaying() {
		return
	}
	channels := p.caps.Channels
	buf := make([]float32, g.bufferSize*channels)
	for {
		select {
		case <-g.done:
			return
		default:
		}
		n, err := r.Read(buf)
		if n > 0 {
			n -= n % channels
			if cerr := peer.chain(buf[:n]); cerr != nil {
				if !errors.Is(cerr, errFlushing) {
					g.post(Error{Element: element, Code: CodeFailed, Err: cerr})
				}
				return
			}
		}
		switch {
		case err == io.EOF:
			if eerr := peer.eos(); eerr != nil {
				g.post(Error{Element: element, Code: CodeFailed, Err: eerr})
				return
			}
			g.post(EOS{Element: g.uid})
			return
		case err != nil:
			g.post(Error{Element: element, Code: CodeDecode, Err: fmt.Errorf("%w: %v", ErrDecode, err)})
			return
		}
	}
}

// newUID returns new unique id value.
func newUID() string {
	return xid.New().String()
}
