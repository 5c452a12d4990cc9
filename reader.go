package busreader

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/rs/xid"

	"github.com/pipelined/busreader/engine"
	"github.com/pipelined/busreader/internal/state"
	"github.com/pipelined/busreader/log"
	"github.com/pipelined/busreader/signal"
)

// Graph is the media graph driven by the reader. engine.Graph is the
// default implementation.
type Graph interface {
	Bus() <-chan engine.Message
	AddDecodeBin(engine.Source) (string, error)
	AddLiveSource(engine.Capture) (string, string, error)
	AddSplitter(signal.Caps) (string, string, error)
	AddAppSink() (string, string, error)
	AddFakeSink() (string, string, error)
	Link(src, sink string) error
	SetState(engine.State) error
	Close() error
}

// Option configures the reader.
type Option func(*Reader)

// WithLogger sets logger to the reader and its graph.
func WithLogger(l log.Logger) Option {
	return func(r *Reader) {
		r.log = l
	}
}

// WithName sets name to the reader.
func WithName(n string) Option {
	return func(r *Reader) {
		r.name = n
	}
}

// WithBufferSize sets number of frames the engine reads at once.
func WithBufferSize(frames int) Option {
	return func(r *Reader) {
		r.bufferSize = frames
	}
}

// WithGraph sets graph constructor. It's called once per request.
func WithGraph(fn func() Graph) Option {
	return func(r *Reader) {
		r.newGraph = fn
	}
}

// Reader decodes a single source into per-channel collectors. It's
// single use and all its methods must be called from one goroutine;
// use context to interrupt CreateBus.
type Reader struct {
	uid        string
	name       string
	log        log.Logger
	bufferSize int
	newGraph   func() Graph

	source  engine.Source
	capture engine.Capture

	sampleRate float64
	used       bool
	graph      Graph
	handle     *state.Handle
	decode     *decodeStage
	splitter   *splitterStage
	collectors map[signal.Position]*Collector
	// collectors by sink element
	sinks map[string]*Collector

	closeOnce sync.Once
	closeErr  error
}

// NewFileReader creates reader that decodes a file.
func NewFileReader(path string, options ...Option) *Reader {
	r := newReader(options...)
	r.source = engine.File(path)
	return r
}

// NewMemoryReader creates reader that decodes in-memory data. Data must
// not be modified until the reader is closed.
func NewMemoryReader(data []byte, options ...Option) *Reader {
	r := newReader(options...)
	r.source = engine.Memory(data)
	return r
}

// NewLiveReader creates reader that splits live capture. The reader takes
// ownership of the capture and closes it. Live capture runs until it
// returns io.EOF, fails or the context is done.
func NewLiveReader(c engine.Capture, options ...Option) *Reader {
	r := newReader(options...)
	r.capture = c
	return r
}

func newReader(options ...Option) *Reader {
	r := &Reader{
		uid:        xid.New().String(),
		log:        log.Silent,
		bufferSize: engine.DefaultBufferSize,
		collectors: make(map[signal.Position]*Collector),
		sinks:      make(map[string]*Collector),
	}
	for _, option := range options {
		option(r)
	}
	if r.newGraph == nil {
		r.newGraph = func() Graph {
			return engine.New(
				engine.WithLogger(r.log),
				engine.WithBufferSize(r.bufferSize),
			)
		}
	}
	return r
}

// CreateBus decodes the source and collects front-left and front-right
// channels resampled to sampleRate. It blocks until end of stream, an
// error or until context is done. mixToMono only changes the requested
// channel count of the result, both channels are always collected.
//
// Returned error equals Result.Err. Result is nil only if the request
// wasn't started.
func (r *Reader) CreateBus(ctx context.Context, sampleRate float64, mixToMono bool) (*Result, error) {
	if r.used {
		return nil, ErrSingleUse
	}
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSampleRate, sampleRate)
	}
	r.used = true
	r.sampleRate = sampleRate
	r.graph = r.newGraph()
	r.handle = state.NewHandle(state.Funcs{
		BuildDecoder:   r.buildDecoder,
		BuildLive:      r.buildLive,
		AttachSplitter: r.attachSplitter,
		AttachChannel:  r.attachChannel,
		Start:          r.start,
		Deliver:        r.deliver,
	})

	var e state.Event = state.AttachDecoder{}
	if r.capture != nil {
		e = state.AttachLive{}
	}
	r.log.Debug(fmt.Sprintf("%v: create bus at %v Hz, mono: %v", r, sampleRate, mixToMono))
	r.send(e)
	r.loop(ctx)

	channels := 2
	if mixToMono {
		channels = 1
	}
	result := &Result{
		SampleRate: sampleRate,
		Channels:   channels,
		Err:        r.handle.Err(),
		collectors: r.collectors,
	}
	if fl := result.FrontLeft(); fl != nil {
		result.Frames = fl.Frames()
	}
	if err := r.Close(); err != nil {
		r.log.Warn(fmt.Sprintf("%v: teardown failed: %v", r, err))
	}
	if result.Err != nil {
		r.log.Error(fmt.Sprintf("%v: failed in %v: %v", r, r.handle.State(), result.Err))
	} else {
		r.log.Info(fmt.Sprintf("%v: done, %d frames", r, result.Frames))
	}
	return result, result.Err
}

// loop dispatches graph messages one at a time until handle is done.
func (r *Reader) loop(ctx context.Context) {
	bus := r.graph.Bus()
	for !r.handle.Done() {
		select {
		case m, ok := <-bus:
			if !ok {
				r.send(state.Fail{Err: fmt.Errorf("%w: bus closed", ErrEngine)})
				return
			}
			r.dispatch(m)
		case <-ctx.Done():
			r.send(state.Fail{Err: fmt.Errorf("%w: %w", ErrEngine, ctx.Err())})
		}
	}
}

func (r *Reader) dispatch(m engine.Message) {
	switch m := m.(type) {
	case engine.StreamPadAdded:
		if r.decode == nil {
			return
		}
		if pad, ok := r.decode.discovered(m); ok {
			r.log.Debug(fmt.Sprintf("%v: %v stream %v", r, m.Format, m.Caps))
			r.send(state.StreamDiscovered{Pad: pad})
		}
	case engine.ChannelPadAdded:
		if r.splitter == nil || m.Element != r.splitter.element {
			return
		}
		r.send(state.ChannelDiscovered{Pad: m.Pad, Position: m.Position})
	case engine.NoMorePads:
		if r.splitter != nil && m.Element == r.splitter.element {
			r.send(state.NoMorePads{})
			return
		}
		r.log.Debug(fmt.Sprintf("%v: no more pads from %v", r, m.Element))
		// decoder exposed all streams and none of them is audio
		if r.decode != nil && m.Element == r.decode.element && r.handle.State() == state.DecodeAttached {
			r.send(state.Fail{Err: fmt.Errorf("%w: no audio among streams of %v", ErrNoAudioStream, r.source)})
		}
	case engine.Sample:
		r.send(state.Fragment{Sink: m.Element, Fragment: m.Fragment})
	case engine.EOS:
		if r.handle.State() != state.Flowing {
			r.send(state.Fail{Err: fmt.Errorf("%w: end of stream in %v", ErrNoAudioStream, r.handle)})
			return
		}
		r.send(state.EndOfStream{})
	case engine.Error:
		r.log.Error(fmt.Sprintf("%v: error from %v: %v: %v (%v)", r, m.Element, m.Code, m.Err, m.Debug))
		r.send(state.Fail{Err: engineError(m)})
	case engine.Warning:
		r.log.Warn(fmt.Sprintf("%v: warning from %v: %v: %v (%v)", r, m.Element, m.Code, m.Err, m.Debug))
	case engine.StateChanged:
		r.log.Debug(fmt.Sprintf("%v: graph state %v -> %v", r, m.Old, m.New))
	case engine.StreamStatus:
		r.log.Debug(fmt.Sprintf("%v: stream status %v: %v", r, m.Element, m.Status))
	}
}

func (r *Reader) send(e state.Event) {
	if err := r.handle.Dispatch(e); err != nil {
		r.log.Debug(fmt.Sprintf("%v: %T failed: %v", r, e, err))
	}
}

func (r *Reader) buildDecoder() error {
	d, err := newDecodeStage(r.graph, r.source)
	if err != nil {
		return err
	}
	r.decode = d
	if err := r.graph.SetState(engine.Paused); err != nil {
		return fmt.Errorf("%w: %v", ErrEngine, err)
	}
	return nil
}

func (r *Reader) buildLive() error {
	_, pad, err := r.graph.AddLiveSource(r.capture)
	if err != nil {
		// graph didn't take ownership of the capture
		if cerr := r.capture.Close(); cerr != nil {
			r.log.Warn(fmt.Sprintf("%v: close capture: %v", r, cerr))
		}
		return fmt.Errorf("%w: live source: %v", ErrEngine, err)
	}
	if err := r.attachSplitter(pad); err != nil {
		return err
	}
	if err := r.graph.SetState(engine.Playing); err != nil {
		return fmt.Errorf("%w: %v", ErrEngine, err)
	}
	return nil
}

func (r *Reader) attachSplitter(pad string) error {
	s, err := newSplitterStage(r.graph, r.sampleRate)
	if err != nil {
		return err
	}
	if err := s.link(pad); err != nil {
		return err
	}
	r.splitter = s
	return nil
}

func (r *Reader) attachChannel(pad string, position signal.Position) (bool, error) {
	collect := (position == signal.FrontLeft || position == signal.FrontRight) && r.collectors[position] == nil
	c, err := r.splitter.attach(pad, position, collect)
	if err != nil {
		return false, err
	}
	if c == nil {
		r.log.Debug(fmt.Sprintf("%v: discarding %v channel", r, position))
		return false, nil
	}
	r.collectors[position] = c
	r.sinks[c.sink] = c
	r.log.Debug(fmt.Sprintf("%v: collecting %v channel", r, position))
	return true, nil
}

func (r *Reader) start() error {
	if err := r.graph.SetState(engine.Playing); err != nil {
		return fmt.Errorf("%w: %v", ErrEngine, err)
	}
	return nil
}

// deliver appends fragment to the collector of the sink it was pulled
// from. Fragments of discarded channels and fragments whose position
// doesn't match the collector are dropped.
func (r *Reader) deliver(sink string, f *signal.Fragment) error {
	c, ok := r.sinks[sink]
	if !ok || (f != nil && f.Position != c.position) {
		return nil
	}
	if err := c.append(f); err != nil {
		r.log.Warn(fmt.Sprintf("%v: %v channel: %v", r, c.position, err))
	}
	return nil
}

// Close tears down the graph and releases stages. It's safe to call Close
// multiple times and in any state.
func (r *Reader) Close() error {
	r.closeOnce.Do(func() {
		r.decode, r.splitter = nil, nil
		switch {
		case r.graph != nil:
			r.closeErr = r.graph.Close()
		case r.capture != nil:
			r.closeErr = r.capture.Close()
		}
		r.log.Debug(fmt.Sprintf("%v: closed", r))
	})
	return r.closeErr
}

// State returns the state of the decode request.
func (r *Reader) State() string {
	if r.handle == nil {
		return state.Unbuilt.String()
	}
	return r.handle.String()
}

// String returns reader name or id.
func (r *Reader) String() string {
	if r.name != "" {
		return r.name
	}
	return r.uid
}
