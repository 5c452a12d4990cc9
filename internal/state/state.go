// Package state implements the forward-only state machine of a decode
// request. All events are dispatched synchronously on the caller's
// goroutine; the actual work is done by the closures provided to the
// handle.
package state

import (
	"errors"
	"fmt"

	"github.com/pipelined/busreader/signal"
)

var (
	// ErrInvalidState is returned if event cannot be handled at this moment.
	ErrInvalidState = errors.New("invalid state")
	// ErrNoChannels is returned if no channel collectors were attached
	// before the splitter reported no more pads.
	ErrNoChannels = errors.New("no channel collectors attached")
)

// BuildFunc is the closure to build the graph.
type BuildFunc func() error

// AttachSplitterFunc is the closure to attach splitter to the stream pad.
type AttachSplitterFunc func(pad string) error

// AttachChannelFunc is the closure to attach a sink to the channel pad.
// It returns true if a collector was created for the channel.
type AttachChannelFunc func(pad string, position signal.Position) (bool, error)

// StartFunc is the closure to start data flow.
type StartFunc func() error

// DeliverFunc is the closure to deliver a fragment pulled from the sink
// to a collector.
type DeliverFunc func(sink string, f *signal.Fragment) error

// Funcs are the closures used by the handle to do transitions.
type Funcs struct {
	BuildDecoder   BuildFunc
	BuildLive      BuildFunc
	AttachSplitter AttachSplitterFunc
	AttachChannel  AttachChannelFunc
	Start          StartFunc
	Deliver        DeliverFunc
}

// Handle holds the current state of a decode request.
type Handle struct {
	state State
	// number of attached collectors
	collectors int
	err        error
	fn         Funcs
}

// NewHandle returns new handle in Unbuilt state.
func NewHandle(fn Funcs) *Handle {
	return &Handle{
		state: Unbuilt,
		fn:    fn,
	}
}

// State identifies one of the possible states of a decode request.
type State interface {
	fmt.Stringer
	transition(*Handle, Event) (State, error)
}

// states
type (
	unbuilt          struct{}
	decodeAttached   struct{}
	splitterAttached struct{}
	channelsPending  struct{}
	flowing          struct{}
	completed        struct{}
	failed           struct{}
)

// states variables
var (
	Unbuilt          unbuilt          // Unbuilt means the graph is not built yet.
	DecodeAttached   decodeAttached   // DecodeAttached means decoder waits for a stream.
	SplitterAttached splitterAttached // SplitterAttached means splitter waits for channels.
	ChannelsPending  channelsPending  // ChannelsPending means collectors are being attached.
	Flowing          flowing          // Flowing means fragments are delivered.
	Completed        completed        // Completed means stream ended.
	Failed           failed           // Failed means an error occurred.
)

// Event triggers the state change.
type Event interface {
	event()
}

type (
	// AttachDecoder builds decode graph for a source.
	AttachDecoder struct{}
	// AttachLive builds splitter atop a live input and starts flow.
	AttachLive struct{}
	// StreamDiscovered is sent when decoder exposes an audio stream.
	StreamDiscovered struct {
		Pad string
	}
	// ChannelDiscovered is sent when splitter exposes a channel.
	ChannelDiscovered struct {
		Pad      string
		Position signal.Position
	}
	// NoMorePads is sent when splitter exposed all channels.
	NoMorePads struct{}
	// Fragment is sent when a fragment is pulled from a sink. Fragment
	// is nil if it couldn't be pulled.
	Fragment struct {
		Sink string
		*signal.Fragment
	}
	// EndOfStream is sent when all data is delivered.
	EndOfStream struct{}
	// Fail is sent on any fatal error.
	Fail struct {
		Err error
	}
)

func (AttachDecoder) event()     {}
func (AttachLive) event()        {}
func (StreamDiscovered) event()  {}
func (ChannelDiscovered) event() {}
func (NoMorePads) event()        {}
func (Fragment) event()          {}
func (EndOfStream) event()       {}
func (Fail) event()              {}

// Dispatch handles the event in the current state. Any error returned by
// a transition moves the handle into Failed and is returned. Events in
// terminal states are ignored.
func (h *Handle) Dispatch(e Event) error {
	if h.Done() {
		return nil
	}
	if f, ok := e.(Fail); ok {
		h.fail(f.Err)
		return nil
	}
	s, err := h.state.transition(h, e)
	if err != nil {
		h.fail(err)
		return err
	}
	h.state = s
	return nil
}

func (h *Handle) fail(err error) {
	h.state = Failed
	h.err = err
}

// State returns current state.
func (h *Handle) State() State {
	return h.state
}

// Collectors returns number of attached collectors.
func (h *Handle) Collectors() int {
	return h.collectors
}

// Err returns the error which failed the request.
func (h *Handle) Err() error {
	return h.err
}

// Done returns true if handle reached a terminal state.
func (h *Handle) Done() bool {
	return h.state == Completed || h.state == Failed
}

// String returns current state with collectors count.
func (h *Handle) String() string {
	if h.state == ChannelsPending {
		return fmt.Sprintf("%v(%d)", h.state, h.collectors)
	}
	return h.state.String()
}

func invalid(s State, e Event) error {
	return fmt.Errorf("%w: %T in %v", ErrInvalidState, e, s)
}

func (unbuilt) String() string { return "unbuilt" }

func (s unbuilt) transition(h *Handle, e Event) (State, error) {
	switch e.(type) {
	case AttachDecoder:
		if err := h.fn.BuildDecoder(); err != nil {
			return s, err
		}
		return DecodeAttached, nil
	case AttachLive:
		if err := h.fn.BuildLive(); err != nil {
			return s, err
		}
		return SplitterAttached, nil
	}
	return s, invalid(s, e)
}

func (decodeAttached) String() string { return "decode-attached" }

func (s decodeAttached) transition(h *Handle, e Event) (State, error) {
	switch ev := e.(type) {
	case StreamDiscovered:
		if err := h.fn.AttachSplitter(ev.Pad); err != nil {
			return s, err
		}
		return SplitterAttached, nil
	}
	return s, invalid(s, e)
}

func (splitterAttached) String() string { return "splitter-attached" }

func (s splitterAttached) transition(h *Handle, e Event) (State, error) {
	switch ev := e.(type) {
	case StreamDiscovered:
		// only the first stream is consumed
		return s, nil
	case ChannelDiscovered:
		if err := h.attachChannel(ev); err != nil {
			return s, err
		}
		return ChannelsPending, nil
	case NoMorePads:
		return s, ErrNoChannels
	}
	return s, invalid(s, e)
}

func (channelsPending) String() string { return "channels-pending" }

func (s channelsPending) transition(h *Handle, e Event) (State, error) {
	switch ev := e.(type) {
	case StreamDiscovered:
		return s, nil
	case ChannelDiscovered:
		return s, h.attachChannel(ev)
	case NoMorePads:
		if h.collectors == 0 {
			return s, ErrNoChannels
		}
		if err := h.fn.Start(); err != nil {
			return s, err
		}
		return Flowing, nil
	}
	return s, invalid(s, e)
}

func (flowing) String() string { return "flowing" }

func (s flowing) transition(h *Handle, e Event) (State, error) {
	switch ev := e.(type) {
	case StreamDiscovered:
		return s, nil
	case Fragment:
		return s, h.fn.Deliver(ev.Sink, ev.Fragment)
	case EndOfStream:
		return Completed, nil
	}
	return s, invalid(s, e)
}

func (completed) String() string { return "completed" }

func (s completed) transition(h *Handle, e Event) (State, error) {
	return s, nil
}

func (failed) String() string { return "failed" }

func (s failed) transition(h *Handle, e Event) (State, error) {
	return s, nil
}

func (h *Handle) attachChannel(e ChannelDiscovered) error {
	created, err := h.fn.AttachChannel(e.Pad, e.Position)
	if err != nil {
		return err
	}
	if created {
		h.collectors++
	}
	return nil
}
