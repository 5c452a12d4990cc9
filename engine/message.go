package engine

import (
	"fmt"

	"github.com/pipelined/busreader/signal"
)

// Message is posted on the graph bus. Src returns the id of the element
// that posted it.
type Message interface {
	Src() string
}

// StreamKind is a kind of elementary stream found by the decode bin.
type StreamKind int

const (
	// KindOther is a stream the engine can't decode into raw audio.
	KindOther StreamKind = iota
	// KindAudio is a raw audio stream.
	KindAudio
)

func (k StreamKind) String() string {
	if k == KindAudio {
		return "audio"
	}
	return "other"
}

// ErrorCode classifies errors and warnings posted on the bus.
type ErrorCode int

// Codes for errors and warnings.
const (
	CodeFailed ErrorCode = iota
	CodeSourceOpen
	CodeTypeNotFound
	CodeDecode
	CodeNegotiation
	CodeNotLinked
	CodeDownmix
)

var codeNames = [...]string{
	CodeFailed:       "failed",
	CodeSourceOpen:   "source-open",
	CodeTypeNotFound: "type-not-found",
	CodeDecode:       "decode",
	CodeNegotiation:  "negotiation",
	CodeNotLinked:    "not-linked",
	CodeDownmix:      "downmix",
}

func (c ErrorCode) String() string {
	if c < 0 || int(c) >= len(codeNames) {
		return fmt.Sprintf("code(%d)", int(c))
	}
	return codeNames[c]
}

// Status of a streaming goroutine.
type Status int

const (
	// StatusEnter is posted when streaming goroutine starts.
	StatusEnter Status = iota
	// StatusLeave is posted when streaming goroutine is done.
	StatusLeave
)

func (s Status) String() string {
	if s == StatusEnter {
		return "enter"
	}
	return "leave"
}

type (
	// StreamPadAdded is posted when decode bin exposes a decoded stream.
	StreamPadAdded struct {
		Element string
		Pad     string
		Kind    StreamKind
		Caps    signal.Caps
		Format  string
	}

	// ChannelPadAdded is posted when splitter exposes a channel.
	ChannelPadAdded struct {
		Element  string
		Pad      string
		Position signal.Position
		Caps     signal.Caps
	}

	// NoMorePads is posted when element won't expose any more pads.
	NoMorePads struct {
		Element string
	}

	// Sample carries a single fragment pulled by an app sink. Fragment
	// can be nil if the sink failed to pull it.
	Sample struct {
		Element  string
		Fragment *signal.Fragment
	}

	// EOS is posted when all data reached the sinks.
	EOS struct {
		Element string
	}

	// Error is a fatal engine condition.
	Error struct {
		Element string
		Code    ErrorCode
		Err     error
		Debug   string
	}

	// Warning is a non-fatal engine condition.
	Warning struct {
		Element string
		Code    ErrorCode
		Err     error
		Debug   string
	}

	// StateChanged is posted when graph changes its state.
	StateChanged struct {
		Element string
		Old     State
		New     State
	}

	// StreamStatus is posted when streaming goroutine enters or leaves.
	StreamStatus struct {
		Element string
		Status  Status
	}
)

// Src implements Message.
func (m StreamPadAdded) Src() string { return m.Element }

// Src implements Message.
func (m ChannelPadAdded) Src() string { return m.Element }

// Src implements Message.
func (m NoMorePads) Src() string { return m.Element }

// Src implements Message.
func (m Sample) Src() string { return m.Element }

// Src implements Message.
func (m EOS) Src() string { return m.Element }

// Src implements Message.
func (m Error) Src() string { return m.Element }

// Src implements Message.
func (m Warning) Src() string { return m.Element }

// Src implements Message.
func (m StateChanged) Src() string { return m.Element }

// Src implements Message.
func (m StreamStatus) Src() string { return m.Element }

func (m Error) Error() string {
	return fmt.Sprintf("%s: %v", m.Code, m.Err)
}
