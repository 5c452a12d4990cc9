package busreader

import (
	"errors"
	"fmt"

	"github.com/pipelined/busreader/engine"
	"github.com/pipelined/busreader/internal/state"
)

var (
	// ErrSourceOpen is returned when source can't be opened or demuxed.
	ErrSourceOpen = errors.New("source open failure")
	// ErrNoAudioStream is returned when source has no decodable audio.
	ErrNoAudioStream = errors.New("no audio stream")
	// ErrEngine is returned on fatal engine conditions.
	ErrEngine = errors.New("engine error")
	// ErrPadLink is returned when stage can't be linked to the next one.
	ErrPadLink = errors.New("pad link failure")
	// ErrFragmentDelivery is returned when single fragment can't be
	// retrieved. It's never fatal.
	ErrFragmentDelivery = errors.New("fragment delivery failure")
	// ErrNoChannels is returned when splitter reported no more pads
	// before any collector was attached.
	ErrNoChannels = state.ErrNoChannels
	// ErrInvalidState is returned when the engine posts a message the
	// request can't handle in its current state.
	ErrInvalidState = state.ErrInvalidState
	// ErrSingleUse is returned when reader is used more than once.
	ErrSingleUse = errors.New("reader is single use")
	// ErrInvalidSampleRate is returned for non-positive sample rates.
	ErrInvalidSampleRate = errors.New("invalid sample rate")
)

// EngineError is a fatal condition reported by the engine. Kind is one
// of the package sentinel errors.
type EngineError struct {
	Kind    error
	Element string
	Code    engine.ErrorCode
	Err     error
	Debug   string
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("%v: %v: %v", e.Kind, e.Code, e.Err)
}

// Is reports whether target is the kind of this error.
func (e *EngineError) Is(target error) bool {
	return e.Kind == target
}

// Unwrap returns engine error.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// engineError classifies engine error message.
func engineError(m engine.Error) error {
	kind := ErrEngine
	switch m.Code {
	case engine.CodeSourceOpen:
		kind = ErrSourceOpen
	case engine.CodeTypeNotFound:
		kind = ErrNoAudioStream
	case engine.CodeNotLinked:
		kind = ErrPadLink
	}
	return &EngineError{
		Kind:    kind,
		Element: m.Element,
		Code:    m.Code,
		Err:     m.Err,
		Debug:   m.Debug,
	}
}
