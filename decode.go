package busreader

import (
	"fmt"

	"github.com/pipelined/busreader/engine"
)

// decodeStage wraps the engine decode bin.
type decodeStage struct {
	element string
}

func newDecodeStage(g Graph, src engine.Source) (*decodeStage, error) {
	element, err := g.AddDecodeBin(src)
	if err != nil {
		return nil, fmt.Errorf("%w: decodebin: %v", ErrEngine, err)
	}
	return &decodeStage{element: element}, nil
}

// discovered returns stream pad if message carries an audio stream of
// this decoder.
func (d *decodeStage) discovered(m engine.StreamPadAdded) (string, bool) {
	if m.Element != d.element || m.Kind != engine.KindAudio {
		return "", false
	}
	return m.Pad, true
}
