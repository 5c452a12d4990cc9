package busreader

import (
	"github.com/pipelined/busreader/signal"
)

// Collector accumulates fragments of a single channel in arrival order.
// It's mutated only by the reader's event loop and is read-only after
// CreateBus returned.
type Collector struct {
	position  signal.Position
	sink      string
	fragments []*signal.Fragment
	frames    int
	skipped   int
}

func newCollector(position signal.Position, sink string) *Collector {
	return &Collector{
		position: position,
		sink:     sink,
	}
}

// append pushes fragment to the back. Nil fragment is skipped and
// ErrFragmentDelivery is returned.
func (c *Collector) append(f *signal.Fragment) error {
	if f == nil {
		c.skipped++
		return ErrFragmentDelivery
	}
	c.fragments = append(c.fragments, f)
	c.frames += f.Frames()
	return nil
}

// Position returns channel position of the collector.
func (c *Collector) Position() signal.Position {
	return c.position
}

// Fragments returns collected fragments in arrival order.
func (c *Collector) Fragments() []*signal.Fragment {
	return append([]*signal.Fragment(nil), c.fragments...)
}

// Len returns number of collected fragments.
func (c *Collector) Len() int {
	return len(c.fragments)
}

// Frames returns total number of collected frames.
func (c *Collector) Frames() int {
	return c.frames
}

// Skipped returns number of skipped deliveries.
func (c *Collector) Skipped() int {
	return c.skipped
}

// Samples returns all collected samples as a single slice.
func (c *Collector) Samples() []float32 {
	samples := make([]float32, 0, c.frames)
	for _, f := range c.fragments {
		samples = append(samples, f.Samples...)
	}
	return samples
}
