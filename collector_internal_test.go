package busreader

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pipelined/busreader/signal"
)

func TestCollectorAppend(t *testing.T) {
	c := newCollector(signal.FrontLeft, "appsink")
	assert.Equal(t, ErrFragmentDelivery, c.append(nil))
	assert.NoError(t, c.append(&signal.Fragment{Position: signal.FrontLeft, Samples: make([]float32, 10)}))
	assert.NoError(t, c.append(&signal.Fragment{Position: signal.FrontLeft, Samples: make([]float32, 5), Seq: 1}))

	assert.Equal(t, 2, c.Len())
	assert.Equal(t, 15, c.Frames())
	assert.Equal(t, 1, c.Skipped())
	assert.Len(t, c.Samples(), 15)
	for i, f := range c.Fragments() {
		assert.Equal(t, int64(i), f.Seq)
	}
}

func TestDeliver(t *testing.T) {
	r := newReader()
	fl := newCollector(signal.FrontLeft, "appsink0")
	r.sinks[fl.sink] = fl

	tests := []struct {
		description string
		sink        string
		fragment    *signal.Fragment
		frames      int
		skipped     int
	}{
		{
			description: "delivered",
			sink:        "appsink0",
			fragment:    &signal.Fragment{Position: signal.FrontLeft, Samples: make([]float32, 10)},
			frames:      10,
		},
		{
			description: "unknown sink",
			sink:        "fakesink0",
			fragment:    &signal.Fragment{Position: signal.FrontLeft, Samples: make([]float32, 10)},
			frames:      10,
		},
		{
			description: "position mismatch",
			sink:        "appsink0",
			fragment:    &signal.Fragment{Position: signal.FrontRight, Samples: make([]float32, 10)},
			frames:      10,
		},
		{
			description: "nil fragment",
			sink:        "appsink0",
			frames:      10,
			skipped:     1,
		},
	}
	for _, test := range tests {
		assert.NoError(t, r.deliver(test.sink, test.fragment), test.description)
		assert.Equal(t, test.frames, fl.Frames(), test.description)
		assert.Equal(t, test.skipped, fl.Skipped(), test.description)
	}
}
