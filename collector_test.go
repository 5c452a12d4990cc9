package busreader_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pipelined/busreader"
	"github.com/pipelined/busreader/internal/mock"
	"github.com/pipelined/busreader/signal"
)

func TestCollector(t *testing.T) {
	g := mock.New()
	g.Fragments = 3
	g.Frames = 100
	g.NilFragment = true
	r := busreader.NewMemoryReader([]byte{}, busreader.WithGraph(graph(g)))
	res, err := r.CreateBus(ctx(t), 44100, false)
	assert.NoError(t, err)

	fl := res.FrontLeft()
	assert.Equal(t, signal.FrontLeft, fl.Position())
	assert.Equal(t, 2, fl.Len())
	assert.Equal(t, 200, fl.Frames())
	assert.Equal(t, 1, fl.Skipped())
	assert.Len(t, fl.Samples(), 200)

	fr := res.FrontRight()
	assert.Equal(t, 3, fr.Len())
	assert.Equal(t, 300, fr.Frames())
	assert.Equal(t, 0, fr.Skipped())
	// arrival order
	for i, f := range fr.Fragments() {
		assert.Equal(t, int64(i), f.Seq)
	}
	assert.Equal(t, 200, res.Frames)
}

func TestCollectorFragments(t *testing.T) {
	g := mock.New()
	g.Fragments = 1
	r := busreader.NewMemoryReader([]byte{}, busreader.WithGraph(graph(g)))
	res, err := r.CreateBus(ctx(t), 44100, false)
	assert.NoError(t, err)

	c := res.FrontLeft()
	assert.Equal(t, res.Frames, c.Frames())
	// fragments are returned as a copy of the sequence
	fragments := c.Fragments()
	fragments[0] = nil
	assert.NotNil(t, c.Fragments()[0])
	assert.Equal(t, res.Frames, c.Frames())
}
