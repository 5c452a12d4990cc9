package engine

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// Source is an encoded audio input: either a file path or an in-memory
// blob. Memory sources keep a reference to the data, it must not be
// modified while the graph is running.
type Source struct {
	path string
	data []byte
}

// File returns a source that reads a file.
func File(path string) Source {
	return Source{path: path}
}

// Memory returns a source that reads a byte slice.
func Memory(data []byte) Source {
	return Source{data: data}
}

// String returns source description for logs.
func (s Source) String() string {
	if s.data != nil {
		return fmt.Sprintf("memory(%d bytes)", len(s.data))
	}
	return s.path
}

func (s Source) open() (io.ReadSeekCloser, error) {
	if s.data != nil {
		return nopCloser{bytes.NewReader(s.data)}, nil
	}
	if s.path == "" {
		return nil, fmt.Errorf("empty source")
	}
	return os.Open(s.path)
}

type nopCloser struct {
	io.ReadSeeker
}

func (nopCloser) Close() error { return nil }

// Capture is a live input. Read fills dst with interleaved samples and
// returns number of samples read. The graph owns the capture after it's
// added and closes it on teardown.
type Capture interface {
	SampleRate() int
	Channels() int
	Start() error
	Read(dst []float32) (int, error)
	Stop() error
	Close() error
}
