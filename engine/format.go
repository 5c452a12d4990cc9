package engine

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"sync"
)

// headerSize is the number of bytes used to sniff the format.
const headerSize = 12

// Stream is a decoded audio stream. Read fills dst with interleaved
// float32 samples, always a whole number of frames, and returns io.EOF
// when stream is over.
type Stream interface {
	SampleRate() int
	Channels() int
	Read(dst []float32) (int, error)
	Close() error
}

// Format describes a container format the decode bin can open.
type Format struct {
	Name  string
	Match func(header []byte) bool
	Open  func(rs io.ReadSeeker) (Stream, error)
}

// Registry is a set of formats. It's safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	formats map[string]Format
}

// NewRegistry returns registry with provided formats.
func NewRegistry(formats ...Format) *Registry {
	r := &Registry{
		formats: make(map[string]Format),
	}
	for _, f := range formats {
		r.Register(f)
	}
	return r
}

// DefaultRegistry returns registry with all built-in formats.
func DefaultRegistry() *Registry {
	return NewRegistry(WAV, AIFF, MP3, Vorbis)
}

// Register adds format to the registry. Format with the same name is
// replaced.
func (r *Registry) Register(f Format) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.formats[f.Name] = f
}

// Lookup returns the format which matches header.
func (r *Registry) Lookup(header []byte) (Format, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, name := range r.names() {
		if f := r.formats[name]; f.Match(header) {
			return f, true
		}
	}
	return Format{}, false
}

// Formats returns sorted names of registered formats.
func (r *Registry) Formats() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.names()
}

func (r *Registry) names() []string {
	names := make([]string, 0, len(r.formats))
	for name := range r.formats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// open sniffs the header and opens a stream.
func (r *Registry) open(rs io.ReadSeeker) (string, Stream, error) {
	header := make([]byte, headerSize)
	n, err := io.ReadFull(rs, header)
	if err != nil && err != io.ErrUnexpectedEOF {
		return "", nil, fmt.Errorf("%w: %v", ErrTypeNotFound, err)
	}
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrTypeNotFound, err)
	}
	f, ok := r.Lookup(header[:n])
	if !ok {
		return "", nil, fmt.Errorf("%w: unknown format", ErrTypeNotFound)
	}
	s, err := f.Open(rs)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %s: %v", ErrTypeNotFound, f.Name, err)
	}
	if s.Channels() <= 0 || s.SampleRate() <= 0 {
		s.Close()
		return "", nil, fmt.Errorf("%w: %s: no audio", ErrTypeNotFound, f.Name)
	}
	return f.Name, s, nil
}

func hasPrefix(header []byte, prefix string) bool {
	return bytes.HasPrefix(header, []byte(prefix))
}
