package engine

import (
	"encoding/binary"
	"io"

	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
)

// mp3 decoder always produces 16 bit stereo.
const (
	mp3Channels       = 2
	mp3BytesPerSample = 2
)

// MP3 decodes MPEG-1/2 layer III streams with hajimehoshi/go-mp3.
var MP3 = Format{
	Name: "mp3",
	Match: func(h []byte) bool {
		if hasPrefix(h, "ID3") {
			return true
		}
		// frame sync
		return len(h) >= 2 && h[0] == 0xFF && h[1]&0xE0 == 0xE0
	},
	Open: openMP3,
}

// Vorbis decodes Ogg Vorbis streams with jfreymuth/oggvorbis.
var Vorbis = Format{
	Name: "vorbis",
	Match: func(h []byte) bool {
		return hasPrefix(h, "OggS")
	},
	Open: openVorbis,
}

type mp3Stream struct {
	dec *mp3.Decoder
	buf []byte
}

func openMP3(rs io.ReadSeeker) (Stream, error) {
	d, err := mp3.NewDecoder(rs)
	if err != nil {
		return nil, err
	}
	return &mp3Stream{dec: d}, nil
}

func (s *mp3Stream) SampleRate() int { return s.dec.SampleRate() }

func (s *mp3Stream) Channels() int { return mp3Channels }

func (s *mp3Stream) Close() error { return nil }

func (s *mp3Stream) Read(dst []float32) (int, error) {
	samples := len(dst) - len(dst)%mp3Channels
	if samples == 0 {
		return 0, nil
	}
	size := samples * mp3BytesPerSample
	if cap(s.buf) < size {
		s.buf = make([]byte, size)
	}
	s.buf = s.buf[:size]
	n, err := io.ReadFull(s.dec, s.buf)
	if err == io.ErrUnexpectedEOF {
		err = nil
	}
	// whole frames only
	n -= n % (mp3Channels * mp3BytesPerSample)
	for i := 0; i < n/mp3BytesPerSample; i++ {
		v := int16(binary.LittleEndian.Uint16(s.buf[i*2:]))
		dst[i] = float32(v) / 32768
	}
	if n == 0 && err == nil {
		err = io.EOF
	}
	return n / mp3BytesPerSample, err
}

type vorbisStream struct {
	dec *oggvorbis.Reader
}

func openVorbis(rs io.ReadSeeker) (Stream, error) {
	d, err := oggvorbis.NewReader(rs)
	if err != nil {
		return nil, err
	}
	return &vorbisStream{dec: d}, nil
}

func (s *vorbisStream) SampleRate() int { return s.dec.SampleRate() }

func (s *vorbisStream) Channels() int { return s.dec.Channels() }

func (s *vorbisStream) Close() error { return nil }

// Read returns number of values decoded, which is always a whole number
// of frames.
func (s *vorbisStream) Read(dst []float32) (int, error) {
	size := len(dst) - len(dst)%s.dec.Channels()
	if size == 0 {
		return 0, nil
	}
	return s.dec.Read(dst[:size])
}
