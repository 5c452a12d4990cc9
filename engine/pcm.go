package engine

import (
	"errors"
	"io"

	"github.com/go-audio/aiff"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/pipelined/busreader/signal"
)

var (
	errInvalidFile  = errors.New("invalid file")
	errNotPCM       = errors.New("only integer PCM is supported")
	errNoFormatInfo = errors.New("missing format info")
)

// unsignedOffset is the zero level of unsigned 8 bit samples.
const unsignedOffset = 128

// wave format tags accepted by the WAV decoder
const (
	wavFormatPCM        = 1
	wavFormatExtensible = 0xFFFE
)

// WAV decodes RIFF WAVE files with go-audio/wav.
var WAV = Format{
	Name: "wav",
	Match: func(h []byte) bool {
		return len(h) >= 12 && hasPrefix(h, "RIFF") && string(h[8:12]) == "WAVE"
	},
	Open: openWAV,
}

// AIFF decodes AIFF and AIFF-C files with go-audio/aiff.
var AIFF = Format{
	Name: "aiff",
	Match: func(h []byte) bool {
		return len(h) >= 12 && hasPrefix(h, "FORM") && (string(h[8:12]) == "AIFF" || string(h[8:12]) == "AIFC")
	},
	Open: openAIFF,
}

// pcmDecoder is what go-audio decoders have in common.
type pcmDecoder interface {
	PCMBuffer(*audio.IntBuffer) (int, error)
}

// pcmStream converts int PCM into float32.
type pcmStream struct {
	dec        pcmDecoder
	sampleRate int
	channels   int
	bitDepth   signal.BitDepth
	// 8 bit WAV samples are unsigned with silence at 128
	unsigned   bool
	buf        *audio.IntBuffer
}

func openWAV(rs io.ReadSeeker) (Stream, error) {
	d := wav.NewDecoder(rs)
	if !d.IsValidFile() {
		return nil, errInvalidFile
	}
	if d.WavAudioFormat != wavFormatPCM && d.WavAudioFormat != wavFormatExtensible {
		return nil, errNotPCM
	}
	if err := d.FwdToPCM(); err != nil {
		return nil, err
	}
	format := d.Format()
	if format == nil {
		return nil, errNoFormatInfo
	}
	s := newPCMStream(d, format, int(d.BitDepth))
	s.unsigned = d.BitDepth == 8
	return s, nil
}

func openAIFF(rs io.ReadSeeker) (Stream, error) {
	d := aiff.NewDecoder(rs)
	if !d.IsValidFile() {
		return nil, errInvalidFile
	}
	d.ReadInfo()
	if err := d.Err(); err != nil {
		return nil, err
	}
	format := d.Format()
	if format == nil {
		return nil, errNoFormatInfo
	}
	return newPCMStream(d, format, int(d.BitDepth)), nil
}

func newPCMStream(dec pcmDecoder, format *audio.Format, bitDepth int) *pcmStream {
	return &pcmStream{
		dec:        dec,
		sampleRate: format.SampleRate,
		channels:   format.NumChannels,
		bitDepth:   signal.BitDepth(bitDepth),
		buf: &audio.IntBuffer{
			Format:         format,
			SourceBitDepth: bitDepth,
		},
	}
}

func (s *pcmStream) SampleRate() int { return s.sampleRate }

func (s *pcmStream) Channels() int { return s.channels }

func (s *pcmStream) Close() error { return nil }

func (s *pcmStream) Read(dst []float32) (int, error) {
	size := len(dst) - len(dst)%s.channels
	if size == 0 {
		return 0, nil
	}
	if cap(s.buf.Data) < size {
		s.buf.Data = make([]int, size)
	}
	s.buf.Data = s.buf.Data[:size]
	n, err := s.dec.PCMBuffer(s.buf)
	if n == 0 {
		if err != nil && err != io.EOF {
			return 0, err
		}
		return 0, io.EOF
	}
	n -= n % s.channels
	if s.unsigned {
		for i, v := range s.buf.Data[:n] {
			s.buf.Data[i] = v - unsignedOffset
		}
	}
	ints := signal.InterInt{
		Data:        s.buf.Data[:n],
		NumChannels: s.channels,
		BitDepth:    s.bitDepth,
	}
	ints.AsFloat32(dst[:n])
	if err == io.EOF {
		err = nil
	}
	return n, err
}
