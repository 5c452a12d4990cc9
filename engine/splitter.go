package engine

import (
	"errors"
	"fmt"
	"math"

	"github.com/chewxy/math32"
	"github.com/dh1tw/gosamplerate"

	"github.com/pipelined/busreader/signal"
)

// minResampleBuffer is the smallest libsamplerate buffer in samples.
const minResampleBuffer = 65536

var (
	errRenegotiation = errors.New("caps renegotiation is not supported")
	errNoChannels    = errors.New("stream has no channels")
)

// gain applied to center and surround channels when folding them into
// front-left and front-right.
var foldGain = math32.Sqrt(0.5)

// splitter converts channel layout, resamples to the target rate and
// deinterleaves the stream into channel pads.
type splitter struct {
	id     string
	g      *Graph
	target signal.Caps

	in       signal.Caps
	out      signal.Caps
	channels []*pad
	seq      []int64

	resampler *gosamplerate.Src
	ratio     float64
	pending   []float32
}

// negotiate fixes output caps, exposes channel pads and blocks until all
// of them are linked.
func (s *splitter) negotiate(in signal.Caps) error {
	if s.channels != nil {
		return errRenegotiation
	}
	if in.Channels <= 0 {
		return errNoChannels
	}
	s.in = in
	s.out = s.outputCaps(in)
	if in.Channels > s.out.Channels {
		s.g.post(Warning{
			Element: s.id,
			Code:    CodeDownmix,
			Err:     fmt.Errorf("%d channels folded into %d", in.Channels, s.out.Channels),
			Debug:   in.String(),
		})
	}
	if s.out.SampleRate != in.SampleRate {
		s.ratio = float64(s.out.SampleRate) / float64(in.SampleRate)
		size := s.g.bufferSize * s.out.Channels * (int(math.Ceil(s.ratio)) + 1)
		if size < minResampleBuffer {
			size = minResampleBuffer
		}
		src, err := gosamplerate.New(gosamplerate.SRC_SINC_FASTEST, s.out.Channels, size)
		if err != nil {
			return fmt.Errorf("resampler: %w", err)
		}
		s.resampler = &src
	}

	s.channels = make([]*pad, s.out.Channels)
	s.seq = make([]int64, s.out.Channels)
	for i, position := range s.out.Positions {
		caps := signal.Caps{
			SampleRate: s.out.SampleRate,
			Channels:   1,
			Positions:  []signal.Position{position},
		}
		p := s.g.addPad(s.id, srcPad, channelPad, caps, nil, nil)
		s.channels[i] = p
		s.g.post(ChannelPadAdded{
			Element:  s.id,
			Pad:      p.id,
			Position: position,
			Caps:     caps,
		})
	}
	s.g.post(NoMorePads{Element: s.id})

	for _, p := range s.channels {
		if !s.g.waitLinked(p) {
			return errFlushing
		}
	}
	return nil
}

// outputCaps applies target caps to the input. Mono input stays mono,
// inputs with more channels than the target are folded.
func (s *splitter) outputCaps(in signal.Caps) signal.Caps {
	out := signal.Caps{
		SampleRate: in.SampleRate,
		Channels:   in.Channels,
		Positions:  in.Positions,
	}
	if s.target.SampleRate > 0 {
		out.SampleRate = s.target.SampleRate
	}
	if s.target.Channels > 0 && s.target.Channels < in.Channels {
		out.Channels = s.target.Channels
		switch out.Channels {
		case 1, 2:
			out.Positions = signal.Layout(out.Channels)
		default:
			out.Positions = in.Positions[:out.Channels]
		}
	}
	if len(out.Positions) != out.Channels {
		out.Positions = signal.Layout(out.Channels)
	}
	return out
}

func (s *splitter) chain(data []float32) error {
	converted := s.convert(data)
	if s.resampler == nil {
		return s.deliver(converted)
	}
	// one buffer is held back to mark the last one as end of input
	if s.pending != nil {
		out, err := s.resampler.Process(s.pending, s.ratio, false)
		if err != nil {
			return fmt.Errorf("resample: %w", err)
		}
		if err := s.deliver(out); err != nil {
			return err
		}
	}
	s.pending = append(s.pending[:0], converted...)
	return nil
}

func (s *splitter) eos() error {
	if s.resampler == nil || len(s.pending) == 0 {
		return nil
	}
	out, err := s.resampler.Process(s.pending, s.ratio, true)
	if err != nil {
		return fmt.Errorf("resample: %w", err)
	}
	s.pending = nil
	return s.deliver(out)
}

// convert maps input channels to output channels.
func (s *splitter) convert(data []float32) []float32 {
	inCh, outCh := s.in.Channels, s.out.Channels
	if inCh == outCh {
		return data
	}
	frames := len(data) / inCh
	out := make([]float32, frames*outCh)
	switch outCh {
	case 1:
		for i := 0; i < frames; i++ {
			var sum float32
			for j := 0; j < inCh; j++ {
				sum += data[i*inCh+j]
			}
			out[i] = sum / float32(inCh)
		}
	case 2:
		for i := 0; i < frames; i++ {
			var l, r float32
			for j, position := range s.in.Positions {
				v := data[i*inCh+j]
				switch position {
				case signal.FrontLeft:
					l += v
				case signal.FrontRight:
					r += v
				case signal.FrontCenter:
					l += v * foldGain
					r += v * foldGain
				case signal.RearLeft, signal.SideLeft:
					l += v * foldGain
				case signal.RearRight, signal.SideRight:
					r += v * foldGain
				case signal.LFE:
				default:
					l += v * 0.5
					r += v * 0.5
				}
			}
			out[i*2] = clamp(l)
			out[i*2+1] = clamp(r)
		}
	default:
		for i := 0; i < frames; i++ {
			copy(out[i*outCh:(i+1)*outCh], data[i*inCh:i*inCh+outCh])
		}
	}
	return out
}

func clamp(v float32) float32 {
	return math32.Max(-1, math32.Min(1, v))
}

// deliver deinterleaves data and renders fragments into channel peers.
func (s *splitter) deliver(data []float32) error {
	planar := signal.Deinterleave(data, s.out.Channels)
	for i, samples := range planar {
		p := s.channels[i]
		f := &signal.Fragment{
			Position:   p.caps.Positions[0],
			Samples:    samples,
			SampleRate: s.out.SampleRate,
			Seq:        s.seq[i],
		}
		s.seq[i]++
		if err := p.peer.channel.render(f); err != nil {
			return err
		}
	}
	return nil
}

func (s *splitter) close() error {
	if s.resampler == nil {
		return nil
	}
	err := gosamplerate.Delete(*s.resampler)
	s.resampler = nil
	return err
}
