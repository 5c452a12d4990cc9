// Package portaudio provides live capture from a local sound card. It's
// used as a live source of the decode engine.
package portaudio

import (
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	pa "github.com/gordonklaus/portaudio"

	"github.com/pipelined/busreader/log"
)

// Default capture parameters.
const (
	DefaultSampleRate      = 44100
	DefaultChannels        = 2
	DefaultFramesPerBuffer = 1024
	DefaultLatency         = 10 * time.Millisecond
	// Default is the name of the default host api and device.
	Default = "default"

	// number of buffers queued between callback and reader
	queueSize = 64
)

var (
	// ErrUnknownHostAPI is returned when host api name is not known.
	ErrUnknownHostAPI = errors.New("unknown host api")
	// ErrUnknownDevice is returned when device is not found.
	ErrUnknownDevice = errors.New("unknown audio device")
	// ErrNoInput is returned when device has no input channels.
	ErrNoInput = errors.New("device has no input channels")
)

var hostAPIs = map[string]pa.HostApiType{
	"indevelopment":   pa.InDevelopment,
	"directsound":     pa.DirectSound,
	"mme":             pa.MME,
	"asio":            pa.ASIO,
	"soundmanager":    pa.SoundManager,
	"coreaudio":       pa.CoreAudio,
	"oss":             pa.OSS,
	"alsa":            pa.ALSA,
	"al":              pa.AL,
	"beos":            pa.BeOS,
	"wdmks":           pa.WDMkS,
	"jack":            pa.JACK,
	"wasapi":          pa.WASAPI,
	"audiosciencehpi": pa.AudioScienceHPI,
}

// Options contains parameters of the capture.
type Options struct {
	HostAPI         string
	Device          string
	Channels        int
	SampleRate      int
	FramesPerBuffer int
	Latency         time.Duration
	Logger          log.Logger
}

// Option is a functional option of the capture.
type Option func(*Options)

// WithHostAPI enforces the usage of a particular host api.
func WithHostAPI(name string) Option {
	return func(o *Options) {
		o.HostAPI = name
	}
}

// WithDevice sets the name of the input device.
func WithDevice(name string) Option {
	return func(o *Options) {
		if name != "" {
			o.Device = name
		}
	}
}

// WithChannels sets number of captured channels.
func WithChannels(n int) Option {
	return func(o *Options) {
		o.Channels = n
	}
}

// WithSampleRate sets device sample rate.
func WithSampleRate(rate int) Option {
	return func(o *Options) {
		o.SampleRate = rate
	}
}

// WithFramesPerBuffer sets number of frames provided per callback.
func WithFramesPerBuffer(n int) Option {
	return func(o *Options) {
		o.FramesPerBuffer = n
	}
}

// WithLatency sets the suggested input latency.
func WithLatency(d time.Duration) Option {
	return func(o *Options) {
		o.Latency = d
	}
}

// WithLogger sets logger of the capture.
func WithLogger(l log.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

// Capture records interleaved float32 audio from an input device.
type Capture struct {
	opts   Options
	device *pa.DeviceInfo
	stream *pa.Stream

	data    chan []float32
	pending []float32

	mu        sync.Mutex
	stop      chan struct{}
	stopped   bool
	closed    bool
	overflows int64
}

// NewCapture initializes portaudio and opens input stream. The stream is
// not started until Start is called.
func NewCapture(options ...Option) (*Capture, error) {
	c := &Capture{
		opts: Options{
			HostAPI:         Default,
			Device:          Default,
			Channels:        DefaultChannels,
			SampleRate:      DefaultSampleRate,
			FramesPerBuffer: DefaultFramesPerBuffer,
			Latency:         DefaultLatency,
			Logger:          log.Silent,
		},
		data: make(chan []float32, queueSize),
		stop: make(chan struct{}),
	}
	for _, option := range options {
		option(&c.opts)
	}

	if err := pa.Initialize(); err != nil {
		return nil, err
	}
	device, err := inputDevice(c.opts.HostAPI, c.opts.Device)
	if err != nil {
		pa.Terminate()
		return nil, err
	}
	if device.MaxInputChannels < c.opts.Channels {
		pa.Terminate()
		return nil, fmt.Errorf("%w: %s supports %d channels", ErrNoInput, device.Name, device.MaxInputChannels)
	}
	c.device = device

	params := pa.StreamParameters{
		Input: pa.StreamDeviceParameters{
			Device:   device,
			Channels: c.opts.Channels,
			Latency:  c.opts.Latency,
		},
		SampleRate:      float64(c.opts.SampleRate),
		FramesPerBuffer: c.opts.FramesPerBuffer,
	}
	c.stream, err = pa.OpenStream(params, c.callback)
	if err != nil {
		pa.Terminate()
		return nil, fmt.Errorf("unable to open input stream on device %s: %w", device.Name, err)
	}
	c.opts.Logger.Debug(fmt.Sprintf("input device: %s, host api: %s", device.Name, device.HostApi.Name))
	return c, nil
}

// callback is executed by portaudio each time new data is available.
func (c *Capture) callback(in []float32, _ pa.StreamCallbackTimeInfo, flags pa.StreamCallbackFlags) {
	if flags&pa.InputOverflow != 0 {
		atomic.AddInt64(&c.overflows, 1)
	}
	// portaudio reuses the slice
	buf := make([]float32, len(in))
	copy(buf, in)
	select {
	case c.data <- buf:
	default:
		atomic.AddInt64(&c.overflows, 1)
	}
}

// SampleRate of the capture.
func (c *Capture) SampleRate() int {
	return c.opts.SampleRate
}

// Channels of the capture.
func (c *Capture) Channels() int {
	return c.opts.Channels
}

// Device returns the name of the input device.
func (c *Capture) Device() string {
	return c.device.Name
}

// Overflows returns number of buffers lost because reader was too slow.
func (c *Capture) Overflows() int64 {
	return atomic.LoadInt64(&c.overflows)
}

// Start starts the input stream.
func (c *Capture) Start() error {
	return c.stream.Start()
}

// Read blocks until captured data is available. It returns io.EOF after
// capture is stopped.
func (c *Capture) Read(dst []float32) (int, error) {
	if len(c.pending) == 0 {
		select {
		case buf := <-c.data:
			c.pending = buf
		case <-c.stop:
			return 0, io.EOF
		}
	}
	n := copy(dst, c.pending)
	c.pending = c.pending[n:]
	return n, nil
}

// Stop stops the input stream and releases blocked Read.
func (c *Capture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return nil
	}
	c.stopped = true
	close(c.stop)
	if n := c.Overflows(); n > 0 {
		c.opts.Logger.Warn(fmt.Sprintf("%s: %d input buffers lost", c.device.Name, n))
	}
	return c.stream.Stop()
}

// Close closes the stream and terminates portaudio.
func (c *Capture) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	if err := c.Stop(); err != nil {
		c.stream.Abort()
	}
	return errors.Join(c.stream.Close(), pa.Terminate())
}

// Device describes an input device.
type Device struct {
	Name              string
	HostAPI           string
	Channels          int
	DefaultSampleRate float64
	Default           bool
}

// Devices returns all input devices.
func Devices() ([]Device, error) {
	if err := pa.Initialize(); err != nil {
		return nil, err
	}
	defer pa.Terminate()
	devices, err := pa.Devices()
	if err != nil {
		return nil, err
	}
	var def *pa.DeviceInfo
	if d, err := pa.DefaultInputDevice(); err == nil {
		def = d
	}
	result := make([]Device, 0, len(devices))
	for _, d := range devices {
		if d.MaxInputChannels == 0 {
			continue
		}
		result = append(result, Device{
			Name:              d.Name,
			HostAPI:           d.HostApi.Name,
			Channels:          d.MaxInputChannels,
			DefaultSampleRate: d.DefaultSampleRate,
			Default:           def != nil && d.Index == def.Index,
		})
	}
	return result, nil
}

// inputDevice finds device by name within the host api.
func inputDevice(hostAPI, name string) (*pa.DeviceInfo, error) {
	api, err := findHostAPI(hostAPI)
	if err != nil {
		return nil, err
	}
	if name == Default {
		if api.DefaultInputDevice == nil {
			return nil, fmt.Errorf("%w: %s has no default input", ErrUnknownDevice, api.Name)
		}
		return api.DefaultInputDevice, nil
	}
	for _, d := range api.Devices {
		if strings.EqualFold(d.Name, name) {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownDevice, name)
}

func findHostAPI(name string) (*pa.HostApiInfo, error) {
	if name != Default {
		t, err := HostAPIType(name)
		if err != nil {
			return nil, err
		}
		return pa.HostApi(t)
	}
	// WASAPI provides lower latency than other windows apis
	if runtime.GOOS == "windows" {
		if api, err := pa.HostApi(pa.WASAPI); err == nil {
			return api, nil
		}
	}
	return pa.DefaultHostApi()
}

// HostAPIType returns portaudio host api type by its case-insensitive
// name.
func HostAPIType(name string) (pa.HostApiType, error) {
	t, ok := hostAPIs[strings.ToLower(name)]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownHostAPI, name)
	}
	return t, nil
}
