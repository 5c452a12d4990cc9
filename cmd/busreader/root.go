package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pipelined/busreader"
	"github.com/pipelined/busreader/assemble"
	"github.com/pipelined/busreader/engine"
	"github.com/pipelined/busreader/log"
	"github.com/pipelined/busreader/metric"
	"github.com/pipelined/busreader/portaudio"
)

const envPrefix = "BUSREADER"

// config keys
const (
	keyRate       = "rate"
	keyMono       = "mono"
	keyBufferSize = "buffer-size"
	keyDuration   = "duration"
	keyDevice     = "device"
	keyDebug      = "debug"
	keyConfig     = "config"
)

func newRootCmd() (*cobra.Command, error) {
	v := viper.New()
	cmd := &cobra.Command{
		Use:   "busreader [file]",
		Short: "Decode audio into a front-left and front-right bus",
		Long: `Decode an audio file into front-left and front-right channels resampled
to the requested rate. Without a file the default sound card input is
captured until interrupted or until --duration is elapsed.`,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(v)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), v, args, cmd.OutOrStdout())
		},
	}

	flags := cmd.PersistentFlags()
	flags.Float64P(keyRate, "r", 44100, "output sample rate")
	flags.BoolP(keyMono, "m", false, "request mono bus")
	flags.IntP(keyBufferSize, "b", engine.DefaultBufferSize, "frames read from source at once")
	flags.DurationP(keyDuration, "d", 0, "stop live capture after duration")
	flags.String(keyDevice, portaudio.Default, "input device of live capture")
	flags.Bool(keyDebug, false, "enable debug logging")
	flags.String(keyConfig, "", "config file")
	for _, key := range []string{keyRate, keyMono, keyBufferSize, keyDuration, keyDevice, keyDebug, keyConfig} {
		if err := v.BindPFlag(key, flags.Lookup(key)); err != nil {
			return nil, fmt.Errorf("bind %s flag: %w", key, err)
		}
	}

	cmd.AddCommand(
		newDevicesCmd(),
		newFormatsCmd(),
		newVersionCmd(),
	)
	return cmd, nil
}

// loadConfig reads .env file, environment and optional config file.
func loadConfig(v *viper.Viper) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if path := v.GetString(keyConfig); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

func newLogger(v *viper.Viper) *logrus.Logger {
	l := log.GetLogger()
	if v.GetBool(keyDebug) {
		l.SetLevel(logrus.DebugLevel)
	}
	return l
}

func run(ctx context.Context, v *viper.Viper, args []string, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := newLogger(v)
	options := []busreader.Option{
		busreader.WithLogger(logger),
		busreader.WithBufferSize(v.GetInt(keyBufferSize)),
	}
	rate := v.GetFloat64(keyRate)
	mono := v.GetBool(keyMono)

	if len(args) == 1 {
		options = append(options, busreader.WithName(args[0]))
		r := busreader.NewFileReader(args[0], options...)
		res, err := r.CreateBus(ctx, rate, mono)
		if err != nil {
			return err
		}
		bus, err := assemble.FromResult(res)
		if err != nil {
			return err
		}
		printBus(out, args[0], bus)
		if v.GetBool(keyDebug) {
			printMetrics(out)
		}
		return nil
	}

	capture, err := portaudio.NewCapture(
		portaudio.WithDevice(v.GetString(keyDevice)),
		portaudio.WithSampleRate(int(rate)),
		portaudio.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	if d := v.GetDuration(keyDuration); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	options = append(options, busreader.WithName(capture.Device()))
	r := busreader.NewLiveReader(capture, options...)
	res, err := r.CreateBus(ctx, rate, mono)
	// live capture only ends when stopped
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	printResult(out, capture.Device(), res)
	if v.GetBool(keyDebug) {
		printMetrics(out)
	}
	return nil
}

func printBus(out io.Writer, name string, bus *assemble.Bus) {
	fmt.Fprintf(out, "%s: %d channel(s), %v Hz, %d frames, %v\n",
		name, bus.NumChannels(), bus.SampleRate, bus.Frames(), bus.Duration().Round(time.Millisecond))
	for i := range bus.Channels {
		fmt.Fprintf(out, "  channel %d: peak %.3f\n", i, bus.Peak(i))
	}
}

func printResult(out io.Writer, name string, res *busreader.Result) {
	fmt.Fprintf(out, "%s: %v Hz, %d frames\n", name, res.SampleRate, res.Frames)
	for _, c := range res.Collectors() {
		fmt.Fprintf(out, "  %v: %d fragments, %d frames, %d skipped\n", c.Position(), c.Len(), c.Frames(), c.Skipped())
	}
}

// printMetrics prints counters of the engine elements.
func printMetrics(out io.Writer) {
	all := metric.GetAll()
	elements := make([]string, 0, len(all))
	for element := range all {
		elements = append(elements, element)
	}
	sort.Strings(elements)
	for _, element := range elements {
		counters := all[element]
		fmt.Fprintf(out, "  %s: %s fragments, %s samples, %s\n",
			element, counters[metric.FragmentCounter], counters[metric.SampleCounter], counters[metric.DurationCounter])
	}
}
