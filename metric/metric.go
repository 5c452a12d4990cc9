// Package metric exposes engine element counters through expvar.
package metric

import (
	"expvar"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pipelined/busreader/signal"
)

const elementsLabel = "busreader.elements"

const (
	// FragmentCounter measures number of delivered fragments.
	FragmentCounter = "Fragments"
	// SampleCounter measures number of samples.
	SampleCounter = "Samples"
	// LatencyCounter measures latency between deliveries.
	LatencyCounter = "Latency"
	// DurationCounter counts what's the duration of signal.
	DurationCounter = "Duration"
	// ElementCounter counts number of metered elements.
	ElementCounter = "Elements"
)

var (
	elements = metrics{
		m: make(map[string]metric),
	}

	counters = []string{
		FragmentCounter,
		SampleCounter,
		LatencyCounter,
		DurationCounter,
		ElementCounter,
	}
)

// Get metrics values for provided element type.
func Get(element interface{}) map[string]string {
	return getCounters(getType(element))
}

// GetAll returns counters for all measured element types.
func GetAll() map[string]map[string]string {
	m := make(map[string]map[string]string)
	elements.Lock()
	defer elements.Unlock()
	for element := range elements.m {
		m[element] = getCounters(element)
	}
	return m
}

func getCounters(elementType string) map[string]string {
	m := make(map[string]string)
	for _, counter := range counters {
		v := expvar.Get(key(elementType, counter))
		if v != nil {
			m[counter] = v.String()
		}
	}
	return m
}

// MeasureFunc captures metrics when fragment is delivered.
type MeasureFunc func(samples int64)

// Meter creates new meter closure to capture element counters.
func Meter(element interface{}, sampleRate int) MeasureFunc {
	t := getType(element)
	metric := elements.get(t)
	metric.elements.Add(1)
	var (
		mu             sync.Mutex
		calledAt       = time.Now()
		fragmentSize   int64
		fragmentLength time.Duration
	)
	return func(s int64) {
		mu.Lock()
		defer mu.Unlock()
		metric.latency.set(time.Since(calledAt))
		metric.fragments.Add(1)
		metric.samples.Add(s)
		// recalculate duration only when fragment size has changed
		if fragmentSize != s {
			fragmentSize = s
			fragmentLength = signal.DurationOf(sampleRate, s)
		}
		metric.duration.add(fragmentLength)
		calledAt = time.Now()
	}
}

type metrics struct {
	sync.Mutex
	m map[string]metric
}

func (m *metrics) get(elementType string) metric {
	m.Lock()
	defer m.Unlock()
	if metric, ok := m.m[elementType]; ok {
		return metric
	}
	metric := newMetric(elementType)
	m.m[elementType] = metric
	return metric
}

type metric struct {
	key       string
	elements  *expvar.Int
	fragments *expvar.Int
	samples   *expvar.Int
	latency   *duration
	duration  *duration
}

func newMetric(elementType string) metric {
	m := metric{
		key:       elementType,
		elements:  expvar.NewInt(key(elementType, ElementCounter)),
		fragments: expvar.NewInt(key(elementType, FragmentCounter)),
		samples:   expvar.NewInt(key(elementType, SampleCounter)),
		latency:   &duration{},
		duration:  &duration{},
	}
	expvar.Publish(key(elementType, LatencyCounter), m.latency)
	expvar.Publish(key(elementType, DurationCounter), m.duration)
	return m
}

func key(elementType, counter string) string {
	return fmt.Sprintf("%s.%s.%s", elementsLabel, elementType, counter)
}

func getType(element interface{}) string {
	if s, ok := element.(string); ok {
		return s
	}
	rv := reflect.ValueOf(element)
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		rv = rv.Elem()
	}
	return rv.Type().String()
}

// duration allows to format time.Duration metric values.
type duration struct {
	d int64
}

func (v *duration) String() string {
	return fmt.Sprintf("%v", time.Duration(atomic.LoadInt64(&v.d)))
}

func (v *duration) add(delta time.Duration) {
	atomic.AddInt64(&v.d, int64(delta))
}

func (v *duration) set(value time.Duration) {
	atomic.StoreInt64(&v.d, int64(value))
}
