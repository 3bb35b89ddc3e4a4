// Package statsd emits session-engine metrics over the StatsD line protocol.
package statsd

import "time"

// Sink is the metric surface every emitter writes to. Implementations must be
// safe for concurrent use and must not block the caller on I/O.
type Sink interface {
	Count(name string, value int64, tags map[string]string)
	Gauge(name string, value float64, tags map[string]string)
	Timing(name string, value time.Duration, tags map[string]string)
}

// Fanout forwards every metric to each non-nil sink.
type Fanout []Sink

var _ Sink = Fanout(nil)

func (f Fanout) Count(name string, value int64, tags map[string]string) {
	f.each(func(s Sink) { s.Count(name, value, tags) })
}

func (f Fanout) Gauge(name string, value float64, tags map[string]string) {
	f.each(func(s Sink) { s.Gauge(name, value, tags) })
}

func (f Fanout) Timing(name string, value time.Duration, tags map[string]string) {
	f.each(func(s Sink) { s.Timing(name, value, tags) })
}

func (f Fanout) each(fn func(Sink)) {
	for _, s := range f {
		if s != nil {
			fn(s)
		}
	}
}
