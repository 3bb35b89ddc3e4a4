package service

import (
	"sync"
	"time"
)

type sinkEntry struct {
	name string
	tags map[string]string
}

// testSink records counters for assertions.
type testSink struct {
	mu      sync.Mutex
	entries []sinkEntry
}

func (s *testSink) Count(name string, _ int64, tags map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, sinkEntry{name: name, tags: tags})
}

func (s *testSink) Gauge(string, float64, map[string]string)        {}
func (s *testSink) Timing(string, time.Duration, map[string]string) {}

// count returns how many counters named name carry tag key=value.
func (s *testSink) count(name, key, value string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.entries {
		if e.name == name && e.tags[key] == value {
			n++
		}
	}
	return n
}

// countTags returns how many counters named name carry every tag in want.
func (s *testSink) countTags(name string, want map[string]string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
outer:
	for _, e := range s.entries {
		if e.name != name {
			continue
		}
		for k, v := range want {
			if e.tags[k] != v {
				continue outer
			}
		}
		n++
	}
	return n
}
