package presence

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// DefaultHistoryDepth bounds the number of raw RSSI samples retained per
// address. With a depth of 10, ten consecutive absent cycles drive the
// smoothed RSSI to the sentinel and the device out of range.
const DefaultHistoryDepth = 10

// absentSentinel is appended for tracked addresses that were not seen this
// cycle. Zero sits far above any real (negative dBm) reading, so repeated
// absence drags the mean towards a distance beyond any sane max range.
const absentSentinel = 0.0

// History stores a bounded FIFO of raw RSSI samples per device address.
// It is owned exclusively by the pipeline and mutated once per cycle;
// it performs no locking of its own.
type History struct {
	depth      int
	evictAfter int // consecutive absent cycles before an address is dropped; 0 disables
	samples    map[string][]float64
	misses     map[string]int
}

// NewHistory creates a History retaining at most depth samples per address.
// evictAfter > 0 enables dropping an address after that many consecutive
// absent cycles; 0 keeps addresses forever and relies on decay alone.
func NewHistory(depth, evictAfter int) *History {
	if depth <= 0 {
		depth = DefaultHistoryDepth
	}
	return &History{
		depth:      depth,
		evictAfter: evictAfter,
		samples:    make(map[string][]float64),
		misses:     make(map[string]int),
	}
}

// RecordSample appends a raw RSSI sample for the address, evicting the
// oldest sample when the depth bound is exceeded, and returns the
// arithmetic mean of the retained samples.
func (h *History) RecordSample(address string, rssi float64) float64 {
	s := append(h.samples[address], rssi)
	if len(s) > h.depth {
		s = s[len(s)-h.depth:]
	}
	h.samples[address] = s
	h.misses[address] = 0
	return stat.Mean(s, nil)
}

// MarkAbsent appends the no-signal sentinel for every tracked address not
// present in seen. Returns the addresses evicted this cycle (always empty
// when eviction is disabled).
func (h *History) MarkAbsent(seen map[string]struct{}) []string {
	var evicted []string
	for address := range h.samples {
		if _, ok := seen[address]; ok {
			continue
		}

		h.misses[address]++
		if h.evictAfter > 0 && h.misses[address] >= h.evictAfter {
			delete(h.samples, address)
			delete(h.misses, address)
			evicted = append(evicted, address)
			continue
		}

		s := append(h.samples[address], absentSentinel)
		if len(s) > h.depth {
			s = s[len(s)-h.depth:]
		}
		h.samples[address] = s
	}
	sort.Strings(evicted)
	return evicted
}

// Smoothed returns the mean of the retained samples for the address.
func (h *History) Smoothed(address string) (float64, bool) {
	s, ok := h.samples[address]
	if !ok || len(s) == 0 {
		return 0, false
	}
	return stat.Mean(s, nil), true
}

// Samples returns a copy of the retained samples for the address, oldest
// first.
func (h *History) Samples(address string) []float64 {
	s, ok := h.samples[address]
	if !ok {
		return nil
	}
	out := make([]float64, len(s))
	copy(out, s)
	return out
}

// Addresses returns every tracked address in sorted order.
func (h *History) Addresses() []string {
	out := make([]string, 0, len(h.samples))
	for address := range h.samples {
		out = append(out, address)
	}
	sort.Strings(out)
	return out
}

// Len reports the number of tracked addresses.
func (h *History) Len() int { return len(h.samples) }
