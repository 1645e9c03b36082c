package qdisc

import (
	"fmt"
	"sort"

	"github.com/qos-sim/qos-sim/sim/packet"
)

// BandMap assigns each marking to a band index. Markings without an explicit
// entry go to the default band. A BandMap is immutable once built.
type BandMap struct {
	bands       int
	entries     map[packet.Marking]int
	defaultBand int
}

// NewBandMap builds a map over the given number of bands. Panics if any band
// index (including defaultBand) is outside [0, bands).
func NewBandMap(bands int, entries map[packet.Marking]int, defaultBand int) BandMap {
	if bands <= 0 {
		panic(fmt.Sprintf("NewBandMap: bands must be > 0, got %d", bands))
	}
	if defaultBand < 0 || defaultBand >= bands {
		panic(fmt.Sprintf("NewBandMap: default band %d out of range [0,%d)", defaultBand, bands))
	}
	copied := make(map[packet.Marking]int, len(entries))
	for m, b := range entries {
		if m > packet.MaxMarking {
			panic(fmt.Sprintf("NewBandMap: marking %d out of range", m))
		}
		if b < 0 || b >= bands {
			panic(fmt.Sprintf("NewBandMap: marking %s mapped to band %d, out of range [0,%d)", m, b, bands))
		}
		copied[m] = b
	}
	return BandMap{bands: bands, entries: copied, defaultBand: defaultBand}
}

// DefaultBandMap returns the pfifo_fast-like map used when a scheduler is
// configured without explicit entries. With three or more bands, network
// control and EF go to band 0, assured forwarding and CS2-CS4 to band 1, and
// everything else to the last band. With two bands the first two classes
// share band 0. A single band takes everything.
func DefaultBandMap(bands int) BandMap {
	if bands <= 0 {
		panic(fmt.Sprintf("DefaultBandMap: bands must be > 0, got %d", bands))
	}
	last := bands - 1
	if bands == 1 {
		return NewBandMap(1, nil, 0)
	}
	mid := 1
	if bands == 2 {
		mid = 0
	}
	entries := map[packet.Marking]int{
		packet.EF: 0, packet.CS5: 0, packet.CS6: 0, packet.CS7: 0,
		packet.CS2: mid, packet.CS3: mid, packet.CS4: mid,
		packet.AF11: mid, packet.AF12: mid, packet.AF13: mid,
		packet.AF21: mid, packet.AF22: mid, packet.AF23: mid,
		packet.AF31: mid, packet.AF32: mid, packet.AF33: mid,
		packet.AF41: mid, packet.AF42: mid, packet.AF43: mid,
	}
	return NewBandMap(bands, entries, last)
}

// Bands returns the number of bands the map addresses.
func (m BandMap) Bands() int { return m.bands }

// DefaultBand returns the band used for unmapped markings.
func (m BandMap) DefaultBand() int { return m.defaultBand }

// Band returns the band index for a marking.
func (m BandMap) Band(mark packet.Marking) int {
	if b, ok := m.entries[mark]; ok {
		return b
	}
	return m.defaultBand
}

// MarkingsFor lists the markings explicitly mapped to band, in ascending order.
func (m BandMap) MarkingsFor(band int) []packet.Marking {
	var out []packet.Marking
	for mark, b := range m.entries {
		if b == band {
			out = append(out, mark)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
