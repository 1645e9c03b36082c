package qdisc

import (
	"fmt"

	"github.com/qos-sim/qos-sim/sim/packet"
)

// PriorityScheduler is a strict-priority queue over N bands; band 0 has the
// highest priority. Dequeue always serves the lowest-indexed non-empty band,
// so lower bands are served only when every higher band is empty.
type PriorityScheduler struct {
	bands      []*Band
	mapping    BandMap
	classifier packet.Classifier
}

// NewPriorityScheduler creates one band per entry of m, each with the given
// capacity.
func NewPriorityScheduler(m BandMap, capacity int) *PriorityScheduler {
	if m.Bands() == 0 {
		panic("NewPriorityScheduler: band map must not be empty")
	}
	s := &PriorityScheduler{mapping: m, classifier: packet.DSCPClassifier{}}
	s.bands = make([]*Band, m.Bands())
	for i := range s.bands {
		s.bands[i] = NewBand(capacity)
	}
	return s
}

// Classify returns the band index for p from its marking.
func (s *PriorityScheduler) Classify(p *packet.Packet) int {
	return s.mapping.Band(s.classifier.Classify(p))
}

// Enqueue appends p to the tail of band. Drop-tail: a full band refuses the
// packet and counts the overflow. Panics on an out-of-range band.
func (s *PriorityScheduler) Enqueue(band int, p *packet.Packet) EnqueueResult {
	if band < 0 || band >= len(s.bands) {
		panic(fmt.Sprintf("PriorityScheduler.Enqueue: band %d out of range [0,%d)", band, len(s.bands)))
	}
	if s.bands[band].Enqueue(p) {
		return Enqueued
	}
	return DroppedOverflow
}

// Offer classifies p and enqueues it.
func (s *PriorityScheduler) Offer(p *packet.Packet) EnqueueResult {
	return s.Enqueue(s.Classify(p), p)
}

// Dequeue returns the head of the highest-priority non-empty band.
func (s *PriorityScheduler) Dequeue() (*packet.Packet, bool) {
	for _, b := range s.bands {
		if p := b.Dequeue(); p != nil {
			return p, true
		}
	}
	return nil, false
}

// Len returns the total number of queued packets.
func (s *PriorityScheduler) Len() int {
	n := 0
	for _, b := range s.bands {
		n += b.Len()
	}
	return n
}

// Bands returns the number of bands.
func (s *PriorityScheduler) Bands() int { return len(s.bands) }

// Band returns band i for inspection.
func (s *PriorityScheduler) Band(i int) *Band { return s.bands[i] }

// Map returns the marking-to-band map.
func (s *PriorityScheduler) Map() BandMap { return s.mapping }

// BandStats returns a snapshot of the counters of each band, indexed by
// band number.
func (s *PriorityScheduler) BandStats() []BandStats {
	out := make([]BandStats, len(s.bands))
	for i, b := range s.bands {
		out[i] = b.Stats()
	}
	return out
}
