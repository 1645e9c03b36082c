// Package qdisc holds the egress queueing disciplines attached to network
// devices: a single drop-tail FIFO and a strict-priority multi-band scheduler.
package qdisc

import (
	"fmt"

	"github.com/qos-sim/qos-sim/sim/packet"
)

// EnqueueResult reports the outcome of offering a packet to a queue.
type EnqueueResult int

const (
	Enqueued EnqueueResult = iota
	DroppedOverflow
)

func (r EnqueueResult) String() string {
	switch r {
	case Enqueued:
		return "enqueued"
	case DroppedOverflow:
		return "dropped-overflow"
	default:
		return fmt.Sprintf("EnqueueResult(%d)", int(r))
	}
}

// QueueDisc is what a device transmits from. Offer never fails with an
// error: a full queue is reported through the result.
type QueueDisc interface {
	Offer(p *packet.Packet) EnqueueResult
	Dequeue() (*packet.Packet, bool)
	Len() int
	BandStats() []BandStats
}

// validQueueDiscs is the unexported registry of queue discipline names.
var validQueueDiscs = map[string]bool{"": true, "fifo": true, "prio": true}

// IsValidQueueDisc returns true if name is a recognized queue discipline.
func IsValidQueueDisc(name string) bool { return validQueueDiscs[name] }

// ValidQueueDiscNames returns the recognized names, for CLI and config errors.
func ValidQueueDiscNames() []string { return []string{"fifo", "prio"} }

// Config describes a queue discipline. Bands and Map are ignored for fifo.
type Config struct {
	Kind         string
	Bands        int
	BandCapacity int
	Map          *BandMap
}

// New creates a queue discipline by name. Empty defaults to fifo.
// Panics on unrecognized names, as configuration is validated before building.
func New(cfg Config) QueueDisc {
	if !IsValidQueueDisc(cfg.Kind) {
		panic(fmt.Sprintf("unknown queue discipline %q", cfg.Kind))
	}
	switch cfg.Kind {
	case "", "fifo":
		return NewFIFO(cfg.BandCapacity)
	case "prio":
		bands := cfg.Bands
		if bands == 0 {
			bands = 3
		}
		m := DefaultBandMap(bands)
		if cfg.Map != nil {
			m = *cfg.Map
		}
		return NewPriorityScheduler(m, cfg.BandCapacity)
	default:
		panic(fmt.Sprintf("unhandled queue discipline %q", cfg.Kind))
	}
}

// FIFO is a single drop-tail band.
type FIFO struct {
	band *Band
}

// NewFIFO creates a FIFO holding at most capacity packets.
func NewFIFO(capacity int) *FIFO {
	return &FIFO{band: NewBand(capacity)}
}

func (f *FIFO) Offer(p *packet.Packet) EnqueueResult {
	if f.band.Enqueue(p) {
		return Enqueued
	}
	return DroppedOverflow
}

func (f *FIFO) Dequeue() (*packet.Packet, bool) {
	p := f.band.Dequeue()
	return p, p != nil
}

func (f *FIFO) Len() int { return f.band.Len() }

func (f *FIFO) BandStats() []BandStats { return []BandStats{f.band.Stats()} }
