package qdisc

import (
	"fmt"
	"strings"

	"github.com/qos-sim/qos-sim/sim/packet"
)

// BandStats counts what happened to packets offered to a single band.
type BandStats struct {
	Enqueued uint64 // packets accepted at the tail
	Dequeued uint64 // packets removed from the head
	Dropped  uint64 // packets refused because the band was full
	Peak     int    // largest occupancy observed
}

// Band is a bounded FIFO of packets. Its capacity is fixed at construction
// and its length never exceeds it; arrivals to a full band are dropped at
// the tail and counted.
type Band struct {
	queue    []*packet.Packet
	capacity int
	stats    BandStats
}

// NewBand creates an empty band holding at most capacity packets.
// Panics if capacity is not positive.
func NewBand(capacity int) *Band {
	if capacity <= 0 {
		panic(fmt.Sprintf("NewBand: capacity must be > 0, got %d", capacity))
	}
	return &Band{capacity: capacity}
}

// Enqueue appends p at the tail. It returns false, and counts an overflow,
// when the band is already full.
func (b *Band) Enqueue(p *packet.Packet) bool {
	if p == nil {
		panic("Band.Enqueue: packet must not be nil")
	}
	if len(b.queue) >= b.capacity {
		b.stats.Dropped++
		return false
	}
	b.queue = append(b.queue, p)
	b.stats.Enqueued++
	if len(b.queue) > b.stats.Peak {
		b.stats.Peak = len(b.queue)
	}
	return true
}

// Dequeue removes and returns the head packet, or nil if the band is empty.
func (b *Band) Dequeue() *packet.Packet {
	if len(b.queue) == 0 {
		return nil
	}
	p := b.queue[0]
	b.queue[0] = nil
	b.queue = b.queue[1:]
	b.stats.Dequeued++
	return p
}

// Peek returns the head packet without removing it, or nil if empty.
func (b *Band) Peek() *packet.Packet {
	if len(b.queue) == 0 {
		return nil
	}
	return b.queue[0]
}

// Len returns the number of queued packets.
func (b *Band) Len() int { return len(b.queue) }

// Capacity returns the maximum number of packets the band holds.
func (b *Band) Capacity() int { return b.capacity }

// Overflow returns the number of packets dropped because the band was full.
func (b *Band) Overflow() uint64 { return b.stats.Dropped }

// Stats returns a copy of the band counters.
func (b *Band) Stats() BandStats { return b.stats }

func (b *Band) String() string {
	var sb strings.Builder
	sb.WriteString("[")
	for i, p := range b.queue {
		if i > 0 {
			sb.WriteString(" ")
		}
		fmt.Fprintf(&sb, "%d", p.ID())
	}
	sb.WriteString("]")
	return sb.String()
}
