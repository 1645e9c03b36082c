package network

import (
	"fmt"
	"io"
	"net/netip"

	"github.com/sirupsen/logrus"

	"github.com/qos-sim/qos-sim/sim"
	"github.com/qos-sim/qos-sim/sim/packet"
	"github.com/qos-sim/qos-sim/sim/qdisc"
)

// DeviceStats counts packets through one device.
type DeviceStats struct {
	TxPackets uint64
	TxBytes   uint64
	RxPackets uint64
	RxBytes   uint64
	Overflows uint64
}

// Device is one end of a point-to-point link. Packets wait in the queue
// discipline and are serialized one at a time at the link rate.
type Device struct {
	node    *Node
	ifindex int
	addr    netip.Prefix
	link    *Link
	peer    *Device
	queue   qdisc.QueueDisc
	busy    bool
	capture *packet.CaptureWriter
	stats   DeviceStats
}

// Node returns the owning node.
func (d *Device) Node() *Node { return d.node }

// Interface returns the interface index on the owning node.
func (d *Device) Interface() int { return d.ifindex }

// Address returns the device address with its link prefix length.
func (d *Device) Address() netip.Prefix { return d.addr }

// Peer returns the device at the other end of the link.
func (d *Device) Peer() *Device { return d.peer }

// Link returns the link the device is attached to.
func (d *Device) Link() *Link { return d.link }

// QueueDisc returns the egress queue.
func (d *Device) QueueDisc() qdisc.QueueDisc { return d.queue }

// SetQueueDisc replaces the egress queue. Only allowed while the device is
// idle and the current queue is empty.
func (d *Device) SetQueueDisc(q qdisc.QueueDisc) error {
	if q == nil {
		return fmt.Errorf("%s: queue discipline must not be nil", d)
	}
	if d.busy || d.queue.Len() > 0 {
		return fmt.Errorf("%s: cannot replace a non-empty queue discipline", d)
	}
	d.queue = q
	return nil
}

// Stats returns a copy of the device counters.
func (d *Device) Stats() DeviceStats { return d.stats }

// EnableCapture writes every packet the device starts transmitting to w in
// pcap format, timestamped with simulated time.
func (d *Device) EnableCapture(w io.Writer) error {
	cw, err := packet.NewCaptureWriter(w)
	if err != nil {
		return fmt.Errorf("%s: %w", d, err)
	}
	d.capture = cw
	return nil
}

func (d *Device) String() string {
	return fmt.Sprintf("%s/if%d", d.node.name, d.ifindex)
}

// enqueue offers p to the egress queue and starts transmission if idle.
func (d *Device) enqueue(p *packet.Packet) {
	if d.queue.Offer(p) == qdisc.DroppedOverflow {
		d.stats.Overflows++
		d.node.stack.drop(p, DropQueueOverflow)
		return
	}
	if !d.busy {
		d.transmitNext()
	}
}

// transmitNext pulls one packet from the queue and occupies the link for its
// serialization time. The peer receives it one propagation delay after the
// last bit leaves.
func (d *Device) transmitNext() {
	p, ok := d.queue.Dequeue()
	if !ok {
		d.busy = false
		return
	}
	d.busy = true
	s := d.node.net.sim
	if d.capture != nil {
		if err := d.capture.Write(p, sim.WallTime(s.Now())); err != nil {
			logrus.Warnf("%s: pcap capture disabled: %v", d, err)
			d.capture = nil
		}
	}
	d.stats.TxPackets++
	d.stats.TxBytes += uint64(p.Size())
	txTime := sim.TransmissionTime(p.Size(), d.link.rateBps)
	peer := d.peer
	delay := d.link.delay
	s.After(txTime, func(s *sim.Simulator) {
		s.After(delay, func(*sim.Simulator) { peer.receive(p) })
		d.transmitNext()
	})
}

func (d *Device) receive(p *packet.Packet) {
	d.stats.RxPackets++
	d.stats.RxBytes += uint64(p.Size())
	d.node.stack.receive(p, d)
}
