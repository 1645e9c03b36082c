package network

import (
	"github.com/qos-sim/qos-sim/sim/flowmon"
	"github.com/qos-sim/qos-sim/sim/packet"
)

// Probe observes packets at their origin and at their final destination.
type Probe interface {
	// Originated fires when an application hands a packet to its stack,
	// before routing.
	Originated(p *packet.Packet, now int64)
	// Delivered fires when a packet reaches the stack owning its
	// destination address, before port demultiplexing.
	Delivered(p *packet.Packet, now int64)
}

// FlowMonitorProbe feeds a flowmon.Monitor.
type FlowMonitorProbe struct {
	Monitor *flowmon.Monitor
}

// Originated records a transmission of p at now.
func (f FlowMonitorProbe) Originated(p *packet.Packet, now int64) {
	f.Monitor.OnTransmit(p.Flow(), now, p.Size())
}

// Delivered records the arrival of p at now with its one-way delay since
// origination.
func (f FlowMonitorProbe) Delivered(p *packet.Packet, now int64) {
	f.Monitor.OnReceive(p.Flow(), now, now-p.SentAt(), p.Size())
}
