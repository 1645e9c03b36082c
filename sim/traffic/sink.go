package traffic

import (
	"fmt"

	"github.com/qos-sim/qos-sim/sim/network"
	"github.com/qos-sim/qos-sim/sim/packet"
)

// Sink counts packets delivered to a bound port.
type Sink struct {
	port     uint16
	received uint64
	bytes    uint64
	lastRx   int64
}

// NewSink binds a sink to port on node.
func NewSink(node *network.Node, port uint16) (*Sink, error) {
	s := &Sink{port: port}
	if err := node.Stack().Bind(port, s.handle); err != nil {
		return nil, fmt.Errorf("sink: %w", err)
	}
	return s, nil
}

func (s *Sink) handle(p *packet.Packet, now int64) {
	s.received++
	s.bytes += uint64(p.PayloadSize())
	s.lastRx = now
}

// Port returns the bound port.
func (s *Sink) Port() uint16 { return s.port }

// Received returns packets and payload bytes delivered so far.
func (s *Sink) Received() (packets, bytes uint64) { return s.received, s.bytes }

// LastReceived returns the time of the latest delivery.
func (s *Sink) LastReceived() int64 { return s.lastRx }
