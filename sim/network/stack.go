package network

import (
	"fmt"
	"net/netip"

	"github.com/sirupsen/logrus"

	"github.com/qos-sim/qos-sim/sim"
	"github.com/qos-sim/qos-sim/sim/packet"
	"github.com/qos-sim/qos-sim/sim/routing"
	"github.com/qos-sim/qos-sim/sim/trace"
)

// FirstEphemeralPort is where automatic source port allocation starts.
const FirstEphemeralPort uint16 = 49153

// Handler receives packets delivered to a bound port.
type Handler func(p *packet.Packet, now int64)

// StackStats counts packets handled by one stack.
type StackStats struct {
	Originated uint64
	Forwarded  uint64
	Delivered  uint64
	Drops      map[DropReason]uint64
}

// Stack is the IPv4-like layer of a node. It owns the node's static routing
// table; SetRouting installs another Router in front of it.
type Stack struct {
	node     *Node
	static   *routing.StaticRouting
	routing  routing.Router
	local    map[netip.Addr]int
	ports    map[uint16]Handler
	nextPort uint16
	stats    StackStats
}

func newStack(n *Node) *Stack {
	s := &Stack{
		node:     n,
		static:   routing.NewStaticRouting(),
		local:    make(map[netip.Addr]int),
		ports:    make(map[uint16]Handler),
		nextPort: FirstEphemeralPort,
		stats:    StackStats{Drops: make(map[DropReason]uint64)},
	}
	s.routing = s.static
	return s
}

// StaticRouting returns the node's static table. Connected routes are added
// as links are created.
func (s *Stack) StaticRouting() *routing.StaticRouting { return s.static }

// SetRouting installs the router consulted for every originated and
// forwarded packet. The stack does not own r.
func (s *Stack) SetRouting(r routing.Router) {
	if r == nil {
		panic("SetRouting: router must not be nil")
	}
	s.routing = r
}

// Routing returns the active router.
func (s *Stack) Routing() routing.Router { return s.routing }

// IsLocal reports whether addr belongs to this node.
func (s *Stack) IsLocal(addr netip.Addr) bool {
	_, ok := s.local[addr]
	return ok
}

// Stats returns a copy of the stack counters.
func (s *Stack) Stats() StackStats {
	out := s.stats
	out.Drops = make(map[DropReason]uint64, len(s.stats.Drops))
	for r, c := range s.stats.Drops {
		out.Drops[r] = c
	}
	return out
}

// Bind registers h for packets addressed to port on this node.
func (s *Stack) Bind(port uint16, h Handler) error {
	if h == nil {
		return fmt.Errorf("%s: nil handler for port %d", s.node, port)
	}
	if _, used := s.ports[port]; used {
		return fmt.Errorf("%s: port %d already bound", s.node, port)
	}
	s.ports[port] = h
	return nil
}

// Unbind releases port.
func (s *Stack) Unbind(port uint16) { delete(s.ports, port) }

// AllocatePort returns an unbound ephemeral port. Ports handed out are not
// bound; they only identify the sending side of a flow.
func (s *Stack) AllocatePort() uint16 {
	for {
		p := s.nextPort
		s.nextPort++
		if s.nextPort == 0 {
			s.nextPort = FirstEphemeralPort
		}
		if _, used := s.ports[p]; !used {
			return p
		}
	}
}

// Send originates p from this node. Probes see the packet before routing,
// so packets without a route count as lost.
func (s *Stack) Send(p *packet.Packet) {
	s.stats.Originated++
	s.node.net.originated(p)
	if s.IsLocal(p.Dst()) {
		s.deliver(p)
		return
	}
	route, err := s.routing.RouteOutput(p, p.IPv4(), routing.AnyInterface)
	if err != nil {
		logrus.Debugf("[%s] %s: %v", sim.FormatTicks(s.now()), s.node, err)
		s.drop(p, DropNoRoute)
		return
	}
	s.output(p, route)
}

func (s *Stack) receive(p *packet.Packet, in *Device) {
	if s.IsLocal(p.Dst()) {
		s.deliver(p)
		return
	}
	if !p.DecrementTTL() {
		s.drop(p, DropTTLExpired)
		return
	}
	route, err := s.routing.RouteInput(p, p.IPv4(), in.ifindex)
	if err != nil {
		logrus.Debugf("[%s] %s: %v", sim.FormatTicks(s.now()), s.node, err)
		s.drop(p, DropNoRoute)
		return
	}
	s.stats.Forwarded++
	s.output(p, route)
}

func (s *Stack) output(p *packet.Packet, route routing.RouteDescriptor) {
	dev := s.node.Device(route.Interface())
	if dev == nil {
		logrus.Debugf("[%s] %s: route %s names no device", sim.FormatTicks(s.now()), s.node, route)
		s.drop(p, DropNoRoute)
		return
	}
	dev.enqueue(p)
}

func (s *Stack) deliver(p *packet.Packet) {
	s.stats.Delivered++
	s.node.net.delivered(p)
	h, ok := s.ports[uint16(p.UDP().DstPort)]
	if !ok {
		s.drop(p, DropPortUnreachable)
		return
	}
	h(p, s.now())
}

func (s *Stack) drop(p *packet.Packet, reason DropReason) {
	s.stats.Drops[reason]++
	if st := s.node.net.trace; st.RecordsDrops() {
		st.RecordDrop(trace.DropRecord{
			PacketID: p.ID(),
			Clock:    s.now(),
			Node:     s.node.name,
			Flow:     p.Flow().String(),
			Reason:   string(reason),
		})
	}
}

func (s *Stack) addInterface(d *Device) error {
	addr := d.addr.Addr()
	if owner, dup := s.local[addr]; dup {
		return fmt.Errorf("%s: address %s already assigned to if%d", s.node, addr, owner)
	}
	s.local[addr] = d.ifindex
	return s.static.AddConnected(d.addr.Masked(), d.ifindex)
}

func (s *Stack) now() int64 { return s.node.net.sim.Now() }
