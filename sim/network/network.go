// Package network models nodes joined by point-to-point links. Each node has
// an IPv4-like stack that routes originated packets through a routing.Router,
// forwards transit packets, and delivers local ones to bound ports. Device
// egress queues are qdisc.QueueDisc values served one packet per
// transmission slot.
package network

import (
	"fmt"
	"net/netip"

	"github.com/qos-sim/qos-sim/sim"
	"github.com/qos-sim/qos-sim/sim/packet"
	"github.com/qos-sim/qos-sim/sim/trace"
)

// Network owns the nodes and links of one simulation.
type Network struct {
	sim    *sim.Simulator
	nodes  []*Node
	byName map[string]*Node
	links  []*Link
	probes []Probe
	trace  *trace.SimulationTrace
	addrs  *AddressAllocator

	nextPacketID uint64
}

// Option configures a Network.
type Option func(*Network)

// WithTrace records drops into st when its level asks for them.
func WithTrace(st *trace.SimulationTrace) Option {
	return func(n *Network) { n.trace = st }
}

// WithAddressPool sets the pool that links without an explicit prefix draw
// their subnet from.
func WithAddressPool(a *AddressAllocator) Option {
	return func(n *Network) { n.addrs = a }
}

// New creates an empty network driven by s.
func New(s *sim.Simulator, opts ...Option) *Network {
	if s == nil {
		panic("network.New: simulator must not be nil")
	}
	n := &Network{
		sim:    s,
		byName: make(map[string]*Node),
		addrs:  MustAddressAllocator(netip.MustParsePrefix("10.0.0.0/8"), 24),
	}
	for _, o := range opts {
		o(n)
	}
	return n
}

// Sim returns the simulator driving the network.
func (n *Network) Sim() *sim.Simulator { return n.sim }

// Trace returns the trace drops are recorded into, possibly nil.
func (n *Network) Trace() *trace.SimulationTrace { return n.trace }

// AddNode creates a node with a unique name.
func (n *Network) AddNode(name string) (*Node, error) {
	if name == "" {
		return nil, fmt.Errorf("node name must not be empty")
	}
	if _, dup := n.byName[name]; dup {
		return nil, fmt.Errorf("duplicate node %q", name)
	}
	node := newNode(n, len(n.nodes), name)
	n.nodes = append(n.nodes, node)
	n.byName[name] = node
	return node, nil
}

// Node looks a node up by name.
func (n *Network) Node(name string) (*Node, bool) {
	node, ok := n.byName[name]
	return node, ok
}

// Nodes returns the nodes in creation order.
func (n *Network) Nodes() []*Node { return n.nodes }

// Links returns the links in creation order.
func (n *Network) Links() []*Link { return n.links }

// AddProbe registers a probe for origination and delivery events on every node.
func (n *Network) AddProbe(p Probe) {
	if p == nil {
		panic("AddProbe: probe must not be nil")
	}
	n.probes = append(n.probes, p)
}

// NewPacketID returns the next network-wide packet id, starting at 1.
func (n *Network) NewPacketID() uint64 {
	n.nextPacketID++
	return n.nextPacketID
}

// Drops sums drop counters over all nodes.
func (n *Network) Drops() map[DropReason]uint64 {
	out := make(map[DropReason]uint64)
	for _, node := range n.nodes {
		for r, c := range node.stack.stats.Drops {
			out[r] += c
		}
	}
	return out
}

func (n *Network) originated(p *packet.Packet) {
	for _, pr := range n.probes {
		pr.Originated(p, n.sim.Now())
	}
}

func (n *Network) delivered(p *packet.Packet) {
	for _, pr := range n.probes {
		pr.Delivered(p, n.sim.Now())
	}
}

// Lookup returns the node owning addr.
func (n *Network) Lookup(addr netip.Addr) (*Node, bool) {
	for _, node := range n.nodes {
		if node.stack.IsLocal(addr) {
			return node, true
		}
	}
	return nil, false
}
