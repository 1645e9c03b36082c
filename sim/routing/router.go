// Package routing implements per-packet egress decisions.
//
// A Router answers two questions: where a locally originated packet goes
// (RouteOutput) and where a packet in transit is forwarded (RouteInput).
// PolicyRouter answers the first from an ordered marking → route rule table
// and hands everything else to a fallback Router, typically StaticRouting.
package routing

import (
	"io"
	"net/netip"

	"github.com/gopacket/gopacket/layers"

	"github.com/qos-sim/qos-sim/sim/packet"
)

// Router selects egress routes for packets.
type Router interface {
	// RouteOutput decides the route for a packet originated on this node.
	// oif is an egress hint (AnyInterface for none).
	RouteOutput(p *packet.Packet, hdr layers.IPv4, oif int) (RouteDescriptor, error)
	// RouteInput decides the route for a packet received on iif that is not
	// addressed to this node.
	RouteInput(p *packet.Packet, hdr layers.IPv4, iif int) (RouteDescriptor, error)
}

// TablePrinter is implemented by routers that can describe their state.
type TablePrinter interface {
	PrintRoutingTable(w io.Writer)
}

func headerDst(hdr layers.IPv4) netip.Addr {
	a, ok := netip.AddrFromSlice(hdr.DstIP)
	if !ok {
		return netip.Addr{}
	}
	return a.Unmap()
}
