package routing

import (
	"fmt"
	"net"
	"net/netip"
	"sort"

	"github.com/gopacket/gopacket/layers"
	"github.com/yl2chen/cidranger"

	"github.com/qos-sim/qos-sim/sim/packet"
)

// StaticRoute is one configured entry of a StaticRouting table.
type StaticRoute struct {
	Route     RouteDescriptor
	Metric    int
	Connected bool
}

// staticEntry holds every route for one prefix; cidranger stores one entry
// per network.
type staticEntry struct {
	network net.IPNet
	routes  []StaticRoute
}

// Network implements cidranger.RangerEntry.
func (e *staticEntry) Network() net.IPNet {
	return e.network
}

// StaticRouting is a longest-prefix-match routing table. It is the default
// fallback provider: connected networks are installed by the network stack,
// other routes come from configuration.
type StaticRouting struct {
	ranger  cidranger.Ranger
	entries map[netip.Prefix]*staticEntry
	order   []netip.Prefix
}

// NewStaticRouting creates an empty table.
func NewStaticRouting() *StaticRouting {
	return &StaticRouting{
		ranger:  cidranger.NewPCTrieRanger(),
		entries: make(map[netip.Prefix]*staticEntry),
	}
}

// AddConnected installs a directly connected network on iface.
func (s *StaticRouting) AddConnected(network netip.Prefix, iface int) error {
	return s.add(StaticRoute{Route: NewRouteDescriptor(network, netip.Addr{}, iface), Connected: true})
}

// AddNetworkRoute installs a route to network via nextHop on iface.
// Lower metrics win among routes for the same prefix.
func (s *StaticRouting) AddNetworkRoute(network netip.Prefix, nextHop netip.Addr, iface int, metric int) error {
	return s.add(StaticRoute{Route: NewRouteDescriptor(network, nextHop, iface), Metric: metric})
}

// AddHostRoute installs a /32 route.
func (s *StaticRouting) AddHostRoute(dst netip.Addr, nextHop netip.Addr, iface int, metric int) error {
	return s.AddNetworkRoute(HostPrefix(dst), nextHop, iface, metric)
}

// SetDefaultRoute installs 0.0.0.0/0 via nextHop.
func (s *StaticRouting) SetDefaultRoute(nextHop netip.Addr, iface int, metric int) error {
	return s.AddNetworkRoute(netip.PrefixFrom(netip.IPv4Unspecified(), 0), nextHop, iface, metric)
}

func (s *StaticRouting) add(route StaticRoute) error {
	prefix := route.Route.Destination()
	if !prefix.IsValid() {
		return fmt.Errorf("invalid route destination %v", prefix)
	}
	if e, ok := s.entries[prefix]; ok {
		e.routes = append(e.routes, route)
		sort.SliceStable(e.routes, func(i, j int) bool { return e.routes[i].Metric < e.routes[j].Metric })
		return nil
	}
	e := &staticEntry{network: ipNet(prefix), routes: []StaticRoute{route}}
	if err := s.ranger.Insert(e); err != nil {
		return fmt.Errorf("inserting route %s: %w", prefix, err)
	}
	s.entries[prefix] = e
	s.order = append(s.order, prefix)
	return nil
}

// Lookup returns the best route for dst. When oif is not AnyInterface only
// routes leaving through oif are considered.
func (s *StaticRouting) Lookup(dst netip.Addr, oif int) (RouteDescriptor, bool) {
	if !dst.IsValid() {
		return RouteDescriptor{}, false
	}
	found, err := s.ranger.ContainingNetworks(net.IP(dst.AsSlice()))
	if err != nil {
		return RouteDescriptor{}, false
	}
	bestBits := -1
	var best RouteDescriptor
	for _, re := range found {
		e := re.(*staticEntry)
		bits, _ := e.network.Mask.Size()
		if bits <= bestBits {
			continue
		}
		for _, r := range e.routes {
			if oif == AnyInterface || r.Route.Interface() == oif {
				best, bestBits = r.Route, bits
				break
			}
		}
	}
	return best, bestBits >= 0
}

// Routes returns all routes, most specific prefix first.
func (s *StaticRouting) Routes() []StaticRoute {
	prefixes := append([]netip.Prefix(nil), s.order...)
	sort.SliceStable(prefixes, func(i, j int) bool { return prefixes[i].Bits() > prefixes[j].Bits() })
	var out []StaticRoute
	for _, p := range prefixes {
		out = append(out, s.entries[p].routes...)
	}
	return out
}

// Len returns the number of distinct prefixes.
func (s *StaticRouting) Len() int {
	return len(s.entries)
}

// RouteOutput implements Router.
func (s *StaticRouting) RouteOutput(_ *packet.Packet, hdr layers.IPv4, oif int) (RouteDescriptor, error) {
	dst := headerDst(hdr)
	route, ok := s.Lookup(dst, oif)
	if !ok {
		return RouteDescriptor{}, noRoute(dst)
	}
	return route, nil
}

// RouteInput implements Router.
func (s *StaticRouting) RouteInput(_ *packet.Packet, hdr layers.IPv4, _ int) (RouteDescriptor, error) {
	dst := headerDst(hdr)
	route, ok := s.Lookup(dst, AnyInterface)
	if !ok {
		return RouteDescriptor{}, noRoute(dst)
	}
	return route, nil
}

func ipNet(p netip.Prefix) net.IPNet {
	p = p.Masked()
	return net.IPNet{
		IP:   net.IP(p.Addr().AsSlice()),
		Mask: net.CIDRMask(p.Bits(), p.Addr().BitLen()),
	}
}
