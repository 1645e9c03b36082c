package routing

import (
	"fmt"
	"net/netip"
)

// AnyInterface is the egress hint meaning "no preference".
const AnyInterface = -1

// RouteDescriptor is the outcome of a routing decision: where the packet is
// headed, the next hop it is handed to, and the egress interface index.
// It is immutable once constructed.
type RouteDescriptor struct {
	destination netip.Prefix
	nextHop     netip.Addr
	iface       int
}

// NewRouteDescriptor builds a route. An invalid nextHop means the
// destination is directly connected on iface.
func NewRouteDescriptor(destination netip.Prefix, nextHop netip.Addr, iface int) RouteDescriptor {
	if iface < 0 {
		panic(fmt.Sprintf("NewRouteDescriptor: negative interface %d", iface))
	}
	return RouteDescriptor{destination: destination.Masked(), nextHop: nextHop, iface: iface}
}

// Destination returns the destination network.
func (r RouteDescriptor) Destination() netip.Prefix { return r.destination }

// NextHop returns the gateway address; invalid for connected routes.
func (r RouteDescriptor) NextHop() netip.Addr { return r.nextHop }

// Interface returns the egress interface index.
func (r RouteDescriptor) Interface() int { return r.iface }

// IsZero reports whether r is the zero value (no route).
func (r RouteDescriptor) IsZero() bool { return r == RouteDescriptor{} }

// Gateway returns the address the packet is sent to on the link: the next
// hop when there is one, dst otherwise.
func (r RouteDescriptor) Gateway(dst netip.Addr) netip.Addr {
	if r.nextHop.IsValid() {
		return r.nextHop
	}
	return dst
}

// WithDestination returns a copy of r for another destination network.
func (r RouteDescriptor) WithDestination(destination netip.Prefix) RouteDescriptor {
	return NewRouteDescriptor(destination, r.nextHop, r.iface)
}

func (r RouteDescriptor) String() string {
	gw := "connected"
	if r.nextHop.IsValid() {
		gw = "via " + r.nextHop.String()
	}
	return fmt.Sprintf("%s %s if %d", r.destination, gw, r.iface)
}

// HostPrefix returns the /32 (or /128) prefix for a single address.
func HostPrefix(a netip.Addr) netip.Prefix {
	return netip.PrefixFrom(a, a.BitLen())
}
