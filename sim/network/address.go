package network

import (
	"fmt"
	"net/netip"

	"go4.org/netipx"
)

// AddressAllocator hands out consecutive, equally sized subnets of a base
// prefix, one per link.
type AddressAllocator struct {
	base netip.Prefix
	bits int
	next netip.Addr
	used bool
}

// NewAddressAllocator carves base into /bits subnets.
func NewAddressAllocator(base netip.Prefix, bits int) (*AddressAllocator, error) {
	if !base.IsValid() || !base.Addr().Is4() {
		return nil, fmt.Errorf("address pool %v: must be an IPv4 prefix", base)
	}
	if bits < base.Bits() || bits > 30 {
		return nil, fmt.Errorf("address pool %v: subnet size /%d must be between /%d and /30", base, bits, base.Bits())
	}
	base = base.Masked()
	return &AddressAllocator{base: base, bits: bits, next: base.Addr()}, nil
}

// MustAddressAllocator is NewAddressAllocator that panics on error.
func MustAddressAllocator(base netip.Prefix, bits int) *AddressAllocator {
	a, err := NewAddressAllocator(base, bits)
	if err != nil {
		panic(err)
	}
	return a
}

// Next returns the next unused subnet.
func (a *AddressAllocator) Next() (netip.Prefix, error) {
	if a.used && !a.next.IsValid() {
		return netip.Prefix{}, fmt.Errorf("address pool %v exhausted", a.base)
	}
	p := netip.PrefixFrom(a.next, a.bits)
	if !a.base.Contains(p.Addr()) {
		return netip.Prefix{}, fmt.Errorf("address pool %v exhausted", a.base)
	}
	a.used = true
	a.next = netipx.PrefixLastIP(p).Next()
	return p, nil
}

// Reserve skips past p if it overlaps the subnet the allocator would hand
// out next, so explicit link prefixes and pool prefixes do not collide.
func (a *AddressAllocator) Reserve(p netip.Prefix) {
	if !a.next.IsValid() || !a.base.Overlaps(p) {
		return
	}
	if last := netipx.PrefixLastIP(p.Masked()); !last.Less(a.next) {
		next := last.Next()
		// realign to the subnet boundary
		aligned := netip.PrefixFrom(next, a.bits).Masked()
		if aligned.Addr().Less(next) {
			next = netipx.PrefixLastIP(aligned).Next()
		} else {
			next = aligned.Addr()
		}
		a.next = next
	}
}

// hostAddresses returns the two endpoint addresses of a point-to-point
// subnet: the first and second usable hosts.
func hostAddresses(p netip.Prefix) (netip.Prefix, netip.Prefix, error) {
	p = p.Masked()
	if !p.Addr().Is4() {
		return netip.Prefix{}, netip.Prefix{}, fmt.Errorf("link prefix %v: only IPv4 is supported", p)
	}
	if p.Bits() > 30 {
		return netip.Prefix{}, netip.Prefix{}, fmt.Errorf("link prefix %v: needs at least two host addresses", p)
	}
	first := p.Addr().Next()
	second := first.Next()
	return netip.PrefixFrom(first, p.Bits()), netip.PrefixFrom(second, p.Bits()), nil
}
