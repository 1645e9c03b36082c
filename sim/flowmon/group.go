package flowmon

import (
	"fmt"
	"net/netip"

	"go4.org/netipx"

	"github.com/qos-sim/qos-sim/sim/packet"
)

// Predicate selects flows by identity.
type Predicate func(packet.FlowIdentity) bool

// Group is a named set of flows aggregated together in a report.
type Group struct {
	Name  string
	Match Predicate
}

// DstPort matches flows addressed to any of ports.
func DstPort(ports ...uint16) Predicate {
	return func(f packet.FlowIdentity) bool {
		for _, p := range ports {
			if f.DstPort == p {
				return true
			}
		}
		return false
	}
}

// SrcPort matches flows sent from any of ports.
func SrcPort(ports ...uint16) Predicate {
	return func(f packet.FlowIdentity) bool {
		for _, p := range ports {
			if f.SrcPort == p {
				return true
			}
		}
		return false
	}
}

// Protocol matches flows of one IP protocol.
func Protocol(proto uint8) Predicate {
	return func(f packet.FlowIdentity) bool { return f.Protocol == proto }
}

// SrcIn matches flows whose source lies in set.
func SrcIn(set *netipx.IPSet) Predicate {
	return func(f packet.FlowIdentity) bool { return set.Contains(f.Src) }
}

// DstIn matches flows whose destination lies in set.
func DstIn(set *netipx.IPSet) Predicate {
	return func(f packet.FlowIdentity) bool { return set.Contains(f.Dst) }
}

// All matches when every predicate matches. All() matches everything.
func All(preds ...Predicate) Predicate {
	return func(f packet.FlowIdentity) bool {
		for _, p := range preds {
			if !p(f) {
				return false
			}
		}
		return true
	}
}

// Any matches when at least one predicate matches.
func Any(preds ...Predicate) Predicate {
	return func(f packet.FlowIdentity) bool {
		for _, p := range preds {
			if p(f) {
				return true
			}
		}
		return false
	}
}

// Not inverts a predicate.
func Not(pred Predicate) Predicate {
	return func(f packet.FlowIdentity) bool { return !pred(f) }
}

// PrefixSet builds an address set from prefixes.
func PrefixSet(prefixes ...netip.Prefix) (*netipx.IPSet, error) {
	var b netipx.IPSetBuilder
	for _, p := range prefixes {
		if !p.IsValid() {
			return nil, fmt.Errorf("invalid prefix %v", p)
		}
		b.AddPrefix(p.Masked())
	}
	set, err := b.IPSet()
	if err != nil {
		return nil, fmt.Errorf("building prefix set: %w", err)
	}
	return set, nil
}
