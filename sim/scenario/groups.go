package scenario

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	"go4.org/netipx"

	"github.com/qos-sim/qos-sim/sim/flowmon"
	"github.com/qos-sim/qos-sim/sim/packet"
)

func (g FlowGroupConfig) group() (flowmon.Group, error) {
	if g.Name == "" {
		return flowmon.Group{}, fmt.Errorf("name is required")
	}
	var preds []flowmon.Predicate
	if len(g.SrcPorts) > 0 {
		preds = append(preds, flowmon.SrcPort(g.SrcPorts...))
	}
	if len(g.DstPorts) > 0 {
		preds = append(preds, flowmon.DstPort(g.DstPorts...))
	}
	if g.Protocol != "" {
		proto, err := parseProtocol(g.Protocol)
		if err != nil {
			return flowmon.Group{}, fmt.Errorf("group %q: %w", g.Name, err)
		}
		preds = append(preds, flowmon.Protocol(proto))
	}
	if len(g.SrcPrefixes) > 0 {
		set, err := prefixSet(g.SrcPrefixes)
		if err != nil {
			return flowmon.Group{}, fmt.Errorf("group %q: src_prefixes: %w", g.Name, err)
		}
		preds = append(preds, flowmon.SrcIn(set))
	}
	if len(g.DstPrefixes) > 0 {
		set, err := prefixSet(g.DstPrefixes)
		if err != nil {
			return flowmon.Group{}, fmt.Errorf("group %q: dst_prefixes: %w", g.Name, err)
		}
		preds = append(preds, flowmon.DstIn(set))
	}
	return flowmon.Group{Name: g.Name, Match: flowmon.All(preds...)}, nil
}

func parseProtocol(s string) (uint8, error) {
	switch strings.ToLower(s) {
	case "udp":
		return packet.ProtocolUDP, nil
	}
	v, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("unknown protocol %q", s)
	}
	return uint8(v), nil
}

func prefixSet(ss []string) (*netipx.IPSet, error) {
	prefixes := make([]netip.Prefix, 0, len(ss))
	for _, s := range ss {
		p, err := netip.ParsePrefix(s)
		if err != nil {
			return nil, err
		}
		prefixes = append(prefixes, p)
	}
	return flowmon.PrefixSet(prefixes...)
}
