package packet

import (
	"fmt"
	"net/netip"

	"github.com/gopacket/gopacket/layers"
)

// ProtocolUDP is the IANA protocol number carried in FlowIdentity.Protocol
// for the UDP streams the generators emit.
const ProtocolUDP = uint8(layers.IPProtocolUDP)

// FlowIdentity is the five-tuple that identifies one traffic stream.
// It is comparable and used as the aggregation key for flow statistics.
type FlowIdentity struct {
	Src      netip.Addr
	Dst      netip.Addr
	SrcPort  uint16
	DstPort  uint16
	Protocol uint8
}

func (f FlowIdentity) String() string {
	return fmt.Sprintf("%s:%d -> %s:%d/%s", f.Src, f.SrcPort, f.Dst, f.DstPort, layers.IPProtocol(f.Protocol))
}

// Reverse returns the identity of the opposite direction.
func (f FlowIdentity) Reverse() FlowIdentity {
	return FlowIdentity{Src: f.Dst, Dst: f.Src, SrcPort: f.DstPort, DstPort: f.SrcPort, Protocol: f.Protocol}
}
