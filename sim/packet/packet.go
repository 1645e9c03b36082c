// Package packet defines the packets that flow through the simulated network.
//
// A Packet carries real IPv4 and UDP headers (gopacket layers) so that it
// can be written to pcap files, but only the fields the simulator needs are
// exposed. The DSCP marking sits in the TOS byte; it is written once by New
// and every accessor hands out copies, so it cannot change in flight.
package packet

import (
	"fmt"
	"net"
	"net/netip"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
)

const (
	// IPv4HeaderLen is the size of an option-less IPv4 header.
	IPv4HeaderLen = 20
	// UDPHeaderLen is the size of a UDP header.
	UDPHeaderLen = 8
	// DefaultTTL is the TTL new packets start with.
	DefaultTTL = 64
	// MaxPayload is the largest payload that fits a 16-bit IPv4 length.
	MaxPayload = 65535 - IPv4HeaderLen - UDPHeaderLen
)

// Packet is one simulated datagram.
type Packet struct {
	id          uint64
	ip          layers.IPv4
	udp         layers.UDP
	payloadSize int
	sentAt      int64
}

// New originates a packet for flow with the given marking and payload size.
// now is the origination time, used later to compute one-way delay.
func New(id uint64, flow FlowIdentity, marking Marking, payloadSize int, now int64) *Packet {
	if !flow.Src.Is4() || !flow.Dst.Is4() {
		panic(fmt.Sprintf("packet.New: flow %s is not IPv4", flow))
	}
	if payloadSize < 0 || payloadSize > MaxPayload {
		panic(fmt.Sprintf("packet.New: payload size %d out of range", payloadSize))
	}
	if marking > MaxMarking {
		panic(fmt.Sprintf("packet.New: marking %d out of range", marking))
	}
	src, dst := flow.Src.As4(), flow.Dst.As4()
	return &Packet{
		id: id,
		ip: layers.IPv4{
			Version:  4,
			IHL:      5,
			TOS:      marking.TOS(),
			Length:   uint16(IPv4HeaderLen + UDPHeaderLen + payloadSize),
			Id:       uint16(id),
			TTL:      DefaultTTL,
			Protocol: layers.IPProtocolUDP,
			SrcIP:    net.IP(src[:]),
			DstIP:    net.IP(dst[:]),
		},
		udp: layers.UDP{
			SrcPort: layers.UDPPort(flow.SrcPort),
			DstPort: layers.UDPPort(flow.DstPort),
			Length:  uint16(UDPHeaderLen + payloadSize),
		},
		payloadSize: payloadSize,
		sentAt:      now,
	}
}

// ID returns the simulator-wide packet identifier.
func (p *Packet) ID() uint64 { return p.id }

// Marking returns the DSCP code point the packet was originated with.
func (p *Packet) Marking() Marking { return MarkingFromTOS(p.ip.TOS) }

// Src returns the IPv4 source address.
func (p *Packet) Src() netip.Addr { return addrOf(p.ip.SrcIP) }

// Dst returns the IPv4 destination address.
func (p *Packet) Dst() netip.Addr { return addrOf(p.ip.DstIP) }

// TTL returns the remaining hop limit.
func (p *Packet) TTL() uint8 { return p.ip.TTL }

// SentAt returns the origination time in ticks.
func (p *Packet) SentAt() int64 { return p.sentAt }

// PayloadSize returns the application payload size in bytes.
func (p *Packet) PayloadSize() int { return p.payloadSize }

// Size returns the on-wire IPv4 datagram size in bytes.
func (p *Packet) Size() int { return int(p.ip.Length) }

// Flow returns the packet's five-tuple.
func (p *Packet) Flow() FlowIdentity {
	return FlowIdentity{
		Src:      p.Src(),
		Dst:      p.Dst(),
		SrcPort:  uint16(p.udp.SrcPort),
		DstPort:  uint16(p.udp.DstPort),
		Protocol: uint8(p.ip.Protocol),
	}
}

// IPv4 returns a copy of the network header.
func (p *Packet) IPv4() layers.IPv4 {
	h := p.ip
	h.SrcIP = append(net.IP(nil), p.ip.SrcIP...)
	h.DstIP = append(net.IP(nil), p.ip.DstIP...)
	return h
}

// UDP returns a copy of the transport header.
func (p *Packet) UDP() layers.UDP {
	return p.udp
}

// DecrementTTL is called once per forwarding hop. It returns false when the
// packet has run out of hops and must be dropped.
func (p *Packet) DecrementTTL() bool {
	if p.ip.TTL <= 1 {
		p.ip.TTL = 0
		return false
	}
	p.ip.TTL--
	return true
}

// Encode serializes the packet (headers plus a zero-filled payload) with
// lengths and checksums fixed up.
func (p *Packet) Encode() ([]byte, error) {
	ip := p.IPv4()
	udp := p.udp
	if err := udp.SetNetworkLayerForChecksum(&ip); err != nil {
		return nil, fmt.Errorf("encoding packet %d: %w", p.id, err)
	}
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	payload := gopacket.Payload(make([]byte, p.payloadSize))
	if err := gopacket.SerializeLayers(buf, opts, &ip, &udp, payload); err != nil {
		return nil, fmt.Errorf("encoding packet %d: %w", p.id, err)
	}
	return buf.Bytes(), nil
}

func (p *Packet) String() string {
	return fmt.Sprintf("pkt#%d %s %s ttl=%d len=%d", p.id, p.Flow(), p.Marking(), p.TTL(), p.Size())
}

func addrOf(ip net.IP) netip.Addr {
	a, ok := netip.AddrFromSlice(ip)
	if !ok {
		return netip.Addr{}
	}
	return a.Unmap()
}
