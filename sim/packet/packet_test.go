package packet

import (
	"bytes"
	"net/netip"
	"testing"
	"time"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/gopacket/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFlow() FlowIdentity {
	return FlowIdentity{
		Src:      netip.MustParseAddr("10.1.3.1"),
		Dst:      netip.MustParseAddr("10.1.3.2"),
		SrcPort:  49153,
		DstPort:  9,
		Protocol: ProtocolUDP,
	}
}

func TestParseMarking(t *testing.T) {
	tests := []struct {
		in      string
		want    Marking
		wantErr bool
	}{
		{"EF", EF, false},
		{"ef", EF, false},
		{"BE", BE, false},
		{"default", BE, false},
		{"AF41", AF41, false},
		{"46", EF, false},
		{"0x2e", EF, false},
		{"63", MaxMarking, false},
		{"64", 0, true},
		{"gold", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMarking(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMarking_TOSRoundTrip(t *testing.T) {
	// DSCP EF sits in the TOS byte as 0xb8.
	assert.Equal(t, uint8(0xb8), EF.TOS())
	assert.Equal(t, EF, MarkingFromTOS(0xb8))
	// ECN bits are ignored.
	assert.Equal(t, EF, MarkingFromTOS(0xbb))
	assert.Equal(t, "EF", EF.String())
	assert.Equal(t, "DSCP5", Marking(5).String())
}

func TestNew_Accessors(t *testing.T) {
	flow := testFlow()
	p := New(7, flow, EF, 200, 1500)

	assert.Equal(t, uint64(7), p.ID())
	assert.Equal(t, EF, p.Marking())
	assert.Equal(t, flow, p.Flow())
	assert.Equal(t, 228, p.Size())
	assert.Equal(t, 200, p.PayloadSize())
	assert.Equal(t, int64(1500), p.SentAt())
	assert.Equal(t, uint8(DefaultTTL), p.TTL())
	assert.Equal(t, flow.Dst, p.Dst())
	assert.Equal(t, EF, DSCPClassifier{}.Classify(p))
	assert.Equal(t, EF, MarkingOfHeader(p.IPv4()))
}

func TestPacket_HeaderCopiesCannotChangeMarking(t *testing.T) {
	p := New(1, testFlow(), EF, 10, 0)

	hdr := p.IPv4()
	hdr.TOS = BE.TOS()
	hdr.DstIP[3] = 99

	assert.Equal(t, EF, p.Marking())
	assert.Equal(t, netip.MustParseAddr("10.1.3.2"), p.Dst())
}

func TestPacket_DecrementTTL(t *testing.T) {
	p := New(1, testFlow(), BE, 0, 0)
	for i := 0; i < DefaultTTL-1; i++ {
		require.True(t, p.DecrementTTL(), "hop %d", i)
	}
	assert.Equal(t, uint8(1), p.TTL())
	assert.False(t, p.DecrementTTL())
	assert.Equal(t, uint8(0), p.TTL())
}

func TestNew_RejectsIPv6(t *testing.T) {
	flow := testFlow()
	flow.Dst = netip.MustParseAddr("2001:db8::1")
	assert.Panics(t, func() { New(1, flow, BE, 0, 0) })
}

func TestPacket_EncodeDecodes(t *testing.T) {
	p := New(3, testFlow(), AF41, 100, 0)
	data, err := p.Encode()
	require.NoError(t, err)
	require.Len(t, data, p.Size())

	decoded := gopacket.NewPacket(data, layers.LayerTypeIPv4, gopacket.Default)
	ipLayer, ok := decoded.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
	require.True(t, ok)
	udpLayer, ok := decoded.Layer(layers.LayerTypeUDP).(*layers.UDP)
	require.True(t, ok)

	assert.Equal(t, AF41, MarkingOfHeader(*ipLayer))
	assert.Equal(t, uint16(p.Size()), ipLayer.Length)
	assert.Equal(t, layers.UDPPort(9), udpLayer.DstPort)
	assert.Equal(t, layers.UDPPort(49153), udpLayer.SrcPort)
}

func TestCaptureWriter_WritesReadablePcap(t *testing.T) {
	var buf bytes.Buffer
	cw, err := NewCaptureWriter(&buf)
	require.NoError(t, err)

	ts := time.Unix(0, 0).UTC().Add(1500 * time.Millisecond)
	require.NoError(t, cw.Write(New(1, testFlow(), EF, 200, 0), ts))
	require.NoError(t, cw.Write(New(2, testFlow(), BE, 1500, 0), ts))
	assert.Equal(t, 2, cw.Count())

	r, err := pcapgo.NewReader(&buf)
	require.NoError(t, err)
	assert.Equal(t, layers.LinkTypeRaw, r.LinkType())

	data, ci, err := r.ReadPacketData()
	require.NoError(t, err)
	assert.Len(t, data, 228)
	assert.True(t, ci.Timestamp.Equal(ts))
}
