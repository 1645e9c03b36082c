package traffic

import (
	"math/rand"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qos-sim/qos-sim/sim"
	"github.com/qos-sim/qos-sim/sim/network"
	"github.com/qos-sim/qos-sim/sim/packet"
)

func pair(t *testing.T, rateBps int64) (*network.Network, *network.Node, *network.Node) {
	t.Helper()
	n := network.New(sim.NewSimulator(20 * sim.Second))
	a, err := n.AddNode("a")
	require.NoError(t, err)
	b, err := n.AddNode("b")
	require.NoError(t, err)
	_, err = n.Connect(a, b, network.LinkConfig{
		RateBps: rateBps,
		Delay:   time.Millisecond,
		Prefix:  netip.MustParsePrefix("10.0.0.0/30"),
	})
	require.NoError(t, err)
	return n, a, b
}

func baseConfig() OnOffConfig {
	return OnOffConfig{
		Name:       "voip",
		Dst:        netip.MustParseAddrPort("10.0.0.2:9"),
		Marking:    packet.EF,
		PacketSize: 200,
		RateBps:    2_000_000,
		Start:      time.Second,
		Stop:       2 * time.Second,
	}
}

func TestOnOff_ConstantBitRate(t *testing.T) {
	n, a, b := pair(t, 100_000_000)
	sink, err := NewSink(b, 9)
	require.NoError(t, err)

	app, err := NewOnOff(a, baseConfig(), rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	app.Install()
	n.Sim().Run()

	// 2 Mbps of 200 B payloads for one second
	sent, bytes := app.Sent()
	assert.InDelta(t, 1250, float64(sent), 1)
	assert.Equal(t, sent*200, bytes)
	got, _ := sink.Received()
	assert.Equal(t, sent, got)
	assert.Equal(t, network.FirstEphemeralPort, app.Flow().SrcPort)
	assert.Equal(t, uint16(9), app.Flow().DstPort)
	assert.Equal(t, netip.MustParseAddr("10.0.0.1"), app.Flow().Src)
}

func TestOnOff_OffPeriodsPauseSending(t *testing.T) {
	n, a, b := pair(t, 100_000_000)
	_, err := NewSink(b, 9)
	require.NoError(t, err)

	cfg := baseConfig()
	cfg.OnTime = 100 * time.Millisecond
	cfg.OffTime = 100 * time.Millisecond
	app, err := NewOnOff(a, cfg, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	app.Install()
	n.Sim().Run()

	sent, _ := app.Sent()
	assert.InDelta(t, 625, float64(sent), 10, "half duty cycle halves the packet count")
}

func TestOnOff_StartJitterIsDeterministic(t *testing.T) {
	firstSend := func(seed int64) int64 {
		n, a, b := pair(t, 100_000_000)
		var first int64 = -1
		require.NoError(t, b.Stack().Bind(9, func(p *packet.Packet, _ int64) {
			if first < 0 {
				first = p.SentAt()
			}
		}))
		cfg := baseConfig()
		cfg.StartJitter = 50 * time.Millisecond
		app, err := NewOnOff(a, cfg, rand.New(rand.NewSource(seed)))
		require.NoError(t, err)
		app.Install()
		n.Sim().Run()
		return first
	}

	x := firstSend(7)
	assert.Equal(t, x, firstSend(7))
	assert.GreaterOrEqual(t, x, sim.Second)
	assert.LessOrEqual(t, x, sim.Second+50*sim.Millisecond)
}

func TestOnOff_ExponentialPeriods(t *testing.T) {
	n, a, b := pair(t, 100_000_000)
	_, err := NewSink(b, 9)
	require.NoError(t, err)
	cfg := baseConfig()
	cfg.OnTime = 50 * time.Millisecond
	cfg.OffTime = 50 * time.Millisecond
	cfg.Periods = PeriodExponential
	app, err := NewOnOff(a, cfg, rand.New(rand.NewSource(3)))
	require.NoError(t, err)
	app.Install()
	n.Sim().Run()

	sent, _ := app.Sent()
	assert.Greater(t, sent, uint64(0))
	assert.Less(t, sent, uint64(1250))
}

func TestOnOffConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*OnOffConfig)
	}{
		{"no name", func(c *OnOffConfig) { c.Name = "" }},
		{"no destination", func(c *OnOffConfig) { c.Dst = netip.AddrPort{} }},
		{"ipv6 destination", func(c *OnOffConfig) { c.Dst = netip.MustParseAddrPort("[::1]:9") }},
		{"zero size", func(c *OnOffConfig) { c.PacketSize = 0 }},
		{"oversized", func(c *OnOffConfig) { c.PacketSize = packet.MaxPayload + 1 }},
		{"zero rate", func(c *OnOffConfig) { c.RateBps = 0 }},
		{"stop before start", func(c *OnOffConfig) { c.Stop = c.Start }},
		{"negative off", func(c *OnOffConfig) { c.OffTime = -1 }},
		{"bad periods", func(c *OnOffConfig) { c.Periods = "pareto" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
	assert.NoError(t, baseConfig().Validate())
}

func TestSink_PortConflict(t *testing.T) {
	_, _, b := pair(t, 1_000_000)
	s, err := NewSink(b, 9)
	require.NoError(t, err)
	assert.Equal(t, uint16(9), s.Port())
	_, err = NewSink(b, 9)
	assert.Error(t, err)
}
