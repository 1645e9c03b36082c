package routing

import (
	"bytes"
	"errors"
	"net/netip"
	"testing"

	"github.com/gopacket/gopacket/layers"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/qos-sim/qos-sim/sim/packet"
	"github.com/qos-sim/qos-sim/sim/trace"
)

type mockRouter struct {
	mock.Mock
}

func (m *mockRouter) RouteOutput(p *packet.Packet, hdr layers.IPv4, oif int) (RouteDescriptor, error) {
	args := m.Called(p, hdr, oif)
	return args.Get(0).(RouteDescriptor), args.Error(1)
}

func (m *mockRouter) RouteInput(p *packet.Packet, hdr layers.IPv4, iif int) (RouteDescriptor, error) {
	args := m.Called(p, hdr, iif)
	return args.Get(0).(RouteDescriptor), args.Error(1)
}

var (
	primary   = NewRouteDescriptor(netip.Prefix{}, netip.MustParseAddr("10.0.2.2"), 2)
	secondary = NewRouteDescriptor(netip.Prefix{}, netip.MustParseAddr("10.0.3.2"), 3)
)

func pbrRules() []PolicyRule {
	return []PolicyRule{
		{Name: "video", Markings: []packet.Marking{packet.EF}, Route: primary},
		{Name: "data", Markings: []packet.Marking{packet.BE}, Route: secondary},
	}
}

func newTestPacket(id uint64, dst string, m packet.Marking) *packet.Packet {
	return packet.New(id, packet.FlowIdentity{
		Src:      netip.MustParseAddr("10.0.1.1"),
		Dst:      netip.MustParseAddr(dst),
		SrcPort:  49153,
		DstPort:  9,
		Protocol: packet.ProtocolUDP,
	}, m, 1024, 0)
}

func TestPolicyRouter_ExpeditedUsesConfiguredRouteForAnyDestination(t *testing.T) {
	fallback := &mockRouter{}
	r := NewPolicyRouter(fallback, pbrRules())

	for i, dst := range []string{"10.0.2.2", "10.0.3.2", "192.168.7.7", "8.8.8.8"} {
		p := newTestPacket(uint64(i), dst, packet.EF)
		route, err := r.RouteOutput(p, p.IPv4(), AnyInterface)
		require.NoError(t, err, dst)
		assert.Equal(t, primary.NextHop(), route.NextHop(), dst)
		assert.Equal(t, 2, route.Interface(), dst)
		assert.Equal(t, HostPrefix(netip.MustParseAddr(dst)), route.Destination(), dst)
	}
	fallback.AssertNotCalled(t, "RouteOutput", mock.Anything, mock.Anything, mock.Anything)
}

func TestPolicyRouter_UnmatchedMarkingReturnsFallbackResultUnchanged(t *testing.T) {
	fallback := &mockRouter{}
	want := NewRouteDescriptor(netip.MustParsePrefix("10.0.2.0/24"), netip.Addr{}, 2)
	p := newTestPacket(1, "10.0.2.2", packet.AF41)
	fallback.On("RouteOutput", p, p.IPv4(), 1).Return(want, nil).Once()

	r := NewPolicyRouter(fallback, pbrRules())
	d := r.Decide(p, p.IPv4(), 1)

	require.NoError(t, d.Err)
	assert.Equal(t, want, d.Route)
	assert.True(t, d.Fallback)
	assert.Empty(t, d.Rule)
	fallback.AssertExpectations(t)
}

func TestPolicyRouter_FirstMatchWins(t *testing.T) {
	rules := []PolicyRule{
		{Name: "any-premium", Match: func(m packet.Marking) bool { return m >= packet.CS4 }, Route: secondary},
		{Name: "video", Markings: []packet.Marking{packet.EF}, Route: primary},
	}
	r := NewPolicyRouter(nil, rules)
	p := newTestPacket(1, "10.0.2.2", packet.EF)

	d := r.Decide(p, p.IPv4(), AnyInterface)
	require.NoError(t, d.Err)
	assert.Equal(t, "any-premium", d.Rule)
	assert.Equal(t, 3, d.Route.Interface())
}

func TestPolicyRouter_RuleWithExplicitDestination(t *testing.T) {
	fixed := NewRouteDescriptor(netip.MustParsePrefix("0.0.0.0/0"), netip.MustParseAddr("10.0.2.2"), 2)
	r := NewPolicyRouter(nil, []PolicyRule{{Name: "all-ef", Markings: []packet.Marking{packet.EF}, Route: fixed}})
	p := newTestPacket(1, "172.16.0.9", packet.EF)

	route, err := r.RouteOutput(p, p.IPv4(), AnyInterface)
	require.NoError(t, err)
	assert.Equal(t, fixed, route)
}

func TestPolicyRouter_NoMatchNoFallbackFails(t *testing.T) {
	r := NewPolicyRouter(nil, pbrRules())
	p := newTestPacket(1, "10.0.2.2", packet.CS1)

	route, err := r.RouteOutput(p, p.IPv4(), AnyInterface)
	require.Error(t, err)
	assert.True(t, route.IsZero())
	assert.ErrorIs(t, err, ErrNoRoute)
	var rf *RoutingFailure
	require.ErrorAs(t, err, &rf)
	assert.Equal(t, netip.MustParseAddr("10.0.2.2"), rf.Dst)
}

func TestPolicyRouter_FallbackFailurePropagates(t *testing.T) {
	p := newTestPacket(1, "10.9.9.9", packet.CS1)

	t.Run("routing failure passes through", func(t *testing.T) {
		failure := &RoutingFailure{Dst: p.Dst(), Err: ErrNoRoute}
		fallback := &mockRouter{}
		fallback.On("RouteOutput", p, mock.Anything, AnyInterface).Return(RouteDescriptor{}, failure)

		_, err := NewPolicyRouter(fallback, pbrRules()).RouteOutput(p, p.IPv4(), AnyInterface)
		assert.Same(t, failure, err)
	})

	t.Run("foreign error is wrapped", func(t *testing.T) {
		boom := errors.New("table unavailable")
		fallback := &mockRouter{}
		fallback.On("RouteOutput", p, mock.Anything, AnyInterface).
			Return(NewRouteDescriptor(netip.Prefix{}, netip.Addr{}, 1), boom)

		route, err := NewPolicyRouter(fallback, pbrRules()).RouteOutput(p, p.IPv4(), AnyInterface)
		assert.True(t, route.IsZero(), "no route may accompany a failure")
		assert.ErrorIs(t, err, ErrNoRoute)
		assert.ErrorIs(t, err, boom)
		var rf *RoutingFailure
		assert.ErrorAs(t, err, &rf)
	})
}

func TestPolicyRouter_TransitNeverEvaluatesPolicy(t *testing.T) {
	fallback := &mockRouter{}
	want := NewRouteDescriptor(netip.MustParsePrefix("10.0.3.0/24"), netip.Addr{}, 3)
	p := newTestPacket(1, "10.0.3.2", packet.EF) // would match "video" at origination
	fallback.On("RouteInput", p, p.IPv4(), 1).Return(want, nil).Once()

	r := NewPolicyRouter(fallback, pbrRules())
	route, err := r.RouteInput(p, p.IPv4(), 1)

	require.NoError(t, err)
	assert.Equal(t, want, route)
	fallback.AssertExpectations(t)
	stats := r.Stats()
	assert.Equal(t, uint64(1), stats.Transit)
	assert.Zero(t, stats.RuleHits["video"])
}

func TestPolicyRouter_TransitWithoutFallbackFails(t *testing.T) {
	r := NewPolicyRouter(nil, pbrRules())
	p := newTestPacket(1, "10.0.3.2", packet.EF)
	_, err := r.RouteInput(p, p.IPv4(), 1)
	assert.ErrorIs(t, err, ErrNoRoute)
}

func TestPolicyRouter_EmptyFallbackRouteIsFailure(t *testing.T) {
	p := newTestPacket(1, "10.9.9.9", packet.CS1)
	fallback := &mockRouter{}
	fallback.On("RouteOutput", p, mock.Anything, AnyInterface).Return(RouteDescriptor{}, nil)
	fallback.On("RouteInput", p, mock.Anything, 1).Return(RouteDescriptor{}, nil)
	r := NewPolicyRouter(fallback, pbrRules())

	d := r.Decide(p, p.IPv4(), AnyInterface)
	require.Error(t, d.Err)
	assert.True(t, d.Route.IsZero())
	assert.ErrorIs(t, d.Err, ErrNoRoute)
	var rf *RoutingFailure
	require.ErrorAs(t, d.Err, &rf)
	assert.Equal(t, p.Dst(), rf.Dst)

	_, err := r.RouteInput(p, p.IPv4(), 1)
	assert.ErrorIs(t, err, ErrNoRoute)
	assert.ErrorAs(t, err, &rf)

	stats := r.Stats()
	assert.Equal(t, uint64(2), stats.Failures)
	assert.Zero(t, stats.Fallbacks)
	fallback.AssertExpectations(t)
}

// Scenario: a packet whose marking matches no rule is routed exactly like a
// direct call to the fallback with the same header.
func TestPolicyRouter_UnmatchedRoutedLikeDirectFallbackCall(t *testing.T) {
	static := NewStaticRouting()
	require.NoError(t, static.AddConnected(netip.MustParsePrefix("10.0.1.0/24"), 1))
	require.NoError(t, static.AddConnected(netip.MustParsePrefix("10.0.2.0/24"), 2))
	require.NoError(t, static.AddConnected(netip.MustParsePrefix("10.0.3.0/24"), 3))
	require.NoError(t, static.SetDefaultRoute(netip.MustParseAddr("10.0.1.1"), 1, 10))

	r := NewPolicyRouter(static, pbrRules())
	for i, dst := range []string{"10.0.2.2", "10.0.3.2", "10.0.1.1", "203.0.113.5"} {
		p := newTestPacket(uint64(i), dst, packet.AF21)
		hdr := p.IPv4()

		viaPolicy, errPolicy := r.RouteOutput(p, hdr, AnyInterface)
		direct, errDirect := static.RouteOutput(p, hdr, AnyInterface)

		assert.Equal(t, errDirect, errPolicy, dst)
		assert.Equal(t, direct, viaPolicy, dst)
	}
}

func TestPolicyRouter_RejectsUnusableRules(t *testing.T) {
	assert.Panics(t, func() {
		NewPolicyRouter(nil, []PolicyRule{{Name: "empty", Route: primary}})
	})
	assert.Panics(t, func() {
		NewPolicyRouter(nil, []PolicyRule{{Name: "no-route", Markings: []packet.Marking{packet.EF}}})
	})
}

func TestPolicyRouter_RuleTableIsCopied(t *testing.T) {
	rules := pbrRules()
	r := NewPolicyRouter(nil, rules)
	rules[0].Route = secondary

	p := newTestPacket(1, "10.0.2.2", packet.EF)
	route, err := r.RouteOutput(p, p.IPv4(), AnyInterface)
	require.NoError(t, err)
	assert.Equal(t, 2, route.Interface())
	assert.Len(t, r.Rules(), 2)
}

func TestPolicyRouter_ObserversSeeEveryDecision(t *testing.T) {
	st := trace.NewSimulationTrace(trace.TraceConfig{Level: trace.TraceLevelDecisions})
	now := int64(0)
	var seen []Decision
	obs := MultiObserver{
		&TraceObserver{Trace: st, Now: func() int64 { return now }},
		ObserverFunc(func(d Decision) { seen = append(seen, d) }),
	}
	r := NewPolicyRouter(nil, pbrRules(), WithName("router"), WithObserver(obs))

	now = 100
	p1 := newTestPacket(1, "10.0.2.2", packet.EF)
	_, _ = r.RouteOutput(p1, p1.IPv4(), AnyInterface)
	now = 200
	p2 := newTestPacket(2, "10.0.2.2", packet.CS1)
	_, _ = r.RouteOutput(p2, p2.IPv4(), AnyInterface)

	require.Len(t, seen, 2)
	require.Len(t, st.Routings, 2)
	assert.Equal(t, trace.RoutingRecord{
		PacketID: 1, Clock: 100, Node: "router", Marking: "EF", Rule: "video",
		NextHop: "10.0.2.2", Interface: 2,
	}, st.Routings[0])
	assert.Equal(t, int64(200), st.Routings[1].Clock)
	assert.NotEmpty(t, st.Routings[1].Err)
	assert.Equal(t, -1, st.Routings[1].Interface)

	stats := r.Stats()
	assert.Equal(t, uint64(2), stats.Decisions)
	assert.Equal(t, uint64(1), stats.RuleHits["video"])
	assert.Equal(t, uint64(1), stats.Failures)
}

func TestLogObserver_EnabledSwitch(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	obs := NewLogObserver(logrus.NewEntry(logger))
	r := NewPolicyRouter(nil, pbrRules(), WithObserver(obs))
	p := newTestPacket(1, "10.0.2.2", packet.EF)

	_, _ = r.RouteOutput(p, p.IPv4(), AnyInterface)
	require.Len(t, hook.Entries, 1)
	assert.Contains(t, hook.LastEntry().Message, `rule "video" matched`)
	assert.Equal(t, "EF", hook.LastEntry().Data["marking"])

	obs.Enabled = false
	_, _ = r.RouteOutput(p, p.IPv4(), AnyInterface)
	assert.Len(t, hook.Entries, 1, "disabled observer must not log")
}

func TestPolicyRouter_PrintRoutingTable(t *testing.T) {
	static := NewStaticRouting()
	require.NoError(t, static.AddConnected(netip.MustParsePrefix("10.0.2.0/24"), 2))
	r := NewPolicyRouter(static, pbrRules(), WithName("router"))

	var buf bytes.Buffer
	r.PrintRoutingTable(&buf)
	out := buf.String()
	assert.Contains(t, out, "Policy-Based Routing Active (EF -> 10.0.2.2, BE -> 10.0.3.2)")
	assert.Contains(t, out, "video")
	assert.Contains(t, out, "10.0.2.0/24")
	assert.Contains(t, out, "fallback:")
}
