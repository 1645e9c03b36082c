// Package trace provides decision-trace recording for routing and queueing analysis.
// This package has no dependencies on sim/ or its other sub-packages; it stores plain data types.
package trace

// RoutingRecord captures a single routing decision at one node.
type RoutingRecord struct {
	PacketID  uint64
	Clock     int64
	Node      string
	Marking   string
	Transit   bool   // true for forwarded packets (no policy evaluation)
	Rule      string // matched policy rule; empty when the fallback answered
	Fallback  bool
	NextHop   string
	Interface int
	Err       string // non-empty when no route was found
}

// DropRecord captures a packet discarded by the network.
type DropRecord struct {
	PacketID uint64
	Clock    int64
	Node     string
	Flow     string
	Reason   string
}
