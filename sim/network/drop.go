package network

// DropReason classifies why the network discarded a packet. Drops are
// counted, never returned as errors.
type DropReason string

const (
	DropNoRoute         DropReason = "no-route"
	DropTTLExpired      DropReason = "ttl-expired"
	DropQueueOverflow   DropReason = "queue-overflow"
	DropPortUnreachable DropReason = "port-unreachable"
)

// DropReasons lists every reason in reporting order.
func DropReasons() []DropReason {
	return []DropReason{DropNoRoute, DropTTLExpired, DropQueueOverflow, DropPortUnreachable}
}
