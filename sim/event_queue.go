package sim

import "container/heap"

// eventEntry wraps an Event with a sequence ID for deterministic FIFO
// tie-breaking when timestamps are equal. index is the entry's heap
// position, -1 once it has left the queue.
type eventEntry struct {
	event Event
	seqID uint64
	index int
}

// EventQueue is a min-heap ordered by (Timestamp, seqID).
// Events scheduled for the same tick run in the order they were scheduled.
// See canonical Golang example here: https://pkg.go.dev/container/heap#example-package-PriorityQueue
type EventQueue []*eventEntry

func (eq EventQueue) Len() int { return len(eq) }

func (eq EventQueue) Less(i, j int) bool {
	if eq[i].event.Timestamp() != eq[j].event.Timestamp() {
		return eq[i].event.Timestamp() < eq[j].event.Timestamp()
	}
	return eq[i].seqID < eq[j].seqID
}

func (eq EventQueue) Swap(i, j int) {
	eq[i], eq[j] = eq[j], eq[i]
	eq[i].index = i
	eq[j].index = j
}

func (eq *EventQueue) Push(x any) {
	entry := x.(*eventEntry)
	entry.index = len(*eq)
	*eq = append(*eq, entry)
}

func (eq *EventQueue) Pop() any {
	old := *eq
	n := len(old)
	entry := old[n-1]
	old[n-1] = nil
	entry.index = -1
	*eq = old[0 : n-1]
	return entry
}

// Peek returns the next event without removing it, or nil when empty.
func (eq EventQueue) Peek() Event {
	if len(eq) == 0 {
		return nil
	}
	return eq[0].event
}

func (eq *EventQueue) remove(entry *eventEntry) {
	heap.Remove(eq, entry.index)
}
