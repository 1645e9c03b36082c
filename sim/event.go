package sim

// Event defines the interface for all simulation events.
// Each event must have a Timestamp (in ticks) and an Execute method
// that advances simulation state when invoked.
type Event interface {
	Timestamp() int64
	Execute(*Simulator)
}

// FuncEvent adapts a plain callback to the Event interface.
// Most components outside this package schedule work through
// Simulator.At and Simulator.After, which wrap callbacks in a FuncEvent.
type FuncEvent struct {
	time int64
	fn   func(*Simulator)
}

// NewFuncEvent creates an event that calls fn at time t.
func NewFuncEvent(t int64, fn func(*Simulator)) *FuncEvent {
	if fn == nil {
		panic("NewFuncEvent: fn must not be nil")
	}
	return &FuncEvent{time: t, fn: fn}
}

// Timestamp returns the scheduled time of the FuncEvent.
func (e *FuncEvent) Timestamp() int64 {
	return e.time
}

// Execute runs the wrapped callback.
func (e *FuncEvent) Execute(s *Simulator) {
	e.fn(s)
}

// Timer is the pending registration of an event on the clock.
// Cancelling a timer removes the registration; the event never fires.
type Timer struct {
	entry *eventEntry
	sim   *Simulator
}

// When returns the simulated time the timer is (or was) due.
func (t *Timer) When() int64 {
	return t.entry.event.Timestamp()
}

// Pending reports whether the event is still waiting in the queue.
func (t *Timer) Pending() bool {
	return t.entry.index >= 0
}

// Cancel removes the event from the queue. It returns false when the
// event has already fired or was cancelled before.
func (t *Timer) Cancel() bool {
	if !t.Pending() {
		return false
	}
	t.sim.EventQueue.remove(t.entry)
	return true
}
