// sim/simulator.go
package sim

import (
	"container/heap"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Simulator is the core object that holds simulation time and the event loop.
// All state changes happen inside event callbacks on a single goroutine.
type Simulator struct {
	Clock   int64
	Horizon int64
	// EventQueue has all pending events ordered by (time, scheduling order).
	EventQueue EventQueue
	// Executed counts events that have run.
	Executed uint64

	nextSeqID uint64 // per-simulator counter for deterministic same-tick ordering
	stopped   bool
}

// NewSimulator creates a simulator whose clock stops at horizon (in ticks).
// Events scheduled after the horizon never run.
func NewSimulator(horizon int64) *Simulator {
	return &Simulator{
		Clock:      0,
		Horizon:    horizon,
		EventQueue: make(EventQueue, 0),
	}
}

// Now returns the current simulated time in ticks.
func (sim *Simulator) Now() int64 {
	return sim.Clock
}

// Schedule pushes an event into the simulator's EventQueue and returns
// its pending registration.
func (sim *Simulator) Schedule(ev Event) *Timer {
	if ev.Timestamp() < sim.Clock {
		panic(fmt.Sprintf("Schedule: event at %d is in the past (clock=%d)", ev.Timestamp(), sim.Clock))
	}
	sim.nextSeqID++
	entry := &eventEntry{event: ev, seqID: sim.nextSeqID}
	heap.Push(&sim.EventQueue, entry)
	return &Timer{entry: entry, sim: sim}
}

// At schedules fn to run at absolute time t.
func (sim *Simulator) At(t int64, fn func(*Simulator)) *Timer {
	return sim.Schedule(NewFuncEvent(t, fn))
}

// After schedules fn to run d ticks from now.
func (sim *Simulator) After(d int64, fn func(*Simulator)) *Timer {
	if d < 0 {
		panic(fmt.Sprintf("After: negative delay %d", d))
	}
	return sim.At(sim.Clock+d, fn)
}

// Stop ends the run after the currently executing event returns.
func (sim *Simulator) Stop() {
	sim.stopped = true
}

// Run executes events until the queue drains, the horizon is passed,
// or Stop is called.
func (sim *Simulator) Run() {
	for len(sim.EventQueue) > 0 && !sim.stopped {
		if sim.EventQueue.Peek().Timestamp() > sim.Horizon {
			break
		}
		entry := heap.Pop(&sim.EventQueue).(*eventEntry)
		ev := entry.event

		// advance the clock
		if ev.Timestamp() < sim.Clock {
			panic(fmt.Sprintf("Clock went backwards: %d < %d", ev.Timestamp(), sim.Clock))
		}
		sim.Clock = ev.Timestamp()
		ev.Execute(sim)
		sim.Executed++
	}
	if sim.Clock < sim.Horizon && len(sim.EventQueue) > 0 && !sim.stopped {
		sim.Clock = sim.Horizon
	}
	logrus.Debugf("Simulation ended at %s after %d events (%d pending)",
		FormatTicks(sim.Clock), sim.Executed, len(sim.EventQueue))
}
