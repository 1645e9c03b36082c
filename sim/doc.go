// Package sim provides the discrete-event simulation kernel for qos-sim.
//
// # Reading Guide
//
// Start with these files to understand the kernel:
//   - event.go: Event interface, callback events and cancellable timers
//   - event_queue.go: deterministic (time, scheduling order) event heap
//   - simulator.go: the clock and event loop
//
// # Architecture
//
// The kernel knows nothing about packets. Sub-packages build the network
// on top of it:
//   - sim/packet/: packets, DSCP markings, flow identities, classifier
//   - sim/routing/: policy-based routing with a static fallback table
//   - sim/qdisc/: strict-priority multi-band scheduler
//   - sim/flowmon/: per-flow counters and grouped snapshot reports
//   - sim/network/: nodes, point-to-point links, devices, IPv4-like stack
//   - sim/traffic/: on/off generators (CBR or random gaps) and sinks
//   - sim/trace/: routing decision and drop traces
//   - sim/scenario/: YAML scenarios, presets, builder and runner
//   - sim/report/: tables, SQLite store, Prometheus textfile export
//
// Everything runs on one goroutine. Events at the same tick execute in the
// order they were scheduled, so identical inputs give identical runs.
package sim
