// Package loop implements the single-threaded, cooperative, readiness-
// driven event loop shared by the cdba client and server (spec §4.3).
//
// # Model
//
// A [Loop] multiplexes a set of watched file descriptors and a priority
// queue of timers. Each iteration it computes the readable (and, on
// demand, writable) set, blocks for readiness up to the earliest timer
// deadline, fires expired timers in deadline order (ties broken by
// insertion order), then invokes callbacks for descriptors that are
// ready.
//
// Callbacks run to completion without yielding and must never call back
// into the Loop they are running under (no re-entrancy). A callback's
// [Status] return value is the only way to terminate the loop: returning
// [Terminate] from any callback causes [Loop.Run] to return after that
// iteration finishes firing remaining callbacks in the same batch.
//
// Write readiness is never watched by default; [Loop.EnableWrite] and
// [Loop.DisableWrite] let an outbound work queue (spec §4.4) request it
// only while there's something to drain, matching spec §5's rule that no
// component may block.
package loop
