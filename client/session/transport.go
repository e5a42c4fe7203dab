package session

import "time"

// Handle identifies a scheduled callback so it can later be cancelled.
// Its zero value (nil) is a valid no-op handle.
type Handle any

// Transport is everything a [Session] needs from the world outside its
// own state: a place to enqueue outbound frames, a way to schedule and
// cancel timers, and the two operator-facing output streams (raw
// console bytes versus status lines). cmd/cdba supplies the real
// implementation, wiring Enqueue to an [internal/queue.Queue], Schedule
// and Cancel to an [internal/loop.Loop] timer, and the output methods to
// os.Stdout.
//
// Keeping this as an interface rather than threading *loop.Loop and
// *queue.Queue through Session directly is what lets the boot state
// machine in this package be tested without epoll.
type Transport interface {
	// Enqueue appends an outbound work item, to be sent once the
	// transport's descriptor is writable.
	Enqueue(item Sendable)

	// Schedule arranges for fn to run once, after d elapses. The
	// returned Handle may be passed to Cancel before fn runs.
	Schedule(d time.Duration, fn func()) Handle

	// Cancel prevents a previously scheduled callback from running. It
	// is a no-op if the callback already ran or h is nil.
	Cancel(h Handle)

	// WriteConsole forwards raw bytes read from the board's console to
	// the operator's terminal, unmodified.
	WriteConsole(p []byte)

	// PrintLine writes one line of status/diagnostic text for the
	// operator, e.g. a STATUS_UPDATE payload or a board-info reply.
	PrintLine(line string)
}

// Sendable is the subset of internal/queue.Item that this package
// depends on. It has the same method set as internal/queue.Item, so
// cmd/cdba can push any Sendable (a *queue.FrameItem or an image
// stream) straight onto an internal/queue.Queue.
type Sendable interface {
	Send(fd int) (complete bool, err error)
}
