// Package queue implements the client's outbound work queue (spec §4.4):
// an ordered FIFO of pending sends, drained whenever the transport file
// descriptor reports write-readiness.
//
// The client never writes to the transport from a message-handling
// callback directly. Instead it pushes an [Item] onto the [Queue] and
// asks the event loop to watch for write-readiness; the loop then calls
// [Queue.Drain] on each writable notification.
//
// An [Item] that can't make progress because the write would block
// leaves itself at the front of the queue to be retried; an item that
// completes a sub-unit of its own work (e.g. one chunk of a streamed
// image) re-enqueues itself at the tail so later items — most often an
// operator keypress — aren't starved behind it. This is the mechanic
// spec §4.5.1 relies on to stream large images without blocking input.
package queue
