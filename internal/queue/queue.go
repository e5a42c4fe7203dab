package queue

import (
	"errors"

	"github.com/ardnew/cdba/pkg"
)

// Item is one pending unit of outbound work. Send attempts to make
// progress writing to fd (a non-blocking file descriptor) and reports:
//
//   - (true, nil): the item is entirely finished and should be dropped.
//   - (false, nil): the item made progress on a sub-unit of its work
//     (e.g. one chunk of a stream) and wants to cede its turn — it will
//     be re-enqueued at the tail.
//   - (false, [pkg.ErrWouldBlock]): the underlying write couldn't
//     proceed right now; the item is left at the front to retry once
//     the descriptor is writable again.
//   - (false, err) for any other err: fatal, propagated to the caller.
type Item interface {
	Send(fd int) (complete bool, err error)
}

// Queue is a FIFO of pending [Item]s.
type Queue struct {
	items []Item
}

// Push appends item to the tail of the queue.
func (q *Queue) Push(item Item) {
	q.items = append(q.items, item)
}

// Len returns the number of items currently queued.
func (q *Queue) Len() int { return len(q.items) }

// Empty reports whether the queue has no pending items.
func (q *Queue) Empty() bool { return len(q.items) == 0 }

// Drain sends as much of the queue as possible to fd, in FIFO order,
// stopping when the queue empties or a send would block. A would-block
// condition is not an error from Drain's perspective — the caller
// should simply wait for the next write-readiness notification — so
// Drain returns nil in that case too.
func (q *Queue) Drain(fd int) error {
	for len(q.items) > 0 {
		item := q.items[0]
		complete, err := item.Send(fd)
		if err != nil {
			if errors.Is(err, pkg.ErrWouldBlock) {
				return nil
			}
			return err
		}
		q.items = q.items[1:]
		if !complete {
			q.items = append(q.items, item)
		}
	}
	return nil
}
