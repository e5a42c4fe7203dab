package loop

import (
	"container/heap"
	"time"
)

// Status is returned by every callback the loop invokes.
type Status int

// Status values a callback may return.
const (
	// Continue tells the loop to keep running.
	Continue Status = iota
	// Terminate tells the loop to stop after this iteration's remaining
	// callbacks have run.
	Terminate
)

// Callback is invoked by the loop for a ready file descriptor or an
// expired timer. data is the opaque value supplied at registration time.
type Callback func(data any) Status

// Timer is a handle to a scheduled callback, returned by [Loop.AddTimer]
// so it can be cancelled or its deadline inspected before it fires.
type Timer struct {
	deadline time.Time
	seq      uint64
	callback Callback
	data     any
	index    int
	cancelled bool
}

// Deadline returns the absolute time the timer is scheduled to fire.
func (t *Timer) Deadline() time.Time { return t.deadline }

// timerHeap orders pending timers by deadline, breaking ties by
// insertion order (spec §4.3: "ties break by insertion order").
type timerHeap []*Timer

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].deadline.Equal(h[j].deadline) {
		return h[i].seq < h[j].seq
	}
	return h[i].deadline.Before(h[j].deadline)
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	t := x.(*Timer)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}

var _ heap.Interface = (*timerHeap)(nil)
