//go:build linux

package loop

import (
	"container/heap"
	"time"

	"golang.org/x/sys/unix"

	"github.com/ardnew/cdba/pkg"
)

// maxEvents bounds how many ready descriptors are drained in a single
// epoll_wait call; additional readiness is picked up on the next
// iteration.
const maxEvents = 64

// fdWatch tracks the callbacks and interest mask registered for one file
// descriptor.
type fdWatch struct {
	fd           int
	data         any
	onRead       Callback
	onWrite      Callback
	writeEnabled bool
}

// Loop is an epoll(7)-backed readiness multiplexer implementing the
// contract in spec §4.3. It is not safe for concurrent use: it is driven
// exclusively by the goroutine that calls [Loop.Run].
type Loop struct {
	epfd   int
	reads  map[int]*fdWatch
	timers timerHeap
	seq    uint64
	events [maxEvents]unix.EpollEvent
}

// New creates an epoll instance backing a new Loop.
func New() (*Loop, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &Loop{
		epfd:  epfd,
		reads: make(map[int]*fdWatch),
	}, nil
}

// Close releases the loop's epoll instance. It does not close any
// watched file descriptors.
func (l *Loop) Close() error {
	return unix.Close(l.epfd)
}

// AddFD registers fd with the loop. onRead is invoked whenever fd
// becomes readable; it may be nil if the descriptor is write-only at
// registration time. Write readiness is never requested until
// [Loop.EnableWrite] is called.
func (l *Loop) AddFD(fd int, data any, onRead, onWrite Callback) error {
	w := &fdWatch{fd: fd, data: data, onRead: onRead, onWrite: onWrite}
	l.reads[fd] = w

	var events uint32
	if onRead != nil {
		events |= unix.EPOLLIN
	}
	return unix.EpollCtl(l.epfd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{
		Events: events,
		Fd:     int32(fd),
	})
}

// RemoveFD stops watching fd.
func (l *Loop) RemoveFD(fd int) error {
	delete(l.reads, fd)
	return unix.EpollCtl(l.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

// EnableWrite requests write readiness notifications for fd, for use by
// an outbound work queue (spec §4.4) when it has something to drain.
func (l *Loop) EnableWrite(fd int) error {
	w, ok := l.reads[fd]
	if !ok || w.writeEnabled {
		return nil
	}
	w.writeEnabled = true
	return l.modify(w)
}

// DisableWrite stops requesting write readiness for fd once the work
// queue has drained.
func (l *Loop) DisableWrite(fd int) error {
	w, ok := l.reads[fd]
	if !ok || !w.writeEnabled {
		return nil
	}
	w.writeEnabled = false
	return l.modify(w)
}

func (l *Loop) modify(w *fdWatch) error {
	var events uint32
	if w.onRead != nil {
		events |= unix.EPOLLIN
	}
	if w.writeEnabled {
		events |= unix.EPOLLOUT
	}
	return unix.EpollCtl(l.epfd, unix.EPOLL_CTL_MOD, w.fd, &unix.EpollEvent{
		Events: events,
		Fd:     int32(w.fd),
	})
}

// AddTimer schedules cb to run at (or after) deadline. Timers fire in
// deadline order; ties break by registration order.
func (l *Loop) AddTimer(deadline time.Time, cb Callback, data any) *Timer {
	l.seq++
	t := &Timer{deadline: deadline, seq: l.seq, callback: cb, data: data, index: -1}
	heap.Push(&l.timers, t)
	return t
}

// CancelTimer prevents t from firing. It is safe to call even if t has
// already fired or been cancelled.
func (l *Loop) CancelTimer(t *Timer) {
	if t.cancelled {
		return
	}
	t.cancelled = true
	if t.index >= 0 {
		heap.Remove(&l.timers, t.index)
	}
}

// Run executes the event loop until a callback returns [Terminate].
func (l *Loop) Run() error {
	for {
		timeoutMS := -1
		if l.timers.Len() > 0 {
			d := time.Until(l.timers[0].deadline)
			if d < 0 {
				d = 0
			}
			timeoutMS = int(d / time.Millisecond)
		}

		n, err := unix.EpollWait(l.epfd, l.events[:], timeoutMS)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return err
		}

		status := l.fireExpiredTimers()

		for i := 0; i < n; i++ {
			ev := l.events[i]
			w, ok := l.reads[int(ev.Fd)]
			if !ok {
				continue
			}
			if ev.Events&unix.EPOLLIN != 0 && w.onRead != nil {
				if w.onRead(w.data) == Terminate {
					status = Terminate
				}
			}
			if ev.Events&unix.EPOLLOUT != 0 && w.writeEnabled && w.onWrite != nil {
				if w.onWrite(w.data) == Terminate {
					status = Terminate
				}
			}
		}

		if status == Terminate {
			pkg.LogDebug(pkg.ComponentLoop, "terminate requested")
			return nil
		}
	}
}

// fireExpiredTimers pops and invokes every timer whose deadline has
// passed, removing each from the heap before invoking its callback so a
// callback that re-arms the same logical timer doesn't race itself.
func (l *Loop) fireExpiredTimers() Status {
	status := Continue
	now := time.Now()
	for l.timers.Len() > 0 && !l.timers[0].deadline.After(now) {
		t := heap.Pop(&l.timers).(*Timer)
		t.index = -1
		if t.cancelled {
			continue
		}
		if t.callback(t.data) == Terminate {
			status = Terminate
		}
	}
	return status
}
