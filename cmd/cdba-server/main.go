// Command cdba-server runs on the board host, launched over ssh by the
// cdba client. Its stdout is the pure framed wire channel; stderr is
// diagnostics (spec §5). It waits for SELECT_BOARD, then dispatches the
// rest of the session to the chosen board's Device.
package main

import (
	"errors"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"github.com/ardnew/cdba/internal/frame"
	"github.com/ardnew/cdba/internal/loop"
	"github.com/ardnew/cdba/internal/queue"
	"github.com/ardnew/cdba/internal/ring"
	"github.com/ardnew/cdba/pkg"
	"github.com/ardnew/cdba/server/dispatch"
	"github.com/ardnew/cdba/server/registry"
)

const componentMain pkg.Component = "main"

const wireRingCapacity = 1 << 16

// fastbootPollInterval is how often the server rescans sysfs for the
// selected board's fastboot gadget identity appearing or disappearing
// (spec §4.7; see server/dispatch.Dispatcher.PollFastboot).
const fastbootPollInterval = 500 * time.Millisecond

func main() {
	os.Exit(run())
}

func run() int {
	id := uuid.New()
	pkg.SetLogger(pkg.DefaultLogger.With("session", id.String()))

	reg, err := registry.LoadDefault()
	if err != nil {
		pkg.LogError(componentMain, "failed to load registry", "error", err)
		return 1
	}
	user := registry.EffectiveUser()

	lp, err := loop.New()
	if err != nil {
		pkg.LogError(componentMain, "event loop", "error", err)
		return 1
	}
	defer lp.Close()

	var outq queue.Queue
	tx := &wireTransport{q: &outq, lp: lp}
	d := dispatch.New(reg, user, tx)
	defer d.Close()

	readFD, writeFD := int(os.Stdin.Fd()), int(os.Stdout.Fd())
	if err := unix.SetNonblock(readFD, true); err != nil {
		pkg.LogError(componentMain, "set stdin nonblocking", "error", err)
		return 1
	}
	if err := unix.SetNonblock(writeFD, true); err != nil {
		pkg.LogError(componentMain, "set stdout nonblocking", "error", err)
		return 1
	}
	tx.writeFD = writeFD

	inBuf := ring.New(wireRingCapacity)
	dec := frame.NewDecoder(inBuf)

	onRead := func(any) loop.Status {
		if _, err := inBuf.Fill(fdReader{readFD}); err != nil && !errors.Is(err, pkg.ErrWouldBlock) {
			pkg.LogWarn(componentMain, "wire closed", "error", err)
			return loop.Terminate
		}
		for {
			f, ok, err := dec.Decode()
			if err != nil {
				pkg.LogError(componentMain, "protocol error", "error", err)
				return loop.Terminate
			}
			if !ok {
				break
			}
			if err := d.Handle(f); err != nil {
				pkg.LogWarn(componentMain, "terminating session", "error", err)
				return loop.Terminate
			}
		}
		return loop.Continue
	}

	onWrite := func(any) loop.Status {
		if err := outq.Drain(writeFD); err != nil {
			pkg.LogWarn(componentMain, "write error", "error", err)
			return loop.Terminate
		}
		if outq.Empty() {
			lp.DisableWrite(writeFD)
		}
		return loop.Continue
	}

	if err := lp.AddFD(readFD, nil, onRead, nil); err != nil {
		pkg.LogError(componentMain, "watch stdin", "error", err)
		return 1
	}
	if err := lp.AddFD(writeFD, nil, nil, onWrite); err != nil {
		pkg.LogError(componentMain, "watch stdout", "error", err)
		return 1
	}

	var pollFastboot func()
	pollFastboot = func() {
		d.PollFastboot()
		lp.AddTimer(time.Now().Add(fastbootPollInterval), func(any) loop.Status {
			pollFastboot()
			return loop.Continue
		}, nil)
	}
	pollFastboot()

	if err := lp.Run(); err != nil {
		pkg.LogError(componentMain, "event loop", "error", err)
		return 1
	}
	return 0
}

// wireTransport implements dispatch.Transport by marshalling replies
// into the outbound queue and arming write-readiness.
type wireTransport struct {
	q       *queue.Queue
	lp      *loop.Loop
	writeFD int
}

func (t *wireTransport) Reply(kind frame.Kind, payload []byte) {
	t.q.Push(queue.NewFrameItem(kind, payload))
	t.lp.EnableWrite(t.writeFD)
}

type fdReader struct{ fd int }

func (f fdReader) Read(p []byte) (int, error) {
	n, err := unix.Read(f.fd, p)
	if err != nil {
		if err == unix.EAGAIN {
			return 0, pkg.ErrWouldBlock
		}
		return 0, err
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}
