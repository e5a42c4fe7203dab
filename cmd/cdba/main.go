// Command cdba is the operator-facing client: it launches the server
// binary on a remote host over ssh, then drives one of three session
// modes (boot, list, info) against it per spec §4.5/§6.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"time"

	"golang.org/x/sys/unix"

	"github.com/ardnew/cdba/client/session"
	"github.com/ardnew/cdba/client/term"
	"github.com/ardnew/cdba/internal/frame"
	"github.com/ardnew/cdba/internal/loop"
	"github.com/ardnew/cdba/internal/queue"
	"github.com/ardnew/cdba/internal/ring"
	"github.com/ardnew/cdba/pkg"
)

const componentMain pkg.Component = "main"

const (
	defaultServerPath  = "cdba-server"
	defaultTotalSecs   = 600
	wireRingCapacity   = 1 << 16
	keyboardBufferSize = 256
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		board       = flag.String("b", "", "board name")
		host        = flag.String("h", "", "remote host")
		totalSecs   = flag.Int("t", defaultTotalSecs, "total session timeout, in seconds")
		idleSecs    = flag.Int("T", 0, "inactivity timeout, in seconds; 0 disables")
		cycleLower  = flag.Int("c", -1, "power-cycle budget, cycling on any timeout")
		cycleUpper  = flag.Int("C", -1, "power-cycle budget, refusing to cycle on timeout")
		infoMode    = flag.Bool("i", false, "info mode")
		listMode    = flag.Bool("l", false, "list mode")
		repeat      = flag.Bool("R", false, "repeat image on every re-entry to flashing")
		serverPath  = flag.String("S", defaultServerPath, "path to the server binary on the remote host")
		verbose     = flag.Bool("v", false, "enable debug logging")
		jsonLog     = flag.Bool("json", false, "log as JSON instead of text")
	)
	flag.Parse()

	if *verbose {
		pkg.SetLogLevel(slog.LevelDebug)
	}
	if *jsonLog {
		pkg.SetLogFormat(pkg.LogFormatJSON)
	}

	mode := session.ModeBoot
	switch {
	case *listMode:
		mode = session.ModeList
	case *infoMode:
		mode = session.ModeInfo
	}

	if *host == "" {
		fmt.Fprintln(os.Stderr, "cdba: -h HOST is required")
		return 1
	}
	if (mode == session.ModeBoot || mode == session.ModeInfo) && *board == "" {
		fmt.Fprintln(os.Stderr, "cdba: -b NAME is required for this mode")
		return 1
	}
	var imagePath string
	if mode == session.ModeBoot {
		if flag.NArg() < 1 {
			fmt.Fprintln(os.Stderr, "cdba: a boot image path is required")
			return 1
		}
		imagePath = flag.Arg(0)
	}

	retryBudget, cycleOnTimeout := 0, true
	switch {
	case *cycleLower >= 0:
		retryBudget, cycleOnTimeout = *cycleLower, true
	case *cycleUpper >= 0:
		retryBudget, cycleOnTimeout = *cycleUpper, false
	}

	cfg := session.Config{
		Mode:              mode,
		Board:             *board,
		ImagePath:         imagePath,
		TotalTimeout:      time.Duration(*totalSecs) * time.Second,
		InactivityTimeout: time.Duration(*idleSecs) * time.Second,
		RetryBudget:       retryBudget,
		CycleOnTimeout:    cycleOnTimeout,
		RepeatImage:       *repeat,
	}

	sess := session.New(cfg)
	return driveSession(sess, *host, *serverPath)
}

// driveSession owns the resources a session needs beyond the pure state
// machine: the ssh subprocess, the epoll loop, raw terminal mode, and
// signal handling. It returns the process exit code.
func driveSession(sess *session.Session, host, serverPath string) int {
	wire, cleanup, err := dialServer(host, serverPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cdba: %v\n", err)
		return 1
	}
	defer cleanup()

	lp, err := loop.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "cdba: event loop: %v\n", err)
		return 1
	}
	defer lp.Close()

	raw, err := term.MakeRaw(int(os.Stdin.Fd()))
	if err == nil {
		defer raw.Restore()
	} else {
		pkg.LogWarn(componentMain, "could not enter raw terminal mode", "error", err)
	}

	tx := newTransport(lp)

	if err := sess.Start(tx); err != nil {
		fmt.Fprintf(os.Stderr, "cdba: %v\n", err)
		return 1
	}

	wireBuf := ring.New(wireRingCapacity)
	dec := frame.NewDecoder(wireBuf)

	onWireRead := func(any) loop.Status {
		if _, err := wireBuf.Fill(fdReader{wire.readFD}); err != nil && !errors.Is(err, pkg.ErrWouldBlock) {
			pkg.LogWarn(componentMain, "wire closed", "error", err)
			sess.Abort()
			return loop.Terminate
		}
		for {
			f, ok, err := dec.Decode()
			if err != nil {
				pkg.LogError(componentMain, "protocol error", "error", err)
				sess.Abort()
				return loop.Terminate
			}
			if !ok {
				break
			}
			sess.HandleFrame(f)
		}
		return terminateIf(sess)
	}

	onWireWrite := func(any) loop.Status {
		if err := tx.q.Drain(wire.writeFD); err != nil {
			pkg.LogWarn(componentMain, "write error", "error", err)
			sess.Abort()
			return loop.Terminate
		}
		if tx.q.Empty() {
			lp.DisableWrite(wire.writeFD)
		}
		return terminateIf(sess)
	}

	if err := lp.AddFD(wire.readFD, nil, onWireRead, nil); err != nil {
		fmt.Fprintf(os.Stderr, "cdba: %v\n", err)
		return 1
	}
	if err := lp.AddFD(wire.writeFD, nil, nil, onWireWrite); err != nil {
		fmt.Fprintf(os.Stderr, "cdba: %v\n", err)
		return 1
	}
	tx.onEnqueue = func() { lp.EnableWrite(wire.writeFD) }
	if !tx.q.Empty() {
		tx.onEnqueue()
	}

	parser := term.NewParser(sess)
	kbBuf := make([]byte, keyboardBufferSize)
	onKeyboard := func(any) loop.Status {
		n, err := unix.Read(int(os.Stdin.Fd()), kbBuf)
		if err != nil && err != unix.EAGAIN {
			sess.Abort()
			return loop.Terminate
		}
		if n > 0 {
			parser.Feed(kbBuf[:n])
		}
		return terminateIf(sess)
	}
	if err := lp.AddFD(int(os.Stdin.Fd()), nil, onKeyboard, nil); err != nil {
		fmt.Fprintf(os.Stderr, "cdba: %v\n", err)
		return 1
	}

	sigFD, closeSig := watchSignals()
	defer closeSig()
	if sigFD >= 0 {
		if err := lp.AddFD(sigFD, nil, func(any) loop.Status {
			var b [1]byte
			unix.Read(sigFD, b[:])
			sess.Quit()
			return terminateIf(sess)
		}, nil); err != nil {
			fmt.Fprintf(os.Stderr, "cdba: %v\n", err)
			return 1
		}
	}

	if err := lp.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "cdba: %v\n", err)
		return 1
	}
	return sess.ExitCode()
}

func terminateIf(sess *session.Session) loop.Status {
	if sess.Terminated() {
		return loop.Terminate
	}
	return loop.Continue
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

// serverWire holds the two pipe ends the client uses as the framed
// transport to the server process, distinct from the client's own
// stdin/stdout (which carry the operator's terminal).
type serverWire struct {
	readFD, writeFD int
}

// dialServer launches `ssh host serverPath` and returns non-blocking
// descriptors wired to its stdin/stdout.
func dialServer(host, serverPath string) (serverWire, func(), error) {
	serverOut, serverOutWrite, err := os.Pipe()
	if err != nil {
		return serverWire{}, nil, err
	}
	serverInRead, serverIn, err := os.Pipe()
	if err != nil {
		return serverWire{}, nil, err
	}

	cmd := exec.Command("ssh", host, serverPath)
	cmd.Stdin = serverInRead
	cmd.Stdout = serverOutWrite
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return serverWire{}, nil, fmt.Errorf("ssh %s %s: %w", host, serverPath, err)
	}
	serverInRead.Close()
	serverOutWrite.Close()

	if err := unix.SetNonblock(int(serverOut.Fd()), true); err != nil {
		return serverWire{}, nil, err
	}
	if err := unix.SetNonblock(int(serverIn.Fd()), true); err != nil {
		return serverWire{}, nil, err
	}

	cleanup := func() {
		serverOut.Close()
		serverIn.Close()
		cmd.Wait()
	}
	return serverWire{readFD: int(serverOut.Fd()), writeFD: int(serverIn.Fd())}, cleanup, nil
}

// watchSignals returns a self-pipe read end that becomes readable on
// SIGINT/SIGTERM, so the single-threaded loop can react to signals
// without epoll_wait needing to be signal-aware.
func watchSignals() (int, func()) {
	r, w, err := os.Pipe()
	if err != nil {
		pkg.LogWarn(componentMain, "could not install signal handler", "error", err)
		return -1, func() {}
	}
	unix.SetNonblock(int(r.Fd()), true)

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, unix.SIGINT, unix.SIGTERM)
	done := make(chan struct{})
	go func() {
		select {
		case <-ch:
			w.Write([]byte{1})
		case <-done:
		}
	}()

	return int(r.Fd()), func() {
		close(done)
		signal.Stop(ch)
		r.Close()
		w.Close()
	}
}

// transport adapts internal/loop and internal/queue to session.Transport.
type transport struct {
	lp        *loop.Loop
	q         queue.Queue
	onEnqueue func()
}

func newTransport(lp *loop.Loop) *transport {
	return &transport{lp: lp}
}

func (t *transport) Enqueue(item session.Sendable) {
	t.q.Push(item)
	if t.onEnqueue != nil {
		t.onEnqueue()
	}
}

func (t *transport) Schedule(d time.Duration, fn func()) session.Handle {
	return t.lp.AddTimer(time.Now().Add(d), func(any) loop.Status {
		fn()
		return loop.Continue
	}, nil)
}

func (t *transport) Cancel(h session.Handle) {
	timer, ok := h.(*loop.Timer)
	if !ok || timer == nil {
		return
	}
	t.lp.CancelTimer(timer)
}

func (t *transport) WriteConsole(p []byte) { os.Stdout.Write(p) }
func (t *transport) PrintLine(line string) { fmt.Fprintln(os.Stdout, line) }
