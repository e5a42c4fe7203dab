package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ardnew/cdba/internal/frame"
)

type scheduled struct {
	d  time.Duration
	fn func()
}

type fakeTransport struct {
	queue  []Sendable
	lines  []string
	stdout []byte
	timers map[int]*scheduled
	seq    int
}

func newFakeTransport() *fakeTransport { return &fakeTransport{timers: map[int]*scheduled{}} }

func (f *fakeTransport) Enqueue(item Sendable) { f.queue = append(f.queue, item) }

func (f *fakeTransport) Schedule(d time.Duration, fn func()) Handle {
	f.seq++
	f.timers[f.seq] = &scheduled{d: d, fn: fn}
	return f.seq
}

func (f *fakeTransport) Cancel(h Handle) {
	id, ok := h.(int)
	if !ok {
		return
	}
	delete(f.timers, id)
}

func (f *fakeTransport) WriteConsole(p []byte) { f.stdout = append(f.stdout, p...) }
func (f *fakeTransport) PrintLine(s string)    { f.lines = append(f.lines, s) }

// fireByDuration simulates the timer scheduled with exactly duration d
// elapsing. Tests pick distinct configured durations so this is
// unambiguous.
func (f *fakeTransport) fireByDuration(t *testing.T, d time.Duration) {
	for id, s := range f.timers {
		if s.d == d {
			delete(f.timers, id)
			s.fn()
			return
		}
	}
	t.Fatalf("no timer scheduled with duration %v", d)
}

func (f *fakeTransport) pendingDuration(d time.Duration) bool {
	for _, s := range f.timers {
		if s.d == d {
			return true
		}
	}
	return false
}

func tempImage(t *testing.T, contents []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "image.bin")
	if err := os.WriteFile(p, contents, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return p
}

func TestSession_BootRejectsMissingImage(t *testing.T) {
	s := New(Config{Mode: ModeBoot, Board: "evb", ImagePath: "/nonexistent/path"})
	if err := s.Start(newFakeTransport()); err == nil {
		t.Fatal("expected error for missing image")
	}
}

func TestSession_BootSelectsBoardOnStart(t *testing.T) {
	tx := newFakeTransport()
	s := New(Config{Mode: ModeBoot, Board: "evb", ImagePath: tempImage(t, nil)})
	if err := s.Start(tx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if len(tx.queue) != 1 {
		t.Fatalf("queue len = %d, want 1", len(tx.queue))
	}
}

func TestSession_FastbootPresentStreamsImageOnce(t *testing.T) {
	tx := newFakeTransport()
	s := New(Config{Mode: ModeBoot, Board: "evb", ImagePath: tempImage(t, make([]byte, 4096))})
	if err := s.Start(tx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	tx.queue = nil

	s.HandleFrame(frame.Frame{Kind: frame.FastbootPresent, Payload: []byte{1}})
	if !s.imageSent {
		t.Fatal("imageSent should be true after FASTBOOT_PRESENT(1)")
	}
	if len(tx.queue) != 1 {
		t.Fatalf("expected one stream item enqueued, got %d", len(tx.queue))
	}

	// A second FASTBOOT_PRESENT(1) without -R should be treated as
	// session success, not a second stream.
	tx.queue = nil
	s.HandleFrame(frame.Frame{Kind: frame.FastbootPresent, Payload: []byte{1}})
	if len(tx.queue) != 0 {
		t.Fatalf("expected no re-stream without -R, got %d items", len(tx.queue))
	}
	if !s.Terminated() || s.ExitCode() != 0 {
		t.Fatalf("expected clean termination, terminated=%v code=%d", s.Terminated(), s.ExitCode())
	}
}

func TestSession_FastbootPresentRepeatsWithRepeatFlag(t *testing.T) {
	tx := newFakeTransport()
	s := New(Config{Mode: ModeBoot, Board: "evb", ImagePath: tempImage(t, []byte("x")), RepeatImage: true})
	if err := s.Start(tx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.HandleFrame(frame.Frame{Kind: frame.FastbootPresent, Payload: []byte{1}})
	tx.queue = nil
	s.HandleFrame(frame.Frame{Kind: frame.FastbootPresent, Payload: []byte{1}})
	if len(tx.queue) != 1 {
		t.Fatalf("expected re-stream with -R, got %d items", len(tx.queue))
	}
	if s.Terminated() {
		t.Fatal("session should not terminate while repeating")
	}
}

func TestSession_PowerOffMarkerTriggersCleanExit(t *testing.T) {
	tx := newFakeTransport()
	s := New(Config{Mode: ModeBoot, Board: "evb", ImagePath: tempImage(t, nil)})
	if err := s.Start(tx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	tildes := make([]byte, tildeMarker)
	for i := range tildes {
		tildes[i] = '~'
	}
	s.HandleFrame(frame.Frame{Kind: frame.Console, Payload: tildes})

	if !s.Terminated() {
		t.Fatal("expected session to terminate on power-off marker")
	}
	if code := s.ExitCode(); code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}
}

func TestSession_PowerOffMarkerSplitAcrossFrames(t *testing.T) {
	tx := newFakeTransport()
	s := New(Config{Mode: ModeBoot, Board: "evb", ImagePath: tempImage(t, nil)})
	if err := s.Start(tx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	first := make([]byte, tildeMarker-1)
	for i := range first {
		first[i] = '~'
	}
	s.HandleFrame(frame.Frame{Kind: frame.Console, Payload: first})
	if s.Terminated() {
		t.Fatal("should not terminate before the 20th tilde")
	}
	s.HandleFrame(frame.Frame{Kind: frame.Console, Payload: []byte("~")})
	if !s.Terminated() || s.ExitCode() != 0 {
		t.Fatalf("expected clean exit once the run completes, terminated=%v code=%d", s.Terminated(), s.ExitCode())
	}
}

func TestSession_NonTildeByteResetsMarkerRun(t *testing.T) {
	tx := newFakeTransport()
	s := New(Config{Mode: ModeBoot, Board: "evb", ImagePath: tempImage(t, nil)})
	if err := s.Start(tx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	run := make([]byte, tildeMarker-1)
	for i := range run {
		run[i] = '~'
	}
	s.HandleFrame(frame.Frame{Kind: frame.Console, Payload: run})
	s.HandleFrame(frame.Frame{Kind: frame.Console, Payload: []byte("x")})
	s.HandleFrame(frame.Frame{Kind: frame.Console, Payload: []byte("~")})
	if s.Terminated() {
		t.Fatal("run should have been reset by the intervening byte")
	}
}

func TestSession_PowerOffMarkerCyclesWhenBudgetRemains(t *testing.T) {
	tx := newFakeTransport()
	s := New(Config{
		Mode: ModeBoot, Board: "evb", ImagePath: tempImage(t, nil),
		RetryBudget: 1,
	})
	if err := s.Start(tx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	tx.queue = nil

	tildes := make([]byte, tildeMarker)
	for i := range tildes {
		tildes[i] = '~'
	}
	s.HandleFrame(frame.Frame{Kind: frame.Console, Payload: tildes})

	if s.Terminated() {
		t.Fatal("should power-cycle instead of terminating while budget remains")
	}
	if s.retryBudget != 0 {
		t.Fatalf("retryBudget = %d, want 0 after spending one cycle", s.retryBudget)
	}
	if len(tx.queue) != 1 {
		t.Fatalf("expected a POWER_OFF enqueued for the cycle, got %d items", len(tx.queue))
	}

	// The server's POWER_OFF ack should schedule the deferred POWER_ON.
	tx.queue = nil
	s.HandleFrame(frame.Frame{Kind: frame.PowerOff})
	if !tx.pendingDuration(autoPowerOnDelay) {
		t.Fatal("expected auto-power-on timer to be armed")
	}
	tx.fireByDuration(t, autoPowerOnDelay)
	if len(tx.queue) != 1 {
		t.Fatalf("expected POWER_ON enqueued after the delay, got %d items", len(tx.queue))
	}
}

func TestSession_TotalTimeoutBeforeFlashExitsTwo(t *testing.T) {
	tx := newFakeTransport()
	s := New(Config{
		Mode: ModeBoot, Board: "evb", ImagePath: tempImage(t, nil),
		TotalTimeout: 10 * time.Second,
	})
	if err := s.Start(tx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	tx.fireByDuration(t, 10*time.Second)
	if !s.Terminated() || s.ExitCode() != 2 {
		t.Fatalf("terminated=%v code=%d, want code 2", s.Terminated(), s.ExitCode())
	}
}

func TestSession_TotalTimeoutAfterFlashExits110(t *testing.T) {
	tx := newFakeTransport()
	s := New(Config{
		Mode: ModeBoot, Board: "evb", ImagePath: tempImage(t, []byte("x")),
		TotalTimeout: 10 * time.Second,
	})
	if err := s.Start(tx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.HandleFrame(frame.Frame{Kind: frame.FastbootPresent, Payload: []byte{1}})
	s.flashed = true // the stream item would set this once it finished writing

	tx.fireByDuration(t, 10*time.Second)
	if !s.Terminated() || s.ExitCode() != 110 {
		t.Fatalf("terminated=%v code=%d, want code 110", s.Terminated(), s.ExitCode())
	}
}

func TestSession_TimeoutRefusesToCycleWhenPolicyForbids(t *testing.T) {
	tx := newFakeTransport()
	s := New(Config{
		Mode: ModeBoot, Board: "evb", ImagePath: tempImage(t, nil),
		InactivityTimeout: 1 * time.Second,
		RetryBudget:       5,
		CycleOnTimeout:    false,
	})
	if err := s.Start(tx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	tx.fireByDuration(t, 1*time.Second)
	if !s.Terminated() || s.ExitCode() != 2 {
		t.Fatalf("terminated=%v code=%d, want code 2 (budget must not be spent on timeout)", s.Terminated(), s.ExitCode())
	}
	if s.retryBudget != 5 {
		t.Fatalf("retryBudget = %d, want untouched at 5", s.retryBudget)
	}
}

func TestSession_TimeoutCyclesThenTerminatesWhenBudgetExhausted(t *testing.T) {
	tx := newFakeTransport()
	s := New(Config{
		Mode: ModeBoot, Board: "evb", ImagePath: tempImage(t, nil),
		InactivityTimeout: 1 * time.Second,
		RetryBudget:       2,
		CycleOnTimeout:    true,
	})
	if err := s.Start(tx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	for i := 2; i > 0; i-- {
		tx.fireByDuration(t, 1*time.Second)
		if s.Terminated() {
			t.Fatalf("should not terminate with %d retries left", i-1)
		}
		// A cycle rearms the inactivity deadline.
		s.armInactivity()
	}
	tx.fireByDuration(t, 1*time.Second)
	if !s.Terminated() || s.ExitCode() != 2 {
		t.Fatalf("terminated=%v code=%d, want code 2 once budget is exhausted", s.Terminated(), s.ExitCode())
	}
}

func TestSession_InactivityRearmsOnEveryMessage(t *testing.T) {
	tx := newFakeTransport()
	s := New(Config{
		Mode: ModeBoot, Board: "evb", ImagePath: tempImage(t, nil),
		InactivityTimeout: 5 * time.Second,
	})
	if err := s.Start(tx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	firstHandle := s.inactivityTimer
	s.HandleFrame(frame.Frame{Kind: frame.StatusUpdate, Payload: []byte("ok")})
	if s.inactivityTimer == firstHandle {
		t.Fatal("expected a new inactivity timer handle after a message was processed")
	}
}

func TestSession_QuitIsClean(t *testing.T) {
	tx := newFakeTransport()
	s := New(Config{Mode: ModeBoot, Board: "evb", ImagePath: tempImage(t, nil)})
	if err := s.Start(tx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.Quit()
	if !s.Terminated() || s.ExitCode() != 0 {
		t.Fatalf("terminated=%v code=%d, want clean exit", s.Terminated(), s.ExitCode())
	}
}

func TestSession_AbortIsError(t *testing.T) {
	tx := newFakeTransport()
	s := New(Config{Mode: ModeBoot, Board: "evb", ImagePath: tempImage(t, nil)})
	if err := s.Start(tx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.Abort()
	if !s.Terminated() || s.ExitCode() != 1 {
		t.Fatalf("terminated=%v code=%d, want error exit", s.Terminated(), s.ExitCode())
	}
}

func TestSession_ListMode(t *testing.T) {
	tx := newFakeTransport()
	s := New(Config{Mode: ModeList})
	if err := s.Start(tx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if len(tx.queue) != 1 {
		t.Fatalf("expected LIST_DEVICES request enqueued, got %d", len(tx.queue))
	}
	s.HandleFrame(frame.Frame{Kind: frame.ListDevices, Payload: []byte("evb: online")})
	if len(tx.lines) != 1 || tx.lines[0] != "evb: online" {
		t.Fatalf("lines = %v", tx.lines)
	}
	if s.Terminated() {
		t.Fatal("should keep listening for more registry rows")
	}
	s.HandleFrame(frame.Frame{Kind: frame.ListDevices, Payload: nil})
	if !s.Terminated() || s.ExitCode() != 0 {
		t.Fatalf("terminated=%v code=%d, want clean exit on empty terminator", s.Terminated(), s.ExitCode())
	}
}

func TestSession_InfoMode(t *testing.T) {
	tx := newFakeTransport()
	s := New(Config{Mode: ModeInfo, Board: "evb"})
	if err := s.Start(tx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.HandleFrame(frame.Frame{Kind: frame.BoardInfo, Payload: []byte("evb: relay 3")})
	if len(tx.lines) != 1 || tx.lines[0] != "evb: relay 3" {
		t.Fatalf("lines = %v", tx.lines)
	}
	if !s.Terminated() || s.ExitCode() != 0 {
		t.Fatalf("terminated=%v code=%d, want clean exit after one reply", s.Terminated(), s.ExitCode())
	}
}
