package session

import (
	"fmt"
	"os"
	"time"

	"github.com/ardnew/cdba/internal/frame"
	"github.com/ardnew/cdba/internal/queue"
	"github.com/ardnew/cdba/pkg"
)

// tildeMarker is the number of consecutive '~' bytes on the console
// that the server uses to signal an in-band graceful power-off (spec
// §4.5.2).
const tildeMarker = 20

// autoPowerOnDelay is how long the client waits after a POWER_OFF
// triggered by a retry before re-issuing POWER_ON. Spec §9 redesigns
// this from a blocking sleep into a single-shot timer; see
// [Session.handlePowerOffAck].
const autoPowerOnDelay = 2 * time.Second

// Trigger names the event that last asked the retry policy for a
// decision (spec §4.5.3). It replaces the original implementation's
// pair of independent received_power_off/reached_timeout flags with one
// tagged value, so the two triggers can never appear simultaneously and
// confuse the policy.
type Trigger int

const (
	triggerNone Trigger = iota
	triggerPowerOff
	triggerTimeout
)

// Config are the parameters of one [Session], gathered from the
// client's CLI flags (spec §6).
type Config struct {
	Mode      Mode
	Board     string
	ImagePath string

	// TotalTimeout bounds the whole session and is never rearmed.
	// Zero disables it (not recommended for boot mode; cmd/cdba applies
	// the 600s default before constructing Config).
	TotalTimeout time.Duration
	// InactivityTimeout, if nonzero, is rearmed on every inbound
	// message and fires if the server goes quiet.
	InactivityTimeout time.Duration

	// RetryBudget is how many power-cycles the session may spend
	// before giving up.
	RetryBudget int
	// CycleOnTimeout, when false (-C), forbids spending the retry
	// budget on a timeout trigger; a power-off marker may still cycle.
	CycleOnTimeout bool
	// RepeatImage, when true (-R), re-streams the image every time the
	// board re-enters fastboot instead of treating a repeat as success.
	RepeatImage bool
}

// Session is the client-side state machine for one run of cdba. It is
// driven by [Session.HandleFrame] for inbound protocol messages and by
// the escape-sequence actions in actions.go for operator input; it
// drives the world back through the [Transport] given to [Session.Start].
type Session struct {
	cfg Config
	tx  Transport

	terminated bool
	exitReason ExitReason

	trigger     Trigger
	retryBudget int
	autoPowerOn bool

	tildeRun int

	imageSent bool
	flashed   bool
	imageData []byte

	inactivityTimer Handle
}

// New constructs a Session from cfg. The session does nothing until
// [Session.Start] is called.
func New(cfg Config) *Session {
	return &Session{cfg: cfg, retryBudget: cfg.RetryBudget}
}

// Start validates preconditions for cfg.Mode, sends the opening
// request, and arms the session's timers. tx is retained for the
// lifetime of the session.
func (s *Session) Start(tx Transport) error {
	s.tx = tx

	switch s.cfg.Mode {
	case ModeBoot:
		info, err := os.Stat(s.cfg.ImagePath)
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return pkg.ErrNotRegular
		}
		tx.Enqueue(queue.NewFrameItem(frame.SelectBoard, []byte(s.cfg.Board)))
		s.armTotal()
		s.armInactivity()
	case ModeList:
		tx.Enqueue(queue.NewFrameItem(frame.ListDevices, nil))
	case ModeInfo:
		tx.Enqueue(queue.NewFrameItem(frame.BoardInfo, []byte(s.cfg.Board)))
	}
	return nil
}

// Terminated reports whether the session has reached a final state.
// The caller (cmd/cdba's event loop wiring) checks this after every
// callback that may have driven the session to completion.
func (s *Session) Terminated() bool { return s.terminated }

// ExitCode maps the session's terminal ExitReason to a process exit
// code per spec §6. It is meaningless before [Session.Terminated]
// returns true.
func (s *Session) ExitCode() int {
	switch s.exitReason {
	case ExitClean:
		return 0
	case ExitTimeoutNoFlash:
		return 2
	case ExitTimeoutAfterFlash:
		return 110
	default:
		return 1
	}
}

// Abort terminates the session with [ExitError], for transport or
// protocol failures detected outside the state machine (a decode error,
// an unexpected EOF). It is a no-op if the session already terminated.
func (s *Session) Abort() {
	if !s.terminated {
		s.finish(ExitError)
	}
}

func (s *Session) finish(reason ExitReason) {
	if s.terminated {
		return
	}
	s.terminated = true
	s.exitReason = reason
	s.tx.Cancel(s.inactivityTimer)
}

// HandleFrame dispatches one inbound frame to the active mode's
// handler. Every inbound message, regardless of kind, rearms the
// inactivity timeout (spec §4.5.3).
func (s *Session) HandleFrame(f frame.Frame) {
	if s.terminated {
		return
	}
	if s.cfg.Mode == ModeBoot {
		s.armInactivity()
	}
	switch s.cfg.Mode {
	case ModeList:
		s.handleList(f)
	case ModeInfo:
		s.handleInfo(f)
	default:
		s.handleBoot(f)
	}
}

func (s *Session) handleList(f frame.Frame) {
	if f.Kind != frame.ListDevices {
		return
	}
	if len(f.Payload) == 0 {
		s.finish(ExitClean)
		return
	}
	s.tx.PrintLine(string(f.Payload))
}

func (s *Session) handleInfo(f frame.Frame) {
	if f.Kind != frame.BoardInfo {
		return
	}
	s.tx.PrintLine(string(f.Payload))
	s.finish(ExitClean)
}

func (s *Session) handleBoot(f frame.Frame) {
	switch f.Kind {
	case frame.Console:
		s.tx.WriteConsole(f.Payload)
		s.feedMarker(f.Payload)
	case frame.StatusUpdate:
		s.tx.PrintLine(string(f.Payload))
	case frame.FastbootPresent:
		s.handleFastbootPresent(f.Payload)
	case frame.PowerOff:
		s.handlePowerOffAck()
	case frame.SelectBoard, frame.PowerOn, frame.FastbootDownload,
		frame.FastbootBoot, frame.FastbootContinue:
		// Acknowledgements the client doesn't need to react to beyond
		// the inactivity rearm already applied above.
	}
}

func (s *Session) handleFastbootPresent(payload []byte) {
	if len(payload) == 0 {
		return
	}
	if payload[0] == 0 {
		return
	}
	if !s.imageSent || s.cfg.RepeatImage {
		s.beginStreaming()
		return
	}
	// Board re-entered fastboot without -R: the previous flash already
	// succeeded, so there's nothing more productive to do.
	s.finish(ExitClean)
}

// handlePowerOffAck fires the deferred auto-power-on once the server
// confirms a retry-triggered POWER_OFF took effect.
func (s *Session) handlePowerOffAck() {
	if !s.autoPowerOn {
		return
	}
	s.autoPowerOn = false
	s.tx.Schedule(autoPowerOnDelay, func() {
		s.tx.Enqueue(queue.NewFrameItem(frame.PowerOn, nil))
	})
}

func (s *Session) beginStreaming() {
	if s.imageData == nil {
		data, err := os.ReadFile(s.cfg.ImagePath)
		if err != nil {
			s.tx.PrintLine(fmt.Sprintf("cdba: read image: %v", err))
			s.finish(ExitError)
			return
		}
		s.imageData = data
	}
	s.imageSent = true
	s.tx.Enqueue(newImageStream(s.imageData, func() { s.flashed = true }))
}
