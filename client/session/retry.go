package session

import (
	"fmt"

	"github.com/ardnew/cdba/internal/frame"
	"github.com/ardnew/cdba/internal/queue"
	"github.com/ardnew/cdba/pkg"
)

// armTotal schedules the session's absolute upper bound. Per spec §4.5.3
// this deadline is never reset by activity, so it is armed exactly once,
// from [Session.Start], and never rearmed even if a retry continues the
// session past it.
func (s *Session) armTotal() {
	if s.cfg.TotalTimeout <= 0 {
		return
	}
	s.tx.Schedule(s.cfg.TotalTimeout, func() {
		s.raiseTimeout()
	})
}

// armInactivity (re)schedules the inactivity deadline. It cancels any
// previously scheduled inactivity timer first, which is how "reset on
// every inbound message" is implemented: there is no in-place timer
// extension, only cancel-and-reschedule.
func (s *Session) armInactivity() {
	if s.cfg.InactivityTimeout <= 0 {
		return
	}
	s.tx.Cancel(s.inactivityTimer)
	s.inactivityTimer = s.tx.Schedule(s.cfg.InactivityTimeout, func() {
		s.raiseTimeout()
	})
}

func (s *Session) raiseTimeout() {
	if s.terminated {
		return
	}
	if s.trigger == triggerNone {
		s.trigger = triggerTimeout
	}
	s.checkRetry()
}

func (s *Session) raisePowerOffMarker() {
	if s.trigger == triggerNone {
		s.trigger = triggerPowerOff
	}
	s.checkRetry()
}

// checkRetry is the retry policy from spec §4.5.3: given a pending
// trigger, either spend one unit of the power-cycle budget and continue
// the session, or terminate with the exit code the trigger and the
// image-sent state dictate.
func (s *Session) checkRetry() {
	trig := s.trigger
	if trig == triggerNone || s.terminated {
		return
	}

	if s.retryBudget <= 0 {
		pkg.LogWarn(pkg.ComponentSession, "power-cycle budget exhausted", "error", pkg.ErrRetryBudgetExhausted)
		s.finish(s.terminalReason(trig))
		return
	}
	if trig == triggerTimeout && !s.cfg.CycleOnTimeout {
		s.finish(s.terminalReason(trig))
		return
	}

	s.retryBudget--
	s.trigger = triggerNone
	s.tx.PrintLine(fmt.Sprintf("cdba: power cycling board (%d retries left)", s.retryBudget))
	s.autoPowerOn = true
	s.tx.Enqueue(queue.NewFrameItem(frame.PowerOff, nil))
	s.armInactivity()
}

func (s *Session) terminalReason(trig Trigger) ExitReason {
	if trig == triggerPowerOff {
		return ExitClean
	}
	if s.flashed {
		return ExitTimeoutAfterFlash
	}
	return ExitTimeoutNoFlash
}
