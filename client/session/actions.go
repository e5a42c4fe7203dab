package session

import (
	"github.com/ardnew/cdba/internal/frame"
	"github.com/ardnew/cdba/internal/queue"
)

// The methods below satisfy client/term's Actions interface by
// structural typing, so this package never needs to import term. Each
// one mirrors one escape key from spec §4.5.4.

// Quit ends the session as if the operator had pressed 'q'.
func (s *Session) Quit() { s.finish(ExitClean) }

// PowerOn sends an unsolicited POWER_ON, for the operator's 'P' key.
func (s *Session) PowerOn() { s.tx.Enqueue(queue.NewFrameItem(frame.PowerOn, nil)) }

// PowerOff sends an unsolicited POWER_OFF, for the operator's 'p' key.
// This does not set autoPowerOn — an operator-initiated power-off
// doesn't imply the client should power back on.
func (s *Session) PowerOff() { s.tx.Enqueue(queue.NewFrameItem(frame.PowerOff, nil)) }

// Status requests a STATUS_UPDATE, for the operator's 's' key.
func (s *Session) Status() { s.tx.Enqueue(queue.NewFrameItem(frame.StatusUpdate, nil)) }

// VBusOn enables VBUS, for the operator's 'V' key.
func (s *Session) VBusOn() { s.tx.Enqueue(queue.NewFrameItem(frame.VBusOn, nil)) }

// VBusOff disables VBUS, for the operator's 'v' key.
func (s *Session) VBusOff() { s.tx.Enqueue(queue.NewFrameItem(frame.VBusOff, nil)) }

// Break sends SEND_BREAK, for the operator's 'B' key.
func (s *Session) Break() { s.tx.Enqueue(queue.NewFrameItem(frame.SendBreak, nil)) }

// Console forwards a single raw byte to the board's console, either
// because it wasn't part of an escape sequence or because the operator
// typed 'a' to pass a literal 0x01 through (spec §4.5.4).
func (s *Session) Console(b byte) {
	s.tx.Enqueue(queue.NewFrameItem(frame.Console, []byte{b}))
}
