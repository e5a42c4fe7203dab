// Package term owns the client's operator-facing terminal: putting the
// controlling tty into raw mode so keystrokes reach cdba one byte at a
// time, and decoding the 0x01-prefixed escape sequences (spec §4.5.4)
// that the operator uses to drive the session out-of-band from the
// board's console.
package term
