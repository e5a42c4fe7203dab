// Package device implements the server-side board abstraction (spec
// §4.6): a polymorphic Device exposing power, console, USB, break, boot,
// status, and fastboot-key-hold operations over whichever concrete
// backend a registry record names. One Device is created per session,
// from the parameters attached to the board selected by SELECT_BOARD,
// and is exclusively owned by that session's event loop iteration.
package device
