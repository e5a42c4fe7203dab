// Package session implements the client-side session controller (spec
// §4.5): the boot/list/info modes, the boot state machine, inactivity
// and total timeouts, the bounded power-cycle retry policy, and in-band
// power-off marker detection.
//
// Per the redesign note in spec §9, the boot state machine is expressed
// as explicit state carried on [Session] — a [Trigger] and a handful of
// plain data fields (retry budget, whether the image has been sent) —
// rather than as package-level mutable flags. A [Session] is
// driven entirely by its [Transport]: it never touches a socket, a
// timer, or a terminal directly, which makes the whole state machine
// testable with a fake.
package session
