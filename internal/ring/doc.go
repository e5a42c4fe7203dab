// Package ring implements a fixed-capacity byte ring used to reassemble
// protocol frames from a non-blocking stream.
//
// # Design
//
// A [Buffer] never grows: capacity is fixed at construction and Fill
// never reads more than the free space. A frame too large to ever fit is
// reported as [pkg.ErrOverflow] by the frame decoder, and callers must
// treat that as a fatal protocol error (the peer is misbehaving, or the
// configured capacity is too small for the traffic in flight).
//
//	buf := ring.New(32 * 1024)
//	n, err := buf.Fill(conn)
//	if err != nil {
//	    // conn broke or reached EOF
//	}
//	hdr, _ := buf.Peek(frame.HeaderSize)
//
// Fill reads whatever is currently available from a non-blocking source
// into free space; Peek inspects the next n bytes without consuming them;
// Read consumes exactly n bytes or refuses with [pkg.ErrShortRead].
package ring
