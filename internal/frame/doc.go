// Package frame implements the wire framing shared by the cdba client and
// server: a 4-byte header (message kind, payload length) followed by the
// payload, reassembled from a [ring.Buffer].
//
// # Wire format
//
// Per spec §3/§9 the header fields are little-endian — the original
// implementation used the host's native order, which this reimplementation
// fixes to a portable byte order as the design notes recommend:
//
//	+--------+--------+--------+--------+---------+
//	| kind lo| kind hi|  len lo|  len hi | payload |
//	+--------+--------+--------+--------+---------+
//
// # Decoding
//
// [Decoder.Decode] implements the decode loop from spec §4.2: it peeks the
// header, and if the full frame (header + payload) isn't buffered yet it
// returns ([Frame]{}, false, nil) so the caller can wait for more bytes.
// An unknown kind or a payload that could never fit in the ring's total
// capacity are both fatal protocol errors.
package frame
