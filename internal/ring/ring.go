package ring

import (
	"io"

	"github.com/ardnew/cdba/pkg"
)

// Buffer is a fixed-capacity byte ring used to reassemble frames from a
// stream that may deliver them split at arbitrary byte boundaries.
//
// A Buffer is exclusively owned by the event loop iteration that drives
// it; per spec §5 nothing else touches it concurrently, so no
// synchronization is provided here.
type Buffer struct {
	data     []byte
	readPos  int
	writePos int
	used     int

	// scratch backs Peek/Read results that straddle the wrap boundary, so
	// callers see a contiguous slice without the ring growing or callers
	// having to stitch two segments together themselves.
	scratch []byte
}

// New returns a Buffer with the given fixed capacity. Per spec §3 this
// should be at least 16 KiB for real traffic; smaller capacities are
// allowed (and used in tests) to exercise wrap-around and overflow paths.
func New(capacity int) *Buffer {
	return &Buffer{
		data:    make([]byte, capacity),
		scratch: make([]byte, capacity),
	}
}

// Capacity returns the fixed capacity of the ring.
func (b *Buffer) Capacity() int { return len(b.data) }

// Available returns the number of unread bytes currently buffered.
func (b *Buffer) Available() int { return b.used }

// Free returns the number of bytes that can still be written before the
// ring is full.
func (b *Buffer) Free() int { return len(b.data) - b.used }

// Fill reads once from r into the ring's free space and advances the
// write position by however much was read. It reads at most up to the
// first wrap boundary, so a caller may need to call Fill again on the
// next readiness notification to claim space that wrapped around.
//
// Fill returns (0, nil) when the ring is already full — callers must
// then make progress by consuming (typically via the frame decoder)
// before the source is read again; a ring that stays full across an
// entire frame's worth of decode attempts indicates [pkg.ErrOverflow]
// and is reported by the decoder, not here, since only the decoder
// knows whether the stuck frame could ever fit.
//
// A read of zero bytes with a nil error from r means EOF: the caller
// treats EOF on the transport as session end, per spec §4.1.
func (b *Buffer) Fill(r io.Reader) (int, error) {
	if b.Free() == 0 {
		return 0, nil
	}

	writeAt := b.writePos % len(b.data)
	span := len(b.data) - writeAt
	if span > b.Free() {
		span = b.Free()
	}

	n, err := r.Read(b.data[writeAt : writeAt+span])
	if n > 0 {
		b.writePos = (b.writePos + n) % len(b.data)
		b.used += n
	}
	return n, err
}

// Peek returns the next n bytes without consuming them. The returned
// slice is only valid until the next call to Peek or Read on this
// buffer. It returns [pkg.ErrShortRead] if fewer than n bytes are
// currently available.
func (b *Buffer) Peek(n int) ([]byte, error) {
	if n < 0 || n > b.used {
		return nil, pkg.ErrShortRead
	}
	if n == 0 {
		return b.scratch[:0], nil
	}

	readAt := b.readPos % len(b.data)
	if readAt+n <= len(b.data) {
		return b.data[readAt : readAt+n], nil
	}

	// Straddles the wrap boundary: assemble into scratch.
	first := len(b.data) - readAt
	copy(b.scratch[:first], b.data[readAt:])
	copy(b.scratch[first:n], b.data[:n-first])
	return b.scratch[:n], nil
}

// Read consumes and returns exactly n bytes, or refuses with
// [pkg.ErrShortRead] if fewer than n bytes are available. The returned
// slice has the same validity rules as [Buffer.Peek].
func (b *Buffer) Read(n int) ([]byte, error) {
	out, err := b.Peek(n)
	if err != nil {
		return nil, err
	}
	b.readPos = (b.readPos + n) % len(b.data)
	b.used -= n
	return out, nil
}

// Discard drops n unread bytes from the front of the ring without
// copying them anywhere, refusing with [pkg.ErrShortRead] if fewer than
// n bytes are available.
func (b *Buffer) Discard(n int) error {
	if n < 0 || n > b.used {
		return pkg.ErrShortRead
	}
	b.readPos = (b.readPos + n) % len(b.data)
	b.used -= n
	return nil
}

// Reset empties the ring, discarding any buffered bytes.
func (b *Buffer) Reset() {
	b.readPos = 0
	b.writePos = 0
	b.used = 0
}
