package frame

import (
	"encoding/binary"
	"io"

	"github.com/ardnew/cdba/internal/ring"
	"github.com/ardnew/cdba/pkg"
)

// HeaderSize is the size in bytes of the frame header: a 16-bit kind plus
// a 16-bit payload length.
const HeaderSize = 4

// MaxPayload is the largest payload a single frame may carry, per spec
// §4.2. Larger payloads (the boot image) are chunked by the sender into
// multiple frames.
const MaxPayload = 8192

// Frame is one decoded protocol message: a kind and its payload. The
// payload slice aliases the ring buffer's internal storage and is only
// valid until the next call to [Decoder.Decode].
type Frame struct {
	Kind    Kind
	Payload []byte
}

// Encode writes kind and payload to w as a single logical message. It may
// be issued as one or two underlying writes (header, then payload); per
// spec §4.2 this choice is left to the implementation.
func Encode(w io.Writer, kind Kind, payload []byte) error {
	var hdr [HeaderSize]byte
	binary.LittleEndian.PutUint16(hdr[0:2], uint16(kind))
	binary.LittleEndian.PutUint16(hdr[2:4], uint16(len(payload)))

	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	if len(payload) == 0 {
		return nil
	}
	_, err := w.Write(payload)
	return err
}

// Marshal returns the encoded header+payload for kind, for callers (such
// as the outbound work queue) that need to write it across multiple
// non-blocking write calls rather than through an [io.Writer] in one
// shot.
func Marshal(kind Kind, payload []byte) []byte {
	buf := make([]byte, HeaderSize+len(payload))
	binary.LittleEndian.PutUint16(buf[0:2], uint16(kind))
	binary.LittleEndian.PutUint16(buf[2:4], uint16(len(payload)))
	copy(buf[HeaderSize:], payload)
	return buf
}

// Decoder reassembles frames from a [ring.Buffer] fed by repeated calls
// to Fill as bytes arrive on the transport.
type Decoder struct {
	buf *ring.Buffer
}

// NewDecoder returns a Decoder that reads frames out of buf.
func NewDecoder(buf *ring.Buffer) *Decoder {
	return &Decoder{buf: buf}
}

// Decode attempts to pull one complete frame out of the underlying ring.
// It returns ok=false (with a nil error) when fewer bytes are buffered
// than a full frame requires — the caller should wait for more readiness
// before calling again. Payload in the returned Frame aliases the ring's
// storage and must be consumed (copied, if needed past the next Decode
// call) before calling Decode again.
func (d *Decoder) Decode() (f Frame, ok bool, err error) {
	if d.buf.Available() < HeaderSize {
		return Frame{}, false, nil
	}

	hdr, err := d.buf.Peek(HeaderSize)
	if err != nil {
		return Frame{}, false, err
	}
	kind := Kind(binary.LittleEndian.Uint16(hdr[0:2]))
	length := int(binary.LittleEndian.Uint16(hdr[2:4]))

	if !kind.Valid() {
		pkg.LogError(pkg.ComponentFrame, "unknown message kind", "kind", uint16(kind))
		return Frame{}, false, pkg.ErrUnknownKind
	}
	if length > MaxPayload {
		pkg.LogError(pkg.ComponentFrame, "payload exceeds maximum", "length", length, "max", MaxPayload)
		return Frame{}, false, pkg.ErrPayloadTooLarge
	}
	if HeaderSize+length > d.buf.Capacity() {
		pkg.LogError(pkg.ComponentFrame, "frame cannot fit in ring", "needed", HeaderSize+length, "capacity", d.buf.Capacity())
		return Frame{}, false, pkg.ErrOverflow
	}

	if d.buf.Available() < HeaderSize+length {
		return Frame{}, false, nil
	}

	if _, err := d.buf.Read(HeaderSize); err != nil {
		return Frame{}, false, err
	}
	payload, err := d.buf.Read(length)
	if err != nil {
		return Frame{}, false, err
	}

	return Frame{Kind: kind, Payload: payload}, true, nil
}
