package queue

import "github.com/ardnew/cdba/internal/frame"

// FrameItem sends a single complete frame. It is the work item behind
// every one-shot send — an operator keypress, a control message like
// POWER_ON — and owns the marshalled bytes until fully written, per the
// data model in spec §3.
type FrameItem struct {
	buf []byte
	off int
}

// NewFrameItem marshals kind/payload into a work item ready to enqueue.
func NewFrameItem(kind frame.Kind, payload []byte) *FrameItem {
	return &FrameItem{buf: frame.Marshal(kind, payload)}
}

// Send implements [Item].
func (it *FrameItem) Send(fd int) (complete bool, err error) {
	return writeSome(fd, it.buf, &it.off)
}
