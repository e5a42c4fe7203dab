package session

import (
	"github.com/ardnew/cdba/internal/frame"
	"github.com/ardnew/cdba/internal/queue"
)

// imageChunkSize is the payload size of each FASTBOOT_DOWNLOAD frame
// while streaming an image (spec §4.5.1).
const imageChunkSize = 2048

// imageStream is a [Sendable] work item that streams an image as a
// sequence of FASTBOOT_DOWNLOAD chunks followed by the empty
// FASTBOOT_DOWNLOAD sentinel that closes the transfer. Per spec §4.7 the
// server boots the accumulated image itself once the sentinel arrives;
// the client never requests the boot separately.
//
// Between chunks it reports incomplete so [internal/queue.Queue.Drain]
// re-enqueues it at the tail, giving operator keypresses and other
// queued frames a chance to interleave rather than being starved behind
// one giant transfer.
type imageStream struct {
	chunks     [][]byte
	idx        int
	cur        *queue.FrameItem
	onComplete func()
}

// newImageStream splits data into imageChunkSize chunks and appends the
// empty sentinel chunk that closes out the transfer. onComplete runs
// once the sentinel has actually been written, not merely enqueued.
func newImageStream(data []byte, onComplete func()) *imageStream {
	chunks := make([][]byte, 0, len(data)/imageChunkSize+1)
	for off := 0; off < len(data); off += imageChunkSize {
		end := off + imageChunkSize
		if end > len(data) {
			end = len(data)
		}
		chunks = append(chunks, data[off:end])
	}
	chunks = append(chunks, nil)
	return &imageStream{chunks: chunks, onComplete: onComplete}
}

// Send implements [Sendable].
func (s *imageStream) Send(fd int) (complete bool, err error) {
	if s.cur == nil {
		s.cur = queue.NewFrameItem(frame.FastbootDownload, s.chunks[s.idx])
	}
	done, err := s.cur.Send(fd)
	if err != nil || !done {
		return false, err
	}
	s.idx++
	s.cur = nil
	if s.idx >= len(s.chunks) {
		if s.onComplete != nil {
			s.onComplete()
		}
		return true, nil
	}
	return false, nil
}
