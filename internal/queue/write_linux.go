//go:build linux

package queue

import (
	"golang.org/x/sys/unix"

	"github.com/ardnew/cdba/pkg"
)

// writeSome writes buf[*off:] to fd via a raw non-blocking write,
// advancing *off by whatever was written. It returns complete=true once
// *off reaches len(buf). A write that would block returns
// [pkg.ErrWouldBlock] without advancing *off further than it already
// has, so the caller can retry from the same position later.
func writeSome(fd int, buf []byte, off *int) (complete bool, err error) {
	for *off < len(buf) {
		n, werr := unix.Write(fd, buf[*off:])
		if n > 0 {
			*off += n
		}
		if werr != nil {
			if werr == unix.EAGAIN {
				return false, pkg.ErrWouldBlock
			}
			return false, werr
		}
		if n == 0 {
			return false, pkg.ErrWouldBlock
		}
	}
	return true, nil
}
