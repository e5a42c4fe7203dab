//go:build linux

package term

import "golang.org/x/sys/unix"

// Raw holds the controlling tty's prior termios so it can be restored.
// Grounded on the ioctl(TCGETS/TCSETS) dance in
// examples/linux-hal/hid-monitor's handleKeyboard, raised here to
// golang.org/x/sys/unix's typed ioctl wrappers instead of a raw
// syscall.Syscall6 call.
type Raw struct {
	fd    int
	saved unix.Termios
}

// MakeRaw disables canonical mode and echo on fd and sets up
// byte-at-a-time reads (VMIN=1, VTIME=0), returning a handle that can
// restore the original settings.
func MakeRaw(fd int) (*Raw, error) {
	saved, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return nil, err
	}

	raw := *saved
	raw.Lflag &^= unix.ICANON | unix.ECHO
	raw.Cc[unix.VMIN] = 1
	raw.Cc[unix.VTIME] = 0
	if err := unix.IoctlSetTermios(fd, unix.TCSETS, &raw); err != nil {
		return nil, err
	}
	return &Raw{fd: fd, saved: *saved}, nil
}

// Restore puts the tty back the way MakeRaw found it.
func (r *Raw) Restore() error {
	return unix.IoctlSetTermios(r.fd, unix.TCSETS, &r.saved)
}
