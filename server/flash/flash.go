package flash

import (
	"fmt"

	"github.com/ardnew/cdba/pkg"
	"github.com/ardnew/cdba/server/device"
)

// Buffer accumulates a FASTBOOT_DOWNLOAD byte stream into a single
// image, the Go equivalent of cdba-server.c's fastboot_payload/
// fastboot_size realloc-and-append pair.
type Buffer struct {
	data []byte
}

// Download appends chunk to the buffer. A zero-length chunk is the
// sentinel that closes the transfer (spec §4.5.1/§4.7); Download
// reports complete=true in that case, leaving the accumulated bytes in
// place for the caller's immediately following Boot.
func (b *Buffer) Download(chunk []byte) (complete bool) {
	if len(chunk) == 0 {
		return true
	}
	b.data = append(b.data, chunk...)
	return false
}

// Size returns the number of bytes currently buffered.
func (b *Buffer) Size() int { return len(b.data) }

// Reset discards the buffered image without booting it.
func (b *Buffer) Reset() { b.data = nil }

// Boot hands the buffered image to dev and clears the buffer. Per spec
// §4.7 this runs as soon as the download sentinel closes the transfer,
// matching cdba-server.c's msg_fastboot_download: `if (!len)
// device_boot(...)`.
func (b *Buffer) Boot(dev device.Device) error {
	if len(b.data) == 0 {
		return fmt.Errorf("flash: boot requested with nothing buffered")
	}
	pkg.LogInfo(pkg.ComponentFlash, "booting buffered image", "board", dev.Name(), "bytes", len(b.data))
	err := dev.Boot(b.data)
	b.Reset()
	return err
}
