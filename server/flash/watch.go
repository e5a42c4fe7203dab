package flash

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// sysfsUSBDevices is where the Linux USB core publishes one directory
// per enumerated device, each carrying idVendor/idProduct attribute
// files — the same tree host/hal/linux/sysfs.go's parseUSBDevice reads.
// A var, not a const, so tests can point it at a fake tree.
var sysfsUSBDevices = "/sys/bus/usb/devices"

// Watcher detects a target board enumerating as a USB fastboot gadget
// and disconnecting again: the Go equivalent of cdba-server.c's
// fastboot_opened/fastboot_disconnect callbacks, which there fire off
// libusb hotplug events. This implementation polls sysfs instead of
// subscribing to the kernel's udev netlink broadcast, trading event
// latency for a much smaller, easier-to-reason-about surface; spec §9
// leaves the detection mechanism unspecified, and a polling adapter
// satisfies the observable contract (FASTBOOT_PRESENT on
// appear/disappear) exactly the same way.
type Watcher struct {
	vendorID  uint16
	productID uint16
	present   bool
}

// NewWatcher returns a Watcher for one USB vendor:product identity.
func NewWatcher(vendorID, productID uint16) *Watcher {
	return &Watcher{vendorID: vendorID, productID: productID}
}

// Poll rescans sysfs. changed is true exactly once per transition: the
// first Poll to find the device after it was absent returns
// (opened=true, changed=true); the first to find it gone after being
// present returns (opened=false, changed=true). Every other call
// returns changed=false.
func (w *Watcher) Poll() (opened, changed bool) {
	found := w.scan()
	if found == w.present {
		return false, false
	}
	w.present = found
	return found, true
}

func (w *Watcher) scan() bool {
	entries, err := os.ReadDir(sysfsUSBDevices)
	if err != nil {
		return false
	}
	for _, entry := range entries {
		name := entry.Name()
		// Skip hub port entries ("usb1") and interface entries
		// ("1-1:1.0"), the same filter scanUSBDevices applies.
		if strings.HasPrefix(name, "usb") || strings.Contains(name, ":") {
			continue
		}
		devPath := filepath.Join(sysfsUSBDevices, name)
		vendorID, err := readHexUint16(filepath.Join(devPath, "idVendor"))
		if err != nil || vendorID != w.vendorID {
			continue
		}
		productID, err := readHexUint16(filepath.Join(devPath, "idProduct"))
		if err != nil || productID != w.productID {
			continue
		}
		return true
	}
	return false
}

func readHexUint16(path string) (uint16, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(strings.TrimSpace(string(data)), 16, 16)
	if err != nil {
		return 0, err
	}
	return uint16(v), nil
}
