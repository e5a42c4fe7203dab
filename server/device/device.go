package device

import "fmt"

// Capability is a bitmask of the operations a concrete Device backend
// actually implements. The dispatcher consults it before invoking an
// operation so an unsupported request can be rejected cleanly instead
// of silently no-opping against the wrong hardware.
type Capability uint8

const (
	CapPower Capability = 1 << iota
	CapUSB
	CapBreak
	CapFlash
)

func (c Capability) Has(want Capability) bool { return c&want == want }

func (c Capability) String() string {
	names := []struct {
		bit  Capability
		name string
	}{
		{CapPower, "power"},
		{CapUSB, "usb"},
		{CapBreak, "break"},
		{CapFlash, "flash"},
	}
	s := ""
	for _, n := range names {
		if c.Has(n.bit) {
			if s != "" {
				s += ","
			}
			s += n.name
		}
	}
	if s == "" {
		return "none"
	}
	return s
}

// Device is the capability set the dispatcher (spec §4.6) drives a
// board through. Every method is synchronous and returns quickly; the
// one genuinely long-running operation, flashing, is owned by
// server/flash and only calls into Boot once the image is fully
// buffered.
type Device interface {
	Name() string
	Capabilities() Capability

	PowerOn() error
	PowerOff() error
	WriteConsole(p []byte) error
	USB(on bool) error
	SendBreak() error
	Boot(image []byte) error
	EnableStatus() error
	FastbootContinue() error
	HoldFastbootKey(hold bool) error
	Close() error
}

// Driver names a concrete backend, named the way a registry record's
// driver field would spell it.
type Driver string

const (
	DriverRelay    Driver = "relay"
	DriverFTDI     Driver = "ftdi"
	DriverVirtual  Driver = "virtual"
)

// Config carries the parameters a registry record supplies to
// construct one backend. Only the fields relevant to Driver are
// consulted; the rest are ignored.
type Config struct {
	Name   string
	Driver Driver

	ConsolePort string
	ConsoleBaud int

	// PowerPath/USBPath are sysfs-style control files toggled "1"/"0"
	// for relay-backed power and USB switching.
	PowerPath string
	USBPath   string

	// RelayPort is a second serial connection, to a relay controller
	// that speaks a small command protocol, used by DriverFTDI.
	RelayPort string
	RelayBaud int

	// FastbootVendorID/FastbootProductID identify the USB device the
	// target enumerates as once it reaches fastboot. Zero means the
	// board has no configured identity, and server/flash.Watcher is
	// never armed for it.
	FastbootVendorID  uint16
	FastbootProductID uint16
}

// Open constructs the Device named by cfg.Driver.
func Open(cfg Config) (Device, error) {
	switch cfg.Driver {
	case DriverRelay:
		return openRelay(cfg)
	case DriverFTDI:
		return openFTDI(cfg)
	case DriverVirtual, "":
		return newVirtual(cfg.Name), nil
	default:
		return nil, fmt.Errorf("device: unknown driver %q", cfg.Driver)
	}
}
