package device

import "github.com/ardnew/cdba/pkg"

// virtualDevice is an in-memory stand-in for real hardware, used by
// tests and by registry records that name no driver. Every action is
// logged rather than performed.
type virtualDevice struct {
	name         string
	console      []byte
	powered      bool
	usbOn        bool
	fastbootHeld bool
	booted       []byte
}

func newVirtual(name string) Device {
	return &virtualDevice{name: name}
}

func (d *virtualDevice) Name() string { return d.name }

func (d *virtualDevice) Capabilities() Capability {
	return CapPower | CapUSB | CapBreak | CapFlash
}

func (d *virtualDevice) PowerOn() error {
	d.powered = true
	pkg.LogInfo(pkg.ComponentDevice, "virtual power on", "board", d.name)
	return nil
}

func (d *virtualDevice) PowerOff() error {
	d.powered = false
	pkg.LogInfo(pkg.ComponentDevice, "virtual power off", "board", d.name)
	return nil
}

func (d *virtualDevice) WriteConsole(p []byte) error {
	d.console = append(d.console, p...)
	return nil
}

func (d *virtualDevice) USB(on bool) error {
	d.usbOn = on
	pkg.LogInfo(pkg.ComponentDevice, "virtual usb", "board", d.name, "on", on)
	return nil
}

func (d *virtualDevice) SendBreak() error {
	pkg.LogInfo(pkg.ComponentDevice, "virtual break", "board", d.name)
	return nil
}

func (d *virtualDevice) Boot(image []byte) error {
	d.booted = image
	pkg.LogInfo(pkg.ComponentDevice, "virtual boot", "board", d.name, "bytes", len(image))
	return nil
}

func (d *virtualDevice) EnableStatus() error {
	pkg.LogInfo(pkg.ComponentDevice, "virtual status enabled", "board", d.name)
	return nil
}

func (d *virtualDevice) FastbootContinue() error {
	return d.HoldFastbootKey(false)
}

func (d *virtualDevice) HoldFastbootKey(hold bool) error {
	d.fastbootHeld = hold
	return nil
}

func (d *virtualDevice) Close() error {
	pkg.LogInfo(pkg.ComponentDevice, "virtual close", "board", d.name)
	return nil
}
