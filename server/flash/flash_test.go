package flash

import (
	"testing"

	"github.com/ardnew/cdba/server/device"
)

type fakeDevice struct {
	name          string
	booted        []byte
	continueCalls int
}

func (d *fakeDevice) Name() string                     { return d.name }
func (d *fakeDevice) Capabilities() device.Capability   { return device.CapFlash }
func (d *fakeDevice) PowerOn() error                    { return nil }
func (d *fakeDevice) PowerOff() error                   { return nil }
func (d *fakeDevice) WriteConsole(p []byte) error       { return nil }
func (d *fakeDevice) USB(on bool) error                 { return nil }
func (d *fakeDevice) SendBreak() error                  { return nil }
func (d *fakeDevice) Boot(image []byte) error           { d.booted = image; return nil }
func (d *fakeDevice) EnableStatus() error                { return nil }
func (d *fakeDevice) FastbootContinue() error           { d.continueCalls++; return nil }
func (d *fakeDevice) HoldFastbootKey(hold bool) error    { return nil }
func (d *fakeDevice) Close() error                       { return nil }

func TestBuffer_AccumulatesChunksUntilSentinel(t *testing.T) {
	var buf Buffer
	if buf.Download([]byte("hello")) {
		t.Error("non-empty chunk should not report complete")
	}
	if buf.Download([]byte(" world")) {
		t.Error("non-empty chunk should not report complete")
	}
	if buf.Size() != len("hello world") {
		t.Fatalf("Size() = %d, want %d", buf.Size(), len("hello world"))
	}
	if !buf.Download(nil) {
		t.Error("empty chunk should report complete")
	}
	if buf.Size() != len("hello world") {
		t.Fatal("sentinel should not mutate the buffer")
	}
}

func TestBuffer_BootHandsImageToDeviceAndResets(t *testing.T) {
	var buf Buffer
	buf.Download([]byte("image-bytes"))
	buf.Download(nil)

	dev := &fakeDevice{name: "board-0"}
	if err := buf.Boot(dev); err != nil {
		t.Fatalf("Boot: %v", err)
	}
	if string(dev.booted) != "image-bytes" {
		t.Errorf("device booted %q, want %q", dev.booted, "image-bytes")
	}
	if buf.Size() != 0 {
		t.Error("expected buffer to reset after boot")
	}
}

func TestBuffer_BootWithNothingBufferedFails(t *testing.T) {
	var buf Buffer
	if err := buf.Boot(&fakeDevice{name: "board-0"}); err == nil {
		t.Fatal("expected an error booting an empty buffer")
	}
}
