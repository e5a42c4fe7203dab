package device

import "testing"

func TestCapability_Has(t *testing.T) {
	c := CapPower | CapUSB
	if !c.Has(CapPower) {
		t.Error("expected CapPower")
	}
	if c.Has(CapBreak) {
		t.Error("did not expect CapBreak")
	}
	if !c.Has(CapPower | CapUSB) {
		t.Error("expected both bits set")
	}
}

func TestCapability_String(t *testing.T) {
	cases := []struct {
		c    Capability
		want string
	}{
		{0, "none"},
		{CapPower, "power"},
		{CapPower | CapFlash, "power,flash"},
		{CapPower | CapUSB | CapBreak | CapFlash, "power,usb,break,flash"},
	}
	for _, tc := range cases {
		if got := tc.c.String(); got != tc.want {
			t.Errorf("Capability(%d).String() = %q, want %q", tc.c, got, tc.want)
		}
	}
}

func TestOpen_Virtual(t *testing.T) {
	d, err := Open(Config{Name: "qemu-0", Driver: DriverVirtual})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer d.Close()

	if d.Name() != "qemu-0" {
		t.Errorf("Name() = %q", d.Name())
	}
	if !d.Capabilities().Has(CapPower | CapUSB | CapBreak | CapFlash) {
		t.Errorf("virtual device should support every capability, got %s", d.Capabilities())
	}
	if err := d.PowerOn(); err != nil {
		t.Errorf("PowerOn: %v", err)
	}
	if err := d.WriteConsole([]byte("hello")); err != nil {
		t.Errorf("WriteConsole: %v", err)
	}
	if err := d.Boot([]byte{0xde, 0xad}); err != nil {
		t.Errorf("Boot: %v", err)
	}
	if err := d.HoldFastbootKey(true); err != nil {
		t.Errorf("HoldFastbootKey: %v", err)
	}
	if err := d.FastbootContinue(); err != nil {
		t.Errorf("FastbootContinue: %v", err)
	}
}

func TestOpen_DefaultsToVirtual(t *testing.T) {
	d, err := Open(Config{Name: "no-driver-named"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer d.Close()
	if _, ok := d.(*virtualDevice); !ok {
		t.Errorf("expected *virtualDevice, got %T", d)
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(Config{Name: "x", Driver: "bogus"})
	if err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
