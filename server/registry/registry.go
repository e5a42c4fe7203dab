package registry

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/ardnew/cdba/server/device"
)

// defaultPaths is tried in order by Load when no explicit path is given,
// per spec §4.8: "./.cdba" preferred, "/etc/cdba" fallback.
var defaultPaths = []string{"./.cdba", "/etc/cdba"}

// file is the on-disk shape of the registry, decoded once at startup.
type file struct {
	Boards []Record `yaml:"boards"`
}

// Record is one configured board: identity, the driver parameters
// needed to construct its Device, and the list of users permitted to
// select it.
type Record struct {
	Name string `yaml:"name"`

	Driver      string `yaml:"driver"`
	ConsolePort string `yaml:"console_port"`
	ConsoleBaud int    `yaml:"console_baud"`
	PowerPath   string `yaml:"power_path"`
	USBPath     string `yaml:"usb_path"`
	RelayPort   string `yaml:"relay_port"`
	RelayBaud   int    `yaml:"relay_baud"`

	// FastbootVendorID/FastbootProductID are 4-digit hex USB IDs (as
	// lsusb prints them, e.g. "18d1"), identifying the board's fastboot
	// gadget for server/flash.Watcher. Both empty disables detection.
	FastbootVendorID  string `yaml:"fastboot_vendor_id"`
	FastbootProductID string `yaml:"fastboot_product_id"`

	Description string   `yaml:"description"`
	Users       []string `yaml:"users"`
}

// deviceConfig converts r into the parameters device.Open expects.
func (r Record) deviceConfig() device.Config {
	vendorID, _ := strconv.ParseUint(r.FastbootVendorID, 16, 16)
	productID, _ := strconv.ParseUint(r.FastbootProductID, 16, 16)
	return device.Config{
		Name:              r.Name,
		Driver:            device.Driver(r.Driver),
		ConsolePort:       r.ConsolePort,
		ConsoleBaud:       r.ConsoleBaud,
		PowerPath:         r.PowerPath,
		USBPath:           r.USBPath,
		RelayPort:         r.RelayPort,
		RelayBaud:         r.RelayBaud,
		FastbootVendorID:  uint16(vendorID),
		FastbootProductID: uint16(productID),
	}
}

// allowed reports whether user may select r, per the access list. An
// empty Users list means the board is unrestricted.
func (r Record) allowed(user string) bool {
	if len(r.Users) == 0 {
		return true
	}
	for _, u := range r.Users {
		if u == user {
			return true
		}
	}
	return false
}

// Registry is the parsed, validated board configuration.
type Registry struct {
	order   []string
	records map[string]Record
}

// Load reads and parses the registry file at path.
func Load(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}
	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("registry: parse %s: %w", path, err)
	}
	if err := validate(f.Boards); err != nil {
		return nil, fmt.Errorf("registry: %s: %w", path, err)
	}
	normalize(f.Boards)

	reg := &Registry{records: make(map[string]Record, len(f.Boards))}
	for _, b := range f.Boards {
		reg.order = append(reg.order, b.Name)
		reg.records[b.Name] = b
	}
	return reg, nil
}

// LoadDefault tries each of defaultPaths in order and loads the first
// one that exists.
func LoadDefault() (*Registry, error) {
	for _, p := range defaultPaths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		return Load(p)
	}
	return nil, fmt.Errorf("registry: no configuration found in %v", defaultPaths)
}

// EffectiveUser resolves the operator identity used for access checks:
// CDBA_USER, else USER, else "nobody" (spec §4.8).
func EffectiveUser() string {
	if u := os.Getenv("CDBA_USER"); u != "" {
		return u
	}
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "nobody"
}

// Exists reports whether board names a configured record.
func (r *Registry) Exists(board string) bool {
	_, ok := r.records[board]
	return ok
}

// Authorize reports whether user may select board. A board that does
// not exist is never authorized.
func (r *Registry) Authorize(user, board string) bool {
	rec, ok := r.records[board]
	if !ok {
		return false
	}
	return rec.allowed(user)
}

// List returns the names of every board user is authorized to select,
// in registry order, for a LIST_DEVICES query (spec §4.8).
func (r *Registry) List(user string) []string {
	names := make([]string, 0, len(r.order))
	for _, name := range r.order {
		if r.records[name].allowed(user) {
			names = append(names, name)
		}
	}
	return names
}

// Info returns the human-readable detail line for board, and whether
// user is authorized to see it. An unauthorized or unknown board
// returns ok=false.
func (r *Registry) Info(user, board string) (string, bool) {
	rec, ok := r.records[board]
	if !ok || !rec.allowed(user) {
		return "", false
	}
	desc := rec.Description
	if desc == "" {
		desc = "no description"
	}
	return fmt.Sprintf("%s: driver=%s console=%s (%s)", rec.Name, rec.Driver, rec.ConsolePort, desc), true
}

// DeviceConfig returns the device.Config for board and whether user is
// authorized to select it.
func (r *Registry) DeviceConfig(user, board string) (device.Config, bool) {
	rec, ok := r.records[board]
	if !ok || !rec.allowed(user) {
		return device.Config{}, false
	}
	return rec.deviceConfig(), true
}
