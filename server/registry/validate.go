package registry

import (
	"fmt"
	"strconv"
)

// validate checks declarative correctness of the decoded board list. It
// performs no mutation, matching the teacher's config/validate.go
// restraint of leaving defaulting to a separate pass.
func validate(boards []Record) error {
	seen := make(map[string]struct{}, len(boards))
	for _, b := range boards {
		if b.Name == "" {
			return fmt.Errorf("board entry missing name")
		}
		if _, dup := seen[b.Name]; dup {
			return fmt.Errorf("board %q declared more than once", b.Name)
		}
		seen[b.Name] = struct{}{}

		switch b.Driver {
		case "", "relay", "ftdi", "virtual":
		default:
			return fmt.Errorf("board %q: unknown driver %q", b.Name, b.Driver)
		}

		if b.Driver == "relay" || b.Driver == "ftdi" {
			if b.ConsolePort == "" {
				return fmt.Errorf("board %q: driver %q requires console_port", b.Name, b.Driver)
			}
		}
		if b.Driver == "ftdi" && b.RelayPort == "" {
			return fmt.Errorf("board %q: driver ftdi requires relay_port", b.Name)
		}

		if (b.FastbootVendorID == "") != (b.FastbootProductID == "") {
			return fmt.Errorf("board %q: fastboot_vendor_id and fastboot_product_id must be set together", b.Name)
		}
		if b.FastbootVendorID != "" {
			if _, err := strconv.ParseUint(b.FastbootVendorID, 16, 16); err != nil {
				return fmt.Errorf("board %q: fastboot_vendor_id %q: %w", b.Name, b.FastbootVendorID, err)
			}
			if _, err := strconv.ParseUint(b.FastbootProductID, 16, 16); err != nil {
				return fmt.Errorf("board %q: fastboot_product_id %q: %w", b.Name, b.FastbootProductID, err)
			}
		}
	}
	return nil
}
