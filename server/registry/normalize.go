package registry

// defaultBaud is assumed for any board that names a serial port but
// leaves its baud rate unset.
const defaultBaud = 115200

// normalize fills in defaults left implicit by the file format. It runs
// after validate and never rejects input.
func normalize(boards []Record) {
	for i := range boards {
		b := &boards[i]
		if b.Driver == "" {
			b.Driver = "virtual"
		}
		if b.ConsoleBaud == 0 {
			b.ConsoleBaud = defaultBaud
		}
		if b.RelayBaud == 0 {
			b.RelayBaud = defaultBaud
		}
	}
}
