package session

// feedMarker scans console bytes for the in-band power-off marker
// (spec §4.5.2): 20 consecutive '~' bytes. The run counts across
// frames — a marker split across two CONSOLE payloads still counts —
// and any non-'~' byte resets it. Reaching the threshold resets the
// counter to zero and raises a power-off trigger, so a second run later
// in the same console stream can raise it again.
func (s *Session) feedMarker(payload []byte) {
	for _, b := range payload {
		if b != '~' {
			s.tildeRun = 0
			continue
		}
		s.tildeRun++
		if s.tildeRun == tildeMarker {
			s.tildeRun = 0
			s.raisePowerOffMarker()
		}
	}
}
