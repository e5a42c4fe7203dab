package term

// Actions is what the escape-sequence parser drives. *client/session.Session
// satisfies this by structural typing — term never imports session.
type Actions interface {
	Quit()
	PowerOn()
	PowerOff()
	Status()
	VBusOn()
	VBusOff()
	Break()
	Console(b byte)
}

// escapeByte is the operator's prefix for an out-of-band command; any
// byte not preceded by it is forwarded to the board's console verbatim
// (spec §4.5.4).
const escapeByte = 0x01

// Parser turns a raw byte stream from the controlling tty into calls on
// an [Actions], splitting escape sequences out of the console stream
// one byte at a time so a sequence split across two reads still works.
type Parser struct {
	actions Actions
	pending bool
}

// NewParser returns a Parser that drives actions.
func NewParser(actions Actions) *Parser {
	return &Parser{actions: actions}
}

// Feed processes one read's worth of operator input.
func (p *Parser) Feed(buf []byte) {
	for _, b := range buf {
		if !p.pending && b == escapeByte {
			p.pending = true
			continue
		}
		if p.pending {
			p.pending = false
			p.dispatch(b)
			continue
		}
		p.actions.Console(b)
	}
}

func (p *Parser) dispatch(b byte) {
	switch b {
	case 'q':
		p.actions.Quit()
	case 'P':
		p.actions.PowerOn()
	case 'p':
		p.actions.PowerOff()
	case 's':
		p.actions.Status()
	case 'V':
		p.actions.VBusOn()
	case 'v':
		p.actions.VBusOff()
	case 'B':
		p.actions.Break()
	case 'a':
		p.actions.Console(escapeByte)
	}
}
