package midiserial

// Parser reassembles three-byte channel voice messages from a raw MIDI byte stream,
// honoring running status and skipping real-time, system common and SysEx traffic.
type Parser struct {
	status  byte
	data    [2]byte
	n       int
	inSysEx bool
}

// Feed consumes one byte and returns a complete message when one is available.
// Two-byte messages (program change, channel pressure) are consumed but not reported.
func (p *Parser) Feed(b byte) ([3]byte, bool) {
	switch {
	case b >= 0xF8:
		return [3]byte{}, false
	case b == 0xF0:
		p.inSysEx = true
		p.status = 0
		return [3]byte{}, false
	case b == 0xF7:
		p.inSysEx = false
		return [3]byte{}, false
	case b >= 0xF1:
		p.status = 0
		p.n = 0
		return [3]byte{}, false
	case b&0x80 != 0:
		p.inSysEx = false
		p.status = b
		p.n = 0
		return [3]byte{}, false
	}

	if p.inSysEx || p.status == 0 {
		return [3]byte{}, false
	}
	p.data[p.n] = b
	p.n++
	if p.n < dataLen(p.status) {
		return [3]byte{}, false
	}
	p.n = 0
	if dataLen(p.status) != 2 {
		return [3]byte{}, false
	}
	return [3]byte{p.status, p.data[0], p.data[1]}, true
}

func dataLen(status byte) int {
	switch status & 0xF0 {
	case 0xC0, 0xD0:
		return 1
	default:
		return 2
	}
}
