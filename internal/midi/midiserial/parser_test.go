package midiserial

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func feedAll(p *Parser, bytes ...byte) [][3]byte {
	var out [][3]byte
	for _, b := range bytes {
		if msg, ok := p.Feed(b); ok {
			out = append(out, msg)
		}
	}
	return out
}

func TestParserCompleteMessages(t *testing.T) {
	var p Parser
	msgs := feedAll(&p, 0x90, 60, 100, 0x80, 60, 0)
	assert.Equal(t, [][3]byte{{0x90, 60, 100}, {0x80, 60, 0}}, msgs)
}

func TestParserRunningStatus(t *testing.T) {
	var p Parser
	msgs := feedAll(&p, 0x91, 60, 100, 64, 90, 60, 0)
	assert.Equal(t, [][3]byte{{0x91, 60, 100}, {0x91, 64, 90}, {0x91, 60, 0}}, msgs)
}

func TestParserSkipsRealtimeAndSysEx(t *testing.T) {
	var p Parser
	msgs := feedAll(&p, 0x90, 0xF8, 60, 0xFE, 100, 0xF0, 1, 2, 3, 0xF7, 0x80, 60, 0)
	assert.Equal(t, [][3]byte{{0x90, 60, 100}, {0x80, 60, 0}}, msgs)
}

func TestParserDropsTwoByteMessages(t *testing.T) {
	var p Parser
	msgs := feedAll(&p, 0xC0, 5, 0x90, 62, 80)
	assert.Equal(t, [][3]byte{{0x90, 62, 80}}, msgs)
}
