package midi

import (
	"github.com/leandrodaf/perfdiff/sdk/contracts"
)

// NewMIDIClient creates a new MIDI client with the specified options.
// Defaults: zap production logger, InfoLevel, native transport, note on/off filter.
func NewMIDIClient(opts ...contracts.Option) (contracts.ClientMIDI, error) {
	options, err := applyDefaultOptions(opts...)
	if err != nil {
		return nil, err
	}
	return NewClient(&options)
}
