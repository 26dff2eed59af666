package midi

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/leandrodaf/perfdiff/internal/midi/mididarwin"
	"github.com/leandrodaf/perfdiff/internal/midi/midilinux"
	"github.com/leandrodaf/perfdiff/internal/midi/midiserial"
	"github.com/leandrodaf/perfdiff/internal/midi/midiwindows"
	"github.com/leandrodaf/perfdiff/sdk/contracts"
)

// ErrUnsupportedOS is returned when the operating system is not supported by the MIDI client.
var ErrUnsupportedOS = errors.New("unsupported operating system")

// clientInitializers maps OS names to corresponding native MIDI client initializers.
var clientInitializers = map[string]func(*contracts.ClientOptions) (contracts.ClientMIDI, error){
	"darwin":  mididarwin.NewMIDIClient,  // CoreMIDI.
	"windows": midiwindows.NewMIDIClient, // winmm.
	"linux":   midilinux.NewMIDIClient,   // ALSA through rtmidi.
}

// NewClient initializes a MIDI client for the configured transport.
// The native transport picks the current operating system's stack and returns ErrUnsupportedOS elsewhere.
func NewClient(opts *contracts.ClientOptions) (contracts.ClientMIDI, error) {
	if opts.Transport == contracts.SerialTransport {
		return midiserial.NewMIDIClient(opts)
	}
	if initializer, exists := clientInitializers[runtime.GOOS]; exists {
		return initializer(opts)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedOS, runtime.GOOS)
}
