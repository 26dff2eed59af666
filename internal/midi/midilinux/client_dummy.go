//go:build !linux || !cgo
// +build !linux !cgo

package midilinux

import (
	"errors"

	"github.com/leandrodaf/perfdiff/sdk/contracts"
)

// ErrUnavailable is returned when rtmidi cannot be used (non-Linux or cgo disabled).
var ErrUnavailable = errors.New("ALSA MIDI is not available in this build")

type dummyMIDIClient struct {
	logger contracts.Logger
}

func NewMIDIClient(options *contracts.ClientOptions) (contracts.ClientMIDI, error) {
	return &dummyMIDIClient{logger: options.Logger}, nil
}

func (m *dummyMIDIClient) ListDevices() ([]contracts.DeviceInfo, error) { return nil, ErrUnavailable }

func (m *dummyMIDIClient) SelectDevice(deviceID int) error { return ErrUnavailable }

func (m *dummyMIDIClient) StartCapture(eventChannel chan contracts.MIDI) {
	m.logger.Warn("StartCapture called on dummy ALSA client")
}

func (m *dummyMIDIClient) Stop() error { return nil }
