//go:build linux && cgo
// +build linux,cgo

package midilinux

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/leandrodaf/perfdiff/sdk/contracts"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

var (
	ErrNoMIDIDevices     = errors.New("no MIDI devices found")
	ErrInvalidMIDIDevice = errors.New("invalid MIDI device")
)

// ClientMid reads ALSA MIDI input through rtmidi.
type ClientMid struct {
	logger          contracts.Logger
	midiEventFilter *contracts.MIDIEventFilter
	drv             *rtmididrv.Driver

	mu     sync.Mutex
	in     drivers.In
	stopFn func()
}

// NewMIDIClient initializes the rtmidi driver.
func NewMIDIClient(options *contracts.ClientOptions) (contracts.ClientMIDI, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("rtmididrv: %w", err)
	}
	return &ClientMid{
		logger:          options.Logger,
		midiEventFilter: options.MIDIEventFilter,
		drv:             drv,
	}, nil
}

// ListDevices lists the ALSA input ports.
func (m *ClientMid) ListDevices() ([]contracts.DeviceInfo, error) {
	ins, err := m.drv.Ins()
	if err != nil {
		return nil, fmt.Errorf("error listing MIDI inputs: %w", err)
	}
	if len(ins) == 0 {
		return nil, ErrNoMIDIDevices
	}
	devices := make([]contracts.DeviceInfo, len(ins))
	for i, in := range ins {
		devices[i] = contracts.DeviceInfo{Name: in.String(), EntityName: in.String(), Port: fmt.Sprint(in.Number())}
	}
	return devices, nil
}

// SelectDevice opens the input port at deviceID.
func (m *ClientMid) SelectDevice(deviceID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ins, err := m.drv.Ins()
	if err != nil {
		return fmt.Errorf("error listing MIDI inputs: %w", err)
	}
	if deviceID < 0 || deviceID >= len(ins) {
		return ErrInvalidMIDIDevice
	}
	m.closeLocked()

	in := ins[deviceID]
	if err := in.Open(); err != nil {
		return fmt.Errorf("open %q: %w", in.String(), err)
	}
	m.in = in
	m.logger.Info("MIDI device selected", m.logger.Field().String("deviceName", in.String()))
	return nil
}

// StartCapture listens on the selected port and forwards channel messages.
func (m *ClientMid) StartCapture(eventChannel chan contracts.MIDI) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.in == nil {
		m.logger.Error("Cannot start capture: no MIDI device selected")
		return
	}
	if m.stopFn != nil {
		m.stopFn()
		m.stopFn = nil
	}

	stop, err := midi.ListenTo(m.in, func(msg midi.Message, _ int32) {
		if len(msg) < 3 || !m.midiEventFilter.Allows(msg[0]) {
			return
		}
		event := contracts.MIDI{
			Timestamp: uint64(time.Now().UTC().UnixNano()),
			Command:   msg[0],
			Note:      msg[1],
			Velocity:  msg[2],
		}
		select {
		case eventChannel <- event:
		default:
			m.logger.Warn("Event buffer full; dropping MIDI event")
		}
	}, midi.HandleError(func(err error) {
		m.logger.Warn("MIDI listener error", m.logger.Field().Error("error", err))
	}))
	if err != nil {
		m.logger.Error("Failed to listen on MIDI input", m.logger.Field().Error("error", err))
		return
	}
	m.stopFn = stop
	m.logger.Info("Starting MIDI event capture")
}

// Stop stops listening and closes the port.
func (m *ClientMid) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeLocked()
}

func (m *ClientMid) closeLocked() error {
	if m.stopFn != nil {
		m.stopFn()
		m.stopFn = nil
	}
	if m.in == nil {
		return nil
	}
	err := m.in.Close()
	m.in = nil
	return err
}
