// Package midiserial reads MIDI from a serial port, for DIN MIDI interfaces exposed as USB-serial bridges.
package midiserial

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/leandrodaf/perfdiff/sdk/contracts"
	"go.bug.st/serial"
)

// DINBaudRate is the MIDI 1.0 wire rate.
const DINBaudRate = 31250

var (
	ErrNoSerialPorts = errors.New("no serial ports found")
	ErrInvalidPort   = errors.New("invalid serial port")
	ErrPortNotOpen   = errors.New("no serial port selected")
)

// Client implements contracts.ClientMIDI over a serial port.
type Client struct {
	logger          contracts.Logger
	midiEventFilter *contracts.MIDIEventFilter
	baud            int

	mu   sync.Mutex
	port serial.Port
	name string
	done chan struct{}
	wg   sync.WaitGroup
}

// NewMIDIClient creates a serial MIDI client.
func NewMIDIClient(options *contracts.ClientOptions) (contracts.ClientMIDI, error) {
	baud := DINBaudRate
	if options.SerialConfig != nil && options.SerialConfig.BaudRate > 0 {
		baud = options.SerialConfig.BaudRate
	}
	return &Client{
		logger:          options.Logger,
		midiEventFilter: options.MIDIEventFilter,
		baud:            baud,
	}, nil
}

// ListDevices enumerates serial ports.
func (c *Client) ListDevices() ([]contracts.DeviceInfo, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}
	if len(ports) == 0 {
		return nil, ErrNoSerialPorts
	}
	devices := make([]contracts.DeviceInfo, len(ports))
	for i, p := range ports {
		devices[i] = contracts.DeviceInfo{Name: p, EntityName: "serial", Port: p}
	}
	return devices, nil
}

// SelectDevice opens the port at deviceID.
func (c *Client) SelectDevice(deviceID int) error {
	ports, err := serial.GetPortsList()
	if err != nil {
		return fmt.Errorf("list serial ports: %w", err)
	}
	if deviceID < 0 || deviceID >= len(ports) {
		return ErrInvalidPort
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()

	p, err := serial.Open(ports[deviceID], &serial.Mode{BaudRate: c.baud})
	if err != nil {
		return fmt.Errorf("open serial port %s: %w", ports[deviceID], err)
	}
	if err := p.SetReadTimeout(100 * time.Millisecond); err != nil {
		_ = p.Close()
		return fmt.Errorf("configure serial port %s: %w", ports[deviceID], err)
	}
	c.port = p
	c.name = ports[deviceID]
	c.logger.Info("serial MIDI port opened",
		c.logger.Field().String("device", c.name),
		c.logger.Field().Int("baud", c.baud))
	return nil
}

// StartCapture starts a reader goroutine feeding parsed channel messages to eventChannel.
func (c *Client) StartCapture(eventChannel chan contracts.MIDI) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.port == nil {
		c.logger.Error(ErrPortNotOpen.Error())
		return
	}
	if c.done != nil {
		c.logger.Warn("Capture already started")
		return
	}
	c.done = make(chan struct{})
	c.wg.Add(1)
	go c.readLoop(c.port, c.done, eventChannel)
}

func (c *Client) readLoop(r io.Reader, done <-chan struct{}, out chan contracts.MIDI) {
	defer c.wg.Done()
	var parser Parser
	buf := make([]byte, 64)
	for {
		select {
		case <-done:
			return
		default:
		}
		n, err := r.Read(buf)
		if err != nil {
			c.logger.Warn("serial MIDI read failed", c.logger.Field().Error("error", err))
			return
		}
		for _, b := range buf[:n] {
			msg, ok := parser.Feed(b)
			if !ok || !c.midiEventFilter.Allows(msg[0]) {
				continue
			}
			event := contracts.MIDI{
				Timestamp: uint64(time.Now().UTC().UnixNano()),
				Command:   msg[0],
				Note:      msg[1],
				Velocity:  msg[2],
			}
			select {
			case out <- event:
			default:
				c.logger.Warn("Event buffer full; dropping MIDI event")
			}
		}
	}
}

// Stop ends the reader and closes the port.
func (c *Client) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked()
}

func (c *Client) closeLocked() error {
	if c.done != nil {
		close(c.done)
		c.done = nil
	}
	if c.port == nil {
		return nil
	}
	err := c.port.Close()
	c.wg.Wait()
	c.port = nil
	c.name = ""
	return err
}
