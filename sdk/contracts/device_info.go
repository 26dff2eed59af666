package contracts

// DeviceInfo contains information about an input device (MIDI port, serial port or audio source).
type DeviceInfo struct {
	Name         string // Device name.
	Manufacturer string // Device manufacturer.
	EntityName   string // Name of the entity to which the device belongs.
	Port         string // Transport-level port identifier, when the transport exposes one.
}
