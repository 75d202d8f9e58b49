package connectors

import "github.com/skobkin/midimon/internal/midi"

// RawFrame carries wire-frame diagnostics for debug views. The
// timestamp is the driver's relative value in milliseconds.
type RawFrame struct {
	Hex         string
	Len         int
	TimestampMS int32
}

// CapturedMessage pairs a decoded message with the device it came from,
// for consumers that see the bus but not the capture session.
type CapturedMessage struct {
	Message  midi.Message
	DeviceID string
}
