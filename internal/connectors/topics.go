package connectors

// Bus topics bridged from the core event streams. Payload types:
// decoded messages carry CapturedMessage, device topics carry
// devices.Device (the changed-list topic a []devices.Device), errors
// carry *miderr.Error, and raw frames carry RawFrame.
const (
	TopicMessage            = "midi.message"
	TopicRawFrame           = "midi.frame.raw"
	TopicDeviceConnected    = "device.connected"
	TopicDeviceDisconnected = "device.disconnected"
	TopicDevicesChanged     = "device.list.changed"
	TopicDeviceAdded        = "device.added"
	TopicDeviceRemoved      = "device.removed"
	TopicError              = "error"
)
