package app

import (
	"github.com/skobkin/midimon/internal/connectors"
	"github.com/skobkin/midimon/internal/devices"
	"github.com/skobkin/midimon/internal/miderr"
	"github.com/skobkin/midimon/internal/midi"
)

// bridgeEvents republishes the core capture and monitor streams on the
// message bus so decoupled consumers (recorder, notifier) can pick them
// up. Publishing must not block: the streams deliver synchronously on
// the emitting goroutine, so every hop uses TryPublish.
func (r *Runtime) bridgeEvents() {
	r.Capture.Messages.Subscribe(func(msg midi.Message) {
		r.Bus.TryPublish(connectors.TopicMessage, connectors.CapturedMessage{
			Message:  msg,
			DeviceID: r.Capture.ConnectedDeviceID(),
		})
	})
	r.Capture.Connected.Subscribe(func(dev devices.Device) {
		r.Bus.TryPublish(connectors.TopicDeviceConnected, dev)
	})
	r.Capture.Disconnected.Subscribe(func(dev devices.Device) {
		r.Bus.TryPublish(connectors.TopicDeviceDisconnected, dev)
	})
	r.Capture.Errors.Subscribe(func(err *miderr.Error) {
		r.Bus.TryPublish(connectors.TopicError, err)
	})

	r.Monitor.Changed.Subscribe(func(list []devices.Device) {
		r.Bus.TryPublish(connectors.TopicDevicesChanged, list)
	})
	r.Monitor.Added.Subscribe(func(dev devices.Device) {
		r.Bus.TryPublish(connectors.TopicDeviceAdded, dev)
	})
	r.Monitor.Removed.Subscribe(func(dev devices.Device) {
		r.Bus.TryPublish(connectors.TopicDeviceRemoved, dev)
	})
	r.Monitor.Errors.Subscribe(func(err *miderr.Error) {
		r.Bus.TryPublish(connectors.TopicError, err)
	})
}
