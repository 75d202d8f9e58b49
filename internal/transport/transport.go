// Package transport binds the system's MIDI inputs: it enumerates the
// available endpoints and opens one of them for capture, delivering raw
// wire frames to a callback.
package transport

import (
	"context"
	"io"

	"github.com/skobkin/midimon/internal/devices"
)

// FrameFunc receives one raw wire frame together with the driver's
// relative timestamp in milliseconds. The decoder ignores the timestamp;
// callers may use it for jitter analysis.
type FrameFunc func(frame []byte, timestampMS int32)

// Transport enumerates input endpoints and opens one for capture.
type Transport interface {
	Name() string

	// Endpoints lists the inputs available right now. It must be cheaply
	// and repeatedly callable; no enumeration handle stays open between
	// calls.
	Endpoints() ([]devices.Endpoint, error)

	// Open binds the endpoint at index and starts delivering frames to
	// onFrame. The callback is registered before the port starts
	// reading, so no early frame is lost. The returned closer releases
	// the port and stops delivery; frames may still arrive while a
	// Close is in flight.
	Open(ctx context.Context, index int, onFrame FrameFunc) (io.Closer, error)
}
