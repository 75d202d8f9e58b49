package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"github.com/skobkin/midimon/internal/devices"
)

// RTMIDITransport enumerates and captures through the system MIDI API.
// A driver must be registered by the importing binary, normally with a
// blank import of gitlab.com/gomidi/midi/v2/drivers/rtmididrv.
type RTMIDITransport struct{}

func NewRTMIDITransport() *RTMIDITransport {
	return &RTMIDITransport{}
}

func (t *RTMIDITransport) Name() string {
	return "rtmidi"
}

// Endpoints lists the system's MIDI input ports. Enumeration goes
// through the registered driver on every call; no handle survives the
// call.
func (t *RTMIDITransport) Endpoints() ([]devices.Endpoint, error) {
	ins := gomidi.GetInPorts()

	out := make([]devices.Endpoint, 0, len(ins))
	for _, in := range ins {
		out = append(out, devices.Endpoint{Index: in.Number(), Name: in.String()})
	}

	return out, nil
}

func (t *RTMIDITransport) Open(ctx context.Context, index int, onFrame FrameFunc) (io.Closer, error) {
	if onFrame == nil {
		return nil, errors.New("frame callback is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	in, err := gomidi.InPort(index)
	if err != nil {
		return nil, fmt.Errorf("resolve midi input %d: %w", index, err)
	}

	// ListenTo wires the receiver before the port starts delivering, so
	// the callback contract holds.
	stop, err := gomidi.ListenTo(in, func(msg gomidi.Message, timestampMS int32) {
		onFrame([]byte(msg), timestampMS)
	})
	if err != nil {
		return nil, fmt.Errorf("listen on midi input %q: %w", in.String(), err)
	}

	transportLogger("rtmidi", "port", in.String()).Debug("midi input opened")

	return &rtmidiConn{in: in, stop: stop}, nil
}

type rtmidiConn struct {
	in   drivers.In
	stop func()

	closeOnce sync.Once
}

func (c *rtmidiConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.stop()
		err = c.in.Close()
	})

	return err
}
