package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/skobkin/midimon/internal/devices"
)

const (
	// Classic DIN-MIDI line rate.
	DefaultSerialBaudRate = 31250

	defaultSerialReadTimeout = 300 * time.Millisecond
)

// SerialTransport captures from a raw serial MIDI interface. Frames are
// reassembled from the byte stream by a Chunker, so consumers see the
// same status-prefixed frames a system MIDI API would deliver.
type SerialTransport struct {
	baudRate int
}

func NewSerialTransport(baudRate int) *SerialTransport {
	if baudRate <= 0 {
		baudRate = DefaultSerialBaudRate
	}

	return &SerialTransport{baudRate: baudRate}
}

func (t *SerialTransport) Name() string {
	return "serial"
}

func (t *SerialTransport) BaudRate() int {
	return t.baudRate
}

// Endpoints lists the system's serial ports. Each call enumerates
// afresh; nothing is held open.
func (t *SerialTransport) Endpoints() ([]devices.Endpoint, error) {
	names, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}

	out := make([]devices.Endpoint, 0, len(names))
	for i, name := range names {
		out = append(out, devices.Endpoint{Index: i, Name: name})
	}

	return out, nil
}

func (t *SerialTransport) Open(ctx context.Context, index int, onFrame FrameFunc) (io.Closer, error) {
	if onFrame == nil {
		return nil, errors.New("frame callback is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	names, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}
	if index < 0 || index >= len(names) {
		return nil, fmt.Errorf("serial endpoint index %d out of range (%d ports)", index, len(names))
	}
	name := names[index]

	port, err := serial.Open(name, &serial.Mode{BaudRate: t.baudRate})
	if err != nil {
		return nil, fmt.Errorf("open serial port %q: %w", name, err)
	}
	if err := port.SetReadTimeout(defaultSerialReadTimeout); err != nil {
		_ = port.Close()

		return nil, fmt.Errorf("set serial read timeout: %w", err)
	}

	conn := &serialConn{
		port:   port,
		name:   name,
		opened: time.Now(),
		done:   make(chan struct{}),
	}
	go conn.readLoop(onFrame)

	return conn, nil
}

type serialConn struct {
	port   serial.Port
	name   string
	opened time.Time

	closeOnce sync.Once
	done      chan struct{}
}

// Close releases the port. The reader goroutine exits on its next read
// return; frames already reassembled may still be delivered.
func (c *serialConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.port.Close()
	})

	return err
}

func (c *serialConn) readLoop(onFrame FrameFunc) {
	logger := transportLogger("serial", "port", c.name)

	var chunker Chunker
	buf := make([]byte, 64)
	for {
		select {
		case <-c.done:
			return
		default:
		}

		n, err := c.port.Read(buf)
		if err != nil {
			select {
			case <-c.done:
				// Expected: Close unblocked the read.
			default:
				logger.Warn("serial read failed", "error", err)
			}

			return
		}
		if n == 0 {
			// Read timeout, nothing on the wire.
			continue
		}

		timestamp := int32(time.Since(c.opened).Milliseconds())
		chunker.Push(buf[:n], func(frame []byte) {
			onFrame(frame, timestamp)
		})
	}
}
