// Package capture owns the transport connection: it binds one input
// device, pumps its raw frames through the decoder, and emits structured
// messages and connect/disconnect events.
package capture

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/skobkin/midimon/internal/bus"
	"github.com/skobkin/midimon/internal/connectors"
	"github.com/skobkin/midimon/internal/devices"
	"github.com/skobkin/midimon/internal/events"
	"github.com/skobkin/midimon/internal/miderr"
	"github.com/skobkin/midimon/internal/midi"
	"github.com/skobkin/midimon/internal/transport"
)

// Service is the connection layer between a transport and subscribers.
// At most one device is bound at a time.
type Service struct {
	logger    *slog.Logger
	bus       bus.MessageBus
	transport transport.Transport
	decoder   midi.Decoder

	Messages     *events.Stream[midi.Message]
	Connected    *events.Stream[devices.Device]
	Disconnected *events.Stream[devices.Device]
	Errors       *events.Stream[*miderr.Error]

	mu     sync.Mutex
	conn   io.Closer
	device devices.Device
}

// NewService wires the capture layer. b may be nil when no bus
// diagnostics are wanted.
func NewService(logger *slog.Logger, b bus.MessageBus, tr transport.Transport, decoder midi.Decoder) *Service {
	return &Service{
		logger:       logger,
		bus:          b,
		transport:    tr,
		decoder:      decoder,
		Messages:     events.NewStream[midi.Message](),
		Connected:    events.NewStream[devices.Device](),
		Disconnected: events.NewStream[devices.Device](),
		Errors:       events.NewStream[*miderr.Error](),
	}
}

// ConnectedDeviceID reports the id currently bound, or "" when none.
func (s *Service) ConnectedDeviceID() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.device.ID
}

// ConnectedDevice returns the bound device, if any.
func (s *Service) ConnectedDevice() (devices.Device, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.device, s.conn != nil
}

// Connect binds the device with the given id. The id must match a fresh
// enumeration at connect time. Every fault is classified, emitted on
// Errors, and returned to the caller; a failed connect always leaves the
// service disconnected with no dangling handle. Connecting while another
// device is bound disconnects it first.
func (s *Service) Connect(ctx context.Context, deviceID string) error {
	if s.ConnectedDeviceID() == deviceID && deviceID != "" {
		return nil
	}
	s.Disconnect()

	dev, cerr := s.bind(ctx, deviceID)
	if cerr != nil {
		s.logger.Error("device connect failed", "id", deviceID, "error", cerr)
		s.Errors.Emit(cerr)

		return cerr
	}

	s.logger.Info("device connected", "id", dev.ID, "name", dev.Name)
	s.Connected.Emit(dev)

	return nil
}

func (s *Service) bind(ctx context.Context, deviceID string) (devices.Device, *miderr.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	endpoints, err := s.transport.Endpoints()
	if err != nil {
		return devices.Device{}, miderr.ClassifyEnumeration(err)
	}

	target, found := findEndpoint(endpoints, deviceID)
	if !found {
		return devices.Device{}, miderr.New(miderr.CodeDeviceNotFound, fmt.Sprintf("device %q not present in enumeration", deviceID))
	}

	conn, err := s.transport.Open(ctx, target.Index, s.handleFrame)
	if err != nil {
		return devices.Device{}, miderr.ClassifyOpen(err)
	}

	s.conn = conn
	s.device = devices.Device{ID: deviceID, Name: target.Name, Connected: true}

	return s.device, nil
}

// Disconnect releases the bound device, if any. Idempotent.
func (s *Service) Disconnect() {
	s.mu.Lock()
	conn := s.conn
	dev := s.device
	s.conn = nil
	s.device = devices.Device{}
	s.mu.Unlock()

	if conn == nil {
		return
	}
	if err := conn.Close(); err != nil {
		s.logger.Warn("device close failed", "id", dev.ID, "error", err)
	}

	s.logger.Info("device disconnected", "id", dev.ID, "name", dev.Name)
	dev.Connected = false
	s.Disconnected.Emit(dev)
}

// Close disconnects and detaches every subscriber. Terminal.
func (s *Service) Close() {
	s.Disconnect()
	s.Messages.Close()
	s.Connected.Close()
	s.Disconnected.Close()
	s.Errors.Close()
}

// handleFrame is the decode boundary. Malformed and unsupported frames
// are dropped silently; a panic escaping classification is converted to
// an INVALID_MESSAGE error event and never propagates into the driver.
func (s *Service) handleFrame(frame []byte, timestampMS int32) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("frame classification panicked", "frame", fmt.Sprintf("%X", frame), "panic", r)
			s.Errors.Emit(miderr.New(miderr.CodeInvalidMessage, fmt.Sprintf("frame classification failed: %v", r)))
		}
	}()

	if s.bus != nil {
		s.bus.TryPublish(connectors.TopicRawFrame, connectors.RawFrame{
			Hex:         strings.ToUpper(hex.EncodeToString(frame)),
			Len:         len(frame),
			TimestampMS: timestampMS,
		})
	}

	msg, ok := s.decoder.Decode(frame)
	if !ok {
		return
	}

	s.Messages.Emit(msg)
}

func findEndpoint(endpoints []devices.Endpoint, deviceID string) (devices.Endpoint, bool) {
	for _, ep := range endpoints {
		if devices.DeviceID(ep.Index, ep.Name) == deviceID {
			return ep, true
		}
	}

	return devices.Endpoint{}, false
}
