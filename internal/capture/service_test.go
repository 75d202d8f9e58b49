package capture

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/skobkin/midimon/internal/bus"
	"github.com/skobkin/midimon/internal/connectors"
	"github.com/skobkin/midimon/internal/devices"
	"github.com/skobkin/midimon/internal/miderr"
	"github.com/skobkin/midimon/internal/midi"
	"github.com/skobkin/midimon/internal/transport"
)

type fakeTransport struct {
	mu        sync.Mutex
	endpoints []devices.Endpoint
	enumErr   error
	openErr   error
	onFrame   transport.FrameFunc
	conns     []*fakeConn
}

func (f *fakeTransport) Name() string { return "fake" }

func (f *fakeTransport) Endpoints() ([]devices.Endpoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.enumErr != nil {
		return nil, f.enumErr
	}

	out := make([]devices.Endpoint, len(f.endpoints))
	copy(out, f.endpoints)

	return out, nil
}

func (f *fakeTransport) Open(_ context.Context, index int, onFrame transport.FrameFunc) (io.Closer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return nil, f.openErr
	}
	if index < 0 || index >= len(f.endpoints) {
		return nil, errors.New("index out of range")
	}

	f.onFrame = onFrame
	conn := &fakeConn{}
	f.conns = append(f.conns, conn)

	return conn, nil
}

func (f *fakeTransport) inject(frame []byte) {
	f.mu.Lock()
	onFrame := f.onFrame
	f.mu.Unlock()
	if onFrame != nil {
		onFrame(frame, 0)
	}
}

type fakeConn struct {
	mu     sync.Mutex
	closed int
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++

	return nil
}

func (c *fakeConn) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.closed
}

func newTestService(t *testing.T, tr transport.Transport) *Service {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := NewService(logger, nil, tr, midi.NewDecoder())
	t.Cleanup(s.Close)

	return s
}

func TestConnectBindsDeviceAndEmitsConnected(t *testing.T) {
	tr := &fakeTransport{endpoints: []devices.Endpoint{{0, "Alpha"}, {1, "Beta"}}}
	s := newTestService(t, tr)

	var connected []devices.Device
	s.Connected.Subscribe(func(d devices.Device) { connected = append(connected, d) })

	id := devices.DeviceID(1, "Beta")
	if err := s.Connect(context.Background(), id); err != nil {
		t.Fatalf("connect: %v", err)
	}

	if got := s.ConnectedDeviceID(); got != id {
		t.Fatalf("bound id: got %q want %q", got, id)
	}
	if len(connected) != 1 || connected[0].ID != id || !connected[0].Connected {
		t.Fatalf("connected events: got %v", connected)
	}
}

func TestConnectUnknownDevice(t *testing.T) {
	tr := &fakeTransport{endpoints: []devices.Endpoint{{0, "Alpha"}}}
	s := newTestService(t, tr)

	var emitted []*miderr.Error
	s.Errors.Subscribe(func(e *miderr.Error) { emitted = append(emitted, e) })

	err := s.Connect(context.Background(), devices.DeviceID(3, "Ghost"))
	if err == nil {
		t.Fatalf("expected connect to fail")
	}
	if got := miderr.CodeOf(err); got != miderr.CodeDeviceNotFound {
		t.Fatalf("returned code: got %s want %s", got, miderr.CodeDeviceNotFound)
	}
	if len(emitted) != 1 || emitted[0].Code != miderr.CodeDeviceNotFound {
		t.Fatalf("error events: got %v", emitted)
	}
	if s.ConnectedDeviceID() != "" {
		t.Fatalf("service left partially connected")
	}
}

func TestConnectOpenFailureIsClassified(t *testing.T) {
	tr := &fakeTransport{
		endpoints: []devices.Endpoint{{0, "Alpha"}},
		openErr:   errors.New("resource busy: port claimed by another client"),
	}
	s := newTestService(t, tr)

	var emitted []*miderr.Error
	s.Errors.Subscribe(func(e *miderr.Error) { emitted = append(emitted, e) })

	err := s.Connect(context.Background(), devices.DeviceID(0, "Alpha"))
	if err == nil {
		t.Fatalf("expected connect to fail")
	}
	if got := miderr.CodeOf(err); got != miderr.CodeDeviceBusy {
		t.Fatalf("returned code: got %s want %s", got, miderr.CodeDeviceBusy)
	}
	if len(emitted) != 1 {
		t.Fatalf("error events: got %d want 1", len(emitted))
	}
	if s.ConnectedDeviceID() != "" {
		t.Fatalf("service left partially connected after open failure")
	}
}

func TestFramesFlowThroughDecoder(t *testing.T) {
	tr := &fakeTransport{endpoints: []devices.Endpoint{{0, "Alpha"}}}
	s := newTestService(t, tr)

	var messages []midi.Message
	s.Messages.Subscribe(func(m midi.Message) { messages = append(messages, m) })

	if err := s.Connect(context.Background(), devices.DeviceID(0, "Alpha")); err != nil {
		t.Fatalf("connect: %v", err)
	}

	tr.inject([]byte{0x90, 60, 100})
	tr.inject([]byte{0xF8})       // unsupported, dropped silently
	tr.inject([]byte{0x90, 200})  // malformed, dropped silently
	tr.inject([]byte{0xB0, 7, 1})

	if len(messages) != 2 {
		t.Fatalf("decoded messages: got %d want 2", len(messages))
	}
	if _, ok := messages[0].(midi.NoteOn); !ok {
		t.Fatalf("first message: got %T want NoteOn", messages[0])
	}
	if _, ok := messages[1].(midi.ControlChange); !ok {
		t.Fatalf("second message: got %T want ControlChange", messages[1])
	}
}

func TestClassificationPanicBecomesInvalidMessage(t *testing.T) {
	tr := &fakeTransport{endpoints: []devices.Endpoint{{0, "Alpha"}}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	decoder := midi.NewDecoder()
	decoder.Now = func() time.Time { panic("clock corrupted") }
	s := NewService(logger, nil, tr, decoder)
	t.Cleanup(s.Close)

	var emitted []*miderr.Error
	s.Errors.Subscribe(func(e *miderr.Error) { emitted = append(emitted, e) })

	if err := s.Connect(context.Background(), devices.DeviceID(0, "Alpha")); err != nil {
		t.Fatalf("connect: %v", err)
	}

	tr.inject([]byte{0x90, 60, 100})

	if len(emitted) != 1 || emitted[0].Code != miderr.CodeInvalidMessage {
		t.Fatalf("error events: got %v want one %s", emitted, miderr.CodeInvalidMessage)
	}
}

func TestDisconnectReleasesDeviceAndEmits(t *testing.T) {
	tr := &fakeTransport{endpoints: []devices.Endpoint{{0, "Alpha"}}}
	s := newTestService(t, tr)

	var disconnected []devices.Device
	s.Disconnected.Subscribe(func(d devices.Device) { disconnected = append(disconnected, d) })

	id := devices.DeviceID(0, "Alpha")
	if err := s.Connect(context.Background(), id); err != nil {
		t.Fatalf("connect: %v", err)
	}

	s.Disconnect()
	s.Disconnect() // idempotent

	if len(disconnected) != 1 || disconnected[0].ID != id || disconnected[0].Connected {
		t.Fatalf("disconnected events: got %v", disconnected)
	}
	if got := tr.conns[0].closeCount(); got != 1 {
		t.Fatalf("conn close count: got %d want 1", got)
	}
	if s.ConnectedDeviceID() != "" {
		t.Fatalf("device still bound after disconnect")
	}
}

func TestConnectSwitchesDevices(t *testing.T) {
	tr := &fakeTransport{endpoints: []devices.Endpoint{{0, "Alpha"}, {1, "Beta"}}}
	s := newTestService(t, tr)

	var sequence []string
	s.Connected.Subscribe(func(d devices.Device) { sequence = append(sequence, "connect:"+d.Name) })
	s.Disconnected.Subscribe(func(d devices.Device) { sequence = append(sequence, "disconnect:"+d.Name) })

	if err := s.Connect(context.Background(), devices.DeviceID(0, "Alpha")); err != nil {
		t.Fatalf("connect alpha: %v", err)
	}
	if err := s.Connect(context.Background(), devices.DeviceID(1, "Beta")); err != nil {
		t.Fatalf("connect beta: %v", err)
	}

	want := []string{"connect:Alpha", "disconnect:Alpha", "connect:Beta"}
	if len(sequence) != len(want) {
		t.Fatalf("event sequence: got %v want %v", sequence, want)
	}
	for i := range want {
		if sequence[i] != want[i] {
			t.Fatalf("event %d: got %q want %q", i, sequence[i], want[i])
		}
	}
	if got := tr.conns[0].closeCount(); got != 1 {
		t.Fatalf("first conn close count: got %d want 1", got)
	}
}

func TestRawFramesReachBusDiagnostics(t *testing.T) {
	tr := &fakeTransport{endpoints: []devices.Endpoint{{0, "Alpha"}}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	b := bus.New(logger)
	t.Cleanup(b.Close)

	s := NewService(logger, b, tr, midi.NewDecoder())
	t.Cleanup(s.Close)

	sub := b.Subscribe(connectors.TopicRawFrame)
	t.Cleanup(func() { b.Unsubscribe(sub, connectors.TopicRawFrame) })

	if err := s.Connect(context.Background(), devices.DeviceID(0, "Alpha")); err != nil {
		t.Fatalf("connect: %v", err)
	}
	tr.inject([]byte{0x90, 60, 100})

	select {
	case raw := <-sub:
		frame, ok := raw.(connectors.RawFrame)
		if !ok {
			t.Fatalf("payload: got %T want connectors.RawFrame", raw)
		}
		if frame.Hex != "903C64" || frame.Len != 3 {
			t.Fatalf("raw frame: got %+v", frame)
		}
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for raw frame on bus")
	}
}

func TestConnectSameDeviceIsNoop(t *testing.T) {
	tr := &fakeTransport{endpoints: []devices.Endpoint{{0, "Alpha"}}}
	s := newTestService(t, tr)

	id := devices.DeviceID(0, "Alpha")
	if err := s.Connect(context.Background(), id); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := s.Connect(context.Background(), id); err != nil {
		t.Fatalf("reconnect: %v", err)
	}

	if len(tr.conns) != 1 {
		t.Fatalf("opened connections: got %d want 1", len(tr.conns))
	}
}
