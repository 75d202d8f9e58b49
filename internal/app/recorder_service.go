package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/skobkin/midimon/internal/bus"
	"github.com/skobkin/midimon/internal/connectors"
	"github.com/skobkin/midimon/internal/devices"
	"github.com/skobkin/midimon/internal/persistence"
)

// RecorderService persists captured messages and device lifecycle events
// to sqlite. Writes go through the writer queue so a slow disk never
// backs up into the capture path.
type RecorderService struct {
	bus      bus.MessageBus
	writer   *persistence.WriterQueue
	messages *persistence.MessageRepo
	events   *persistence.DeviceEventRepo
	logger   *slog.Logger
}

func NewRecorderService(
	messageBus bus.MessageBus,
	writer *persistence.WriterQueue,
	messages *persistence.MessageRepo,
	events *persistence.DeviceEventRepo,
	logger *slog.Logger,
) *RecorderService {
	if logger == nil {
		logger = slog.Default().With("component", "app.recorder")
	}

	return &RecorderService{
		bus:      messageBus,
		writer:   writer,
		messages: messages,
		events:   events,
		logger:   logger,
	}
}

func (s *RecorderService) Start(ctx context.Context) {
	if s == nil || s.bus == nil || s.writer == nil {
		return
	}

	msgSub := s.bus.Subscribe(connectors.TopicMessage)
	addedSub := s.bus.Subscribe(connectors.TopicDeviceAdded)
	removedSub := s.bus.Subscribe(connectors.TopicDeviceRemoved)
	connSub := s.bus.Subscribe(connectors.TopicDeviceConnected)
	discSub := s.bus.Subscribe(connectors.TopicDeviceDisconnected)

	s.logger.Info("recording enabled")

	go func() {
		defer s.bus.Unsubscribe(msgSub, connectors.TopicMessage)
		defer s.bus.Unsubscribe(addedSub, connectors.TopicDeviceAdded)
		defer s.bus.Unsubscribe(removedSub, connectors.TopicDeviceRemoved)
		defer s.bus.Unsubscribe(connSub, connectors.TopicDeviceConnected)
		defer s.bus.Unsubscribe(discSub, connectors.TopicDeviceDisconnected)

		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-msgSub:
				if !ok {
					return
				}
				captured, ok := raw.(connectors.CapturedMessage)
				if !ok {
					continue
				}
				s.recordMessage(captured)
			case raw, ok := <-addedSub:
				if !ok {
					return
				}
				s.recordDeviceEvent(raw, persistence.DeviceEventAdded)
			case raw, ok := <-removedSub:
				if !ok {
					return
				}
				s.recordDeviceEvent(raw, persistence.DeviceEventRemoved)
			case raw, ok := <-connSub:
				if !ok {
					return
				}
				s.recordDeviceEvent(raw, persistence.DeviceEventConnected)
			case raw, ok := <-discSub:
				if !ok {
					return
				}
				s.recordDeviceEvent(raw, persistence.DeviceEventDisconnected)
			}
		}
	}()
}

func (s *RecorderService) recordMessage(captured connectors.CapturedMessage) {
	rec := persistence.RecordForMessage(captured.Message, captured.DeviceID)
	s.writer.Enqueue("insert message", func(ctx context.Context) error {
		_, err := s.messages.Insert(ctx, rec)

		return err
	})
}

func (s *RecorderService) recordDeviceEvent(raw any, kind string) {
	dev, ok := raw.(devices.Device)
	if !ok {
		return
	}
	rec := persistence.DeviceEventRecord{
		Kind:       kind,
		DeviceID:   dev.ID,
		DeviceName: dev.Name,
		At:         time.Now(),
	}
	s.writer.Enqueue("insert device event", func(ctx context.Context) error {
		return s.events.Insert(ctx, rec)
	})
}
