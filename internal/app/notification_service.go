package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/skobkin/midimon/internal/bus"
	"github.com/skobkin/midimon/internal/config"
	"github.com/skobkin/midimon/internal/connectors"
	"github.com/skobkin/midimon/internal/devices"
	"github.com/skobkin/midimon/internal/notifications"
)

const (
	notificationTitleDeviceAdded   = "New MIDI device detected"
	notificationTitleDeviceRemoved = "MIDI device removed"
)

// NotificationService listens to bus events and emits user-facing notifications.
type NotificationService struct {
	bus           bus.MessageBus
	currentConfig func() config.AppConfig
	sender        notifications.Sender
	logger        *slog.Logger

	connStateMu   sync.Mutex
	lastConnState string
}

func NewNotificationService(
	messageBus bus.MessageBus,
	currentConfig func() config.AppConfig,
	sender notifications.Sender,
	logger *slog.Logger,
) *NotificationService {
	if logger == nil {
		logger = slog.Default().With("component", "app.notifications")
	}

	return &NotificationService{
		bus:           messageBus,
		currentConfig: currentConfig,
		sender:        sender,
		logger:        logger,
	}
}

func (s *NotificationService) Start(ctx context.Context) {
	if s == nil || s.bus == nil || s.sender == nil {
		return
	}

	addedSub := s.bus.Subscribe(connectors.TopicDeviceAdded)
	removedSub := s.bus.Subscribe(connectors.TopicDeviceRemoved)
	connSub := s.bus.Subscribe(connectors.TopicDeviceConnected)
	discSub := s.bus.Subscribe(connectors.TopicDeviceDisconnected)

	go func() {
		defer s.bus.Unsubscribe(addedSub, connectors.TopicDeviceAdded)
		defer s.bus.Unsubscribe(removedSub, connectors.TopicDeviceRemoved)
		defer s.bus.Unsubscribe(connSub, connectors.TopicDeviceConnected)
		defer s.bus.Unsubscribe(discSub, connectors.TopicDeviceDisconnected)

		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-addedSub:
				if !ok {
					return
				}
				dev, ok := raw.(devices.Device)
				if !ok {
					continue
				}
				s.handleDeviceAdded(dev)
			case raw, ok := <-removedSub:
				if !ok {
					return
				}
				dev, ok := raw.(devices.Device)
				if !ok {
					continue
				}
				s.handleDeviceRemoved(dev)
			case raw, ok := <-connSub:
				if !ok {
					return
				}
				dev, ok := raw.(devices.Device)
				if !ok {
					continue
				}
				s.handleConnection(dev, "connected")
			case raw, ok := <-discSub:
				if !ok {
					return
				}
				dev, ok := raw.(devices.Device)
				if !ok {
					continue
				}
				s.handleConnection(dev, "disconnected")
			}
		}
	}()
}

func (s *NotificationService) handleDeviceAdded(dev devices.Device) {
	prefs := s.notificationPrefs()
	if !s.shouldNotify(prefs, prefs.Events.DeviceAdded) {
		return
	}

	s.send(notifications.Payload{
		Title:   notificationTitleDeviceAdded,
		Content: deviceDisplayName(dev),
	})
}

func (s *NotificationService) handleDeviceRemoved(dev devices.Device) {
	prefs := s.notificationPrefs()
	if !s.shouldNotify(prefs, prefs.Events.DeviceRemoved) {
		return
	}

	s.send(notifications.Payload{
		Title:   notificationTitleDeviceRemoved,
		Content: deviceDisplayName(dev),
	})
}

func (s *NotificationService) handleConnection(dev devices.Device, state string) {
	prefs := s.notificationPrefs()

	// Consecutive repeats of the same transition for the same device are
	// suppressed.
	key := state + ":" + dev.ID
	s.connStateMu.Lock()
	if s.lastConnState == key {
		s.connStateMu.Unlock()

		return
	}
	s.lastConnState = key
	s.connStateMu.Unlock()

	if !s.shouldNotify(prefs, prefs.Events.Connection) {
		return
	}

	s.send(notifications.Payload{
		Title:   fmt.Sprintf("%s - %s", deviceDisplayName(dev), state),
		Content: dev.ID,
	})
}

func (s *NotificationService) shouldNotify(prefs config.NotificationsConfig, kindEnabled bool) bool {
	if !prefs.Enabled {
		return false
	}

	return kindEnabled
}

func (s *NotificationService) notificationPrefs() config.NotificationsConfig {
	cfg := config.Default()
	if s.currentConfig != nil {
		cfg = s.currentConfig()
		cfg.FillMissingDefaults()
	}

	return cfg.Notifications
}

func (s *NotificationService) send(notification notifications.Payload) {
	title := strings.TrimSpace(notification.Title)
	content := strings.TrimSpace(notification.Content)
	if title == "" && content == "" {
		return
	}
	s.logger.Debug("sending notification", "title", title)
	s.sender.Send(notifications.Payload{
		Title:   title,
		Content: content,
	})
}

func deviceDisplayName(dev devices.Device) string {
	name := strings.TrimSpace(dev.Name)
	if name == "" {
		return strings.TrimSpace(dev.ID)
	}

	return name
}
