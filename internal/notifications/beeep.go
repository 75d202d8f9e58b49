package notifications

import (
	"log/slog"

	"github.com/gen2brain/beeep"
)

func init() {
	beeep.AppName = "midimon"
}

// BeeepSender delivers notifications through the desktop notification
// daemon of the current platform.
type BeeepSender struct {
	logger *slog.Logger
}

func NewBeeepSender(logger *slog.Logger) *BeeepSender {
	if logger == nil {
		logger = slog.Default().With("component", "notifications")
	}

	return &BeeepSender{logger: logger}
}

func (s *BeeepSender) Send(payload Payload) {
	if err := beeep.Notify(payload.Title, payload.Content, ""); err != nil {
		s.logger.Warn("notification delivery failed", "title", payload.Title, "error", err)
	}
}
