package bus

import (
	"log/slog"
	"reflect"

	"github.com/cskr/pubsub"
)

// Subscription buffers up to subscriptionCapacity pending events.
const subscriptionCapacity = 128

type Subscription chan any

// MessageBus is the application-level asynchronous fan-out. The capture
// and monitoring cores emit synchronously to their direct subscribers;
// the bus carries the same events to loosely coupled consumers such as
// the notifier and the recorder.
type MessageBus interface {
	Publish(topic string, msg any)
	TryPublish(topic string, msg any)
	Subscribe(topic string) Subscription
	Unsubscribe(ch Subscription, topics ...string)
	Close()
}

type PubSubBus struct {
	ps     *pubsub.PubSub
	logger *slog.Logger
}

func New(logger *slog.Logger) *PubSubBus {
	return &PubSubBus{
		ps:     pubsub.New(subscriptionCapacity),
		logger: logger,
	}
}

func (b *PubSubBus) Publish(topic string, msg any) {
	b.logger.Debug("publish", "topic", topic, "payload_type", payloadType(msg))
	b.ps.Pub(msg, topic)
}

// TryPublish drops the event instead of blocking when a subscriber's
// buffer is full. Bridges running inside synchronous emitter callbacks
// use this so a slow bus consumer cannot stall core event delivery.
func (b *PubSubBus) TryPublish(topic string, msg any) {
	b.logger.Debug("try publish", "topic", topic, "payload_type", payloadType(msg))
	b.ps.TryPub(msg, topic)
}

func (b *PubSubBus) Subscribe(topic string) Subscription {
	ch := b.ps.Sub(topic)
	b.logger.Debug("subscribe", "topic", topic)
	return ch
}

func (b *PubSubBus) Unsubscribe(ch Subscription, topics ...string) {
	if len(topics) == 0 {
		b.ps.Unsub(ch)
		b.logger.Debug("unsubscribe", "mode", "all")
		return
	}
	b.ps.Unsub(ch, topics...)
	b.logger.Debug("unsubscribe", "topics", topics)
}

func (b *PubSubBus) Close() {
	b.ps.Shutdown()
}

func payloadType(v any) string {
	if v == nil {
		return "<nil>"
	}
	return reflect.TypeOf(v).String()
}
