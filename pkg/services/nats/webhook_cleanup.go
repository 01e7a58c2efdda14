package natsservice

import (
	"github.com/nats-io/nats.go"
)

// PublishWebhookCleanup broadcasts a cleanup signal for the room's webhook
// queue. Only the node running the queue worker acts on it.
func (s *NatsService) PublishWebhookCleanup(roomId string) error {
	return s.nc.Publish(s.app.NatsInfo.Subjects.WebhookCleanup, []byte(roomId))
}

func (s *NatsService) SubscribeWebhookCleanup(handler func(roomId string)) (*nats.Subscription, error) {
	return s.nc.Subscribe(s.app.NatsInfo.Subjects.WebhookCleanup, func(m *nats.Msg) {
		handler(string(m.Data))
	})
}
