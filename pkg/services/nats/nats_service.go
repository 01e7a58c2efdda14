package natsservice

import (
	"context"
	"errors"
	"time"

	"github.com/ajvoice/aj-server/pkg/config"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/sirupsen/logrus"
)

const (
	Prefix = "ajs-"

	// DefaultTTL bounds how long per-room KV buckets survive if a node
	// dies before cleaning up after itself.
	DefaultTTL = time.Hour * 24
)

type NatsService struct {
	ctx    context.Context
	app    *config.AppConfig
	nc     *nats.Conn
	js     jetstream.JetStream
	logger *logrus.Entry
}

func New(app *config.AppConfig, logger *logrus.Logger) *NatsService {
	if app == nil {
		app = config.GetConfig()
	}

	return &NatsService{
		ctx:    context.Background(),
		app:    app,
		nc:     app.NatsConn,
		js:     app.JetStream,
		logger: logger.WithField("service", "nats"),
	}
}

// getKV retrieves the KeyValue store for the given bucket name.
// Returns nil if the bucket is not found.
func (s *NatsService) getKV(bucket string) (jetstream.KeyValue, error) {
	kv, err := s.js.KeyValue(s.ctx, bucket)
	if errors.Is(err, jetstream.ErrBucketNotFound) {
		return nil, nil
	}
	return kv, err
}
