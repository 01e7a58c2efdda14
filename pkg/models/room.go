package models

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ajvoice/aj-server/pkg/config"
	"github.com/ajvoice/aj-server/pkg/helpers"
	dbservice "github.com/ajvoice/aj-server/pkg/services/db"
	livekitservice "github.com/ajvoice/aj-server/pkg/services/livekit"
	natsservice "github.com/ajvoice/aj-server/pkg/services/nats"
	redisservice "github.com/ajvoice/aj-server/pkg/services/redis"
)

type RoomModel struct {
	ctx             context.Context
	app             *config.AppConfig
	ds              *dbservice.DatabaseService
	rs              *redisservice.RedisService
	lk              *livekitservice.LivekitService
	natsService     *natsservice.NatsService
	webhookNotifier *helpers.WebhookNotifier
	logger          *logrus.Entry
}

func NewRoomModel(ctx context.Context, app *config.AppConfig, ds *dbservice.DatabaseService, rs *redisservice.RedisService, lk *livekitservice.LivekitService, natsService *natsservice.NatsService, webhookNotifier *helpers.WebhookNotifier, logger *logrus.Logger) *RoomModel {
	return &RoomModel{
		ctx:             ctx,
		app:             app,
		ds:              ds,
		rs:              rs,
		lk:              lk,
		natsService:     natsService,
		webhookNotifier: webhookNotifier,
		logger:          logger.WithField("model", "room"),
	}
}

// acquireRoomCreationLock waits until this request holds the creation lock
// for the room. Gives up after a minute so a stuck holder cannot block the
// API forever; the lock TTL guarantees it expires on its own anyway.
func (m *RoomModel) acquireRoomCreationLock(roomId string) (string, error) {
	deadline := time.Now().Add(time.Minute)
	for {
		acquired, lockValue, err := m.rs.LockRoomCreation(m.ctx, roomId, time.Minute)
		if err != nil {
			return "", err
		}
		if acquired {
			return lockValue, nil
		}
		if time.Now().After(deadline) {
			return "", errors.New("another request is still creating this room")
		}
		m.logger.Infof("room %s creation still in progress, waiting", roomId)
		time.Sleep(time.Second * 1)
	}
}
