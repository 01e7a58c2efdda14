package redisservice

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	Prefix = "ajs:"

	// DefaultTTL is applied to per-room keys so that crashed or abandoned
	// rooms do not leave data behind forever.
	DefaultTTL = time.Hour * 24
)

type RedisService struct {
	rc               *redis.Client
	ctx              context.Context
	logger           *logrus.Entry
	unlockScriptExec *redis.Script
}

func New(rc *redis.Client, logger *logrus.Logger) *RedisService {
	return &RedisService{
		rc:               rc,
		ctx:              context.Background(),
		logger:           logger.WithField("service", "redis"),
		unlockScriptExec: redis.NewScript(unlockScript),
	}
}
