package messaging

import (
	"context"
	"crypto/tls"

	"github.com/go-redis/redis/v8"
	"github.com/livekit/protocol/logger"
	"github.com/livekit/protocol/utils"
	"github.com/pkg/errors"

	"github.com/livekit/livekit-capture/pkg/config"
)

const (
	ControlChannel = "capture-control"
	ResultChannel  = "capture-results"
)

func NewMessageBus(conf *config.Config) (utils.MessageBus, error) {
	logger.Infow("connecting to redis", "addr", conf.Redis.Address)
	rcOptions := &redis.Options{
		Addr:     conf.Redis.Address,
		Username: conf.Redis.Username,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	}
	if conf.Redis.UseTLS {
		rcOptions.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}
	rc := redis.NewClient(rcOptions)
	if err := rc.Ping(context.Background()).Err(); err != nil {
		_ = rc.Close()
		return nil, errors.Wrap(err, "unable to connect to redis")
	}
	return utils.NewRedisMessageBus(rc), nil
}
