package events

import (
	"context"
	"encoding/json"
	"fmt"

	redis "github.com/redis/go-redis/v9"
)

// RedisSink 把事件 PUBLISH 到 "<prefix>:{sessionID}"，供其他实例或外部看板订阅。
type RedisSink struct {
	rdb    redis.UniversalClient
	prefix string
}

func NewRedisSink(rdb redis.UniversalClient, prefix string) *RedisSink {
	if prefix == "" {
		prefix = "replay:events"
	}
	return &RedisSink{rdb: rdb, prefix: prefix}
}

func (r *RedisSink) Channel(sessionID string) string {
	return fmt.Sprintf("%s:{%s}", r.prefix, sessionID)
}

func (r *RedisSink) Publish(ctx context.Context, evt Event) error {
	b, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return r.rdb.Publish(ctx, r.Channel(evt.SessionID), b).Err()
}
