package cache

import (
	"context"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

type ViewerPresence interface {
	AddViewer(ctx context.Context, sessionID, viewerID, name string, ttl time.Duration) error
	RemoveViewer(ctx context.Context, sessionID, viewerID string) error
	AliveViewers(ctx context.Context, sessionID string) ([]Viewer, error)
	Sessions(ctx context.Context) ([]string, error)
}

type Viewer struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// 基于 redis 的 ViewerPresence，单机和集群都走 UniversalClient
type redisPresence struct {
	rdb redis.UniversalClient
}

func NewRedisPresence(rdb redis.UniversalClient) ViewerPresence {
	return &redisPresence{rdb: rdb}
}

// 过期清理：score=expireAt（Unix 秒），expireAt <= now 视为离线
var sweepScript = redis.NewScript(`
-- KEYS[1] = roomKey(sessionID)
-- KEYS[2] = namesKey(sessionID)
-- ARGV[1] = now (unix seconds)

local expired = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1])
if #expired > 0 then
	redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", ARGV[1])
	redis.call("HDEL", KEYS[2], unpack(expired))
end
return #expired
`)

func (p *redisPresence) AddViewer(ctx context.Context, sessionID, viewerID, name string, ttl time.Duration) error {
	// 心跳续期也直接调用 AddViewer
	tx := p.rdb.TxPipeline()
	expireAt := time.Now().Add(ttl).Unix()
	tx.ZAdd(ctx, roomKey(sessionID), redis.Z{Score: float64(expireAt), Member: viewerID})
	tx.HSet(ctx, namesKey(sessionID), viewerID, name)
	_, err := tx.Exec(ctx)
	return err
}

func (p *redisPresence) RemoveViewer(ctx context.Context, sessionID, viewerID string) error {
	tx := p.rdb.TxPipeline()
	tx.ZRem(ctx, roomKey(sessionID), viewerID)
	tx.HDel(ctx, namesKey(sessionID), viewerID)
	_, err := tx.Exec(ctx)
	return err
}

func (p *redisPresence) Sessions(ctx context.Context) ([]string, error) {
	var sessions []string
	iter := p.rdb.Scan(ctx, 0, keyRoomPrefix+"{session:*", 0).Iterator()
	for iter.Next(ctx) {
		if id, ok := sessionFromRoomKey(iter.Val()); ok {
			sessions = append(sessions, id)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (p *redisPresence) AliveViewers(ctx context.Context, sessionID string) ([]Viewer, error) {
	// step1: 清理过期观众
	now := time.Now().Unix()
	_, err := sweepScript.Run(ctx, p.rdb, []string{roomKey(sessionID), namesKey(sessionID)}, now).Int()
	if err != nil && err != redis.Nil {
		return nil, err
	}

	// step2: 查询在线观众
	ids, err := p.rdb.ZRangeByScore(ctx, roomKey(sessionID), &redis.ZRangeBy{
		Min: "(" + strconv.FormatInt(now, 10), // > now
		Max: "+inf",
	}).Result()
	if err != nil && err != redis.Nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	// step3: 批量取名字
	names, err := p.rdb.HMGet(ctx, namesKey(sessionID), ids...).Result()
	if err != nil && err != redis.Nil {
		return nil, err
	}
	viewers := make([]Viewer, 0, len(ids))
	for i, v := range names {
		name := ""
		if v != nil {
			name, _ = v.(string)
		}
		viewers = append(viewers, Viewer{ID: ids[i], Name: name})
	}
	return viewers, nil
}
