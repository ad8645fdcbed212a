package relay

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

const ChannelPrefix = "poll:events:"

func Channel(pollID uint64) string {
	return fmt.Sprintf("%s%d", ChannelPrefix, pollID)
}

// RedisRelay 多实例部署时使用：发布走 redis PUBLISH，
// 每个实例订阅全部 poll 频道再分发到本地 Hub
type RedisRelay struct {
	rdb *redis.Client
	hub *Hub
}

func NewRedisRelay(rdb *redis.Client, hub *Hub) *RedisRelay {
	return &RedisRelay{rdb: rdb, hub: hub}
}

func (r *RedisRelay) Publish(ctx context.Context, pollID uint64) error {
	return r.rdb.Publish(ctx, Channel(pollID), "changed").Err()
}

func (r *RedisRelay) Subscribe(pollID uint64) *Subscription {
	return r.hub.Subscribe(pollID)
}

// Start 订阅成功后才返回，之后在后台转发直到 ctx 结束
func (r *RedisRelay) Start(ctx context.Context) error {
	ps := r.rdb.PSubscribe(ctx, ChannelPrefix+"*")
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return fmt.Errorf("relay psubscribe: %w", err)
	}
	go r.forward(ctx, ps)
	return nil
}

func (r *RedisRelay) forward(ctx context.Context, ps *redis.PubSub) {
	defer ps.Close()
	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			id, err := strconv.ParseUint(strings.TrimPrefix(msg.Channel, ChannelPrefix), 10, 64)
			if err != nil {
				slog.Warn("relay: bad channel", "channel", msg.Channel)
				continue
			}
			_ = r.hub.Publish(ctx, id)
		}
	}
}
