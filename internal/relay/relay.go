// Package relay 通知订阅者某个投票的数据已变化。
// 事件不带数据，订阅者收到后自行调用查询接口刷新。
package relay

import "context"

// Publisher 投票成功或投票被修改后调用
type Publisher interface {
	Publish(ctx context.Context, pollID uint64) error
}

// Relay 同时支持发布与订阅，Hub 和 RedisRelay 都实现它
type Relay interface {
	Publisher
	Subscribe(pollID uint64) *Subscription
}

// Nop 不做任何通知，客户端只能靠轮询刷新
type Nop struct{}

func (Nop) Publish(context.Context, uint64) error { return nil }
