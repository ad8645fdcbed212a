package relay

import (
	"context"
	"sync"
)

// Subscription 一个在线观看者。C 的缓冲为 1，多次通知会合并成一次刷新
type Subscription struct {
	C      <-chan struct{}
	ch     chan struct{}
	pollID uint64
	hub    *Hub
	once   sync.Once
}

func (s *Subscription) PollID() uint64 { return s.pollID }

// Close 退订，可重复调用
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.remove(s)
	})
}

// Hub 进程内的发布订阅，按 poll id 分组
type Hub struct {
	mu   sync.RWMutex
	subs map[uint64]map[*Subscription]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[uint64]map[*Subscription]struct{})}
}

func (h *Hub) Subscribe(pollID uint64) *Subscription {
	ch := make(chan struct{}, 1)
	s := &Subscription{C: ch, ch: ch, pollID: pollID, hub: h}

	h.mu.Lock()
	defer h.mu.Unlock()
	group, ok := h.subs[pollID]
	if !ok {
		group = make(map[*Subscription]struct{})
		h.subs[pollID] = group
	}
	group[s] = struct{}{}
	return s
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	group := h.subs[s.pollID]
	delete(group, s)
	if len(group) == 0 {
		delete(h.subs, s.pollID)
	}
}

// Publish 不阻塞：订阅者还有未读通知时直接丢弃本次
func (h *Hub) Publish(_ context.Context, pollID uint64) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs[pollID] {
		select {
		case s.ch <- struct{}{}:
		default:
		}
	}
	return nil
}

// Subscribers 当前订阅某投票的连接数
func (h *Hub) Subscribers(pollID uint64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[pollID])
}
