package service

import (
	"context"
	"log/slog"
	"time"

	"Coop_Voting/internal/model"
	"Coop_Voting/internal/observability"
	"Coop_Voting/internal/pkg"
	"Coop_Voting/internal/repository/mysql"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

type Sender func(ctx context.Context, ob *model.PollOutbox) error

// OutboxRelayer 从 poll_outbox 表读取事件，异步投递到 kafka
type OutboxRelayer struct {
	repo      *mysql.OutboxRepository
	batchSize int
	interval  time.Duration
	sender    Sender
	metrics   *observability.Metrics
}

func NewOutboxRelayer(db *gorm.DB, sender Sender, m *observability.Metrics) *OutboxRelayer {
	if m == nil {
		m = observability.NewMetrics(prometheus.NewRegistry())
	}
	return &OutboxRelayer{
		repo:      &mysql.OutboxRepository{DB: db},
		batchSize: 200,
		interval:  time.Second,
		sender:    sender,
		metrics:   m,
	}
}

// Run outbox启动器
func (r *OutboxRelayer) Run(ctx context.Context) {
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.DrainOnce(ctx)
		}
	}
}

// DrainOnce 投递一批，返回成功条数
func (r *OutboxRelayer) DrainOnce(ctx context.Context) int {
	rows, err := r.repo.List(ctx, r.batchSize)
	if err != nil {
		slog.Error("outbox query failed", "err", err)
		return 0
	}
	sent := 0
	for i := range rows {
		ob := rows[i]
		if err := r.sender(ctx, &ob); err != nil {
			r.metrics.OutboxDelivered.WithLabelValues("failed").Inc()
			slog.Warn("outbox send failed", "outbox_id", ob.ID, "poll_id", ob.PollID, "retry", ob.Retry, "err", err)
			if err := r.repo.RetryUpdate(ctx, ob.ID); err != nil {
				slog.Error("outbox retry update failed", "outbox_id", ob.ID, "err", err)
			}
			continue
		}
		r.metrics.OutboxDelivered.WithLabelValues("sent").Inc()
		if err := r.repo.SuccessUpdate(ctx, ob.ID); err != nil {
			slog.Error("outbox success update failed", "outbox_id", ob.ID, "err", err)
			continue
		}
		sent++
	}
	return sent
}

// KafkaSender 以 poll id 为 key，同一投票的事件保持分区内有序
func KafkaSender(p *pkg.KafkaProducer) Sender {
	return func(ctx context.Context, ob *model.PollOutbox) error {
		return p.Send(ctx, pkg.MakeKeyFromID(ob.PollID), []byte(ob.Payload), map[string]string{
			"event_type": ob.EventType,
		})
	}
}

// LogSender 没有配置 kafka 时使用，只打日志
func LogSender(_ context.Context, ob *model.PollOutbox) error {
	slog.Info("outbox event", "type", ob.EventType, "poll_id", ob.PollID, "payload", ob.Payload)
	return nil
}
