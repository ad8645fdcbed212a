package service

import (
	"context"
	"log/slog"
	"time"

	"Coop_Voting/internal/observability"
	"Coop_Voting/internal/repository/mysql"
	"Coop_Voting/internal/repository/redis"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

const reconcileLockName = "reconcile:option-votes"

// TallyReconciler 定期用 votes 表校正选项上的冗余计数
type TallyReconciler struct {
	repo      *mysql.TallyReconcilerRepo
	lock      *redis.DistLock
	metrics   *observability.Metrics
	batchSize int
	interval  time.Duration
}

// NewTallyReconciler lock 为 nil 时不加锁（单实例）
func NewTallyReconciler(db *gorm.DB, lock *redis.DistLock, m *observability.Metrics, batchSize int, interval time.Duration) *TallyReconciler {
	if m == nil {
		m = observability.NewMetrics(prometheus.NewRegistry())
	}
	if batchSize <= 0 {
		batchSize = 500
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &TallyReconciler{
		repo:      &mysql.TallyReconcilerRepo{DB: db},
		lock:      lock,
		metrics:   m,
		batchSize: batchSize,
		interval:  interval,
	}
}

// ReconcilerRun 对账定时任务启动器
func (r *TallyReconciler) ReconcilerRun(ctx context.Context) {
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := r.ReconcileOnce(ctx); err != nil {
				slog.Error("reconcile failed", "err", err)
			}
		}
	}
}

// ReconcileOnce 对账一轮，返回修正的选项数；拿不到锁说明其他实例在跑，直接返回
func (r *TallyReconciler) ReconcileOnce(ctx context.Context) (int, error) {
	if r.lock != nil {
		token := uuid.NewString()
		ok, err := r.lock.Acquire(ctx, reconcileLockName, token)
		if err != nil {
			return 0, err
		}
		if !ok {
			slog.Debug("reconcile skipped, lock held elsewhere")
			return 0, nil
		}
		defer func() {
			if err := r.lock.Release(context.WithoutCancel(ctx), reconcileLockName, token); err != nil {
				slog.Warn("reconcile lock release failed", "err", err)
			}
		}()
	}

	fixed := 0
	var lastID uint64
	for {
		batch, next, err := r.repo.ReconcileList(ctx, r.batchSize, lastID)
		if err != nil {
			return fixed, err
		}
		if len(batch) == 0 {
			return fixed, nil
		}
		ids := make([]uint64, 0, len(batch))
		for _, o := range batch {
			ids = append(ids, o.ID)
		}
		counts, err := r.repo.RealCounts(ctx, ids)
		if err != nil {
			return fixed, err
		}
		for _, o := range batch {
			actual := counts[o.ID]
			if actual == o.VoteCount {
				continue
			}
			ok, err := r.repo.FixVoteCount(ctx, o.ID, o.VoteCount, actual)
			if err != nil {
				return fixed, err
			}
			if !ok {
				continue
			}
			fixed++
			r.metrics.ReconcileFixes.Inc()
			slog.Warn("option vote count corrected", "poll_id", o.PollID, "option_id", o.ID, "cached", o.VoteCount, "actual", actual)
		}
		lastID = next
	}
}
