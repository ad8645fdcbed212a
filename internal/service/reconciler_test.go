package service

import (
	"context"
	"testing"
	"time"

	"Coop_Voting/internal/model"
	"Coop_Voting/internal/observability"
	"Coop_Voting/internal/repository/redis"
	"Coop_Voting/internal/testutil"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTallyReconciler_FixesDrift(t *testing.T) {
	f := newPollFixture(t, false)
	ctx := context.Background()
	p := f.createPoll(t, "Heating", "On", "Off")
	_, err := f.svc.CastVote(ctx, callerOf(f.alice), p.ID, p.Options[0].ID)
	require.NoError(t, err)
	_, err = f.svc.CastVote(ctx, callerOf(f.bob), p.ID, p.Options[0].ID)
	require.NoError(t, err)

	// 人为制造计数漂移
	require.NoError(t, f.db.Model(&model.Option{}).Where("id = ?", p.Options[0].ID).UpdateColumn("vote_count", 7).Error)
	require.NoError(t, f.db.Model(&model.Option{}).Where("id = ?", p.Options[1].ID).UpdateColumn("vote_count", 3).Error)

	m := observability.NewMetrics(prometheus.NewRegistry())
	rec := NewTallyReconciler(f.db, nil, m, 1, time.Minute)
	fixed, err := rec.ReconcileOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, fixed)
	assert.Equal(t, []int64{2, 0}, testutil.OptionCounts(t, f.db, p.ID))
	assert.Equal(t, 2.0, promtest.ToFloat64(m.ReconcileFixes))

	fixed, err = rec.ReconcileOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, fixed)
}

func TestTallyReconciler_SkipsWhenLockHeld(t *testing.T) {
	f := newPollFixture(t, false)
	ctx := context.Background()
	p := f.createPoll(t, "Lobby", "Yes", "No")
	require.NoError(t, f.db.Model(&model.Option{}).Where("id = ?", p.Options[0].ID).UpdateColumn("vote_count", 5).Error)

	_, rdb := testutil.SetupRedis(t)
	lock := &redis.DistLock{RDB: rdb, TTL: time.Minute}
	ok, err := lock.Acquire(ctx, reconcileLockName, "other-replica")
	require.NoError(t, err)
	require.True(t, ok)

	rec := NewTallyReconciler(f.db, lock, nil, 100, time.Minute)
	fixed, err := rec.ReconcileOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, fixed)
	assert.Equal(t, []int64{5, 0}, testutil.OptionCounts(t, f.db, p.ID))

	require.NoError(t, lock.Release(ctx, reconcileLockName, "other-replica"))
	fixed, err = rec.ReconcileOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, fixed)

	ok, err = lock.Acquire(ctx, reconcileLockName, "next")
	require.NoError(t, err)
	assert.True(t, ok, "the reconciler releases its lock when done")
}
