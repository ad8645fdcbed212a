package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"Coop_Voting/internal/model"
	"Coop_Voting/internal/observability"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutboxRelayer_DeliversInOrderAndMarksSent(t *testing.T) {
	f := newPollFixture(t, false)
	ctx := context.Background()
	p := f.createPoll(t, "Windows", "Yes", "No")
	_, err := f.svc.CastVote(ctx, callerOf(f.alice), p.ID, p.Options[0].ID)
	require.NoError(t, err)

	var got []model.PollOutbox
	m := observability.NewMetrics(prometheus.NewRegistry())
	relayer := NewOutboxRelayer(f.db, func(_ context.Context, ob *model.PollOutbox) error {
		got = append(got, *ob)
		return nil
	}, m)

	assert.Equal(t, 2, relayer.DrainOnce(ctx))
	require.Len(t, got, 2)
	assert.Equal(t, model.EventPollCreated, got[0].EventType)
	assert.Equal(t, model.EventVoteCast, got[1].EventType)

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(got[1].Payload), &payload))
	assert.EqualValues(t, p.ID, payload["poll_id"])
	assert.EqualValues(t, f.alice.ID, payload["user_id"])
	assert.Equal(t, model.EventVoteCast, payload["event"])

	assert.Equal(t, 0, relayer.DrainOnce(ctx), "sent events are not delivered twice")
	assert.Equal(t, 2.0, promtest.ToFloat64(m.OutboxDelivered.WithLabelValues("sent")))
}

func TestOutboxRelayer_FailedEventsAreRetried(t *testing.T) {
	f := newPollFixture(t, false)
	ctx := context.Background()
	p := f.createPoll(t, "Doors", "Yes", "No")

	fail := true
	relayer := NewOutboxRelayer(f.db, func(context.Context, *model.PollOutbox) error {
		if fail {
			return errors.New("kafka unavailable")
		}
		return nil
	}, nil)

	assert.Equal(t, 0, relayer.DrainOnce(ctx))
	var ob model.PollOutbox
	require.NoError(t, f.db.Where("poll_id = ?", p.ID).First(&ob).Error)
	assert.Equal(t, model.OutboxFailed, ob.Status)
	assert.Equal(t, 1, ob.Retry)

	fail = false
	assert.Equal(t, 1, relayer.DrainOnce(ctx))
	require.NoError(t, f.db.First(&ob, ob.ID).Error)
	assert.Equal(t, model.OutboxSent, ob.Status)
}

func TestOutboxRelayer_RunStopsWithContext(t *testing.T) {
	f := newPollFixture(t, false)
	relayer := NewOutboxRelayer(f.db, LogSender, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		relayer.Run(ctx)
		close(done)
	}()
	cancel()
	<-done
}
