package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_RegistersOnPrivateRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.VotesTotal.WithLabelValues(VoteAccepted).Inc()
	m.VotesTotal.WithLabelValues(VoteAccepted).Inc()
	m.VotesTotal.WithLabelValues(VoteAlreadyVoted).Inc()
	m.LiveViewers.Inc()
	m.ReconcileFixes.Add(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.VotesTotal.WithLabelValues(VoteAccepted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.VotesTotal.WithLabelValues(VoteAlreadyVoted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LiveViewers))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ReconcileFixes))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["coop_votes_total"])
	assert.True(t, names["coop_live_viewers"])
}

func TestNewMetrics_TwoRegistriesDoNotCollide(t *testing.T) {
	assert.NotPanics(t, func() {
		NewMetrics(prometheus.NewRegistry())
		NewMetrics(prometheus.NewRegistry())
	})
}
