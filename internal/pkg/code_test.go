package pkg

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTempPassword(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		p, err := TempPassword(10)
		require.NoError(t, err)
		assert.Len(t, p, 10)
		for _, r := range p {
			assert.True(t, strings.ContainsRune(tempPasswordAlphabet, r), "unexpected rune %q", r)
		}
		seen[p] = true
	}
	assert.Greater(t, len(seen), 1)
	assert.NotContains(t, tempPasswordAlphabet, "0")
	assert.NotContains(t, tempPasswordAlphabet, "O")
	assert.NotContains(t, tempPasswordAlphabet, "l")
}

func TestMakeKeyFromID(t *testing.T) {
	assert.Equal(t, "12345", MakeKeyFromID(12345))
}

func TestNewKafkaProducer_RequiresBrokers(t *testing.T) {
	_, err := NewKafkaProducer(KafkaConfig{Topic: "t"})
	assert.ErrorIs(t, err, ErrNoBrokers)

	p, err := NewKafkaProducer(KafkaConfig{Brokers: []string{"127.0.0.1:9092"}, Topic: "t"})
	require.NoError(t, err)
	assert.NoError(t, p.Close())
}
