package pkg

import (
	"testing"
	"time"

	"Coop_Voting/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIssuer() *TokenIssuer {
	return NewTokenIssuer("access-secret", "refresh-secret", time.Minute, time.Hour)
}

func TestTokenIssuer_RoundTrip(t *testing.T) {
	issuer := newTestIssuer()
	coop := uint64(3)
	u := &model.User{ID: 9, Role: model.RolePresident, CooperativeID: &coop, MustChangePassword: true}

	pair, err := issuer.GeneratePair(u)
	require.NoError(t, err)

	claims, err := issuer.ParseAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, uint64(9), claims.UserID)
	assert.Equal(t, model.RolePresident, claims.Role)
	require.NotNil(t, claims.CooperativeID)
	assert.Equal(t, coop, *claims.CooperativeID)
	assert.True(t, claims.MustChangePassword)

	userID, err := issuer.ParseRefresh(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, uint64(9), userID)
}

func TestTokenIssuer_TokensAreNotInterchangeable(t *testing.T) {
	issuer := newTestIssuer()
	pair, err := issuer.GeneratePair(&model.User{ID: 1, Role: model.RoleResident})
	require.NoError(t, err)

	_, err = issuer.ParseAccess(pair.RefreshToken)
	assert.ErrorIs(t, err, ErrTokenInvalid)
	_, err = issuer.ParseRefresh(pair.AccessToken)
	assert.ErrorIs(t, err, ErrRefreshInvalid)
}

func TestTokenIssuer_Expired(t *testing.T) {
	issuer := newTestIssuer()
	issuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	pair, err := issuer.GeneratePair(&model.User{ID: 1, Role: model.RoleResident})
	require.NoError(t, err)

	_, err = issuer.ParseAccess(pair.AccessToken)
	assert.ErrorIs(t, err, ErrTokenExpired)
	_, err = issuer.ParseRefresh(pair.RefreshToken)
	assert.ErrorIs(t, err, ErrRefreshExpired)
}

func TestTokenIssuer_WrongSecret(t *testing.T) {
	pair, err := newTestIssuer().GeneratePair(&model.User{ID: 1, Role: model.RoleResident})
	require.NoError(t, err)

	other := NewTokenIssuer("other", "other-refresh", time.Minute, time.Hour)
	_, err = other.ParseAccess(pair.AccessToken)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestNewTokenIssuer_DefaultTTL(t *testing.T) {
	issuer := NewTokenIssuer("a", "b", 0, 0)
	assert.Equal(t, DefaultAccessTTL, issuer.AccessTTL)
	assert.Equal(t, DefaultRefreshTTL, issuer.RefreshTTL)
}
