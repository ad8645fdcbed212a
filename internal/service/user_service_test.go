package service

import (
	"context"
	"testing"
	"time"

	"Coop_Voting/internal/model"
	"Coop_Voting/internal/pkg"
	"Coop_Voting/internal/repository/redis"
	"Coop_Voting/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUserService(t *testing.T) (*UserService, *redis.TokenRepository, *pollFixture) {
	t.Helper()
	f := newPollFixture(t, false)
	_, rdb := testutil.SetupRedis(t)
	tokens := redis.NewTokenRepository(rdb, time.Minute)
	issuer := pkg.NewTokenIssuer("access-secret", "refresh-secret", time.Minute, time.Hour)
	return NewUserService(f.db, tokens, issuer), tokens, f
}

func TestLogin(t *testing.T) {
	svc, tokens, f := newUserService(t)
	ctx := context.Background()

	res, err := svc.Login(ctx, "alice", testutil.TestPassword)
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Equal(t, model.RoleResident, res.Role)

	stored, err := tokens.GetUserToken(ctx, f.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, res.AccessToken, stored)

	byEmail, err := svc.Login(ctx, "alice@example.com", testutil.TestPassword)
	require.NoError(t, err)
	stored, err = tokens.GetUserToken(ctx, f.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, byEmail.AccessToken, stored, "a new login replaces the previous session")

	_, err = svc.Login(ctx, "alice", "wrong-password")
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = svc.Login(ctx, "nobody", testutil.TestPassword)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestLogin_ClaimsCarryRoleAndCooperative(t *testing.T) {
	svc, _, f := newUserService(t)
	res, err := svc.Login(context.Background(), "pres", testutil.TestPassword)
	require.NoError(t, err)

	claims, err := svc.issuer.ParseAccess(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, f.president.ID, claims.UserID)
	assert.Equal(t, model.RolePresident, claims.Role)
	require.NotNil(t, claims.CooperativeID)
	assert.Equal(t, f.coop.ID, *claims.CooperativeID)
}

func TestRefresh(t *testing.T) {
	svc, tokens, f := newUserService(t)
	ctx := context.Background()
	res, err := svc.Login(ctx, "bob", testutil.TestPassword)
	require.NoError(t, err)

	pair, err := svc.Refresh(ctx, res.RefreshToken)
	require.NoError(t, err)
	stored, err := tokens.GetUserToken(ctx, f.bob.ID)
	require.NoError(t, err)
	assert.Equal(t, pair.AccessToken, stored)

	_, err = svc.Refresh(ctx, res.AccessToken)
	assert.ErrorIs(t, err, pkg.ErrRefreshInvalid, "an access token is not a refresh token")
}

func TestChangePassword(t *testing.T) {
	svc, tokens, f := newUserService(t)
	ctx := context.Background()
	require.NoError(t, f.db.Model(f.alice).Update("must_change_password", true).Error)
	_, err := svc.Login(ctx, "alice", testutil.TestPassword)
	require.NoError(t, err)

	err = svc.ChangePassword(ctx, f.alice.ID, "bad-old", "new-password-1")
	assert.ErrorIs(t, err, ErrValidation)
	err = svc.ChangePassword(ctx, f.alice.ID, testutil.TestPassword, "short")
	assert.ErrorIs(t, err, ErrValidation)
	err = svc.ChangePassword(ctx, f.alice.ID, testutil.TestPassword, testutil.TestPassword)
	assert.ErrorIs(t, err, ErrValidation)

	require.NoError(t, svc.ChangePassword(ctx, f.alice.ID, testutil.TestPassword, "new-password-1"))

	_, err = tokens.GetUserToken(ctx, f.alice.ID)
	assert.ErrorIs(t, err, redis.ErrTokenNotFound, "changing the password ends the session")

	var u model.User
	require.NoError(t, f.db.First(&u, f.alice.ID).Error)
	assert.False(t, u.MustChangePassword)

	_, err = svc.Login(ctx, "alice", "new-password-1")
	assert.NoError(t, err)
}

func TestCreateSuperAdmin(t *testing.T) {
	svc, _, _ := newUserService(t)
	ctx := context.Background()

	u, err := svc.CreateSuperAdmin(ctx, "root", "root@example.com", "super-secret")
	require.NoError(t, err)
	assert.Equal(t, model.RoleSuperAdmin, u.Role)
	assert.Nil(t, u.CooperativeID)

	_, err = svc.CreateSuperAdmin(ctx, "root", "other@example.com", "super-secret")
	assert.ErrorIs(t, err, ErrConflict)
	_, err = svc.CreateSuperAdmin(ctx, "admin2", "admin2@example.com", "short")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUserService_WithoutSessionStore(t *testing.T) {
	f := newPollFixture(t, false)
	issuer := pkg.NewTokenIssuer("a", "b", time.Minute, time.Hour)
	svc := NewUserService(f.db, nil, issuer)

	res, err := svc.Login(context.Background(), "bob", testutil.TestPassword)
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NoError(t, svc.Logout(context.Background(), f.bob.ID))
}
