package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"Coop_Voting/internal/model"
	"Coop_Voting/internal/repository/redis"
	"Coop_Voting/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestResidentService_CreateWithTemporaryPassword(t *testing.T) {
	f := newPollFixture(t, false)
	svc := NewResidentService(f.db, nil)
	ctx := context.Background()

	u, temp, err := svc.Create(ctx, callerOf(f.president), MemberInput{
		Username: " carol ", Name: "Carol", Email: "carol@example.com", UnitNumber: "4B",
	})
	require.NoError(t, err)
	assert.Equal(t, "carol", u.Username)
	assert.Equal(t, model.RoleResident, u.Role)
	assert.True(t, u.MustChangePassword)
	require.NotNil(t, u.CooperativeID)
	assert.Equal(t, f.coop.ID, *u.CooperativeID)
	assert.Len(t, temp, tempPasswordLen)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(temp)))

	_, _, err = svc.Create(ctx, callerOf(f.president), MemberInput{Username: "carol", Email: "c2@example.com"})
	assert.ErrorIs(t, err, ErrConflict)
	_, _, err = svc.Create(ctx, callerOf(f.president), MemberInput{Username: "dave", Email: "not-an-email"})
	assert.ErrorIs(t, err, ErrValidation)
	_, _, err = svc.Create(ctx, callerOf(f.alice), MemberInput{Username: "eve", Email: "eve@example.com"})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestResidentService_ListOnlyOwnCooperative(t *testing.T) {
	f := newPollFixture(t, false)
	svc := NewResidentService(f.db, nil)
	other := testutil.CreateTestCooperative(t, f.db, "Cedar", false)
	testutil.CreateTestUser(t, f.db, other, model.RoleResident, "cedar1")

	list, err := svc.List(context.Background(), callerOf(f.president))
	require.NoError(t, err)
	names := []string{}
	for _, u := range list {
		names = append(names, u.Username)
	}
	assert.ElementsMatch(t, []string{"pres", "alice", "bob"}, names)
}

func TestResidentService_UpdateAndDelete(t *testing.T) {
	f := newPollFixture(t, false)
	svc := NewResidentService(f.db, nil)
	polls := NewPollService(f.db, nil, nil)
	ctx := context.Background()

	name, unit := "Alice Smith", "12A"
	u, err := svc.Update(ctx, callerOf(f.president), f.alice.ID, MemberPatch{Name: &name, UnitNumber: &unit})
	require.NoError(t, err)
	assert.Equal(t, name, u.Name)
	assert.Equal(t, unit, u.UnitNumber)

	taken := "bob@example.com"
	_, err = svc.Update(ctx, callerOf(f.president), f.alice.ID, MemberPatch{Email: &taken})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = svc.Update(ctx, callerOf(f.president), f.president.ID, MemberPatch{Name: &name})
	assert.ErrorIs(t, err, ErrNotFound, "presidents are not managed as residents")

	p, err := polls.CreatePoll(ctx, callerOf(f.president), CreatePollInput{
		Title: "Keep me", ClosesAt: time.Now().Add(time.Hour), Options: []string{"A", "B"},
	})
	require.NoError(t, err)
	_, err = polls.CastVote(ctx, callerOf(f.alice), p.ID, p.Options[0].ID)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, callerOf(f.president), f.alice.ID))
	assert.ErrorIs(t, svc.Delete(ctx, callerOf(f.president), f.alice.ID), ErrNotFound)

	// 删除住户后历史投票仍然保留
	assert.EqualValues(t, 1, testutil.CountVotes(t, f.db, p.ID))
	assert.Equal(t, []int64{1, 0}, testutil.OptionCounts(t, f.db, p.ID))
}

func TestResidentService_DeleteKeepsPollsWithoutCreator(t *testing.T) {
	f := newPollFixture(t, false)
	p := testutil.CreateTestPoll(t, f.db, f.coop, f.alice, "Orphan", time.Now().Add(time.Hour), "A", "B")

	require.NoError(t, NewResidentService(f.db, nil).Delete(context.Background(), callerOf(f.president), f.alice.ID))

	var stored model.Poll
	require.NoError(t, f.db.First(&stored, p.ID).Error)
	assert.Nil(t, stored.CreatorID)
}

func TestResidentService_RejectsNonBareEmails(t *testing.T) {
	f := newPollFixture(t, false)
	svc := NewResidentService(f.db, nil)
	ctx := context.Background()

	for _, email := range []string{
		"Jane <jane@example.com>",
		"jane@example.com (Jane)",
		strings.Repeat("j", 60) + "@example.com",
		"",
	} {
		_, _, err := svc.Create(ctx, callerOf(f.president), MemberInput{Username: "jane", Email: email})
		assert.ErrorIs(t, err, ErrValidation, email)
	}

	display := "Alice <alice@example.com>"
	_, err := svc.Update(ctx, callerOf(f.president), f.alice.ID, MemberPatch{Email: &display})
	assert.ErrorIs(t, err, ErrValidation)

	u, _, err := svc.Create(ctx, callerOf(f.president), MemberInput{Username: "jane", Email: " jane@example.com "})
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", u.Email)
}

func TestResidentService_DeleteRevokesSessionAndVoting(t *testing.T) {
	f := newPollFixture(t, false)
	ctx := context.Background()
	_, rdb := testutil.SetupRedis(t)
	tokens := redis.NewTokenRepository(rdb, time.Minute)
	require.NoError(t, tokens.AddUserToken(ctx, f.alice.ID, "alice-token"))
	p := f.createPoll(t, "Bike shed", "Yes", "No")

	require.NoError(t, NewResidentService(f.db, tokens).Delete(ctx, callerOf(f.president), f.alice.ID))

	_, err := tokens.GetUserToken(ctx, f.alice.ID)
	assert.ErrorIs(t, err, redis.ErrTokenNotFound)

	// 旧 token 里的身份仍然有效期内，也不能再投票
	_, err = f.svc.CastVote(ctx, callerOf(f.alice), p.ID, p.Options[0].ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, testutil.CountVotes(t, f.db, p.ID))
	assert.Equal(t, []int64{0, 0}, testutil.OptionCounts(t, f.db, p.ID))
}

func TestCastVote_StaleCooperativeClaim(t *testing.T) {
	f := newPollFixture(t, false)
	ctx := context.Background()
	p := f.createPoll(t, "Garden", "Yes", "No")
	stale := callerOf(f.bob)

	other := testutil.CreateTestCooperative(t, f.db, "Cedar", false)
	require.NoError(t, f.db.Model(&model.User{}).Where("id = ?", f.bob.ID).Update("cooperative_id", other.ID).Error)

	_, err := f.svc.CastVote(ctx, stale, p.ID, p.Options[0].ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, testutil.CountVotes(t, f.db, p.ID))
}
