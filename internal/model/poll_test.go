package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPoll_IsOpen(t *testing.T) {
	closes := time.Date(2026, 6, 1, 18, 0, 0, 0, time.UTC)
	p := &Poll{ClosesAt: closes}

	assert.True(t, p.IsOpen(closes.Add(-time.Nanosecond)))
	assert.False(t, p.IsOpen(closes), "closing instant is already closed")
	assert.False(t, p.IsOpen(closes.Add(time.Second)))
}

func TestPoll_IsOpenIsMonotonic(t *testing.T) {
	closes := time.Date(2026, 6, 1, 18, 0, 0, 0, time.UTC)
	p := &Poll{ClosesAt: closes}

	seenClosed := false
	for now := closes.Add(-time.Hour); now.Before(closes.Add(time.Hour)); now = now.Add(time.Minute) {
		open := p.IsOpen(now)
		if seenClosed {
			assert.False(t, open, "reopened at %s", now)
		}
		if !open {
			seenClosed = true
		}
	}
	assert.True(t, seenClosed)
}

func TestRole_Valid(t *testing.T) {
	assert.True(t, RoleSuperAdmin.Valid())
	assert.True(t, RolePresident.Valid())
	assert.True(t, RoleResident.Valid())
	assert.False(t, Role("admin").Valid())
}

func TestUser_Helpers(t *testing.T) {
	coop := uint64(4)
	u := &User{Username: "jdoe", CooperativeID: &coop}
	assert.Equal(t, "jdoe", u.DisplayName())
	u.Name = "Jane Doe"
	assert.Equal(t, "Jane Doe", u.DisplayName())

	assert.True(t, u.InCooperative(4))
	assert.False(t, u.InCooperative(5))
	assert.False(t, (&User{}).InCooperative(4))
}
