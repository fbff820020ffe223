package service

import (
	"testing"

	"github.com/viewer360/viewer360/database/model"
	"github.com/viewer360/viewer360/util/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToggleVote(t *testing.T) {
	setupTest(t)
	alice := createUser(t, "alice", model.RoleUser)
	bob := createUser(t, "bob", model.RoleUser)
	carol := createUser(t, "carol", model.RoleUser)
	p := uploadPanorama(t, alice, "Beach", true)
	var s VoteService

	steps := []struct {
		caller    Identity
		value     int
		wantVote  int
		wantScore int
	}{
		{bob, 1, 1, 1},
		{carol, 1, 1, 2},
		{bob, 1, 0, 1},
		{bob, -1, -1, 0},
		{bob, 1, 1, 2},
		{carol, -1, -1, 0},
	}
	for i, step := range steps {
		res, err := s.ToggleVote(step.caller, p.Id, step.value)
		require.NoError(t, err, "step %d", i)
		assert.Equal(t, step.wantVote, res.UserVote, "step %d", i)
		assert.Equal(t, step.wantScore, res.Score, "step %d", i)
	}

	status, err := s.Status(bob, p.Id)
	require.NoError(t, err)
	assert.Equal(t, 0, status.Score)
	assert.Equal(t, 1, status.UserVote)

	status, err = s.Status(Anonymous(), p.Id)
	require.NoError(t, err)
	assert.Zero(t, status.UserVote)
}

func TestToggleVoteRules(t *testing.T) {
	setupTest(t)
	alice := createUser(t, "alice", model.RoleUser)
	bob := createUser(t, "bob", model.RoleUser)
	public := uploadPanorama(t, alice, "Open", true)
	private := uploadPanorama(t, alice, "Hidden", false)
	var s VoteService

	_, err := s.ToggleVote(Anonymous(), public.Id, 1)
	requireKind(t, err, common.KindUnauthenticated)
	_, err = s.ToggleVote(bob, public.Id, 2)
	requireKind(t, err, common.KindInvalid)
	_, err = s.ToggleVote(alice, public.Id, 1)
	requireKind(t, err, common.KindInvalid)
	_, err = s.ToggleVote(bob, private.Id, 1)
	requireKind(t, err, common.KindForbidden)
	_, err = s.ToggleVote(bob, 999, 1)
	requireKind(t, err, common.KindNotFound)

	_, err = s.Status(bob, private.Id)
	requireKind(t, err, common.KindForbidden)
}
