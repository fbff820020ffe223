package service

import (
	"strings"
	"testing"

	"github.com/viewer360/viewer360/database"
	"github.com/viewer360/viewer360/database/model"
	"github.com/viewer360/viewer360/util/common"
	"github.com/viewer360/viewer360/util/crypto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestRegisterAndLogin(t *testing.T) {
	setupTest(t)
	var s UserService

	user, err := s.Register(" alice ", "alice@example.com", "password1")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, model.RoleUser, user.Role)
	assert.NotEqual(t, "password1", user.PasswordHash)

	_, err = s.Register("alice", "other@example.com", "password1")
	requireKind(t, err, common.KindConflict)
	_, err = s.Register("alice2", "alice@example.com", "password1")
	requireKind(t, err, common.KindConflict)

	got, err := s.CheckUser("alice@example.com", "password1")
	require.NoError(t, err)
	assert.Equal(t, user.Id, got.Id)

	_, err = s.CheckUser("alice@example.com", "wrong-password")
	requireKind(t, err, common.KindUnauthenticated)
	_, err = s.CheckUser("nobody@example.com", "password1")
	requireKind(t, err, common.KindUnauthenticated)
	_, err = s.CheckUser("", "")
	requireKind(t, err, common.KindInvalid)
}

func TestRegisterValidation(t *testing.T) {
	setupTest(t)
	var s UserService

	_, err := s.Register("al", "not-an-email", "short")
	requireKind(t, err, common.KindInvalid)
	var cerr *common.Error
	require.ErrorAs(t, err, &cerr)
	assert.ElementsMatch(t, []string{
		registerMessages["Username"],
		registerMessages["Email"],
		registerMessages["Password"],
	}, cerr.Messages())

	_, err = s.Register("alice", "alice@example.com", strings.Repeat("p", 80))
	requireKind(t, err, common.KindInvalid)
}

func TestRegistrationClosed(t *testing.T) {
	setupTest(t)
	var settings SettingService
	require.NoError(t, settings.setString("registrationOpen", "false"))

	var s UserService
	_, err := s.Register("alice", "alice@example.com", "password1")
	requireKind(t, err, common.KindForbidden)
}

func TestBannedUserCannotLogin(t *testing.T) {
	setupTest(t)
	var s UserService
	user, err := s.Register("alice", "alice@example.com", "password1")
	require.NoError(t, err)

	id, err := s.GetIdentity(user.Id)
	require.NoError(t, err)
	assert.True(t, id.IsAuthenticated())

	require.NoError(t, database.GetDB().Model(&model.User{}).Where("id = ?", user.Id).Update("is_banned", true).Error)
	s.InvalidateIdentity(user.Id)

	_, err = s.CheckUser("alice@example.com", "password1")
	requireKind(t, err, common.KindForbidden)

	id, err = s.GetIdentity(user.Id)
	require.NoError(t, err)
	assert.False(t, id.IsAuthenticated())
}

func TestLoginUpgradesWeakHash(t *testing.T) {
	setupTest(t)
	weak, err := bcrypt.GenerateFromPassword([]byte("password1"), bcrypt.MinCost)
	require.NoError(t, err)
	u := &model.User{Username: "old", Email: "old@example.com", PasswordHash: string(weak), Role: model.RoleUser}
	require.NoError(t, database.GetDB().Create(u).Error)

	var s UserService
	_, err = s.CheckUser("old@example.com", "password1")
	require.NoError(t, err)

	stored, err := s.GetUserById(u.Id)
	require.NoError(t, err)
	assert.False(t, crypto.NeedsRehash(stored.PasswordHash))
	assert.True(t, crypto.CheckPasswordHash(stored.PasswordHash, "password1"))
}

func TestGetIdentity(t *testing.T) {
	setupTest(t)
	var s UserService

	id, err := s.GetIdentity(0)
	require.NoError(t, err)
	assert.Equal(t, Anonymous(), id)

	id, err = s.GetIdentity(42)
	require.NoError(t, err)
	assert.False(t, id.IsAuthenticated())

	alice := createUser(t, "alice", model.RoleUser)
	require.NoError(t, s.SetRole(alice.UserId, model.RoleAdmin))
	id, err = s.GetIdentity(alice.UserId)
	require.NoError(t, err)
	assert.True(t, id.IsAdmin())

	requireKind(t, s.SetRole(alice.UserId, "owner"), common.KindInvalid)
	requireKind(t, s.SetRole(999, model.RoleAdmin), common.KindNotFound)
}

func TestIdentity(t *testing.T) {
	assert.Nil(t, Anonymous().CurrentUserId())
	id := Identity{UserId: 7, Role: model.RoleUser}
	require.NotNil(t, id.CurrentUserId())
	assert.Equal(t, 7, *id.CurrentUserId())
	assert.True(t, id.Owns(7))
	assert.False(t, id.Owns(8))
	assert.False(t, Anonymous().Owns(0))
	assert.False(t, id.IsAdmin())

	banned := &model.User{Id: 3, Role: model.RoleAdmin, IsBanned: true}
	assert.Equal(t, Anonymous(), IdentityOf(banned))
}
