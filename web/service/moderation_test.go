package service

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/viewer360/viewer360/database/model"
	"github.com/viewer360/viewer360/util/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModerationRequiresAdmin(t *testing.T) {
	setupTest(t)
	alice := createUser(t, "alice", model.RoleUser)
	var s ModerationService

	_, err := s.ListUsers(Anonymous())
	requireKind(t, err, common.KindUnauthenticated)
	_, err = s.ListUsers(alice)
	requireKind(t, err, common.KindForbidden)
	_, err = s.Stats(alice)
	requireKind(t, err, common.KindForbidden)
	_, err = s.CleanupOrphanFiles(alice)
	requireKind(t, err, common.KindForbidden)
	_, err = s.ForceDeleteMarker(alice, 1)
	requireKind(t, err, common.KindForbidden)
}

func TestToggleBan(t *testing.T) {
	setupTest(t)
	admin := createUser(t, "root", model.RoleAdmin)
	other := createUser(t, "chief", model.RoleAdmin)
	alice := createUser(t, "alice", model.RoleUser)
	var s ModerationService
	var users UserService

	_, err := s.ToggleBan(admin, admin.UserId)
	requireKind(t, err, common.KindInvalid)
	_, err = s.ToggleBan(admin, other.UserId)
	requireKind(t, err, common.KindForbidden)
	_, err = s.ToggleBan(admin, 999)
	requireKind(t, err, common.KindNotFound)

	// Warm the identity cache so the ban must invalidate it.
	id, err := users.GetIdentity(alice.UserId)
	require.NoError(t, err)
	assert.True(t, id.IsAuthenticated())

	res, err := s.ToggleBan(admin, alice.UserId)
	require.NoError(t, err)
	assert.True(t, res.IsBanned)
	assert.Equal(t, "User has been banned.", res.Message)
	id, err = users.GetIdentity(alice.UserId)
	require.NoError(t, err)
	assert.False(t, id.IsAuthenticated())

	res, err = s.ToggleBan(admin, alice.UserId)
	require.NoError(t, err)
	assert.False(t, res.IsBanned)
	assert.Equal(t, "User has been unbanned.", res.Message)
}

func TestAdminListings(t *testing.T) {
	setupTest(t)
	admin := createUser(t, "root", model.RoleAdmin)
	alice := createUser(t, "alice", model.RoleUser)
	bob := createUser(t, "bob", model.RoleUser)
	var s ModerationService

	a := uploadPanorama(t, alice, "Private", false)
	uploadPanorama(t, bob, "Public", true)
	addMarker(t, alice, a.Id, "note", false)

	users, err := s.ListUsers(admin)
	require.NoError(t, err)
	require.Len(t, users, 3)
	counts := map[string]int{}
	for _, u := range users {
		counts[u.Username] = u.PanoramaCount
	}
	assert.Equal(t, map[string]int{"root": 0, "alice": 1, "bob": 1}, counts)

	all, err := s.ListPanoramas(admin, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	mine, err := s.ListPanoramas(admin, &alice.UserId)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "alice", mine[0].Username)

	markers, err := s.ListMarkers(admin, &a.Id)
	require.NoError(t, err)
	require.Len(t, markers, 1)
	assert.Equal(t, "Private", markers[0].PanoramaTitle)
	assert.Equal(t, "alice", markers[0].Username)
}

func TestForceDelete(t *testing.T) {
	store := setupTest(t)
	admin := createUser(t, "root", model.RoleAdmin)
	alice := createUser(t, "alice", model.RoleUser)
	var s ModerationService

	p := uploadPanorama(t, alice, "Beach", false)
	m := addMarker(t, alice, p.Id, "waves", true)
	other := addMarker(t, alice, p.Id, "sand", true)

	deleted, err := s.ForceDeleteMarker(admin, m.Id)
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.False(t, store.Exists(*m.AudioPath))
	_, err = s.ForceDeleteMarker(admin, m.Id)
	requireKind(t, err, common.KindNotFound)

	result, err := s.ForceDeletePanorama(admin, p.Id)
	require.NoError(t, err)
	assert.True(t, result.FileDeleted)
	assert.Equal(t, 1, result.AudioDeleted)
	assert.False(t, store.Exists(*other.AudioPath))

	_, err = s.ForceDeletePanorama(admin, p.Id)
	requireKind(t, err, common.KindNotFound)
}

func TestCleanupOrphanFiles(t *testing.T) {
	store := setupTest(t)
	admin := createUser(t, "root", model.RoleAdmin)
	alice := createUser(t, "alice", model.RoleUser)
	var s ModerationService

	p := uploadPanorama(t, alice, "Beach", true)
	m := addMarker(t, alice, p.Id, "waves", true)

	orphan := filepath.Join(store.Root(), "uploads", "stray.jpg")
	require.NoError(t, os.WriteFile(orphan, make([]byte, 2048), 0o644))
	orphanAudio := filepath.Join(store.Root(), "uploads", "audio", "stray.mp3")
	require.NoError(t, os.WriteFile(orphanAudio, make([]byte, 10), 0o644))

	result, err := s.CleanupOrphanFiles(admin)
	require.NoError(t, err)
	assert.Equal(t, 2, result.DeletedCount)
	assert.Equal(t, int64(2058), result.FreedSpace)
	assert.Equal(t, common.FormatBytes(2058), result.FreedSpaceFormatted)
	assert.NoFileExists(t, orphan)
	assert.NoFileExists(t, orphanAudio)
	assert.True(t, store.Exists(p.FilePath))
	assert.True(t, store.Exists(*m.AudioPath))

	again, err := s.SweepOrphans()
	require.NoError(t, err)
	assert.Zero(t, again.DeletedCount)
	assert.Empty(t, again.OrphanFiles)
}

func TestStats(t *testing.T) {
	setupTest(t)
	admin := createUser(t, "root", model.RoleAdmin)
	alice := createUser(t, "alice", model.RoleUser)
	var s ModerationService
	var markers MarkerService

	a := uploadPanorama(t, alice, "A", true)
	b := uploadPanorama(t, alice, "B", true)
	addMarker(t, alice, a.Id, "audio", true)
	_, err := markers.Create(alice, MarkerInput{PanoramaId: a.Id, Label: "portal", TargetPanoramaId: &b.Id})
	require.NoError(t, err)

	stats, err := s.Stats(admin)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalUsers)
	assert.Equal(t, int64(2), stats.TotalPanoramas)
	assert.Equal(t, int64(2), stats.TotalMarkers)
	assert.Equal(t, int64(1), stats.AudioMarkers)
	assert.Equal(t, int64(1), stats.PortalMarkers)
	assert.Equal(t, int64(2*len(jpegBytes)+len(mp3Bytes)), stats.StorageUsed)
	assert.NotEmpty(t, stats.StorageFormatted)
}

func TestPromoteToAdmin(t *testing.T) {
	setupTest(t)
	alice := createUser(t, "alice", model.RoleUser)
	var s ModerationService
	var users UserService

	require.NoError(t, s.PromoteToAdmin(alice.UserId))
	u, err := users.GetUserById(alice.UserId)
	require.NoError(t, err)
	assert.True(t, u.IsAdmin())
}
