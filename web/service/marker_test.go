package service

import (
	"math"
	"testing"

	"github.com/viewer360/viewer360/database"
	"github.com/viewer360/viewer360/database/model"
	"github.com/viewer360/viewer360/util/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidPosition(t *testing.T) {
	assert.True(t, ValidPosition(0, 0))
	assert.True(t, ValidPosition(2*math.Pi, math.Pi/2))
	assert.True(t, ValidPosition(-2*math.Pi, -math.Pi/2))
	assert.False(t, ValidPosition(7, 0))
	assert.False(t, ValidPosition(0, 1.6))
	assert.False(t, ValidPosition(math.NaN(), 0))
	assert.False(t, ValidPosition(0, math.Inf(1)))
}

func TestCreateMarkerKeepsPosition(t *testing.T) {
	setupTest(t)
	alice := createUser(t, "alice", model.RoleUser)
	p := uploadPanorama(t, alice, "Beach", true)
	var s MarkerService

	m, err := s.Create(alice, MarkerInput{
		PanoramaId: p.Id, Yaw: -1.234567, Pitch: 0.765432, Label: " Pier ", Color: "RED", Type: "portal",
	})
	require.NoError(t, err)
	assert.Equal(t, "Pier", m.Label)
	assert.Equal(t, model.ColorRed, m.Color)
	assert.Equal(t, model.MarkerText, m.Type)

	got, err := s.GetMarker(m.Id)
	require.NoError(t, err)
	assert.InDelta(t, -1.234567, got.Yaw, 1e-9)
	assert.InDelta(t, 0.765432, got.Pitch, 1e-9)
	assert.Equal(t, "alice", got.Username)
}

func TestCreateMarkerRules(t *testing.T) {
	setupTest(t)
	alice := createUser(t, "alice", model.RoleUser)
	bob := createUser(t, "bob", model.RoleUser)
	p := uploadPanorama(t, alice, "Beach", true)
	private := uploadPanorama(t, alice, "Hidden", false)
	var s MarkerService

	_, err := s.Create(Anonymous(), MarkerInput{PanoramaId: p.Id, Label: "x"})
	requireKind(t, err, common.KindUnauthenticated)
	_, err = s.Create(alice, MarkerInput{PanoramaId: p.Id, Label: ""})
	requireKind(t, err, common.KindInvalid)
	_, err = s.Create(alice, MarkerInput{PanoramaId: p.Id, Label: "x", Pitch: 3})
	requireKind(t, err, common.KindInvalid)
	_, err = s.Create(bob, MarkerInput{PanoramaId: p.Id, Label: "x"})
	requireKind(t, err, common.KindForbidden)
	_, err = s.Create(bob, MarkerInput{PanoramaId: private.Id, Label: "x"})
	requireKind(t, err, common.KindForbidden)
	_, err = s.Create(alice, MarkerInput{PanoramaId: 999, Label: "x"})
	requireKind(t, err, common.KindNotFound)

	bad := mp3Upload()
	bad.Name = "clip.txt"
	_, err = s.Create(alice, MarkerInput{PanoramaId: p.Id, Label: "x", Audio: bad})
	requireKind(t, err, common.KindInvalid)
}

func TestPortalValidation(t *testing.T) {
	setupTest(t)
	alice := createUser(t, "alice", model.RoleUser)
	bob := createUser(t, "bob", model.RoleUser)
	a := uploadPanorama(t, alice, "A", true)
	b := uploadPanorama(t, alice, "B", false)
	foreign := uploadPanorama(t, bob, "C", true)
	var s MarkerService

	missing := 999
	_, err := s.Create(alice, MarkerInput{PanoramaId: a.Id, Label: "x", TargetPanoramaId: &missing})
	requireKind(t, err, common.KindNotFound)
	_, err = s.Create(alice, MarkerInput{PanoramaId: a.Id, Label: "x", TargetPanoramaId: &foreign.Id})
	requireKind(t, err, common.KindForbidden)
	_, err = s.Create(alice, MarkerInput{PanoramaId: a.Id, Label: "x", TargetPanoramaId: &a.Id})
	requireKind(t, err, common.KindInvalid)

	m, err := s.Create(alice, MarkerInput{PanoramaId: a.Id, Label: "x", TargetPanoramaId: &b.Id})
	require.NoError(t, err)
	assert.Equal(t, model.MarkerPortal, m.Type)
	assert.Equal(t, b.Id, *m.TargetPanoramaId)

	// Clearing the target turns the portal back into text.
	updated, err := s.Update(alice, m.Id, MarkerUpdate{Label: "x"})
	require.NoError(t, err)
	assert.Equal(t, model.MarkerText, updated.Type)
	assert.Nil(t, updated.TargetPanoramaId)
}

func TestMarkerVisibility(t *testing.T) {
	setupTest(t)
	alice := createUser(t, "alice", model.RoleUser)
	admin := createUser(t, "root", model.RoleAdmin)
	p := uploadPanorama(t, alice, "Hidden", false)
	m := addMarker(t, alice, p.Id, "secret", false)
	var s MarkerService

	list, err := s.GetByPanorama(p.Id, Anonymous())
	require.NoError(t, err)
	assert.Empty(t, list)
	list, err = s.GetByPanorama(p.Id, admin)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = s.GetMarkerForViewer(m.Id, Anonymous())
	requireKind(t, err, common.KindNotFound)
	got, err := s.GetMarkerForViewer(m.Id, alice)
	require.NoError(t, err)
	assert.Equal(t, "secret", got.Label)
}

func TestUpdateMarkerAudio(t *testing.T) {
	store := setupTest(t)
	alice := createUser(t, "alice", model.RoleUser)
	bob := createUser(t, "bob", model.RoleUser)
	p := uploadPanorama(t, alice, "Beach", true)
	m := addMarker(t, alice, p.Id, "waves", true)
	oldAudio := *m.AudioPath
	var s MarkerService

	_, err := s.Update(bob, m.Id, MarkerUpdate{Label: "mine"})
	requireKind(t, err, common.KindForbidden)

	// Keeping audio when none is sent.
	kept, err := s.Update(alice, m.Id, MarkerUpdate{Label: "waves", Color: "green"})
	require.NoError(t, err)
	assert.Equal(t, oldAudio, *kept.AudioPath)
	assert.Equal(t, model.ColorGreen, kept.Color)

	replaced, err := s.Update(alice, m.Id, MarkerUpdate{Label: "waves", Audio: mp3Upload()})
	require.NoError(t, err)
	require.NotNil(t, replaced.AudioPath)
	assert.NotEqual(t, oldAudio, *replaced.AudioPath)
	assert.False(t, store.Exists(oldAudio))
	assert.True(t, store.Exists(*replaced.AudioPath))

	removed, err := s.Update(alice, m.Id, MarkerUpdate{Label: "waves", RemoveAudio: true, Audio: mp3Upload()})
	require.NoError(t, err)
	assert.Nil(t, removed.AudioPath)
	assert.False(t, store.Exists(*replaced.AudioPath))

	yaw := 9.0
	_, err = s.Update(alice, m.Id, MarkerUpdate{Label: "waves", Yaw: &yaw})
	requireKind(t, err, common.KindInvalid)
}

func TestSharedAudioSurvivesMarkerDelete(t *testing.T) {
	store := setupTest(t)
	alice := createUser(t, "alice", model.RoleUser)
	bob := createUser(t, "bob", model.RoleUser)
	var panoramas PanoramaService
	var s MarkerService

	p := uploadPanorama(t, alice, "Beach", true)
	m := addMarker(t, alice, p.Id, "waves", true)
	fork, err := panoramas.ForkPanorama(bob, p.Id)
	require.NoError(t, err)

	require.NoError(t, s.Delete(alice, m.Id))
	assert.True(t, store.Exists(*m.AudioPath))

	copied, err := s.GetByPanorama(fork.Id, bob)
	require.NoError(t, err)
	require.Len(t, copied, 1)

	// The copy still belongs to its original author.
	err = s.Delete(bob, copied[0].Id)
	requireKind(t, err, common.KindForbidden)
	require.NoError(t, s.Delete(alice, copied[0].Id))
	assert.False(t, store.Exists(*m.AudioPath))
}

func TestNormalize(t *testing.T) {
	setupTest(t)
	alice := createUser(t, "alice", model.RoleUser)
	p := uploadPanorama(t, alice, "Beach", true)
	m := addMarker(t, alice, p.Id, "x", false)

	require.NoError(t, database.GetDB().Model(&model.Marker{}).Where("id = ?", m.Id).
		Updates(map[string]any{"type": "portal", "color": "magenta"}).Error)

	var s MarkerService
	changed, err := s.Normalize()
	require.NoError(t, err)
	assert.Equal(t, int64(2), changed)

	got, err := s.GetMarker(m.Id)
	require.NoError(t, err)
	assert.Equal(t, model.MarkerText, got.Type)
	assert.Equal(t, model.DefaultMarkerColor, got.Color)

	changed, err = s.Normalize()
	require.NoError(t, err)
	assert.Zero(t, changed)
}

func TestColors(t *testing.T) {
	var s MarkerService
	colors := s.Colors()
	require.Len(t, colors, len(model.MarkerColors))
	assert.Equal(t, "blue", colors[0].Name)
	assert.Equal(t, "#0d6efd", colors[0].Hex)
}

func TestMarkerKind(t *testing.T) {
	target := 4
	assert.Equal(t, model.MarkerPortal, markerKind("text", &target))
	assert.Equal(t, model.MarkerText, markerKind("portal", nil))
	assert.Equal(t, model.MarkerText, markerKind("sticker", nil))
}
