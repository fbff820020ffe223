package service

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/viewer360/viewer360/database"
	"github.com/viewer360/viewer360/database/model"
	"github.com/viewer360/viewer360/storage"
	"github.com/viewer360/viewer360/util/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// sweepingStore starts an orphan sweep as soon as each file is written, before
// the caller has recorded it.
type sweepingStore struct {
	storage.FileStore

	wg sync.WaitGroup
}

func (s *sweepingStore) Put(u storage.Upload, r storage.Rules, p string) error {
	if err := s.FileStore.Put(u, r, p); err != nil {
		return err
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		var moderation ModerationService
		_, _ = moderation.SweepOrphans()
	}()
	// give the sweep time to reach the new file
	time.Sleep(20 * time.Millisecond)
	return nil
}

func countFiles(t *testing.T, store storage.FileStore, dir string) int {
	t.Helper()
	n := 0
	require.NoError(t, store.Walk(dir, func(string, int64) error {
		n++
		return nil
	}))
	return n
}

// refuseWrites makes every insert and update on table fail.
func refuseWrites(t *testing.T, table string) {
	t.Helper()
	refuse := func(tx *gorm.DB) {
		if tx.Statement.Table == table {
			_ = tx.AddError(errors.New("write refused"))
		}
	}
	cb := database.GetDB().Callback()
	require.NoError(t, cb.Create().Before("gorm:create").Register("test:refuse_create", refuse))
	require.NoError(t, cb.Update().Before("gorm:update").Register("test:refuse_update", refuse))
}

func TestSweepDuringUploadKeepsNewFiles(t *testing.T) {
	base := setupTest(t)
	store := &sweepingStore{FileStore: base}
	SetFileStore(store)
	alice := createUser(t, "alice", model.RoleUser)

	p := uploadPanorama(t, alice, "Beach", true)
	m := addMarker(t, alice, p.Id, "waves", true)

	var markers MarkerService
	replaced, err := markers.Update(alice, m.Id, MarkerUpdate{Label: "waves", Audio: mp3Upload()})
	require.NoError(t, err)
	store.wg.Wait()

	assert.True(t, base.Exists(p.FilePath))
	assert.True(t, base.Exists(*replaced.AudioPath))
	assert.False(t, base.Exists(*m.AudioPath), "the replaced clip is released")
}

func TestUploadRemovesFileWhenInsertFails(t *testing.T) {
	store := setupTest(t)
	alice := createUser(t, "alice", model.RoleUser)
	refuseWrites(t, "panoramas")

	var s PanoramaService
	_, err := s.Upload(alice, jpegUpload("pano.jpg"), "Beach", "", true)
	requireKind(t, err, common.KindInternal)
	assert.Zero(t, countFiles(t, store, storage.UploadsDir))
}

func TestCreateMarkerRemovesAudioWhenInsertFails(t *testing.T) {
	store := setupTest(t)
	alice := createUser(t, "alice", model.RoleUser)
	p := uploadPanorama(t, alice, "Beach", true)
	refuseWrites(t, "markers")

	var s MarkerService
	_, err := s.Create(alice, MarkerInput{PanoramaId: p.Id, Label: "waves", Audio: mp3Upload()})
	requireKind(t, err, common.KindInternal)
	assert.Zero(t, countFiles(t, store, storage.AudioDir))
	assert.True(t, store.Exists(p.FilePath))
}

func TestUpdateMarkerKeepsOldAudioWhenUpdateFails(t *testing.T) {
	store := setupTest(t)
	alice := createUser(t, "alice", model.RoleUser)
	p := uploadPanorama(t, alice, "Beach", true)
	m := addMarker(t, alice, p.Id, "waves", true)
	refuseWrites(t, "markers")

	var s MarkerService
	_, err := s.Update(alice, m.Id, MarkerUpdate{Label: "waves", Audio: mp3Upload()})
	requireKind(t, err, common.KindInternal)
	assert.Equal(t, 1, countFiles(t, store, storage.AudioDir))
	assert.True(t, store.Exists(*m.AudioPath))

	stored, err := s.GetMarker(m.Id)
	require.NoError(t, err)
	assert.Equal(t, *m.AudioPath, *stored.AudioPath)
}

func TestReleaseKeepsReferencedFile(t *testing.T) {
	store := setupTest(t)
	alice := createUser(t, "alice", model.RoleUser)
	p := uploadPanorama(t, alice, "Beach", true)

	var refs FileRefService
	referenced, err := refs.IsFileReferenced(nil, p.FilePath)
	require.NoError(t, err)
	assert.True(t, referenced)

	removed, err := refs.Release(p.FilePath)
	require.NoError(t, err)
	assert.False(t, removed)
	assert.True(t, store.Exists(p.FilePath))
}
