package service

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/viewer360/viewer360/database"
	"github.com/viewer360/viewer360/database/model"
	"github.com/viewer360/viewer360/storage"
	"github.com/viewer360/viewer360/util/common"

	"github.com/stretchr/testify/require"
)

var (
	jpegBytes = append([]byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}, make([]byte, 64)...)
	mp3Bytes  = append([]byte("ID3\x03\x00\x00\x00\x00\x00\x00"), make([]byte, 64)...)
)

// setupTest opens a fresh database and file store under a temp dir.
func setupTest(t *testing.T) storage.FileStore {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, database.InitDB(filepath.Join(dir, "test.db")))
	store := storage.NewLocalStore(filepath.Join(dir, "files"))
	SetFileStore(store)
	FlushIdentities()
	t.Cleanup(func() {
		database.CloseDB()
		SetFileStore(nil)
		FlushIdentities()
	})
	return store
}

func createUser(t *testing.T, name string, role model.Role) Identity {
	t.Helper()
	u := &model.User{
		Username:     name,
		Email:        fmt.Sprintf("%s@example.com", name),
		PasswordHash: "x",
		Role:         role,
	}
	require.NoError(t, database.GetDB().Create(u).Error)
	return IdentityOf(u)
}

func jpegUpload(name string) storage.Upload {
	return storage.FromBytes(name, jpegBytes)
}

func mp3Upload() *storage.Upload {
	u := storage.FromBytes("clip.mp3", mp3Bytes)
	return &u
}

func uploadPanorama(t *testing.T, owner Identity, title string, public bool) *model.Panorama {
	t.Helper()
	var s PanoramaService
	p, err := s.Upload(owner, jpegUpload("pano.jpg"), title, "", public)
	require.NoError(t, err)
	return p
}

func addMarker(t *testing.T, owner Identity, panoramaId int, label string, audio bool) *model.Marker {
	t.Helper()
	var s MarkerService
	in := MarkerInput{PanoramaId: panoramaId, Yaw: 1, Pitch: 0.5, Label: label}
	if audio {
		in.Audio = mp3Upload()
	}
	m, err := s.Create(owner, in)
	require.NoError(t, err)
	return m
}

func requireKind(t *testing.T, err error, kind common.ErrorKind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, common.KindOf(err), err.Error())
}
