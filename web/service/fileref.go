package service

import (
	"slices"
	"sync"

	"github.com/viewer360/viewer360/config"
	"github.com/viewer360/viewer360/database"
	"github.com/viewer360/viewer360/database/model"
	"github.com/viewer360/viewer360/logger"
	"github.com/viewer360/viewer360/storage"
	"github.com/viewer360/viewer360/util/common"

	"gorm.io/gorm"
)

var (
	fileStoreMu sync.RWMutex
	fileStore   storage.FileStore
)

// SetFileStore replaces the store used by every service.
func SetFileStore(s storage.FileStore) {
	fileStoreMu.Lock()
	defer fileStoreMu.Unlock()
	fileStore = s
}

func getFileStore() storage.FileStore {
	fileStoreMu.RLock()
	s := fileStore
	fileStoreMu.RUnlock()
	if s != nil {
		return s
	}

	fileStoreMu.Lock()
	defer fileStoreMu.Unlock()
	if fileStore == nil {
		fileStore = storage.NewLocalStore(config.GetUploadDir())
	}
	return fileStore
}

type pathLock struct {
	mu   sync.Mutex
	refs int
}

// pathLocks serializes work on one key within this process, normally a stored
// file path: a fork sharing the file and a delete releasing it cannot interleave.
var pathLocks = struct {
	sync.Mutex
	m map[string]*pathLock
}{m: map[string]*pathLock{}}

func lockPath(p string) func() {
	pathLocks.Lock()
	l, ok := pathLocks.m[p]
	if !ok {
		l = &pathLock{}
		pathLocks.m[p] = l
	}
	l.refs++
	pathLocks.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		pathLocks.Lock()
		l.refs--
		if l.refs == 0 {
			delete(pathLocks.m, p)
		}
		pathLocks.Unlock()
	}
}

// lockPaths locks every distinct path in sorted order so concurrent callers
// cannot deadlock.
func lockPaths(paths []string) func() {
	sorted := slices.Clone(paths)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	unlocks := make([]func(), 0, len(sorted))
	for _, p := range sorted {
		if p == "" {
			continue
		}
		unlocks = append(unlocks, lockPath(p))
	}
	return func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
}

// storeLocked writes file to a fresh path and runs insert while holding that
// path's lock, so an orphan sweep waits until the referencing row exists. The
// file is removed again when insert fails.
func storeLocked(file storage.Upload, r storage.Rules, insert func(p string) error) error {
	store := getFileStore()
	p := store.NewPath(file, r)
	unlock := lockPath(p)
	defer unlock()

	if err := store.Put(file, r, p); err != nil {
		return common.Internal("failed to store file", err)
	}
	if err := insert(p); err != nil {
		if rmErr := store.Delete(p); rmErr != nil {
			logger.Warningf("failed to remove %s after error: %v", p, rmErr)
		}
		return err
	}
	return nil
}

// FileRefService answers whether a stored file is still needed and removes it
// when it is not. Panorama images and marker audio share this check.
type FileRefService struct{}

// IsFileReferenced counts live rows pointing at p. Pass a transaction to see its
// uncommitted state, or nil to use the shared connection.
func (s *FileRefService) IsFileReferenced(tx *gorm.DB, p string) (bool, error) {
	if tx == nil {
		tx = database.GetDB()
	}
	var panoramas, markers int64
	if err := tx.Model(&model.Panorama{}).Where("file_path = ?", p).Count(&panoramas).Error; err != nil {
		return false, err
	}
	if panoramas > 0 {
		return true, nil
	}
	if err := tx.Model(&model.Marker{}).Where("audio_path = ?", p).Count(&markers).Error; err != nil {
		return false, err
	}
	return markers > 0, nil
}

// Release deletes p from the file store unless a row still references it.
// It reports whether the file was removed.
func (s *FileRefService) Release(p string) (bool, error) {
	if p == "" {
		return false, nil
	}
	unlock := lockPath(p)
	defer unlock()

	referenced, err := s.IsFileReferenced(nil, p)
	if err != nil {
		return false, err
	}
	if referenced {
		logger.Debugf("keeping %s, still referenced", p)
		return false, nil
	}
	store := getFileStore()
	if !store.Exists(p) {
		return false, nil
	}
	if err := store.Delete(p); err != nil {
		return false, err
	}
	return true, nil
}

// releaseAll releases each path and logs failures; the rows are already gone so
// a failure only leaves an orphan for the cleanup job.
func (s *FileRefService) releaseAll(paths []string) int {
	deleted := 0
	for _, p := range paths {
		ok, err := s.Release(p)
		if err != nil {
			logger.Warningf("failed to release %s: %v", p, err)
			continue
		}
		if ok {
			deleted++
		}
	}
	return deleted
}
