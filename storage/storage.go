// Package storage keeps uploaded panoramas and audio clips on the local disk.
//
// Every path handed out by a FileStore is relative (for example
// "uploads/3f2a....jpg") and is what gets persisted in panoramas.file_path and
// markers.audio_path. The store resolves those paths against its root and refuses
// anything that would escape the uploads tree.
package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

const (
	// UploadsDir is the top of the stored tree; panoramas live directly in it.
	UploadsDir = "uploads"
	// AudioDir holds marker audio clips.
	AudioDir = "uploads/audio"
	// IncomingDir receives partial writes; it sits outside the uploads tree.
	IncomingDir = ".incoming"
)

var ErrInvalidPath = errors.New("path outside of the uploads directory")

// Upload is a file received from a client, not yet stored.
type Upload struct {
	Name string
	Size int64
	Open func() (io.ReadCloser, error)
}

// FromFileHeader wraps a multipart file so it can be validated and stored.
func FromFileHeader(fh *multipart.FileHeader) Upload {
	return Upload{
		Name: fh.Filename,
		Size: fh.Size,
		Open: func() (io.ReadCloser, error) { return fh.Open() },
	}
}

// FromBytes wraps in-memory content as an Upload.
func FromBytes(name string, data []byte) Upload {
	return Upload{
		Name: name,
		Size: int64(len(data)),
		Open: func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(data)), nil },
	}
}

func (u Upload) Present() bool {
	return u.Open != nil && u.Name != ""
}

// Extension returns the lower-case extension without the dot.
func (u Upload) Extension() string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(u.Name)), ".")
}

// Rules describe what a destination accepts and the messages shown on rejection.
type Rules struct {
	Dir               string
	MaxSize           int64
	AllowedTypes      []string
	AllowedExtensions []string

	SizeMessage      string
	TypeMessage      string
	ExtensionMessage string
}

type FileStore interface {
	// Validate checks u against r and returns every violated rule's message.
	Validate(u Upload, r Rules) []string
	// NewPath returns a fresh unique relative path under r.Dir for u.
	NewPath(u Upload, r Rules) string
	// Put validates u and writes it to p. The file only appears at p once it is
	// complete.
	Put(u Upload, r Rules, p string) error
	Delete(path string) error
	Exists(path string) bool
	SizeOf(path string) (int64, error)
	// Walk calls fn for every regular file below dir, streaming directory entries.
	Walk(dir string, fn func(path string, size int64) error) error
	TotalSize() (int64, error)
	Root() string
}

// ValidationError is returned by Put when the upload breaks its rules.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Messages, " ")
}

type LocalStore struct {
	root string
}

func NewLocalStore(root string) *LocalStore {
	return &LocalStore{root: root}
}

func (s *LocalStore) Root() string {
	return s.root
}

// DetectMIME sniffs the content type of the upload.
func DetectMIME(u Upload) (*mimetype.MIME, error) {
	r, err := u.Open()
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return mimetype.DetectReader(r)
}

func mimeAllowed(m *mimetype.MIME, allowed []string) bool {
	for _, t := range allowed {
		if m.Is(t) {
			return true
		}
	}
	return false
}

func (s *LocalStore) Validate(u Upload, r Rules) []string {
	var errs []string
	if r.MaxSize > 0 && u.Size > r.MaxSize {
		errs = append(errs, r.SizeMessage)
	}
	m, err := DetectMIME(u)
	if err != nil || !mimeAllowed(m, r.AllowedTypes) {
		errs = append(errs, r.TypeMessage)
	}
	if !slices.Contains(r.AllowedExtensions, u.Extension()) {
		errs = append(errs, r.ExtensionMessage)
	}
	return errs
}

func (s *LocalStore) NewPath(u Upload, r Rules) string {
	return path.Join(r.Dir, uuid.NewString()+"."+u.Extension())
}

func (s *LocalStore) Put(u Upload, r Rules, p string) error {
	if !u.Present() {
		return errors.New("no file to store")
	}
	if errs := s.Validate(u, r); len(errs) > 0 {
		return &ValidationError{Messages: errs}
	}
	full, err := s.resolve(p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	incoming := filepath.Join(s.root, IncomingDir)
	if err := os.MkdirAll(incoming, 0o755); err != nil {
		return err
	}

	src, err := u.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	tmp, err := os.CreateTemp(incoming, "upload-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	if _, err := os.Lstat(full); err == nil {
		return fmt.Errorf("%s: %w", p, fs.ErrExist)
	}
	return os.Rename(tmp.Name(), full)
}

// Delete removes the file. A missing file is not an error.
func (s *LocalStore) Delete(p string) error {
	full, err := s.resolve(p)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *LocalStore) Exists(p string) bool {
	full, err := s.resolve(p)
	if err != nil {
		return false
	}
	info, err := os.Stat(full)
	return err == nil && info.Mode().IsRegular()
}

func (s *LocalStore) SizeOf(p string) (int64, error) {
	full, err := s.resolve(p)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(full)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (s *LocalStore) Walk(dir string, fn func(path string, size int64) error) error {
	if _, err := s.resolve(dir); err != nil {
		return err
	}
	fsys := os.DirFS(s.root)
	err := fs.WalkDir(fsys, dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		return fn(p, info.Size())
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (s *LocalStore) TotalSize() (int64, error) {
	var total int64
	err := s.Walk(UploadsDir, func(_ string, size int64) error {
		total += size
		return nil
	})
	return total, err
}

// resolve maps a stored relative path to a path on disk.
func (s *LocalStore) resolve(p string) (string, error) {
	clean := path.Clean(filepath.ToSlash(p))
	if path.IsAbs(clean) || (clean != UploadsDir && !strings.HasPrefix(clean, UploadsDir+"/")) {
		return "", fmt.Errorf("%w: %s", ErrInvalidPath, p)
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}
