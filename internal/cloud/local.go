package cloud

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
)

// LocalStore keeps remote files in a directory, e.g. a synced folder.
type LocalStore struct {
	dir string
}

func NewLocalStore(dir string) *LocalStore {
	return &LocalStore{dir: dir}
}

func (s *LocalStore) Download(_ context.Context, name, dest string) error {
	src := filepath.Join(s.dir, filepath.Base(name))
	if _, err := os.Stat(src); errors.Is(err, os.ErrNotExist) {
		return ErrNotFound
	}
	return copyFile(src, dest)
}

func (s *LocalStore) Upload(_ context.Context, src, name string) error {
	return copyFile(src, filepath.Join(s.dir, filepath.Base(name)))
}

// copyFile writes through a temp file in the destination directory and renames it into place.
func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".partial-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, in); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dest)
}
