package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileBlobStore keeps each sealed envelope as its own file under a
// single directory. Writes go through a temp file and rename so a
// crashed Put never leaves a half-written envelope behind. Intended
// for single-node gateways; use the Mongo store when more than one
// instance shares the data.
type FileBlobStore struct {
	dir string
}

func NewFileBlobStore(dir string) *FileBlobStore {
	_ = os.MkdirAll(dir, 0o700)
	return &FileBlobStore{dir: dir}
}

func (f *FileBlobStore) path(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, "/\\") || strings.Contains(id, "..") {
		return "", fmt.Errorf("invalid blob id %q", id)
	}
	return filepath.Join(f.dir, id+".env"), nil
}

func (f *FileBlobStore) Put(_ context.Context, id string, data []byte) error {
	dst, err := f.path(id)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(f.dir, "put-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), dst)
}

func (f *FileBlobStore) Get(_ context.Context, id string) ([]byte, error) {
	src, err := f.path(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(src)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return data, err
}

func (f *FileBlobStore) Delete(_ context.Context, id string) error {
	src, err := f.path(id)
	if err != nil {
		return err
	}
	err = os.Remove(src)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
