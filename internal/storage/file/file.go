// Package file implements storage.Slots as one file per key inside a
// directory, the client-resident equivalent of browser local storage.
package file

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-faster/errors"

	"github.com/xenking/pasta-storefront/internal/storage"
)

var _ storage.Slots = (*Slots)(nil)

// Slots stores each key in its own file under dir.
type Slots struct {
	dir string
}

// New returns Slots rooted at dir, creating the directory if needed.
func New(dir string) (*Slots, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errors.Wrapf(err, "create slot dir %s", dir)
	}
	return &Slots{dir: dir}, nil
}

// Dir returns the root directory.
func (s *Slots) Dir() string {
	return s.dir
}

// Get reads the file for key.
func (s *Slots) Get(_ context.Context, key string) ([]byte, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, storage.ErrNotFound
		}
		return nil, errors.Wrapf(err, "read slot %s", key)
	}
	return data, nil
}

// Set replaces the file for key atomically: the value is written to a
// temporary file in the same directory and renamed over the target.
func (s *Slots) Set(_ context.Context, key string, value []byte) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, "."+key+".*.tmp")
	if err != nil {
		return errors.Wrapf(err, "create temp for slot %s", key)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(value); err != nil {
		_ = tmp.Close()
		return errors.Wrapf(err, "write slot %s", key)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return errors.Wrapf(err, "sync slot %s", key)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "close slot %s", key)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrapf(err, "replace slot %s", key)
	}
	return nil
}

// Delete removes the file for key. Missing files are not an error.
func (s *Slots) Delete(_ context.Context, key string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errors.Wrapf(err, "delete slot %s", key)
	}
	return nil
}

func (s *Slots) path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || strings.HasPrefix(key, ".") {
		return "", errors.Errorf("invalid slot key %q", key)
	}
	return filepath.Join(s.dir, key+".json"), nil
}
