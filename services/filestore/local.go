package filestore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/studylab/core"
)

// LocalStore saves files under a directory served at baseURL.
type LocalStore struct {
	dir     string
	baseURL string
}

var _ core.FileStore = (*LocalStore)(nil)

func NewLocalStore(dir, baseURL string) *LocalStore {
	return &LocalStore{dir: dir, baseURL: strings.TrimSuffix(baseURL, "/")}
}

func (s *LocalStore) Dir() string { return s.dir }

func (s *LocalStore) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	clean, err := cleanName(name)
	if err != nil {
		return "", err
	}

	_, full, err := sniff(clean, r)
	if err != nil {
		return "", err
	}

	path := filepath.Join(s.dir, filepath.FromSlash(clean))
	if err = os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", errors.Wrap(err, "creating upload dir")
	}
	f, err := os.Create(path)
	if err != nil {
		return "", errors.Wrap(err, "creating file")
	}
	if _, err = io.Copy(f, full); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", errors.Wrap(err, "writing file")
	}
	if err = f.Close(); err != nil {
		return "", errors.Wrap(err, "closing file")
	}
	return s.baseURL + "/" + filepath.ToSlash(clean), nil
}

func (s *LocalStore) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	clean, err := cleanName(name)
	if err != nil {
		return err
	}
	err = os.Remove(filepath.Join(s.dir, filepath.FromSlash(clean)))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "removing file")
	}
	return nil
}

// cleanName roots name in the store dir.
func cleanName(name string) (string, error) {
	clean := filepath.Clean("/" + name)[1:]
	if clean == "" {
		return "", errors.New("empty file name")
	}
	return filepath.ToSlash(clean), nil
}
