package blob

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// LocalStore keeps uploads on disk for development when no bucket is configured.
// Files are expected to be served under publicBase.
type LocalStore struct {
	dir        string
	publicBase string
}

func NewLocalStore(dir, publicBase string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	return &LocalStore{dir: dir, publicBase: strings.TrimRight(publicBase, "/")}, nil
}

func (s *LocalStore) Dir() string { return s.dir }

// UploadFile writes data under dir/folder/filename and returns its public URL.
func (s *LocalStore) UploadFile(_ context.Context, data []byte, folder, filename string) (string, error) {
	key := path.Clean("/" + path.Join(folder, filename))[1:]
	if key == "" || key == "." {
		return "", fmt.Errorf("invalid blob key %q", path.Join(folder, filename))
	}
	full := filepath.Join(s.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("failed to store file: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to store file: %w", err)
	}
	return s.publicBase + "/" + key, nil
}
