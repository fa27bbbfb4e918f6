package media

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// LocalSource serves media from a directory. BaseURL, when set, is where the
// same directory is exposed over HTTP.
type LocalSource struct {
	Root    string
	BaseURL string
}

func NewLocalSource(root, baseURL string) *LocalSource {
	return &LocalSource{Root: root, BaseURL: strings.TrimRight(baseURL, "/")}
}

func (s *LocalSource) resolve(p string) (string, error) {
	clean := path.Clean("/" + p)
	if clean == "/" {
		return "", fmt.Errorf("media path %q: %w", p, ErrNotFound)
	}
	return filepath.Join(s.Root, filepath.FromSlash(clean)), nil
}

func (s *LocalSource) Open(ctx context.Context, p string) (*Object, error) {
	full, err := s.resolve(p)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("media path %q: %w", p, ErrNotFound)
		}
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("media path %q is a directory: %w", p, ErrNotFound)
	}

	return newObject(f, info.Size(), ""), nil
}

func (s *LocalSource) URL(ctx context.Context, p string) (string, error) {
	if s.BaseURL == "" {
		return "", ErrNoURL
	}
	clean := strings.TrimPrefix(path.Clean("/"+p), "/")
	return s.BaseURL + "/" + (&url.URL{Path: clean}).EscapedPath(), nil
}
