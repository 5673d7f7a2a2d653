package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/edwardbudaza/pdfchat/internal/domain"
)

// LocalStore keeps uploads under a directory on the local filesystem.
type LocalStore struct {
	root string
}

// NewLocalStore creates the root directory if needed.
func NewLocalStore(dir string) (*LocalStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("blob dir is required")
	}
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve blob dir: %w", err)
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	return &LocalStore{root: root}, nil
}

// Put writes the object through a temp file, then links it into place; an existing file is a conflict.
func (s *LocalStore) Put(ctx context.Context, documentID, fileName string, body io.Reader, _ int64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	target := filepath.Join(s.root, filepath.FromSlash(ObjectKey("", documentID, fileName)))
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return "", domain.NewUpstreamError("blob_store", "local put", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return "", domain.NewUpstreamError("blob_store", "local put", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, body); err != nil {
		_ = tmp.Close()
		return "", domain.NewUpstreamError("blob_store", "local put", err)
	}
	if err := tmp.Close(); err != nil {
		return "", domain.NewUpstreamError("blob_store", "local put", err)
	}

	if err := os.Link(tmp.Name(), target); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("local put %s: %w", target, domain.ErrConflict)
		}
		return "", domain.NewUpstreamError("blob_store", "local put", err)
	}
	return Location{Scheme: SchemeFile, Key: filepath.ToSlash(target)}.String(), nil
}

// Open reads the file at location. Locations outside the root are rejected.
func (s *LocalStore) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.resolve(location)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("local get: %w", ErrNotFound)
		}
		return nil, domain.NewUpstreamError("blob_store", "local get", err)
	}
	return f, nil
}

// Delete removes the file at location; a missing file is not an error.
func (s *LocalStore) Delete(_ context.Context, location string) error {
	p, err := s.resolve(location)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return domain.NewUpstreamError("blob_store", "local delete", err)
	}
	_ = os.Remove(filepath.Dir(p)) // drop the per-document dir when empty
	return nil
}

func (s *LocalStore) resolve(location string) (string, error) {
	loc, err := ParseLocation(location)
	if err != nil {
		return "", err
	}
	if loc.Scheme != SchemeFile {
		return "", fmt.Errorf("location %q is not a file location", location)
	}
	p := filepath.Clean(filepath.FromSlash(loc.Key))
	if !strings.HasPrefix(p, s.root+string(filepath.Separator)) {
		return "", fmt.Errorf("location %q is outside the blob dir", location)
	}
	return p, nil
}
