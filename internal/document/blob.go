package document

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// CompanionSuffix names the plain-text edit channel written next to a
// rich-document blob after its first save. The companion shares the
// document's lifecycle and is removed with it.
const CompanionSuffix = ".txt"

// BlobStore holds document content addressed by locator. Locators are
// relative paths with a category segment ("reports/<uuid>.pdf").
type BlobStore interface {
	Write(ctx context.Context, locator string, data []byte) error
	Read(ctx context.Context, locator string) ([]byte, error)
	Remove(ctx context.Context, locator string) error
}

// FSBlobStore stores blobs on the filesystem under a root directory, one
// subdirectory per category.
type FSBlobStore struct {
	root string
}

// NewFSBlobStore creates the root directory if needed.
func NewFSBlobStore(root string) (*FSBlobStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("document: blob root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("document: create blob root: %w", err)
	}
	return &FSBlobStore{root: root}, nil
}

func (s *FSBlobStore) Write(ctx context.Context, locator string, data []byte) error {
	path, err := s.path(locator)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("document: create category dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("document: write blob: %w", err)
	}
	return nil
}

func (s *FSBlobStore) Read(ctx context.Context, locator string) ([]byte, error) {
	path, err := s.path(locator)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("document: read blob: %w", err)
	}
	return data, nil
}

func (s *FSBlobStore) Remove(ctx context.Context, locator string) error {
	path, err := s.path(locator)
	if err != nil {
		return err
	}
	err = os.Remove(path)
	if errors.Is(err, os.ErrNotExist) {
		// Metadata without a blob; nothing left to remove.
		return nil
	}
	if err != nil {
		return fmt.Errorf("document: remove blob: %w", err)
	}
	return nil
}

// path validates the locator shape before touching the filesystem. Locators
// come from the metadata store, but the check keeps a corrupted row from
// escaping the root.
func (s *FSBlobStore) path(locator string) (string, error) {
	locator = strings.TrimSpace(locator)
	if locator == "" || filepath.IsAbs(locator) ||
		strings.Contains(locator, "..") || strings.Contains(locator, "\\") {
		return "", fmt.Errorf("%w: bad locator %q", ErrValidation, locator)
	}
	return filepath.Join(s.root, filepath.FromSlash(locator)), nil
}
