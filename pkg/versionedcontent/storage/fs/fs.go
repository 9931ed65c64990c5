// Package fs provides a filesystem-backed field storage backend.
package fs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	vc "github.com/structcms/versioned-content/pkg/versionedcontent"
)

// Backend is a filesystem implementation of the
// versionedcontent.FieldStorage interface. Payloads live at
// <baseDir>/<contentID>/<versionNo>/<fieldID>_<languageCode>.
type Backend struct {
	baseDir string
}

// Config options for the filesystem backend
type Config struct {
	BaseDir string // Base directory for storing field payloads
}

// New creates a new filesystem field storage backend.
func New(config Config) (*Backend, error) {
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}

	if err := os.MkdirAll(config.BaseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &Backend{baseDir: config.BaseDir}, nil
}

func (b *Backend) path(ref vc.FieldRef) string {
	return filepath.Join(b.baseDir,
		fmt.Sprintf("%d", ref.ContentID),
		fmt.Sprintf("%d", ref.VersionNo),
		fmt.Sprintf("%d_%s", ref.FieldID, ref.LanguageCode))
}

func (b *Backend) StoreFieldData(ctx context.Context, ref vc.FieldRef, data []byte) error {
	filePath := b.path(ref)

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write field payload: %w", err)
	}
	return nil
}

func (b *Backend) GetFieldData(ctx context.Context, ref vc.FieldRef) ([]byte, error) {
	data, err := os.ReadFile(b.path(ref))
	if os.IsNotExist(err) {
		return nil, vc.ErrFieldNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to read field payload: %w", err)
	}
	return data, nil
}

func (b *Backend) CopyFieldData(ctx context.Context, src, dst vc.FieldRef) error {
	data, err := b.GetFieldData(ctx, src)
	if err != nil {
		return err
	}
	return b.StoreFieldData(ctx, dst, data)
}

func (b *Backend) DeleteFieldData(ctx context.Context, ref vc.FieldRef) error {
	err := os.Remove(b.path(ref))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete field payload: %w", err)
	}
	return nil
}
