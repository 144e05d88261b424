// Package vault gives scripts and the scheduler access to the files of the vault a canvas
// lives in.
package vault

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var (
	// ErrFileNotFound indicates the vault has no file at the requested path.
	ErrFileNotFound = errors.New("vault file not found")

	// ErrOutsideVault indicates a path that resolves outside the vault root.
	ErrOutsideVault = errors.New("path escapes vault root")
)

// Vault reads and writes files addressed by vault-relative paths.
type Vault interface {
	BasePath() string
	Read(ctx context.Context, path string) (string, error)
	ReadBinary(ctx context.Context, path string) ([]byte, error)
	Write(ctx context.Context, path string, content string) error
	List(ctx context.Context, folder string) ([]string, error)
}

// Local is a Vault backed by a directory on the local filesystem.
type Local struct {
	root string
}

// NewLocal returns a Local vault rooted at root.
func NewLocal(root string) (*Local, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve vault root %s: %w", root, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to open vault %s: %w", abs, err)
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("vault root %s is not a directory", abs)
	}

	return &Local{root: abs}, nil
}

func (l *Local) BasePath() string {
	return l.root
}

// Resolve maps a vault-relative path to an absolute filesystem path.
func (l *Local) Resolve(path string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(strings.TrimPrefix(path, "/")))
	full := filepath.Join(l.root, cleaned)

	rel, err := filepath.Rel(l.root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s: %w", path, ErrOutsideVault)
	}

	return full, nil
}

func (l *Local) Read(ctx context.Context, path string) (string, error) {
	data, err := l.ReadBinary(ctx, path)
	if err != nil {
		return "", err
	}

	return string(data), nil
}

func (l *Local) ReadBinary(ctx context.Context, path string) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	full, err := l.Resolve(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, ErrFileNotFound)
		}

		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	return data, nil
}

func (l *Local) Write(ctx context.Context, path string, content string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	full, err := l.Resolve(path)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return nil
}

// List returns the vault-relative paths of every file below folder, sorted.
func (l *Local) List(ctx context.Context, folder string) ([]string, error) {
	full, err := l.Resolve(folder)
	if err != nil {
		return nil, err
	}

	var files []string

	err = filepath.WalkDir(full, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(l.root, path)
		if err != nil {
			return err
		}

		files = append(files, filepath.ToSlash(rel))

		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to list %s: %w", folder, err)
	}

	sort.Strings(files)

	return files, nil
}

var _ Vault = (*Local)(nil)
