// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"

	"github.com/ManuGH/mediamix/internal/fsutil"
)

// LocalBackend stores folders as directories below Dir. Root ids and folder
// ids are paths relative to Dir.
type LocalBackend struct {
	Dir string
}

// NewLocalBackend returns a LocalBackend rooted at dir, creating it if needed.
func NewLocalBackend(dir string) (*LocalBackend, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("local storage: %w", err)
	}
	return &LocalBackend{Dir: dir}, nil
}

func (b *LocalBackend) Name() string { return "local" }

func (b *LocalBackend) folderPath(rootID, name string) (string, string, error) {
	if name == "." || name == ".." || filepath.Base(name) != name {
		return "", "", fmt.Errorf("invalid folder name %q", name)
	}
	id := filepath.Join(rootID, name)
	p, err := fsutil.ConfineRelPath(b.Dir, id)
	return id, p, err
}

func (b *LocalBackend) FindFolder(_ context.Context, rootID, name string) (string, error) {
	id, p, err := b.folderPath(rootID, name)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return "", ErrFolderNotFound
	}
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s exists and is not a directory", id)
	}
	return id, nil
}

func (b *LocalBackend) CreateFolder(_ context.Context, rootID, name string) (string, error) {
	id, p, err := b.folderPath(rootID, name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return "", err
	}
	if err := os.Mkdir(p, 0o750); err != nil && !errors.Is(err, fs.ErrExist) {
		return "", err
	}
	return id, nil
}

func (b *LocalBackend) UploadFile(ctx context.Context, folderID, localPath, remoteName string) error {
	if filepath.Base(remoteName) != remoteName {
		return fmt.Errorf("invalid remote name %q", remoteName)
	}
	dir, err := fsutil.ConfineRelPath(b.Dir, folderID)
	if err != nil {
		return err
	}
	src, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	pf, err := renameio.NewPendingFile(filepath.Join(dir, remoteName), renameio.WithPermissions(0o640))
	if err != nil {
		return err
	}
	defer func() { _ = pf.Cleanup() }()

	if _, err := io.Copy(pf, ctxReader{ctx: ctx, r: src}); err != nil {
		return err
	}
	return pf.CloseAtomicallyReplace()
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
