// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package workarea provides the per-unit scratch directory.
package workarea

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/ManuGH/mediamix/internal/fsutil"
	"github.com/ManuGH/mediamix/internal/model"
)

// Area is a uniquely named local directory owned by one pipeline run.
type Area struct {
	path string

	once sync.Once
	err  error
}

// Create makes a new area under root. The directory name is prefix followed by a
// random UUID, so concurrent runs never share one.
func Create(root, prefix string) (*Area, error) {
	if root == "" {
		root = os.TempDir()
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, model.ResourceError("create work root", err)
	}
	name := fsutil.Slug(prefix, "unit") + "-" + uuid.NewString()
	path := filepath.Join(root, name)
	if err := os.Mkdir(path, 0o700); err != nil {
		return nil, model.ResourceError("create work area", err)
	}
	return &Area{path: path}, nil
}

// Path returns the absolute directory of the area.
func (a *Area) Path() string { return a.path }

// Join returns the path of name inside the area, refusing names that would
// escape it.
func (a *Area) Join(name string) (string, error) {
	p, err := fsutil.ConfineRelPath(a.path, name)
	if err != nil {
		return "", model.ResourceError("work area path", err)
	}
	return p, nil
}

// Release removes the area and everything in it. It is safe to call more than
// once; only the first call does any work.
func (a *Area) Release() error {
	a.once.Do(func() {
		if err := os.RemoveAll(a.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			a.err = model.ResourceError("release work area", fmt.Errorf("%s: %w", a.path, err))
		}
	})
	return a.err
}
