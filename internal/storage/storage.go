// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package storage places rendered videos into named remote folders.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/unicode/norm"

	xglog "github.com/ManuGH/mediamix/internal/log"
	"github.com/ManuGH/mediamix/internal/metrics"
)

// ErrFolderNotFound is returned by Backend.FindFolder when no folder with the
// requested name exists under the root.
var ErrFolderNotFound = errors.New("folder not found")

// Uploader is what the pipeline persists through.
type Uploader interface {
	// EnsureFolder returns the id of the folder called name under rootID,
	// creating it if absent. Concurrent calls for the same pair yield one folder.
	EnsureFolder(ctx context.Context, rootID, name string) (string, error)
	Upload(ctx context.Context, folderID, localPath, remoteName string) error
}

// Backend is a concrete remote store. FindFolder and CreateFolder need not be
// atomic together; Store serializes them.
type Backend interface {
	Name() string
	FindFolder(ctx context.Context, rootID, name string) (string, error)
	CreateFolder(ctx context.Context, rootID, name string) (string, error)
	UploadFile(ctx context.Context, folderID, localPath, remoteName string) error
}

// Options tunes a Store.
type Options struct {
	UploadTimeout time.Duration // per upload; default 10m
	FolderTimeout time.Duration // per folder resolution; default 1m
	Locker        Locker        // default LocalLocker
}

// Store implements Uploader on top of a Backend.
type Store struct {
	backend Backend
	opts    Options
	group   singleflight.Group
	logger  zerolog.Logger
}

var _ Uploader = (*Store)(nil)

// NewStore wraps backend.
func NewStore(backend Backend, opts Options) *Store {
	if opts.UploadTimeout <= 0 {
		opts.UploadTimeout = 10 * time.Minute
	}
	if opts.FolderTimeout <= 0 {
		opts.FolderTimeout = time.Minute
	}
	if opts.Locker == nil {
		opts.Locker = NewLocalLocker()
	}
	return &Store{
		backend: backend,
		opts:    opts,
		logger:  xglog.WithComponent("storage").With().Str("backend", backend.Name()).Logger(),
	}
}

// NormalizeFolderName trims and NFC-normalizes a folder name so visually equal
// task names resolve to the same folder.
func NormalizeFolderName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

// EnsureFolder implements Uploader. Callers in this process share one in-flight
// resolution per (root, name); the Locker extends the exclusion across
// processes when it is distributed.
func (s *Store) EnsureFolder(ctx context.Context, rootID, name string) (string, error) {
	name = NormalizeFolderName(name)
	if name == "" {
		return "", errors.New("ensure folder: empty name")
	}
	key := rootID + "\x00" + name

	ch := s.group.DoChan(key, func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.FolderTimeout)
		defer cancel()
		return s.resolve(rctx, key, rootID, name)
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (s *Store) resolve(ctx context.Context, key, rootID, name string) (string, error) {
	unlock, err := s.opts.Locker.Lock(ctx, key)
	if err != nil {
		return "", fmt.Errorf("ensure folder %q: lock: %w", name, err)
	}
	defer unlock()

	id, err := s.backend.FindFolder(ctx, rootID, name)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, ErrFolderNotFound) {
		return "", fmt.Errorf("ensure folder %q: find: %w", name, err)
	}
	id, err = s.backend.CreateFolder(ctx, rootID, name)
	if err != nil {
		return "", fmt.Errorf("ensure folder %q: create: %w", name, err)
	}
	metrics.RecordFolderCreated(s.backend.Name())
	s.logger.Info().
		Str(xglog.FieldEvent, "storage.folder_created").
		Str(xglog.FieldFolder, name).
		Str("folder_id", id).
		Msg("created remote folder")
	return id, nil
}

// Upload implements Uploader.
func (s *Store) Upload(ctx context.Context, folderID, localPath, remoteName string) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.UploadTimeout)
	defer cancel()

	start := time.Now()
	err := s.backend.UploadFile(ctx, folderID, localPath, remoteName)
	outcome := "success"
	switch {
	case err != nil && errors.Is(err, context.DeadlineExceeded):
		outcome = "timeout"
	case err != nil:
		outcome = "error"
	}
	metrics.RecordUpload(s.backend.Name(), outcome)
	if err != nil {
		return fmt.Errorf("upload %s: %w", remoteName, err)
	}
	logger := xglog.WithContext(ctx, s.logger)
	logger.Debug().
		Str(xglog.FieldEvent, "storage.uploaded").
		Str("remote_name", remoteName).
		Dur("duration", time.Since(start)).
		Msg("upload finished")
	return nil
}
