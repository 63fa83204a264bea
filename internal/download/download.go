// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package download fetches remote media into a local work area with bounded
// parallelism.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/mediamix/internal/fsutil"
	xglog "github.com/ManuGH/mediamix/internal/log"
	"github.com/ManuGH/mediamix/internal/metrics"
	"github.com/ManuGH/mediamix/internal/model"
	"github.com/ManuGH/mediamix/internal/validate"
)

// Defaults match the behaviour of the upstream media workers.
const (
	DefaultWorkers = 4
	DefaultTimeout = 60 * time.Second
)

// Options tunes a Downloader.
type Options struct {
	Workers   int           // concurrent transfers per Fetch call
	Timeout   time.Duration // per transfer, including the body
	MaxBytes  int64         // 0 means unlimited
	Retries   int           // extra attempts after a transport error or 5xx
	UserAgent string
}

// Downloader fetches locators over HTTP.
type Downloader struct {
	client *http.Client
	opts   Options
	logger zerolog.Logger
}

// New returns a Downloader. A nil client uses a dedicated http.Client with no
// overall timeout; per-transfer deadlines come from Options.Timeout.
func New(client *http.Client, opts Options) *Downloader {
	if client == nil {
		client = &http.Client{}
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "mediamix/1.0"
	}
	return &Downloader{client: client, opts: opts, logger: xglog.WithComponent("download")}
}

// Fetch downloads every locator into dir and returns locator → local path.
// Identical locators are transferred once. The first failure cancels the other
// transfers and is returned; partial files never appear under their final name.
func (d *Downloader) Fetch(ctx context.Context, locators []string, dir string) (map[string]string, error) {
	unique := make([]string, 0, len(locators))
	seen := make(map[string]struct{}, len(locators))
	for _, loc := range locators {
		if _, ok := seen[loc]; ok {
			continue
		}
		seen[loc] = struct{}{}
		unique = append(unique, loc)
	}

	var (
		mu     sync.Mutex
		result = make(map[string]string, len(unique))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.opts.Workers)

	targets := make([]string, len(unique))
	for i, loc := range unique {
		target, err := fsutil.ConfineRelPath(dir, LocalName(loc))
		if err != nil {
			return nil, model.ResourceError("download target "+validate.SanitizeURL(loc), err)
		}
		targets[i] = target
	}

	for i, loc := range unique {
		target := targets[i]
		g.Go(func() error {
			if err := d.fetchWithRetry(gctx, loc, dir, target); err != nil {
				return err
			}
			mu.Lock()
			result[loc] = target
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

func (d *Downloader) fetchWithRetry(ctx context.Context, loc, dir, target string) error {
	var lastErr error
	for attempt := 0; attempt <= d.opts.Retries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt*attempt*250) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return model.TransferError("download "+validate.SanitizeURL(loc), ctx.Err())
			}
		}
		err := d.fetchOne(ctx, loc, dir, target)
		if err == nil {
			return nil
		}
		lastErr = err
		var perm *permanentError
		if errors.As(err, &perm) || ctx.Err() != nil {
			break
		}
	}
	return model.TransferError("download "+validate.SanitizeURL(loc), lastErr)
}

// permanentError marks a failure that retrying cannot fix.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

func (d *Downloader) fetchOne(ctx context.Context, loc, dir, target string) (err error) {
	start := time.Now()
	reqCtx, cancel := context.WithTimeout(ctx, d.opts.Timeout)
	defer cancel()

	var written int64
	defer func() {
		outcome := "success"
		switch {
		case err != nil && errors.Is(reqCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
			outcome = "timeout"
			err = fmt.Errorf("timed out after %s: %w", d.opts.Timeout, err)
		case err != nil:
			outcome = "error"
		}
		metrics.RecordDownload(outcome, written)
		d.logger.Debug().
			Str(xglog.FieldEvent, "download."+outcome).
			Str(xglog.FieldLocator, validate.SanitizeURL(loc)).
			Int64("bytes", written).
			Dur("duration", time.Since(start)).
			Err(err).
			Msg("transfer finished")
	}()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, loc, nil)
	if err != nil {
		return &permanentError{err: err}
	}
	req.Header.Set("User-Agent", d.opts.UserAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		serr := fmt.Errorf("unexpected status %d", resp.StatusCode)
		if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return &permanentError{err: serr}
		}
		return serr
	}
	if d.opts.MaxBytes > 0 && resp.ContentLength > d.opts.MaxBytes {
		return &permanentError{err: fmt.Errorf("content length %d exceeds limit %d", resp.ContentLength, d.opts.MaxBytes)}
	}

	pending, err := renameio.NewPendingFile(target, renameio.WithTempDir(dir), renameio.WithPermissions(0o600))
	if err != nil {
		return &permanentError{err: fmt.Errorf("create pending file: %w", err)}
	}
	defer func() { _ = pending.Cleanup() }()

	body := io.Reader(resp.Body)
	if d.opts.MaxBytes > 0 {
		body = io.LimitReader(resp.Body, d.opts.MaxBytes+1)
	}
	written, err = io.Copy(pending, body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if d.opts.MaxBytes > 0 && written > d.opts.MaxBytes {
		return &permanentError{err: fmt.Errorf("body exceeds limit of %d bytes", d.opts.MaxBytes)}
	}
	if resp.ContentLength >= 0 && written != resp.ContentLength {
		return fmt.Errorf("short body: got %d of %d bytes", written, resp.ContentLength)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return &permanentError{err: fmt.Errorf("commit file: %w", err)}
	}
	return nil
}

// LocalName derives the on-disk name for a locator: the trailing path segment,
// sanitized, with a 16 hex digit xxhash64 of the full locator before the
// extension. Two locators with the same trailing segment get different names.
func LocalName(locator string) string {
	segment := locator
	if u, err := url.Parse(locator); err == nil {
		segment = u.Path
	}
	segment = path.Base(segment)
	ext := path.Ext(segment)
	stem := fsutil.Slug(strings.TrimSuffix(segment, ext), "media")
	if ext = fsutil.Slug(strings.TrimPrefix(ext, "."), ""); ext != "" && len(ext) <= 8 {
		ext = "." + ext
	} else {
		ext = ""
	}
	return fmt.Sprintf("%s-%016x%s", stem, xxhash.Sum64String(locator), ext)
}
