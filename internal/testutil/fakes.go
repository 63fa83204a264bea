// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package testutil holds collaborator fakes shared by package tests.
package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ManuGH/mediamix/internal/compose"
	"github.com/ManuGH/mediamix/internal/download"
	"github.com/ManuGH/mediamix/internal/model"
	"github.com/ManuGH/mediamix/internal/voiceover"
)

// Fetcher writes a small file per locator instead of downloading. Locators in
// Fail return their error wrapped as a transfer error; locators in Hang block
// until the context ends.
type Fetcher struct {
	Fail map[string]error
	Hang map[string]bool

	mu    sync.Mutex
	calls [][]string
}

// Fetch implements pipeline.Fetcher.
func (f *Fetcher) Fetch(ctx context.Context, locators []string, dir string) (map[string]string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string(nil), locators...))
	f.mu.Unlock()

	out := make(map[string]string, len(locators))
	for _, loc := range locators {
		if f.Hang[loc] {
			<-ctx.Done()
			return nil, model.TransferError("download "+loc, ctx.Err())
		}
		if err := f.Fail[loc]; err != nil {
			return nil, model.TransferError("download "+loc, err)
		}
		p := filepath.Join(dir, download.LocalName(loc))
		if err := os.WriteFile(p, []byte(loc), 0o600); err != nil {
			return nil, err
		}
		out[loc] = p
	}
	return out, nil
}

// Calls returns the locator lists of every Fetch call.
func (f *Fetcher) Calls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.calls...)
}

// Synthesizer writes a placeholder voiceover. Voices in Fail return their error.
type Synthesizer struct {
	Fail map[string]error
}

// Synthesize implements voiceover.Synthesizer.
func (s *Synthesizer) Synthesize(_ context.Context, text, voice, dir string) (string, error) {
	if err := s.Fail[voice]; err != nil {
		return "", err
	}
	p := filepath.Join(dir, voiceover.FileName(text, voice))
	if err := os.WriteFile(p, []byte(text), 0o600); err != nil {
		return "", err
	}
	return p, nil
}

// Compositor records its inputs and writes the output file on Render. Each
// clip lasts ClipDuration (default 2s). RenderErr fails every render.
type Compositor struct {
	ClipDuration time.Duration
	RenderErr    error

	mu      sync.Mutex
	concats [][]string
	mixes   []compose.MixedTrack
}

// Concatenate implements compose.Compositor.
func (c *Compositor) Concatenate(_ context.Context, files []string) (compose.VideoTrack, error) {
	d := c.ClipDuration
	if d == 0 {
		d = 2 * time.Second
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return compose.VideoTrack{}, err
		}
	}
	c.mu.Lock()
	c.concats = append(c.concats, append([]string(nil), files...))
	c.mu.Unlock()
	return compose.VideoTrack{Inputs: files, Duration: time.Duration(len(files)) * d}, nil
}

// MixAudio implements compose.Compositor.
func (c *Compositor) MixAudio(_ context.Context, background string, volume float64, loopTo time.Duration, voice string) (compose.MixedTrack, error) {
	m := compose.MixedTrack{Background: background, Volume: volume, Duration: loopTo, Voiceover: voice}
	c.mu.Lock()
	c.mixes = append(c.mixes, m)
	c.mu.Unlock()
	return m, nil
}

// Render implements compose.Compositor.
func (c *Compositor) Render(_ context.Context, video compose.VideoTrack, _ compose.MixedTrack, out, _, _ string) error {
	if c.RenderErr != nil {
		return c.RenderErr
	}
	return os.WriteFile(out, []byte(fmt.Sprintf("%d clips", len(video.Inputs))), 0o600)
}

// Concats returns the file lists passed to Concatenate.
func (c *Compositor) Concats() [][]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]string(nil), c.concats...)
}

// Mixes returns every mixed track built.
func (c *Compositor) Mixes() []compose.MixedTrack {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]compose.MixedTrack(nil), c.mixes...)
}

// Upload is one recorded upload.
type Upload struct {
	FolderID   string
	RemoteName string
	Content    string
}

// Uploader is an in-memory idempotent folder store.
type Uploader struct {
	UploadErr error

	mu      sync.Mutex
	folders map[string]string
	uploads []Upload
}

// EnsureFolder implements storage.Uploader.
func (u *Uploader) EnsureFolder(_ context.Context, rootID, name string) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.folders == nil {
		u.folders = map[string]string{}
	}
	key := rootID + "/" + name
	if id, ok := u.folders[key]; ok {
		return id, nil
	}
	id := fmt.Sprintf("folder-%d", len(u.folders)+1)
	u.folders[key] = id
	return id, nil
}

// Upload implements storage.Uploader. The file is read immediately so tests
// can inspect it after the work area is gone.
func (u *Uploader) Upload(_ context.Context, folderID, localPath, remoteName string) error {
	if u.UploadErr != nil {
		return u.UploadErr
	}
	data, err := os.ReadFile(localPath)
	if err != nil {
		return err
	}
	u.mu.Lock()
	u.uploads = append(u.uploads, Upload{FolderID: folderID, RemoteName: remoteName, Content: string(data)})
	u.mu.Unlock()
	return nil
}

// Uploads returns every recorded upload.
func (u *Uploader) Uploads() []Upload {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]Upload(nil), u.uploads...)
}

// Folders returns the number of distinct folders created.
func (u *Uploader) Folders() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.folders)
}

// Request returns a valid request with the given video blocks, one audio
// block and one script.
func Request(taskName string, video model.Blocks) model.MediaRequest {
	return model.MediaRequest{
		TaskName:    taskName,
		VideoBlocks: video,
		AudioBlocks: model.Blocks{{Name: "bg", Locators: []string{"https://cdn.example.com/audio/bg.mp3"}}},
		Scripts:     []model.Script{{Text: "Hello there", Voice: "Rachel"}},
	}
}
