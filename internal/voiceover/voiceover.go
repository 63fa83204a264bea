// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package voiceover turns a script into a local audio file.
package voiceover

import (
	"context"
	"errors"
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/ManuGH/mediamix/internal/fsutil"
)

// ErrVoiceNotFound is returned when no voice matches the requested name.
var ErrVoiceNotFound = errors.New("voice not found")

// Synthesizer renders text in the named voice to an audio file inside dir and
// returns its path.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice, dir string) (string, error)
}

// FileName returns the local file name for a voiceover of text in voice.
func FileName(text, voice string) string {
	h := xxhash.New()
	_, _ = h.WriteString(text)
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(voice)
	return fmt.Sprintf("%s_%016x.mp3", fsutil.Slug(voice, "voice"), h.Sum64())
}
