// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package compose assembles the final video: concatenated clips with a looped,
// attenuated background track under a voiceover.
package compose

import (
	"context"
	"time"
)

// VideoTrack is an ordered concatenation of local clips.
type VideoTrack struct {
	Inputs   []string
	Duration time.Duration
	Width    int
	Height   int
}

// MixedTrack is the final audio: Background looped to Duration and scaled by
// Volume, with Voiceover overlaid unmodified.
type MixedTrack struct {
	Background string
	Volume     float64
	Duration   time.Duration
	Voiceover  string
}

// Compositor builds and renders tracks.
type Compositor interface {
	Concatenate(ctx context.Context, files []string) (VideoTrack, error)
	MixAudio(ctx context.Context, background string, volume float64, loopTo time.Duration, voiceover string) (MixedTrack, error)
	Render(ctx context.Context, video VideoTrack, mixed MixedTrack, outputPath, videoCodec, audioCodec string) error
}
