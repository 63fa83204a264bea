// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package model

import (
	"fmt"

	"github.com/ManuGH/mediamix/internal/validate"
)

// Request bounds.
const (
	MinVideoBlocks = 1
	MaxVideoBlocks = 10
	// MaxUnitsCeiling bounds the combination count of any request.
	MaxUnitsCeiling = 100000
)

// ValidateOptions tunes request validation.
type ValidateOptions struct {
	// AllowedHosts restricts locator hosts when non-empty.
	AllowedHosts []string
	// MaxUnits rejects requests whose combination count exceeds it. Values
	// outside 1..MaxUnitsCeiling fall back to MaxUnitsCeiling.
	MaxUnits int
}

// Validate checks the request invariants and returns a *ValidationError listing
// every problem, or nil.
func Validate(req MediaRequest, opts ValidateOptions) error {
	v := validate.New()
	v.NotEmpty("task_name", req.TaskName)

	v.Range("video_blocks", len(req.VideoBlocks), MinVideoBlocks, MaxVideoBlocks)
	validateBlocks(v, "video_blocks", req.VideoBlocks, opts.AllowedHosts)

	if len(req.AudioBlocks) == 0 {
		v.AddError("audio_blocks", "at least one audio block is required", 0)
	}
	validateBlocks(v, "audio_blocks", req.AudioBlocks, opts.AllowedHosts)

	if len(req.Scripts) == 0 {
		v.AddError("text_to_speech", "at least one script is required", 0)
	}
	for i, s := range req.Scripts {
		v.NotEmpty(fmt.Sprintf("text_to_speech[%d].text", i), s.Text)
		v.NotEmpty(fmt.Sprintf("text_to_speech[%d].voice", i), s.Voice)
	}

	if v.IsValid() {
		limit := opts.MaxUnits
		if limit <= 0 || limit > MaxUnitsCeiling {
			limit = MaxUnitsCeiling
		}
		if n := UnitCount(req); n > limit {
			v.AddError("video_blocks", fmt.Sprintf("request expands to %d videos, limit is %d", n, limit), n)
		}
	}

	if v.IsValid() {
		return nil
	}
	return &ValidationError{Problems: v.Errors()}
}

func validateBlocks(v *validate.Validator, field string, blocks Blocks, allowedHosts []string) {
	seen := make(map[string]struct{}, len(blocks))
	for _, blk := range blocks {
		name := fmt.Sprintf("%s.%s", field, blk.Name)
		if blk.Name == "" {
			v.AddError(field, "block name cannot be empty", blk.Name)
		}
		if _, dup := seen[blk.Name]; dup {
			v.AddError(name, "duplicate block name", blk.Name)
		}
		seen[blk.Name] = struct{}{}
		if len(blk.Locators) == 0 {
			v.AddError(name, "block must contain at least one locator", 0)
			continue
		}
		for i, loc := range blk.Locators {
			v.MediaURL(fmt.Sprintf("%s[%d]", name, i), loc, allowedHosts)
		}
	}
}

// UnitCount returns the number of work units the request expands to: the product
// of the video block sizes.
func UnitCount(req MediaRequest) int {
	if len(req.VideoBlocks) == 0 {
		return 0
	}
	const ceiling = 1 << 40
	n := 1
	for _, blk := range req.VideoBlocks {
		n *= len(blk.Locators)
		if n > ceiling {
			return ceiling
		}
	}
	return n
}
