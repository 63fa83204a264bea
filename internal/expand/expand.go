// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package expand turns a media request into its ordered list of work units.
package expand

import (
	"math/rand/v2"

	"github.com/ManuGH/mediamix/internal/model"
)

// Chooser picks a uniform index in [0, n). *rand.Rand satisfies it.
type Chooser interface {
	IntN(n int) int
}

// NewChooser returns a Chooser seeded from the runtime's random source.
func NewChooser() Chooser {
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

// Expand enumerates the Cartesian product of the video blocks in block order, with
// the last block varying fastest, and assigns each tuple one audio locator from the
// flattened audio pool and one script, both chosen by c. Indices run 1..N.
func Expand(req model.MediaRequest, c Chooser) ([]model.WorkUnit, error) {
	if err := model.Validate(req, model.ValidateOptions{}); err != nil {
		return nil, err
	}
	if c == nil {
		c = NewChooser()
	}

	audio := req.AudioBlocks.Flatten()
	blocks := req.VideoBlocks
	total := model.UnitCount(req)
	units := make([]model.WorkUnit, 0, total)

	// odometer over block positions
	pos := make([]int, len(blocks))
	for index := 1; ; index++ {
		videos := make([]string, len(blocks))
		for i, blk := range blocks {
			videos[i] = blk.Locators[pos[i]]
		}
		units = append(units, model.WorkUnit{
			Index:         index,
			VideoLocators: videos,
			AudioLocator:  audio[c.IntN(len(audio))],
			Script:        req.Scripts[c.IntN(len(req.Scripts))],
		})

		i := len(blocks) - 1
		for ; i >= 0; i-- {
			pos[i]++
			if pos[i] < len(blocks[i].Locators) {
				break
			}
			pos[i] = 0
		}
		if i < 0 {
			return units, nil
		}
	}
}
