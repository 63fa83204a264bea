// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package expand

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/mediamix/internal/model"
)

// fixedChooser always returns the same index (clamped to n-1).
type fixedChooser int

func (f fixedChooser) IntN(n int) int {
	if int(f) >= n {
		return n - 1
	}
	return int(f)
}

func loc(name string) string { return "https://cdn.example.com/" + name }

func TestExpandExampleScenario(t *testing.T) {
	req := model.MediaRequest{
		TaskName: "demo",
		VideoBlocks: model.Blocks{
			{Name: "A", Locators: []string{loc("a1"), loc("a2")}},
			{Name: "B", Locators: []string{loc("b1")}},
		},
		AudioBlocks: model.Blocks{{Name: "bg", Locators: []string{loc("x1")}}},
		Scripts:     []model.Script{{Text: "hello", Voice: "Rachel"}},
	}

	units, err := Expand(req, fixedChooser(0))
	require.NoError(t, err)

	want := []model.WorkUnit{
		{Index: 1, VideoLocators: []string{loc("a1"), loc("b1")}, AudioLocator: loc("x1"), Script: req.Scripts[0]},
		{Index: 2, VideoLocators: []string{loc("a2"), loc("b1")}, AudioLocator: loc("x1"), Script: req.Scripts[0]},
	}
	if diff := cmp.Diff(want, units); diff != "" {
		t.Errorf("units mismatch (-want +got):\n%s", diff)
	}
}

func TestExpandLastBlockVariesFastest(t *testing.T) {
	req := model.MediaRequest{
		TaskName: "order",
		VideoBlocks: model.Blocks{
			{Name: "A", Locators: []string{loc("a1"), loc("a2")}},
			{Name: "B", Locators: []string{loc("b1"), loc("b2"), loc("b3")}},
		},
		AudioBlocks: model.Blocks{{Name: "bg", Locators: []string{loc("x1")}}},
		Scripts:     []model.Script{{Text: "t", Voice: "v"}},
	}
	units, err := Expand(req, fixedChooser(0))
	require.NoError(t, err)

	var got [][]string
	for _, u := range units {
		got = append(got, u.VideoLocators)
	}
	want := [][]string{
		{loc("a1"), loc("b1")}, {loc("a1"), loc("b2")}, {loc("a1"), loc("b3")},
		{loc("a2"), loc("b1")}, {loc("a2"), loc("b2")}, {loc("a2"), loc("b3")},
	}
	assert.Equal(t, want, got)
}

func TestExpandCountsAndIndices(t *testing.T) {
	sizes := [][]int{{1}, {3}, {2, 2}, {1, 4, 3}, {2, 1, 2, 3}, {1, 1, 1, 1, 1, 1, 1, 1, 1, 1}}
	rng := rand.New(rand.NewPCG(1, 2))

	for _, shape := range sizes {
		t.Run(fmt.Sprint(shape), func(t *testing.T) {
			req := model.MediaRequest{
				TaskName: "count",
				AudioBlocks: model.Blocks{
					{Name: "bg1", Locators: []string{loc("x1"), loc("x2")}},
					{Name: "bg2", Locators: []string{loc("y1")}},
				},
				Scripts: []model.Script{{Text: "one", Voice: "v1"}, {Text: "two", Voice: "v2"}},
			}
			product := 1
			for b, n := range shape {
				blk := model.Block{Name: fmt.Sprintf("b%d", b)}
				for i := 0; i < n; i++ {
					blk.Locators = append(blk.Locators, loc(fmt.Sprintf("b%d-%d", b, i)))
				}
				req.VideoBlocks = append(req.VideoBlocks, blk)
				product *= n
			}

			units, err := Expand(req, rng)
			require.NoError(t, err)
			require.Len(t, units, product)

			pool := map[string]bool{loc("x1"): true, loc("x2"): true, loc("y1"): true}
			for i, u := range units {
				assert.Equal(t, i+1, u.Index)
				assert.Len(t, u.VideoLocators, len(shape))
				assert.True(t, pool[u.AudioLocator], "audio %q not from pool", u.AudioLocator)
				assert.Contains(t, req.Scripts, u.Script)
			}
		})
	}
}

func TestExpandChoosesFromFlattenedPool(t *testing.T) {
	req := model.MediaRequest{
		TaskName:    "pool",
		VideoBlocks: model.Blocks{{Name: "A", Locators: []string{loc("a1")}}},
		AudioBlocks: model.Blocks{
			{Name: "bg1", Locators: []string{loc("x1")}},
			{Name: "bg2", Locators: []string{loc("y1"), loc("y2")}},
		},
		Scripts: []model.Script{{Text: "one", Voice: "v1"}, {Text: "two", Voice: "v2"}},
	}
	units, err := Expand(req, fixedChooser(2))
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, loc("y2"), units[0].AudioLocator)
	assert.Equal(t, "two", units[0].Script.Text)
}

func TestExpandRejectsInvalidRequest(t *testing.T) {
	req := model.MediaRequest{
		TaskName:    "bad",
		VideoBlocks: model.Blocks{{Name: "A"}},
		AudioBlocks: model.Blocks{{Name: "bg", Locators: []string{loc("x1")}}},
		Scripts:     []model.Script{{Text: "t", Voice: "v"}},
	}
	_, err := Expand(req, nil)
	require.Error(t, err)
	assert.Equal(t, model.KindValidation, model.KindOf(err))
}
