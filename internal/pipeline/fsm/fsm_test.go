// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package fsm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type state string
type event string

func table() []Transition[state, event] {
	return []Transition[state, event]{
		{From: "a", Event: "next", To: "b"},
		{From: "b", Event: "next", To: "c"},
		{Event: "fail", To: "x"},
	}
}

func TestFireFollowsTable(t *testing.T) {
	clock := time.Unix(0, 0)
	var seen []Step[state, event]
	m, err := New[state, event]("a", table(), []state{"c", "x"},
		WithClock[state, event](func() time.Time { clock = clock.Add(time.Second); return clock }),
		WithObserver[state, event](func(s Step[state, event]) { seen = append(seen, s) }),
	)
	require.NoError(t, err)

	to, err := m.Fire(context.Background(), "next")
	require.NoError(t, err)
	assert.Equal(t, state("b"), to)
	_, err = m.Fire(context.Background(), "next")
	require.NoError(t, err)
	assert.True(t, m.Terminal())

	_, err = m.Fire(context.Background(), "fail")
	assert.Error(t, err, "terminal states accept no events")

	require.Len(t, seen, 2)
	assert.Equal(t, time.Second, seen[0].Dwell)
	assert.Equal(t, m.History(), seen)
}

func TestWildcardFromNonTerminal(t *testing.T) {
	m, err := New[state, event]("a", table(), []state{"c", "x"})
	require.NoError(t, err)
	_, err = m.Fire(context.Background(), "next")
	require.NoError(t, err)

	to, err := m.Fire(context.Background(), "fail")
	require.NoError(t, err)
	assert.Equal(t, state("x"), to)
}

func TestUnknownAndGuard(t *testing.T) {
	tr := table()
	tr[0].Guard = func(context.Context, state, event) error { return errors.New("nope") }
	m, err := New[state, event]("a", tr, nil)
	require.NoError(t, err)

	_, err = m.Fire(context.Background(), "back")
	assert.Error(t, err)
	_, err = m.Fire(context.Background(), "next")
	assert.EqualError(t, err, "nope")
	assert.Equal(t, state("a"), m.State())
}

func TestDuplicateTransitions(t *testing.T) {
	_, err := New[state, event]("a", append(table(), Transition[state, event]{From: "a", Event: "next", To: "c"}), nil)
	assert.Error(t, err)
	_, err = New[state, event]("a", append(table(), Transition[state, event]{Event: "fail", To: "c"}), nil)
	assert.Error(t, err)
}
