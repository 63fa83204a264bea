// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package fsm is a small strict state machine: unknown transitions are errors
// and terminal states accept no events.
package fsm

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Transition describes a single edge. A Transition with an empty From applies to
// every non-terminal state. Guard may reject the transition.
type Transition[S ~string, E ~string] struct {
	From  S
	Event E
	To    S
	Guard func(ctx context.Context, from S, event E) error
}

// Step is one applied transition.
type Step[S ~string, E ~string] struct {
	From  S
	To    S
	Event E
	At    time.Time
	// Dwell is the time spent in From.
	Dwell time.Duration
}

// Observer is called after every applied transition, outside the lock.
type Observer[S ~string, E ~string] func(Step[S, E])

// Machine runs one instance of a transition table.
type Machine[S ~string, E ~string] struct {
	mu       sync.Mutex
	state    S
	entered  time.Time
	index    map[string]Transition[S, E]
	wildcard map[E]Transition[S, E]
	terminal map[S]bool
	history  []Step[S, E]
	observe  Observer[S, E]
	now      func() time.Time
}

// Option configures a Machine.
type Option[S ~string, E ~string] func(*Machine[S, E])

// WithObserver registers fn for every applied transition.
func WithObserver[S ~string, E ~string](fn Observer[S, E]) Option[S, E] {
	return func(m *Machine[S, E]) { m.observe = fn }
}

// WithClock replaces time.Now.
func WithClock[S ~string, E ~string](now func() time.Time) Option[S, E] {
	return func(m *Machine[S, E]) { m.now = now }
}

// New builds a machine in state initial. Duplicate edges are rejected.
func New[S ~string, E ~string](initial S, transitions []Transition[S, E], terminal []S, opts ...Option[S, E]) (*Machine[S, E], error) {
	m := &Machine[S, E]{
		state:    initial,
		index:    make(map[string]Transition[S, E], len(transitions)),
		wildcard: make(map[E]Transition[S, E]),
		terminal: make(map[S]bool, len(terminal)),
		now:      time.Now,
	}
	for _, s := range terminal {
		m.terminal[s] = true
	}
	for _, t := range transitions {
		if t.From == "" {
			if _, dup := m.wildcard[t.Event]; dup {
				return nil, fmt.Errorf("duplicate transition: * -> %s", t.Event)
			}
			m.wildcard[t.Event] = t
			continue
		}
		k := key(t.From, t.Event)
		if _, dup := m.index[k]; dup {
			return nil, fmt.Errorf("duplicate transition: %s -> %s", t.From, t.Event)
		}
		m.index[k] = t
	}
	for _, o := range opts {
		o(m)
	}
	m.entered = m.now()
	return m, nil
}

// State returns the current state.
func (m *Machine[S, E]) State() S {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Terminal reports whether the machine is in a terminal state.
func (m *Machine[S, E]) Terminal() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.terminal[m.state]
}

// History returns the applied transitions in order.
func (m *Machine[S, E]) History() []Step[S, E] {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Step[S, E](nil), m.history...)
}

// Fire applies event and returns the new state.
func (m *Machine[S, E]) Fire(ctx context.Context, event E) (S, error) {
	m.mu.Lock()
	from := m.state
	t, ok := m.lookup(from, event)
	m.mu.Unlock()
	if !ok {
		return from, fmt.Errorf("invalid transition: state=%s event=%s", from, event)
	}

	if t.Guard != nil {
		if err := t.Guard(ctx, from, event); err != nil {
			return from, err
		}
	}

	m.mu.Lock()
	if m.state != from {
		cur := m.state
		m.mu.Unlock()
		return cur, fmt.Errorf("concurrent transition detected: from=%s cur=%s event=%s", from, cur, event)
	}
	now := m.now()
	step := Step[S, E]{From: from, To: t.To, Event: event, At: now, Dwell: now.Sub(m.entered)}
	m.state = t.To
	m.entered = now
	m.history = append(m.history, step)
	observe := m.observe
	m.mu.Unlock()

	if observe != nil {
		observe(step)
	}
	return t.To, nil
}

func (m *Machine[S, E]) lookup(from S, event E) (Transition[S, E], bool) {
	if m.terminal[from] {
		return Transition[S, E]{}, false
	}
	if t, ok := m.index[key(from, event)]; ok {
		return t, true
	}
	t, ok := m.wildcard[event]
	return t, ok
}

func key[S ~string, E ~string](from S, event E) string {
	return string(from) + "|" + string(event)
}
