// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package orchestrator

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ManuGH/mediamix/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// ants starts a package-level default pool at init.
		goleak.IgnoreAnyFunction("github.com/panjf2000/ants/v2.(*Pool).purgeStaleWorkers"),
		goleak.IgnoreAnyFunction("github.com/panjf2000/ants/v2.(*Pool).ticktock"),
	)
}

func units(n int) []model.WorkUnit {
	out := make([]model.WorkUnit, n)
	for i := range out {
		out[i] = model.WorkUnit{Index: i + 1}
	}
	return out
}

type aggregatorSpy struct {
	calls    atomic.Int32
	mu       sync.Mutex
	outcomes []model.TaskOutcome
	onCall   func()
}

func (a *aggregatorSpy) aggregate(outcomes []model.TaskOutcome) {
	a.calls.Add(1)
	if a.onCall != nil {
		a.onCall()
	}
	a.mu.Lock()
	a.outcomes = outcomes
	a.mu.Unlock()
}

func waitJoin(t *testing.T, j *Join) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, j.Wait(ctx))
}

func indices(outcomes []model.TaskOutcome) []int {
	out := make([]int, 0, len(outcomes))
	for _, o := range outcomes {
		out = append(out, o.Index)
	}
	sort.Ints(out)
	return out
}

func TestAggregatorRunsOnceAfterAllUnitsTerminal(t *testing.T) {
	const n = 12
	var terminal atomic.Int32
	spy := &aggregatorSpy{}
	spy.onCall = func() {
		assert.EqualValues(t, n, terminal.Load(), "aggregator ran before every unit was terminal")
	}

	j := Run(context.Background(), units(n), func(_ context.Context, u model.WorkUnit) model.TaskOutcome {
		defer terminal.Add(1)
		time.Sleep(time.Duration(u.Index%4) * time.Millisecond)
		if u.Index%3 == 0 {
			return model.Failed(u.Index, errors.New("boom"))
		}
		return model.Succeeded(u.Index)
	}, spy.aggregate, Options{MaxInFlight: 3})
	waitJoin(t, j)

	assert.EqualValues(t, 1, spy.calls.Load())
	require.Len(t, spy.outcomes, n)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}, indices(spy.outcomes))

	var success, failed int
	for _, o := range spy.outcomes {
		switch o.Status {
		case model.StatusSuccess:
			success++
		case model.StatusFailed:
			failed++
		}
	}
	assert.Equal(t, 8, success)
	assert.Equal(t, 4, failed)
	assert.Equal(t, n, success+failed)
	assert.Equal(t, spy.outcomes, j.Outcomes())
}

func TestInFlightIsBounded(t *testing.T) {
	var cur, peak atomic.Int32
	j := Run(context.Background(), units(10), func(_ context.Context, u model.WorkUnit) model.TaskOutcome {
		c := cur.Add(1)
		for {
			p := peak.Load()
			if c <= p || peak.CompareAndSwap(p, c) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		cur.Add(-1)
		return model.Succeeded(u.Index)
	}, func([]model.TaskOutcome) {}, Options{MaxInFlight: 2})
	waitJoin(t, j)

	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.GreaterOrEqual(t, peak.Load(), int32(1))
}

func TestPanicFailsOnlyThatUnit(t *testing.T) {
	spy := &aggregatorSpy{}
	j := Run(context.Background(), units(3), func(_ context.Context, u model.WorkUnit) model.TaskOutcome {
		if u.Index == 2 {
			panic("corrupt clip")
		}
		return model.Succeeded(u.Index)
	}, spy.aggregate, Options{})
	waitJoin(t, j)

	byIndex := map[int]model.TaskOutcome{}
	for _, o := range spy.outcomes {
		byIndex[o.Index] = o
	}
	assert.Equal(t, model.StatusSuccess, byIndex[1].Status)
	assert.Equal(t, model.StatusFailed, byIndex[2].Status)
	assert.Contains(t, byIndex[2].Error, "corrupt clip")
	assert.Equal(t, model.StatusSuccess, byIndex[3].Status)
}

func TestFailureDoesNotCancelSiblings(t *testing.T) {
	failed := make(chan struct{})
	spy := &aggregatorSpy{}
	j := Run(context.Background(), units(2), func(ctx context.Context, u model.WorkUnit) model.TaskOutcome {
		if u.Index == 1 {
			defer close(failed)
			return model.Failed(u.Index, errors.New("download timed out"))
		}
		<-failed
		time.Sleep(5 * time.Millisecond)
		if ctx.Err() != nil {
			return model.Failed(u.Index, ctx.Err())
		}
		return model.Succeeded(u.Index)
	}, spy.aggregate, Options{MaxInFlight: 2})
	waitJoin(t, j)

	for _, o := range spy.outcomes {
		if o.Index == 2 {
			assert.Equal(t, model.StatusSuccess, o.Status)
		}
	}
}

func TestZeroUnitsStillAggregates(t *testing.T) {
	spy := &aggregatorSpy{}
	j := Run(context.Background(), nil, func(context.Context, model.WorkUnit) model.TaskOutcome {
		t.Fatal("pipeline must not run")
		return model.TaskOutcome{}
	}, spy.aggregate, Options{})
	waitJoin(t, j)

	assert.EqualValues(t, 1, spy.calls.Load())
	assert.Empty(t, spy.outcomes)
	assert.Zero(t, j.Total())
}

func TestRunReturnsBeforeUnitsFinish(t *testing.T) {
	release := make(chan struct{})
	j := Run(context.Background(), units(2), func(_ context.Context, u model.WorkUnit) model.TaskOutcome {
		<-release
		return model.Succeeded(u.Index)
	}, func([]model.TaskOutcome) {}, Options{})

	select {
	case <-j.Done():
		t.Fatal("join completed before units finished")
	case <-time.After(20 * time.Millisecond):
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	assert.ErrorIs(t, j.Wait(ctx), context.DeadlineExceeded)
	cancel()

	close(release)
	waitJoin(t, j)
	assert.Len(t, j.Outcomes(), 2)
}

func TestUnknownStatusCountsAsFailed(t *testing.T) {
	spy := &aggregatorSpy{}
	j := Run(context.Background(), units(1), func(context.Context, model.WorkUnit) model.TaskOutcome {
		return model.TaskOutcome{Index: 99, Status: "weird"}
	}, spy.aggregate, Options{})
	waitJoin(t, j)

	require.Len(t, spy.outcomes, 1)
	assert.Equal(t, 1, spy.outcomes[0].Index)
	assert.Equal(t, model.StatusFailed, spy.outcomes[0].Status)
}

func TestAggregatorPanicStillCompletes(t *testing.T) {
	j := Run(context.Background(), units(1), func(_ context.Context, u model.WorkUnit) model.TaskOutcome {
		return model.Succeeded(u.Index)
	}, func([]model.TaskOutcome) { panic("ledger down") }, Options{})
	waitJoin(t, j)
}
