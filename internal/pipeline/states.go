// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package pipeline

import (
	xglog "github.com/ManuGH/mediamix/internal/log"
	"github.com/ManuGH/mediamix/internal/pipeline/fsm"
)

// State is a unit's position in the pipeline.
type State string

const (
	StateCreated      State = "created"
	StateFetching     State = "fetching"
	StateSynthesizing State = "synthesizing"
	StateComposing    State = "composing"
	StatePersisting   State = "persisting"
	StateDone         State = "done"
	StateFailed       State = "failed"
)

// Event drives a unit between states.
type Event string

const (
	EventFetch      Event = "fetch"
	EventSynthesize Event = "synthesize"
	EventCompose    Event = "compose"
	EventPersist    Event = "persist"
	EventFinish     Event = "finish"
	EventFail       Event = "fail"
)

var transitions = []fsm.Transition[State, Event]{
	{From: StateCreated, Event: EventFetch, To: StateFetching},
	{From: StateFetching, Event: EventSynthesize, To: StateSynthesizing},
	{From: StateSynthesizing, Event: EventCompose, To: StateComposing},
	{From: StateComposing, Event: EventPersist, To: StatePersisting},
	{From: StatePersisting, Event: EventFinish, To: StateDone},
	{Event: EventFail, To: StateFailed},
}

var terminalStates = []State{StateDone, StateFailed}

// stageMessages is the completion event message of each working state.
var stageMessages = map[State]string{
	StateFetching:     xglog.MsgMediaDownloaded,
	StateSynthesizing: xglog.MsgVoiceCreated,
	StateComposing:    xglog.MsgVideoSaved,
	StatePersisting:   xglog.MsgVideoUploaded,
}
