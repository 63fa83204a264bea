// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Level is the severity of a pipeline event.
type Level string

const (
	LevelInfo    Level = "INFO"
	LevelWarning Level = "WARNING"
	LevelError   Level = "ERROR"
)

// Event messages emitted over the lifetime of a media request.
const (
	MsgRequestStarted  = "Media processing started"
	MsgUnitStarted     = "Processing video started"
	MsgMediaDownloaded = "Media for video downloaded"
	MsgVoiceCreated    = "Voiceover created"
	MsgVideoSaved      = "Video saved locally"
	MsgVideoUploaded   = "Video uploaded"
	MsgUnitSucceeded   = "Processing video finished successfully"
	MsgUnitFailed      = "Processing video failed"
	MsgRequestFinished = "Media processing finished"
)

// Event is one structured record of request progress.
type Event struct {
	TaskName     string
	Timestamp    time.Time
	TotalTime    *time.Duration
	Level        Level
	Message      string
	Details      map[string]any
	ErrorDetails string
}

// Emitter receives pipeline events. Implementations must be safe for concurrent use.
type Emitter interface {
	Emit(Event)
}

// ZerologEmitter writes each event as one JSON log line. The zerolog level and
// message fields carry the event's level and message.
type ZerologEmitter struct {
	logger zerolog.Logger
}

// NewZerologEmitter returns an emitter that writes through logger.
func NewZerologEmitter(logger zerolog.Logger) *ZerologEmitter {
	return &ZerologEmitter{logger: logger}
}

// Emit implements Emitter.
func (e *ZerologEmitter) Emit(ev Event) {
	var entry *zerolog.Event
	switch ev.Level {
	case LevelError:
		entry = e.logger.Error()
	case LevelWarning:
		entry = e.logger.Warn()
	default:
		entry = e.logger.Info()
	}
	ts := ev.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	entry = entry.
		Str(FieldTaskName, ev.TaskName).
		Str("timestamp", ts.UTC().Format(time.RFC3339Nano))
	if ev.TotalTime != nil {
		entry = entry.Float64("total_time", ev.TotalTime.Seconds())
	} else {
		entry = entry.Interface("total_time", nil)
	}
	if len(ev.Details) > 0 {
		entry = entry.Interface("details", ev.Details)
	} else {
		entry = entry.Interface("details", nil)
	}
	if ev.ErrorDetails != "" {
		entry = entry.Str("error_details", ev.ErrorDetails)
	} else {
		entry = entry.Interface("error_details", nil)
	}
	entry.Msg(ev.Message)
}

// MemoryEmitter keeps events in memory. Used by tests.
type MemoryEmitter struct {
	mu     sync.Mutex
	events []Event
}

// Emit implements Emitter.
func (m *MemoryEmitter) Emit(ev Event) {
	m.mu.Lock()
	m.events = append(m.events, ev)
	m.mu.Unlock()
}

// Events returns a copy of all recorded events.
func (m *MemoryEmitter) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

// Messages returns the message of every recorded event in emission order.
func (m *MemoryEmitter) Messages() []string {
	events := m.Events()
	out := make([]string, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Message)
	}
	return out
}

// Multi fans an event out to several emitters.
type Multi []Emitter

// Emit implements Emitter.
func (m Multi) Emit(ev Event) {
	for _, e := range m {
		if e != nil {
			e.Emit(ev)
		}
	}
}

// Nop discards events.
type Nop struct{}

// Emit implements Emitter.
func (Nop) Emit(Event) {}
