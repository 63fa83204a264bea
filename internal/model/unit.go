// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package model

import "time"

// WorkUnit is one output video: a tuple of video locators (one per video block, in
// block order) plus one background audio locator and one script.
type WorkUnit struct {
	Index         int      `json:"index"`
	VideoLocators []string `json:"video_locators"`
	AudioLocator  string   `json:"audio_locator"`
	Script        Script   `json:"script"`
}

// Locators returns the video locators followed by the audio locator.
func (u WorkUnit) Locators() []string {
	out := make([]string, 0, len(u.VideoLocators)+1)
	out = append(out, u.VideoLocators...)
	return append(out, u.AudioLocator)
}

// Status is the terminal status of a work unit.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// TaskOutcome is the terminal result of one work unit.
type TaskOutcome struct {
	Index  int    `json:"index"`
	Status Status `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Succeeded builds a success outcome.
func Succeeded(index int) TaskOutcome {
	return TaskOutcome{Index: index, Status: StatusSuccess}
}

// Failed builds a failed outcome carrying err's description.
func Failed(index int, err error) TaskOutcome {
	out := TaskOutcome{Index: index, Status: StatusFailed}
	if err != nil {
		out.Error = err.Error()
	}
	return out
}

// RequestSummary is computed once after every unit of a request is terminal.
type RequestSummary struct {
	RequestID    string        `json:"request_id"`
	TaskName     string        `json:"task_name"`
	StartedAt    time.Time     `json:"started_at"`
	Elapsed      time.Duration `json:"-"`
	ElapsedSecs  float64       `json:"total_time"`
	SuccessCount int           `json:"success_count"`
	FailedCount  int           `json:"failed_count"`
}

// Total returns the number of units the summary covers.
func (s RequestSummary) Total() int {
	return s.SuccessCount + s.FailedCount
}
