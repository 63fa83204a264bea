// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package model

import (
	"errors"
	"fmt"

	"github.com/ManuGH/mediamix/internal/validate"
)

// Kind classifies failures of a media request.
type Kind string

const (
	KindUnknown     Kind = "unknown"
	KindValidation  Kind = "validation"
	KindTransfer    Kind = "transfer"
	KindSynthesis   Kind = "synthesis"
	KindComposition Kind = "composition"
	KindResource    Kind = "resource"
)

// Error is a classified failure. Op names the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// TransferError wraps a download or upload failure.
func TransferError(op string, err error) error {
	return &Error{Kind: KindTransfer, Op: op, Err: err}
}

// SynthesisError wraps a voiceover failure.
func SynthesisError(op string, err error) error {
	return &Error{Kind: KindSynthesis, Op: op, Err: err}
}

// CompositionError wraps a compositor failure.
func CompositionError(op string, err error) error {
	return &Error{Kind: KindComposition, Op: op, Err: err}
}

// ResourceError wraps a local resource failure such as work area allocation.
func ResourceError(op string, err error) error {
	return &Error{Kind: KindResource, Op: op, Err: err}
}

// ValidationError lists every problem found in a rejected request.
type ValidationError struct {
	Problems []validate.Error
}

func (e *ValidationError) Error() string {
	return "invalid media request: " + validate.Join(e.Problems)
}

// KindOf reports the kind of the outermost classified error in err's chain.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		return KindValidation
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
