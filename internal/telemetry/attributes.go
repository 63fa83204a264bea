// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys shared by request, unit and stage spans.
const (
	RequestIDKey  = "mediamix.request_id"
	TaskNameKey   = "mediamix.task_name"
	TotalUnitsKey = "mediamix.total_units"
	UnitIndexKey  = "mediamix.unit.index"
	UnitStatusKey = "mediamix.unit.status"
	StageKey      = "mediamix.stage"
	LocatorsKey   = "mediamix.locators"
	VoiceKey      = "mediamix.voice"
	SuccessKey    = "mediamix.success_count"
	FailedKey     = "mediamix.failed_count"
	ErrorKey      = "error"
	ErrorKindKey  = "error.kind"
	ErrorStageKey = "error.stage"
)

// RequestAttributes describes a media request span.
func RequestAttributes(requestID, taskName string, totalUnits int) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3)
	if requestID != "" {
		attrs = append(attrs, attribute.String(RequestIDKey, requestID))
	}
	if taskName != "" {
		attrs = append(attrs, attribute.String(TaskNameKey, taskName))
	}
	return append(attrs, attribute.Int(TotalUnitsKey, totalUnits))
}

// UnitAttributes describes a work unit span.
func UnitAttributes(taskName string, index int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(TaskNameKey, taskName),
		attribute.Int(UnitIndexKey, index),
	}
}

// StageAttributes describes one pipeline stage span.
func StageAttributes(stage string, index int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(StageKey, stage),
		attribute.Int(UnitIndexKey, index),
	}
}

// SummaryAttributes records a request's final counts.
func SummaryAttributes(success, failed int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(SuccessKey, success),
		attribute.Int(FailedKey, failed),
	}
}

// ErrorAttributes classifies a failure.
func ErrorAttributes(kind, stage string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorKindKey, kind),
	}
	if stage != "" {
		attrs = append(attrs, attribute.String(ErrorStageKey, stage))
	}
	return attrs
}
