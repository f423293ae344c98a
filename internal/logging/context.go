package logging

import (
	"context"
	"log/slog"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldSessionID is the standardized key for render session identifiers.
	FieldSessionID = "session_id"
	// FieldStage is the standardized key for orchestrator stage names.
	FieldStage = "stage"
	// FieldWorkerIndex is the standardized key for a job's partition index.
	FieldWorkerIndex = "worker_index"
	// FieldEventType classifies notable records (stage_start, fleet_failure, ...).
	FieldEventType = "event_type"
	// FieldErrorHint suggests a next step to the operator.
	FieldErrorHint = "error_hint"
)

type contextKey string

const (
	sessionIDKey contextKey = "session_id"
	stageKey     contextKey = "stage"
)

// WithSessionID annotates context with the render session identifier.
func WithSessionID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, sessionIDKey, id)
}

// WithStage annotates context with the orchestrator stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// WithContext returns logger annotated with the session and stage carried by ctx.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	if ctx == nil {
		return logger
	}
	var args []any
	if id, ok := ctx.Value(sessionIDKey).(string); ok && id != "" {
		args = append(args, slog.String(FieldSessionID, id))
	}
	if stage, ok := ctx.Value(stageKey).(string); ok && stage != "" {
		args = append(args, slog.String(FieldStage, stage))
	}
	if len(args) == 0 {
		return logger
	}
	return logger.With(args...)
}
