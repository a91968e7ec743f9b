package logger

import (
	"context"

	"go.uber.org/zap"
)

// Standard field names for consistent structured logging across factgate.
// Use these constants instead of raw strings to ensure consistency.
const (
	// Components
	FieldComponent = "component"
	FieldStage     = "stage"
	FieldRunID     = "run_id"

	// Files and paths
	FieldPath = "path"
	FieldFile = "file"
	FieldLine = "line"

	// Timing
	FieldDurationMS = "duration_ms"

	// Errors
	FieldError = "error"

	// Counts
	FieldCount      = "count"
	FieldTotalCount = "total_count"

	// Pipeline records
	FieldDocID       = "doc_id"
	FieldMentionID   = "mention_id"
	FieldCanonicalID = "canonical_id"
	FieldType        = "type"
	FieldLabel       = "label"
	FieldPredicate   = "predicate"
	FieldSource      = "source"
	FieldExternalID  = "external_id"
	FieldReasons     = "reasons"
	FieldSymbol      = "symbol"
)

type contextKey string

const (
	runIDKey     contextKey = "logger_run_id"
	componentKey contextKey = "logger_component"
)

// WithRunID adds a run ID to the context for logging
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// WithComponent adds a component name to the context for logging
func WithComponent(ctx context.Context, component string) context.Context {
	return context.WithValue(ctx, componentKey, component)
}

// FieldsFromContext extracts logging fields from context.
// Returns key-value pairs suitable for use with Infow/Errorw/etc.
func FieldsFromContext(ctx context.Context) []interface{} {
	var fields []interface{}

	if runID, ok := ctx.Value(runIDKey).(string); ok && runID != "" {
		fields = append(fields, FieldRunID, runID)
	}
	if component, ok := ctx.Value(componentKey).(string); ok && component != "" {
		fields = append(fields, FieldComponent, component)
	}

	return fields
}

// FromContext decorates base with the fields carried by ctx.
// A nil base falls back to the global Logger.
func FromContext(ctx context.Context, base *zap.SugaredLogger) *zap.SugaredLogger {
	if base == nil {
		base = Logger
	}
	fields := FieldsFromContext(ctx)
	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}

// ComponentLogger returns a named logger for a specific component.
// This is the preferred way to get a logger for dependency injection.
//
// Example:
//
//	linker := link.New(reg, adapters, logger.ComponentLogger("link"))
func ComponentLogger(name string) *zap.SugaredLogger {
	return Logger.Named(name)
}
