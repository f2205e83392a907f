// Package context provides context utilities for Rice Eval.
package context

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	// RunIDKey is the context key for storing the evaluation run ID
	RunIDKey contextKey = "run_id"
)

// WithRunID adds a run ID to the context.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, RunIDKey, runID)
}

// WithNewRunID adds a random run ID to the context.
func WithNewRunID(ctx context.Context) context.Context {
	return WithRunID(ctx, uuid.NewString())
}

// GetRunID retrieves the run ID from context.
// Returns empty string if not found.
func GetRunID(ctx context.Context) string {
	if runID, ok := ctx.Value(RunIDKey).(string); ok {
		return runID
	}
	return ""
}
