// Package trigger dispatches recognised commands to their bound actions.
package trigger

import (
	"context"
	"log/slog"
)

// Trigger fires the action bound to a recognised command.
type Trigger interface {
	// Fire executes the action identified by actionID on behalf of user.
	// The label is the recognised command name, passed for logging and
	// auditing only.
	Fire(ctx context.Context, user, label, actionID string) error
}

// LogOnly records triggers without executing anything. It is the fallback
// when no automation backend is configured.
type LogOnly struct{}

var _ Trigger = LogOnly{}

// Fire logs the trigger and returns nil.
func (LogOnly) Fire(_ context.Context, user, label, actionID string) error {
	slog.Info("trigger (dry run)", "user", user, "label", label, "action_id", actionID)
	return nil
}
