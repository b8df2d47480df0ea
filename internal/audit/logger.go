package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Writer appends entries to the trail, normally inside the caller's
// transaction so that a failed append aborts the mutation.
type Writer interface {
	Append(ctx context.Context, entry Entry) error
}

// Logger builds audit entries and hands them to a Writer.
type Logger struct {
	now func() time.Time
}

// NewLogger returns a Logger using the wall clock.
func NewLogger() *Logger {
	return &Logger{now: time.Now}
}

// Record appends one entry. Any error must abort the surrounding mutation.
func (l *Logger) Record(ctx context.Context, w Writer, productID *int64, action Action, actor string, details map[string]any) error {
	if l == nil || w == nil {
		return errors.New("audit: logger not initialised")
	}
	if !action.Valid() {
		return fmt.Errorf("audit: unknown action %q", action)
	}
	actor = strings.TrimSpace(actor)
	if actor == "" {
		actor = SystemActor
	}
	if details == nil {
		details = map[string]any{}
	}
	payload, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("audit: encode details: %w", err)
	}
	entry := Entry{
		ProductID: productID,
		Action:    action,
		Actor:     actor,
		Details:   payload,
		CreatedAt: l.now().UTC(),
	}
	if err := w.Append(ctx, entry); err != nil {
		return fmt.Errorf("audit: append %s: %w", action, err)
	}
	return nil
}
