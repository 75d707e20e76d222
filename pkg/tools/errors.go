package tools

import (
	"errors"
	"fmt"
)

var ErrToolUnavailable = errors.New("tool channel unavailable")

// ToolExecutionError wraps a failure from a single tool call so callers can
// report it against the tool name without losing the cause.
type ToolExecutionError struct {
	Tool string
	Err  error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %q execution failed: %v", e.Tool, e.Err)
}

func (e *ToolExecutionError) Unwrap() error {
	return e.Err
}

func IsToolUnavailable(err error) bool {
	return errors.Is(err, ErrToolUnavailable)
}
