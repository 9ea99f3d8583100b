package command

import "fmt"

// OperationError is a stage-aware error with optional command context.
type OperationError struct {
	Stage   string `json:"stage"`
	Message string `json:"message"`
	Log     Log    `json:"log"`
	Err     error  `json:"-"`
}

// Error formats operation failures for logs and UI. Captured stderr is
// included so the user sees what docker reported.
func (e *OperationError) Error() string {
	if e == nil {
		return ""
	}
	if e.Log.Command == "" {
		if e.Err != nil {
			return fmt.Sprintf("%s: %s: %v", e.Stage, e.Message, e.Err)
		}
		return fmt.Sprintf("%s: %s", e.Stage, e.Message)
	}

	detail := Excerpt(e.Log.Stderr, 500)
	if detail == "" {
		detail = Excerpt(e.Log.Stdout, 500)
	}
	if detail == "" && e.Err != nil {
		detail = e.Err.Error()
	}
	return fmt.Sprintf(
		"%s: %s (cmd=%s exit=%d): %s",
		e.Stage,
		e.Message,
		e.Log.Command,
		e.Log.ExitCode,
		detail,
	)
}

// Unwrap exposes underlying error for errors.Is / errors.As.
func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
