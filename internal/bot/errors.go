package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/freddie-nelson/ig-bot/internal/wait"
)

// PreconditionError is returned when a call is made in the wrong session state.
type PreconditionError struct {
	Op   string
	Hint string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Hint)
}

// InvalidInputError rejects a malformed identifier, URL, path or field value.
type InvalidInputError struct {
	Field  string
	Value  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// TimeoutError is returned when a required element or signal never arrived.
type TimeoutError = wait.TimeoutError

// RemoteRejectionError carries an explicit error shown by the site.
type RemoteRejectionError struct {
	Op      string
	Message string
}

func (e *RemoteRejectionError) Error() string {
	return fmt.Sprintf("%s rejected: %s", e.Op, e.Message)
}

// UnsupportedMediaError is returned for media the upload wizard will not take.
type UnsupportedMediaError struct {
	Path   string
	Reason string
}

func (e *UnsupportedMediaError) Error() string {
	if e.Path == "" {
		return "unsupported media: " + e.Reason
	}
	return fmt.Sprintf("unsupported media %s: %s", e.Path, e.Reason)
}

func invalid(field, value, reason string) error {
	return &InvalidInputError{Field: field, Value: value, Reason: reason}
}

// asTimeout turns an expired sub-context into a TimeoutError. Cancellation of the
// caller's own context is passed through untouched.
func asTimeout(parent context.Context, err error, what string, after time.Duration) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) && parent.Err() == nil {
		return &TimeoutError{What: what, After: after}
	}
	return err
}
