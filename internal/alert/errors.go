package alert

import (
	"errors"
	"fmt"

	"github.com/netwatch/internal/models"
)

// ValidationError marks a malformed rule or sample. The offending item is
// skipped; the cycle carries on.
type ValidationError struct {
	Kind string // "rule" or "sample"
	ID   string
	Err  error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %s: %v", e.Kind, e.ID, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// NotFoundError is returned for an unknown alert id.
type NotFoundError struct {
	AlertID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("alert %s not found", e.AlertID)
}

// InvalidTransitionError is returned when a lifecycle operation would move
// an alert backwards.
type InvalidTransitionError struct {
	AlertID string
	From    models.AlertStatus
	To      models.AlertStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("alert %s cannot move from %s to %s", e.AlertID, e.From, e.To)
}

// DispatchError wraps a notification channel failure for one target.
type DispatchError struct {
	AlertID string
	Target  string
	Channel string
	Err     error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch alert %s to %s via %s: %v", e.AlertID, e.Target, e.Channel, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func IsInvalidTransition(err error) bool {
	var it *InvalidTransitionError
	return errors.As(err, &it)
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
