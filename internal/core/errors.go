package core

import (
	"context"
	"errors"

	"appletcore/internal/version"
	"appletcore/pkg/domain"
)

// classify maps an operation failure onto the typed errors callers switch
// on. Typed domain errors pass through, a blocking rule result and any
// unclassified backend failure become IntegrityError, and an expired
// transaction deadline becomes a retryable TimeoutError.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var rv domain.RuleViolationError
	switch {
	case domain.IsTimeout(err):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return &domain.TimeoutError{Op: op, Err: err}
	case errors.Is(err, context.Canceled):
		return err
	case errors.As(err, &rv):
		return &domain.IntegrityError{Op: op, Err: err}
	case domain.IsValidation(err), domain.IsConflict(err), domain.IsNotFound(err), domain.IsIntegrity(err):
		return err
	case errors.Is(err, version.ErrOverflow), errors.Is(err, version.ErrInvalid):
		return err
	default:
		return &domain.IntegrityError{Op: op, Err: err}
	}
}
