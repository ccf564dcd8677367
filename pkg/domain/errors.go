package domain

import (
	"errors"
	"fmt"
)

// Backend constraint failures. Persistence implementations wrap these (or the
// driver error they classify as such) in an IntegrityError.
var (
	ErrDuplicateKey = errors.New("duplicate key")
	ErrForeignKey   = errors.New("foreign key violation")
)

// ValidationKind tags the validator check that rejected a request.
type ValidationKind string

// Validation kinds surfaced by the applet validator.
const (
	ValidationNameSyntax                  ValidationKind = "name-syntax"
	ValidationNameUnique                  ValidationKind = "name-unique"
	ValidationResponseTypeMismatch        ValidationKind = "response-type-mismatch"
	ValidationScoreMissing                ValidationKind = "score-missing"
	ValidationConditionalItemMissing      ValidationKind = "conditional-item-missing"
	ValidationConditionalItemOutOfOrder   ValidationKind = "conditional-item-out-of-order"
	ValidationConditionalItemType         ValidationKind = "conditional-item-type"
	ValidationConditionalOptionMissing    ValidationKind = "conditional-option-missing"
	ValidationScorePrintItemMissing       ValidationKind = "score-print-item-missing"
	ValidationScorePrintItemType          ValidationKind = "score-print-item-type"
	ValidationSectionPrintItemMissing     ValidationKind = "section-print-item-missing"
	ValidationSectionConditionItemMissing ValidationKind = "section-condition-item-missing"
	ValidationSubscaleItemMissing         ValidationKind = "subscale-item-missing"
	ValidationSubscaleItemType            ValidationKind = "subscale-item-type"
	ValidationSubscaleItemScore           ValidationKind = "subscale-item-score"
	ValidationSubscaleSelf                ValidationKind = "subscale-self"
	ValidationDuplicateScoreName          ValidationKind = "duplicate-score-name"
	ValidationDuplicateScoreID            ValidationKind = "duplicate-score-id"
	ValidationDuplicateScoreConditionName ValidationKind = "duplicate-score-condition-name"
	ValidationDuplicateScoreConditionID   ValidationKind = "duplicate-score-condition-id"
	ValidationDuplicateSectionName        ValidationKind = "duplicate-section-name"
	ValidationDuplicateSubscaleName       ValidationKind = "duplicate-subscale-name"
	ValidationScoreConditionItemName      ValidationKind = "score-condition-item-name"
	ValidationFlowActivityMissing         ValidationKind = "flow-activity-missing"
	ValidationReviewableDuplicate         ValidationKind = "reviewable-activity-duplicate"
	ValidationRequestShape                ValidationKind = "request-shape"
)

// ValidationError rejects a request before any write.
type ValidationError struct {
	Kind    ValidationKind
	Path    string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("validation %s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("validation %s at %s: %s", e.Kind, e.Path, e.Message)
}

// ConflictKind tags the reason a write conflicted with existing state.
type ConflictKind string

// Conflict kinds.
const (
	ConflictConcurrentUpdate     ConflictKind = "concurrent-update"
	ConflictDisplayNameCollision ConflictKind = "display-name-collision"
	// ConflictEventUnlinked rejects relinking an event whose link was
	// soft-deleted at the same applet version.
	ConflictEventUnlinked ConflictKind = "event-unlinked"
)

// ConflictError reports a lost race or a uniqueness collision. Callers may
// retry concurrent-update conflicts.
type ConflictError struct {
	Kind     ConflictKind
	AppletID string
	Message  string
	Err      error
}

func (e *ConflictError) Error() string {
	msg := fmt.Sprintf("conflict %s", e.Kind)
	if e.AppletID != "" {
		msg += " on applet " + e.AppletID
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConflictError) Unwrap() error { return e.Err }

// NotFoundError is returned when a referenced entity does not exist.
type NotFoundError struct {
	Entity EntityType
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// IntegrityError signals that the backend contradicted a precondition. It is
// fatal for the enclosing operation and never retried.
type IntegrityError struct {
	Op  string
	Err error
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity failure during %s: %v", e.Op, e.Err)
}

func (e *IntegrityError) Unwrap() error { return e.Err }

// TimeoutError reports a transaction that exceeded its deadline and was rolled back.
type TimeoutError struct {
	Op  string
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out: %v", e.Op, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// Retryable is always true for timeouts.
func (e *TimeoutError) Retryable() bool { return true }

// IsValidation reports whether err is a ValidationError, optionally of kind.
func IsValidation(err error, kind ...ValidationKind) bool {
	var v *ValidationError
	if !errors.As(err, &v) {
		return false
	}
	return len(kind) == 0 || v.Kind == kind[0]
}

// IsConflict reports whether err is a ConflictError, optionally of kind.
func IsConflict(err error, kind ...ConflictKind) bool {
	var c *ConflictError
	if !errors.As(err, &c) {
		return false
	}
	return len(kind) == 0 || c.Kind == kind[0]
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var n *NotFoundError
	return errors.As(err, &n)
}

// IsIntegrity reports whether err is an IntegrityError.
func IsIntegrity(err error) bool {
	var i *IntegrityError
	return errors.As(err, &i)
}

// IsTimeout reports whether err is a TimeoutError.
func IsTimeout(err error) bool {
	var t *TimeoutError
	return errors.As(err, &t)
}
