// Package validation enforces the cross-field invariants of a submitted applet
// tree before anything is written. Checks run in a fixed order and the first
// failure aborts.
package validation

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"

	"appletcore/pkg/domain"
)

var nameSyntax = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// NameLookup lists the applets of an owner. domain.TransactionView satisfies it.
type NameLookup interface {
	ListAppletsByOwner(ownerID string) ([]domain.Applet, error)
}

// Validator checks applet requests. It is safe for concurrent use; the
// embedded struct-tag validator caches its reflection data.
type Validator struct {
	shape *validator.Validate
}

// New constructs a Validator.
func New() *Validator {
	return &Validator{shape: validator.New(validator.WithRequiredStructEnabled())}
}

// Target identifies the applet a request is validated for. AppletID is empty
// on create.
type Target struct {
	OwnerID  string
	AppletID string
}

// Validate runs every check against req. Display-name collisions are reported
// as *domain.ConflictError, every other failure as *domain.ValidationError.
func (v *Validator) Validate(req domain.AppletRequest, target Target, names NameLookup) error {
	if err := v.CheckRequest(req); err != nil {
		return err
	}
	if names != nil {
		if err := CheckDisplayName(req.DisplayName, target, names); err != nil {
			return err
		}
	}
	return ValidateTree(req)
}

// CheckRequest runs the checks that precede the display-name lookup: the
// struct-tag shape and name syntax and uniqueness.
func (v *Validator) CheckRequest(req domain.AppletRequest) error {
	if err := v.checkShape(req); err != nil {
		return err
	}
	return checkNames(req)
}

var activityChecks = []func(*activityContext) error{
	checkResponseCoherence,
	checkScoresPresent,
	checkConditionalLogic,
	checkScoresAndReports,
	checkSubscales,
}

// ValidateTree runs the checks that need no storage access: response
// coherence, scores, conditional logic, reports, subscales and flows. Each
// check covers every activity before the next one starts.
func ValidateTree(req domain.AppletRequest) error {
	contexts := make([]*activityContext, len(req.Activities))
	for ai := range req.Activities {
		contexts[ai] = newActivityContext(&req.Activities[ai])
	}
	for _, check := range activityChecks {
		for _, ctx := range contexts {
			if err := check(ctx); err != nil {
				return err
			}
		}
	}
	return checkFlows(req)
}

func (v *Validator) checkShape(req domain.AppletRequest) error {
	err := v.shape.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return &domain.ValidationError{
			Kind:    domain.ValidationRequestShape,
			Path:    fe.Namespace(),
			Message: fmt.Sprintf("failed %q constraint", fe.Tag()),
		}
	}
	return &domain.ValidationError{Kind: domain.ValidationRequestShape, Message: err.Error()}
}

func checkNames(req domain.AppletRequest) error {
	activityNames := make(map[string]struct{}, len(req.Activities))
	keys := make(map[string]struct{}, len(req.Activities))
	reviewable := ""
	for _, act := range req.Activities {
		if _, dup := keys[act.Key]; dup {
			return &domain.ValidationError{Kind: domain.ValidationRequestShape, Path: "activities." + act.Key, Message: "activity keys must be unique"}
		}
		keys[act.Key] = struct{}{}
		if !nameSyntax.MatchString(act.Name) {
			return &domain.ValidationError{Kind: domain.ValidationNameSyntax, Path: "activities." + act.Key, Message: fmt.Sprintf("activity name %q must match %s", act.Name, nameSyntax)}
		}
		if _, dup := activityNames[act.Name]; dup {
			return &domain.ValidationError{Kind: domain.ValidationNameUnique, Path: "activities." + act.Name, Message: "activity names must be unique within the applet"}
		}
		activityNames[act.Name] = struct{}{}
		if act.IsReviewable {
			if reviewable != "" {
				return &domain.ValidationError{Kind: domain.ValidationReviewableDuplicate, Path: "activities." + act.Name, Message: fmt.Sprintf("activity %s is already reviewable", reviewable)}
			}
			reviewable = act.Name
		}
		itemNames := make(map[string]struct{}, len(act.Items))
		for _, item := range act.Items {
			path := itemPath(act.Name, item.Name)
			if !nameSyntax.MatchString(item.Name) {
				return &domain.ValidationError{Kind: domain.ValidationNameSyntax, Path: path, Message: fmt.Sprintf("item name %q must match %s", item.Name, nameSyntax)}
			}
			if _, dup := itemNames[item.Name]; dup {
				return &domain.ValidationError{Kind: domain.ValidationNameUnique, Path: path, Message: "item names must be unique within the activity"}
			}
			itemNames[item.Name] = struct{}{}
		}
	}
	return nil
}

// CheckDisplayName reports a collision with another live applet of the same
// owner. The applet being updated is skipped.
func CheckDisplayName(displayName string, target Target, names NameLookup) error {
	applets, err := names.ListAppletsByOwner(target.OwnerID)
	if err != nil {
		return fmt.Errorf("list applets of owner %s: %w", target.OwnerID, err)
	}
	for _, a := range applets {
		if a.IsDeleted || a.ID == target.AppletID {
			continue
		}
		if a.DisplayName == displayName {
			return &domain.ConflictError{
				Kind:     domain.ConflictDisplayNameCollision,
				AppletID: a.ID,
				Message:  fmt.Sprintf("display name %q is already used by another applet", displayName),
			}
		}
	}
	return nil
}

func itemPath(activity, item string) string {
	return "activities." + activity + ".items." + item
}
