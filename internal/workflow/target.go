package workflow

import "strings"

// MaxMilestones caps the number of milestones a single target may hold.
const MaxMilestones = 20

// TargetStatus is the lifecycle state of a memorization target.
type TargetStatus string

const (
	TargetActive    TargetStatus = "active"
	TargetCompleted TargetStatus = "completed"
	TargetCancelled TargetStatus = "cancelled"
)

// TargetScope is who a target applies to.
type TargetScope string

const (
	ScopeIndividual TargetScope = "individual"
	ScopeClass      TargetScope = "class"
	ScopeSchool     TargetScope = "school"
)

// Valid reports whether the scope is known.
func (s TargetScope) Valid() bool {
	return s == ScopeIndividual || s == ScopeClass || s == ScopeSchool
}

// ClampProgress bounds a progress percentage to [0,100].
func ClampProgress(progress int) int {
	switch {
	case progress < 0:
		return 0
	case progress > 100:
		return 100
	default:
		return progress
	}
}

// SetTargetProgress returns the progress to store. Out of range requests are clamped, and
// reaching 100 leaves the status untouched.
func SetTargetProgress(status TargetStatus, requested int) (int, error) {
	if status != TargetActive {
		return 0, invalid("target", string(status), "update_progress")
	}
	return ClampProgress(requested), nil
}

// CompleteTarget closes an active target.
func CompleteTarget(status TargetStatus) (TargetStatus, error) {
	if status != TargetActive {
		return status, invalid("target", string(status), "complete")
	}
	return TargetCompleted, nil
}

// CancelTarget cancels an active target. A reason is mandatory.
func CancelTarget(status TargetStatus, reason string) (TargetStatus, error) {
	if status != TargetActive {
		return status, invalid("target", string(status), "cancel")
	}
	if strings.TrimSpace(reason) == "" {
		return status, required("reason")
	}
	return TargetCancelled, nil
}

// NextMilestoneOrder returns the order index for a new milestone given the existing ones.
func NextMilestoneOrder(status TargetStatus, existing []int) (int, error) {
	if status != TargetActive {
		return 0, invalid("target", string(status), "add_milestone")
	}
	if len(existing) >= MaxMilestones {
		return 0, &LimitExceededError{Entity: "target", Resource: "milestone", Limit: MaxMilestones}
	}

	next := 0
	for _, order := range existing {
		if order > next {
			next = order
		}
	}
	return next + 1, nil
}

// ToggleMilestone checks a milestone's completion flag may change.
func ToggleMilestone(status TargetStatus) error {
	if status != TargetActive {
		return invalid("target", string(status), "toggle_milestone")
	}
	return nil
}
