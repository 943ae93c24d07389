package workflow

import (
	"strings"
)

// AssignmentStatus is the lifecycle state of an assignment.
type AssignmentStatus string

const (
	AssignmentAssigned  AssignmentStatus = "assigned"
	AssignmentViewed    AssignmentStatus = "viewed"
	AssignmentSubmitted AssignmentStatus = "submitted"
	AssignmentReviewed  AssignmentStatus = "reviewed"
	AssignmentCompleted AssignmentStatus = "completed"
	AssignmentReopened  AssignmentStatus = "reopened"
)

// Valid reports whether the status is one of the known lifecycle states.
func (s AssignmentStatus) Valid() bool {
	switch s {
	case AssignmentAssigned, AssignmentViewed, AssignmentSubmitted, AssignmentReviewed, AssignmentCompleted, AssignmentReopened:
		return true
	}
	return false
}

// AssignmentAction names a requested lifecycle edge.
type AssignmentAction string

const (
	ActionView     AssignmentAction = "view"
	ActionSubmit   AssignmentAction = "submit"
	ActionReview   AssignmentAction = "review"
	ActionComplete AssignmentAction = "complete"
	ActionReopen   AssignmentAction = "reopen"
)

// AssignmentCommand is the closed set of assignment transition requests.
type AssignmentCommand interface {
	Action() AssignmentAction
	assignmentCommand()
}

// ViewAssignment is issued when the assigned student opens the assignment.
type ViewAssignment struct{}

// SubmitAssignment carries the student's work. Text or at least one attachment is required.
type SubmitAssignment struct {
	Text        string
	Attachments []string
}

// ReviewAssignment is the teacher's review, optionally with feedback.
type ReviewAssignment struct {
	Feedback string
}

// CompleteAssignment closes a reviewed assignment.
type CompleteAssignment struct{}

// ReopenAssignment sends a completed assignment back to the student.
type ReopenAssignment struct {
	Reason string
}

func (ViewAssignment) Action() AssignmentAction     { return ActionView }
func (SubmitAssignment) Action() AssignmentAction   { return ActionSubmit }
func (ReviewAssignment) Action() AssignmentAction   { return ActionReview }
func (CompleteAssignment) Action() AssignmentAction { return ActionComplete }
func (ReopenAssignment) Action() AssignmentAction   { return ActionReopen }

func (ViewAssignment) assignmentCommand()     {}
func (SubmitAssignment) assignmentCommand()   {}
func (ReviewAssignment) assignmentCommand()   {}
func (CompleteAssignment) assignmentCommand() {}
func (ReopenAssignment) assignmentCommand()   {}

// AssignmentState is the slice of a stored assignment the machine decides on.
type AssignmentState struct {
	Status      AssignmentStatus
	ReopenCount int
}

// AssignmentResult describes an accepted transition. Stamp is the timestamp column the caller
// must set to its own clock.
type AssignmentResult struct {
	From        AssignmentStatus
	To          AssignmentStatus
	Stamp       string
	ReopenCount int
}

type assignmentEdge struct {
	from  []AssignmentStatus
	to    AssignmentStatus
	stamp string
}

var assignmentEdges = map[AssignmentAction]assignmentEdge{
	ActionView:     {from: []AssignmentStatus{AssignmentAssigned}, to: AssignmentViewed, stamp: "viewed_at"},
	ActionSubmit:   {from: []AssignmentStatus{AssignmentViewed, AssignmentReopened}, to: AssignmentSubmitted, stamp: "submitted_at"},
	ActionReview:   {from: []AssignmentStatus{AssignmentSubmitted}, to: AssignmentReviewed, stamp: "reviewed_at"},
	ActionComplete: {from: []AssignmentStatus{AssignmentReviewed}, to: AssignmentCompleted, stamp: "completed_at"},
	ActionReopen:   {from: []AssignmentStatus{AssignmentCompleted}, to: AssignmentReopened, stamp: "reopened_at"},
}

// AssignmentMachine holds the assignment lifecycle rules.
type AssignmentMachine struct {
	maxReopens int
}

// NewAssignmentMachine builds the machine with the configured reopen cap.
func NewAssignmentMachine(maxReopens int) AssignmentMachine {
	if maxReopens < 0 {
		maxReopens = 0
	}
	return AssignmentMachine{maxReopens: maxReopens}
}

// MaxReopens returns the configured reopen cap.
func (m AssignmentMachine) MaxReopens() int {
	return m.maxReopens
}

// Transition decides the next state for cmd, or rejects it.
func (m AssignmentMachine) Transition(state AssignmentState, cmd AssignmentCommand) (AssignmentResult, error) {
	if cmd == nil {
		return AssignmentResult{}, required("action")
	}

	action := cmd.Action()
	edge, ok := assignmentEdges[action]
	if !ok || !containsStatus(edge.from, state.Status) {
		return AssignmentResult{}, invalid("assignment", string(state.Status), string(action))
	}

	result := AssignmentResult{
		From:        state.Status,
		To:          edge.to,
		Stamp:       edge.stamp,
		ReopenCount: state.ReopenCount,
	}

	switch c := cmd.(type) {
	case SubmitAssignment:
		if strings.TrimSpace(c.Text) == "" && countNonBlank(c.Attachments) == 0 {
			return AssignmentResult{}, &ValidationError{Field: "submission", Reason: "requires text or at least one attachment"}
		}
	case ReopenAssignment:
		if strings.TrimSpace(c.Reason) == "" {
			return AssignmentResult{}, required("reason")
		}
		if state.ReopenCount >= m.maxReopens {
			return AssignmentResult{}, &LimitExceededError{Entity: "assignment", Resource: "reopen", Limit: m.maxReopens}
		}
		result.ReopenCount = state.ReopenCount + 1
	}

	return result, nil
}

// AllowedActions lists the actions the machine would accept from status, ignoring guards.
func (m AssignmentMachine) AllowedActions(status AssignmentStatus) []AssignmentAction {
	actions := make([]AssignmentAction, 0, 1)
	for _, action := range []AssignmentAction{ActionView, ActionSubmit, ActionReview, ActionComplete, ActionReopen} {
		if containsStatus(assignmentEdges[action].from, status) {
			actions = append(actions, action)
		}
	}
	return actions
}

// AssignmentDeletable reports whether an assignment in status may still be deleted.
// Only work the student has not submitted yet can be removed.
func AssignmentDeletable(status AssignmentStatus) bool {
	return status == AssignmentAssigned || status == AssignmentViewed
}

func containsStatus(set []AssignmentStatus, status AssignmentStatus) bool {
	for _, candidate := range set {
		if candidate == status {
			return true
		}
	}
	return false
}

func countNonBlank(values []string) int {
	count := 0
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			count++
		}
	}
	return count
}
