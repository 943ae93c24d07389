// Package policy holds the capability checks evaluated before any workflow transition.
package policy

import (
	"errors"
	"fmt"
	"strings"
)

// ErrForbidden is matched by every AuthorizationError.
var ErrForbidden = errors.New("forbidden")

// Role is the caller's role inside a school.
type Role string

const (
	RoleOwner   Role = "owner"
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
	RoleParent  Role = "parent"
)

// ParseRole normalises a role claim. Unknown roles come back empty.
func ParseRole(value string) Role {
	switch role := Role(strings.ToLower(strings.TrimSpace(value))); role {
	case RoleOwner, RoleTeacher, RoleStudent, RoleParent:
		return role
	case "admin":
		return RoleOwner
	default:
		return ""
	}
}

// Subject identifies the authenticated caller.
type Subject struct {
	UserID   uint
	Role     Role
	SchoolID uint
}

// Relationship describes how the caller relates to the entity being touched.
type Relationship struct {
	// OwnsClass is set when the caller teaches the class the entity belongs to.
	OwnsClass bool
	// IsStudent is set when the caller is the student the entity is assigned to.
	IsStudent bool
	// IsParent is set when the caller is a guardian of that student.
	IsParent bool
	// InAudience is set when a class or school wide entity includes the caller.
	InAudience bool
}

// Operation names a guarded capability.
type Operation string

const (
	AssignmentCreate   Operation = "assignment.create"
	AssignmentRead     Operation = "assignment.read"
	AssignmentView     Operation = "assignment.view"
	AssignmentSubmit   Operation = "assignment.submit"
	AssignmentReview   Operation = "assignment.review"
	AssignmentComplete Operation = "assignment.complete"
	AssignmentReopen   Operation = "assignment.reopen"
	AssignmentDelete   Operation = "assignment.delete"

	HomeworkCreate   Operation = "homework.create"
	HomeworkRead     Operation = "homework.read"
	HomeworkComplete Operation = "homework.complete"
	HomeworkDelete   Operation = "homework.delete"

	TargetCreate Operation = "target.create"
	TargetRead   Operation = "target.read"
	TargetManage Operation = "target.manage"
)

// AuthorizationError reports a denied capability. It is never a workflow rejection.
type AuthorizationError struct {
	Operation Operation
	Role      Role
	Reason    string
}

func (e *AuthorizationError) Error() string {
	role := string(e.Role)
	if role == "" {
		role = "unknown role"
	}
	return fmt.Sprintf("%s not permitted for %s: %s", e.Operation, role, e.Reason)
}

// Is lets callers match with errors.Is(err, ErrForbidden).
func (e *AuthorizationError) Is(target error) bool {
	return target == ErrForbidden
}

type rule func(Subject, Relationship) bool

func owner(s Subject, _ Relationship) bool { return s.Role == RoleOwner }

func classTeacher(s Subject, r Relationship) bool { return s.Role == RoleTeacher && r.OwnsClass }

func assignedStudent(s Subject, r Relationship) bool { return s.Role == RoleStudent && r.IsStudent }

func guardian(s Subject, r Relationship) bool { return s.Role == RoleParent && r.IsParent }

func audience(_ Subject, r Relationship) bool { return r.InAudience }

var rules = map[Operation][]rule{
	AssignmentCreate:   {owner, classTeacher},
	AssignmentRead:     {owner, classTeacher, assignedStudent, guardian},
	AssignmentView:     {assignedStudent},
	AssignmentSubmit:   {assignedStudent},
	AssignmentReview:   {owner, classTeacher},
	AssignmentComplete: {owner, classTeacher},
	AssignmentReopen:   {owner, classTeacher},
	AssignmentDelete:   {owner, classTeacher},

	HomeworkCreate:   {owner, classTeacher},
	HomeworkRead:     {owner, classTeacher, assignedStudent, guardian},
	HomeworkComplete: {owner, classTeacher},
	HomeworkDelete:   {owner, classTeacher},

	TargetCreate: {owner, classTeacher},
	TargetRead:   {owner, classTeacher, assignedStudent, guardian, audience},
	TargetManage: {owner, classTeacher},
}

// Authorize checks subject may perform op on an entity of entitySchool given rel.
func Authorize(subject Subject, op Operation, entitySchool uint, rel Relationship) error {
	if subject.UserID == 0 || subject.Role == "" {
		return &AuthorizationError{Operation: op, Role: subject.Role, Reason: "unauthenticated caller"}
	}

	if subject.SchoolID == 0 || subject.SchoolID != entitySchool {
		return &AuthorizationError{Operation: op, Role: subject.Role, Reason: "school mismatch"}
	}

	checks, ok := rules[op]
	if !ok {
		return &AuthorizationError{Operation: op, Role: subject.Role, Reason: "unknown operation"}
	}

	for _, check := range checks {
		if check(subject, rel) {
			return nil
		}
	}

	return &AuthorizationError{Operation: op, Role: subject.Role, Reason: "no relationship grants access"}
}
