package service

import "errors"

var (
	// ErrAssignmentNotFound indicates the requested assignment does not exist.
	ErrAssignmentNotFound = errors.New("assignment not found")
	// ErrHomeworkNotFound indicates the requested homework does not exist.
	ErrHomeworkNotFound = errors.New("homework not found")
	// ErrTargetNotFound indicates the requested target does not exist.
	ErrTargetNotFound = errors.New("target not found")
	// ErrMilestoneNotFound indicates the milestone does not belong to the target.
	ErrMilestoneNotFound = errors.New("milestone not found")
	// ErrStudentNotFound indicates the referenced student does not exist in the caller's school.
	ErrStudentNotFound = errors.New("student not found")
	// ErrClassNotFound indicates the referenced class does not exist in the caller's school.
	ErrClassNotFound = errors.New("class not found")
	// ErrNotificationNotFound indicates the notification does not exist for the user.
	ErrNotificationNotFound = errors.New("notification not found")
)
