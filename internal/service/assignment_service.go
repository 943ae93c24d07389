package service

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/hifz-api/internal/dto"
	"github.com/noah-isme/hifz-api/internal/models"
	"github.com/noah-isme/hifz-api/internal/observability"
	"github.com/noah-isme/hifz-api/internal/policy"
	"github.com/noah-isme/hifz-api/internal/repository"
	"github.com/noah-isme/hifz-api/internal/workflow"
)

// AssignmentService exposes assignment domain use cases.
type AssignmentService interface {
	List(ctx context.Context, actor Actor, query dto.AssignmentListQuery) (dto.AssignmentListResponse, error)
	Get(ctx context.Context, actor Actor, id uint) (dto.AssignmentResponse, error)
	Create(ctx context.Context, actor Actor, payload dto.AssignmentCreateRequest) (dto.AssignmentResponse, error)
	Transition(ctx context.Context, actor Actor, id uint, cmd workflow.AssignmentCommand) (dto.AssignmentResponse, error)
	Delete(ctx context.Context, actor Actor, id uint) error
	History(ctx context.Context, actor Actor, id uint) ([]dto.TransitionLogResponse, error)
	UploadAttachment(ctx context.Context, actor Actor, id uint, file *multipart.FileHeader) (dto.AttachmentResponse, error)
}

type assignmentService struct {
	repo        repository.AssignmentRepository
	relations   relations
	machine     workflow.AssignmentMachine
	recorder    TransitionRecorder
	notifier    Notifier
	attachments AttachmentStore
	validator   *validator.Validate
	sanitizer   *bluemonday.Policy
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// AssignmentServiceDeps groups the collaborators of the assignment service.
type AssignmentServiceDeps struct {
	Repo        repository.AssignmentRepository
	Directory   repository.DirectoryRepository
	Machine     workflow.AssignmentMachine
	Recorder    TransitionRecorder
	Notifier    Notifier
	Attachments AttachmentStore
	Validator   *validator.Validate
}

// NewAssignmentService builds a new assignment service.
func NewAssignmentService(deps AssignmentServiceDeps, logger zerolog.Logger) AssignmentService {
	return &assignmentService{
		repo:        deps.Repo,
		relations:   relations{directory: deps.Directory},
		machine:     deps.Machine,
		recorder:    deps.Recorder,
		notifier:    deps.Notifier,
		attachments: deps.Attachments,
		validator:   deps.Validator,
		sanitizer:   bluemonday.StrictPolicy(),
		logger:      logger.With().Str("component", "assignment_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/hifz-api/internal/service/assignment"),
		now:         time.Now,
	}
}

func (s *assignmentService) List(ctx context.Context, actor Actor, query dto.AssignmentListQuery) (dto.AssignmentListResponse, error) {
	if err := s.validator.Struct(query); err != nil {
		return dto.AssignmentListResponse{}, err
	}

	empty := dto.AssignmentListResponse{Items: []dto.AssignmentResponse{}}
	filter := repository.AssignmentFilter{
		SchoolID: actor.SchoolID,
		Status:   query.Status,
		Page:     query.Page,
		PageSize: query.PageSize,
	}

	var (
		visibleClasses  []uint
		visibleStudents []uint
	)
	switch actor.Role {
	case policy.RoleOwner:
	case policy.RoleTeacher:
		ids, err := s.relations.directory.ClassIDsByTeacher(ctx, actor.UserID)
		if err != nil {
			return dto.AssignmentListResponse{}, err
		}
		visibleClasses = ids
		filter.Restrict = true
	case policy.RoleStudent, policy.RoleParent:
		ids, _, err := s.relations.visibleStudents(ctx, actor)
		if err != nil {
			return dto.AssignmentListResponse{}, err
		}
		visibleStudents = ids
		filter.Restrict = true
	default:
		return empty, nil
	}

	classes, ok := narrow(visibleClasses, filter.Restrict && actor.Role == policy.RoleTeacher, query.ClassID)
	if !ok {
		return empty, nil
	}
	students, ok := narrow(visibleStudents, filter.Restrict && actor.Role != policy.RoleTeacher, query.StudentID)
	if !ok {
		return empty, nil
	}
	if filter.Restrict && ((actor.Role == policy.RoleTeacher && len(classes) == 0) || (actor.Role != policy.RoleTeacher && len(students) == 0)) {
		return empty, nil
	}
	filter.ClassIDs = classes
	filter.StudentIDs = students

	assignments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return dto.AssignmentListResponse{}, err
	}

	return dto.AssignmentListResponse{Items: dto.NewAssignmentResponseSlice(assignments), Total: total}, nil
}

func (s *assignmentService) Get(ctx context.Context, actor Actor, id uint) (dto.AssignmentResponse, error) {
	assignment, rel, err := s.authorized(ctx, actor, id, policy.AssignmentRead)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}

	// Opening an assigned row as its student counts as viewing it.
	if rel.IsStudent && assignment.Status == workflow.AssignmentAssigned {
		if err := s.apply(ctx, actor, assignment, workflow.ViewAssignment{}); err != nil && !errors.Is(err, repository.ErrStaleState) && !errors.Is(err, workflow.ErrInvalidTransition) {
			return dto.AssignmentResponse{}, err
		}

		assignment, err = s.load(ctx, id)
		if err != nil {
			return dto.AssignmentResponse{}, err
		}
	}

	return dto.NewAssignmentResponse(assignment), nil
}

func (s *assignmentService) Create(ctx context.Context, actor Actor, payload dto.AssignmentCreateRequest) (dto.AssignmentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AssignmentResponse{}, err
	}

	class, err := s.relations.directory.GetClass(ctx, payload.ClassID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AssignmentResponse{}, ErrClassNotFound
		}
		return dto.AssignmentResponse{}, err
	}

	rel, err := s.relations.forStudentInClass(ctx, actor, class.ID, payload.StudentID)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}
	if err := policy.Authorize(actor.Subject(), policy.AssignmentCreate, class.SchoolID, rel); err != nil {
		return dto.AssignmentResponse{}, err
	}

	student, err := s.relations.directory.GetStudent(ctx, payload.StudentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AssignmentResponse{}, ErrStudentNotFound
		}
		return dto.AssignmentResponse{}, err
	}
	if student.SchoolID != class.SchoolID || student.ClassID != class.ID {
		return dto.AssignmentResponse{}, &workflow.ValidationError{Field: "student_id", Reason: "student is not enrolled in the class"}
	}

	now := s.now().UTC()
	var dueDate *time.Time
	if payload.DueDate != "" {
		parsed, err := time.Parse(time.RFC3339, payload.DueDate)
		if err != nil {
			return dto.AssignmentResponse{}, &workflow.ValidationError{Field: "due_date", Reason: "must be RFC3339"}
		}
		if !parsed.After(now) {
			return dto.AssignmentResponse{}, &workflow.ValidationError{Field: "due_date", Reason: "must be in the future"}
		}
		dueDate = &parsed
	}

	assignment := models.Assignment{
		SchoolID:    class.SchoolID,
		ClassID:     class.ID,
		StudentID:   student.ID,
		TeacherID:   class.TeacherID,
		Title:       strings.TrimSpace(s.sanitizer.Sanitize(payload.Title)),
		Description: strings.TrimSpace(s.sanitizer.Sanitize(payload.Description)),
		DueDate:     dueDate,
		Status:      workflow.AssignmentAssigned,
		Attachments: datatypes.JSONSlice[string]{},
		AssignedAt:  now,
	}
	if assignment.Title == "" {
		return dto.AssignmentResponse{}, &workflow.ValidationError{Field: "title", Reason: "is empty after sanitization"}
	}

	if err := s.repo.Create(ctx, &assignment); err != nil {
		return dto.AssignmentResponse{}, err
	}

	s.record(ctx, TransitionEntry{
		Actor:      actor,
		EntityType: EntityAssignment,
		EntityID:   assignment.ID,
		Action:     "create",
		To:         string(workflow.AssignmentAssigned),
	})
	notify(ctx, s.notifier, s.logger, dto.NotificationCreateRequest{
		SchoolID: assignment.SchoolID,
		UserID:   fmt.Sprintf("%d", assignment.StudentID),
		Type:     "assignment.assigned",
		Message:  fmt.Sprintf("New assignment: %s", assignment.Title),
	})

	s.logger.Info().Uint("assignment_id", assignment.ID).Uint("student_id", assignment.StudentID).Msg("assignment created")

	return dto.NewAssignmentResponse(assignment), nil
}

func (s *assignmentService) Transition(ctx context.Context, actor Actor, id uint, cmd workflow.AssignmentCommand) (dto.AssignmentResponse, error) {
	if cmd == nil {
		return dto.AssignmentResponse{}, &workflow.ValidationError{Field: "action", Reason: "is required"}
	}

	ctx, span := s.tracer.Start(ctx, "assignments.transition", trace.WithAttributes(
		attribute.Int("assignment.id", int(id)),
		attribute.String("assignment.action", string(cmd.Action())),
		attribute.String("actor.role", string(actor.Role)),
	))
	defer span.End()

	assignment, _, err := s.authorized(ctx, actor, id, operationFor(cmd.Action()))
	if err != nil {
		span.RecordError(err)
		return dto.AssignmentResponse{}, err
	}

	if err := s.apply(ctx, actor, assignment, cmd); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transition rejected")
		return dto.AssignmentResponse{}, err
	}

	updated, err := s.load(ctx, id)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}
	span.SetAttributes(attribute.String("assignment.status", string(updated.Status)))

	return dto.NewAssignmentResponse(updated), nil
}

// apply runs cmd through the machine and writes the result with a compare-and-swap on the
// status the decision was made from.
func (s *assignmentService) apply(ctx context.Context, actor Actor, assignment models.Assignment, cmd workflow.AssignmentCommand) error {
	cmd = s.sanitizeCommand(cmd)

	result, err := s.machine.Transition(workflow.AssignmentState{
		Status:      assignment.Status,
		ReopenCount: assignment.ReopenCount,
	}, cmd)
	if err != nil {
		return err
	}

	now := s.now().UTC()
	updates := map[string]interface{}{
		"status":     string(result.To),
		result.Stamp: now,
		"updated_at": now,
	}
	metadata := map[string]interface{}{}

	switch c := cmd.(type) {
	case workflow.SubmitAssignment:
		updates["submission_text"] = c.Text
		updates["attachments"] = datatypes.JSONSlice[string](c.Attachments)
		metadata["attachments"] = len(c.Attachments)
	case workflow.ReviewAssignment:
		if c.Feedback != "" {
			updates["feedback"] = c.Feedback
		}
	case workflow.ReopenAssignment:
		updates["reopen_count"] = result.ReopenCount
		updates["reopen_reason"] = c.Reason
		metadata["reason"] = c.Reason
		metadata["reopen_count"] = result.ReopenCount
	}

	if err := s.repo.Transition(ctx, assignment.ID, result.From, updates); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAssignmentNotFound
		}
		if errors.Is(err, repository.ErrStaleState) {
			observability.StaleConflictsTotal().WithLabelValues(EntityAssignment).Inc()
			s.logger.Info().Uint("assignment_id", assignment.ID).Str("action", string(cmd.Action())).Msg("assignment transition lost race")
		}
		return err
	}

	observability.TransitionsTotal().WithLabelValues(EntityAssignment, string(cmd.Action())).Inc()
	s.record(ctx, TransitionEntry{
		Actor:      actor,
		EntityType: EntityAssignment,
		EntityID:   assignment.ID,
		Action:     string(cmd.Action()),
		From:       string(result.From),
		To:         string(result.To),
		Metadata:   metadata,
	})
	s.notifyTransition(ctx, assignment, result)

	return nil
}

func (s *assignmentService) sanitizeCommand(cmd workflow.AssignmentCommand) workflow.AssignmentCommand {
	clean := func(value string) string {
		return strings.TrimSpace(s.sanitizer.Sanitize(value))
	}

	switch c := cmd.(type) {
	case workflow.SubmitAssignment:
		attachments := make([]string, 0, len(c.Attachments))
		for _, attachment := range c.Attachments {
			if trimmed := strings.TrimSpace(attachment); trimmed != "" {
				attachments = append(attachments, trimmed)
			}
		}
		return workflow.SubmitAssignment{Text: clean(c.Text), Attachments: attachments}
	case workflow.ReviewAssignment:
		return workflow.ReviewAssignment{Feedback: clean(c.Feedback)}
	case workflow.ReopenAssignment:
		return workflow.ReopenAssignment{Reason: clean(c.Reason)}
	default:
		return cmd
	}
}

func (s *assignmentService) notifyTransition(ctx context.Context, assignment models.Assignment, result workflow.AssignmentResult) {
	var (
		recipient uint
		message   string
	)
	switch result.To {
	case workflow.AssignmentSubmitted:
		recipient = assignment.TeacherID
		message = fmt.Sprintf("Assignment %q was submitted", assignment.Title)
	case workflow.AssignmentReviewed:
		recipient = assignment.StudentID
		message = fmt.Sprintf("Assignment %q was reviewed", assignment.Title)
	case workflow.AssignmentCompleted:
		recipient = assignment.StudentID
		message = fmt.Sprintf("Assignment %q is complete", assignment.Title)
	case workflow.AssignmentReopened:
		recipient = assignment.StudentID
		message = fmt.Sprintf("Assignment %q was reopened", assignment.Title)
	default:
		return
	}

	notify(ctx, s.notifier, s.logger, dto.NotificationCreateRequest{
		SchoolID: assignment.SchoolID,
		UserID:   fmt.Sprintf("%d", recipient),
		Type:     "assignment." + string(result.To),
		Message:  message,
	})
}

func (s *assignmentService) Delete(ctx context.Context, actor Actor, id uint) error {
	assignment, _, err := s.authorized(ctx, actor, id, policy.AssignmentDelete)
	if err != nil {
		return err
	}

	if !workflow.AssignmentDeletable(assignment.Status) {
		return &workflow.InvalidTransitionError{Entity: EntityAssignment, From: string(assignment.Status), Action: "delete"}
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAssignmentNotFound
		}
		if errors.Is(err, repository.ErrStaleState) {
			observability.StaleConflictsTotal().WithLabelValues(EntityAssignment).Inc()
		}
		return err
	}

	s.record(ctx, TransitionEntry{
		Actor:      actor,
		EntityType: EntityAssignment,
		EntityID:   id,
		Action:     "delete",
		From:       string(assignment.Status),
	})
	s.logger.Info().Uint("assignment_id", id).Msg("assignment deleted")

	return nil
}

func (s *assignmentService) History(ctx context.Context, actor Actor, id uint) ([]dto.TransitionLogResponse, error) {
	assignment, _, err := s.authorized(ctx, actor, id, policy.AssignmentRead)
	if err != nil {
		return nil, err
	}

	return s.recorder.History(ctx, assignment.SchoolID, EntityAssignment, assignment.ID)
}

func (s *assignmentService) UploadAttachment(ctx context.Context, actor Actor, id uint, file *multipart.FileHeader) (dto.AttachmentResponse, error) {
	if s.attachments == nil {
		return dto.AttachmentResponse{}, ErrUploadsDisabled
	}

	assignment, _, err := s.authorized(ctx, actor, id, policy.AssignmentSubmit)
	if err != nil {
		return dto.AttachmentResponse{}, err
	}

	// Attachments only feed a submission, so they follow the submit edge.
	if !containsAction(s.machine.AllowedActions(assignment.Status), workflow.ActionSubmit) {
		return dto.AttachmentResponse{}, &workflow.InvalidTransitionError{
			Entity: EntityAssignment,
			From:   string(assignment.Status),
			Action: "attach",
		}
	}

	return s.attachments.Store(ctx, file)
}

func (s *assignmentService) authorized(ctx context.Context, actor Actor, id uint, op policy.Operation) (models.Assignment, policy.Relationship, error) {
	assignment, err := s.load(ctx, id)
	if err != nil {
		return models.Assignment{}, policy.Relationship{}, err
	}

	rel, err := s.relations.forStudentInClass(ctx, actor, assignment.ClassID, assignment.StudentID)
	if err != nil {
		return models.Assignment{}, policy.Relationship{}, err
	}

	if err := policy.Authorize(actor.Subject(), op, assignment.SchoolID, rel); err != nil {
		return models.Assignment{}, policy.Relationship{}, err
	}

	return assignment, rel, nil
}

func (s *assignmentService) load(ctx context.Context, id uint) (models.Assignment, error) {
	assignment, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Assignment{}, ErrAssignmentNotFound
		}
		return models.Assignment{}, err
	}
	return assignment, nil
}

func (s *assignmentService) record(ctx context.Context, entry TransitionEntry) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Record(ctx, entry); err != nil {
		s.logger.Warn().Err(err).Str("action", entry.Action).Uint("entity_id", entry.EntityID).Msg("transition log write failed")
	}
}

func operationFor(action workflow.AssignmentAction) policy.Operation {
	switch action {
	case workflow.ActionView:
		return policy.AssignmentView
	case workflow.ActionSubmit:
		return policy.AssignmentSubmit
	case workflow.ActionReview:
		return policy.AssignmentReview
	case workflow.ActionComplete:
		return policy.AssignmentComplete
	case workflow.ActionReopen:
		return policy.AssignmentReopen
	default:
		return policy.Operation("assignment." + string(action))
	}
}

func containsAction(actions []workflow.AssignmentAction, action workflow.AssignmentAction) bool {
	for _, candidate := range actions {
		if candidate == action {
			return true
		}
	}
	return false
}
