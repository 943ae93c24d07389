package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/hifz-api/internal/dto"
	"github.com/noah-isme/hifz-api/internal/models"
	"github.com/noah-isme/hifz-api/internal/observability"
	"github.com/noah-isme/hifz-api/internal/policy"
	"github.com/noah-isme/hifz-api/internal/repository"
	"github.com/noah-isme/hifz-api/internal/workflow"
)

// TargetService exposes memorization target use cases.
type TargetService interface {
	List(ctx context.Context, actor Actor, query dto.TargetListQuery) ([]dto.TargetResponse, error)
	Get(ctx context.Context, actor Actor, id uint) (dto.TargetResponse, error)
	Create(ctx context.Context, actor Actor, payload dto.TargetCreateRequest) (dto.TargetResponse, error)
	UpdateProgress(ctx context.Context, actor Actor, id uint, payload dto.TargetProgressRequest) (dto.TargetResponse, error)
	Complete(ctx context.Context, actor Actor, id uint) (dto.TargetResponse, error)
	Cancel(ctx context.Context, actor Actor, id uint, payload dto.TargetCancelRequest) (dto.TargetResponse, error)
	AddMilestone(ctx context.Context, actor Actor, id uint, payload dto.MilestoneCreateRequest) (dto.MilestoneResponse, error)
	ToggleMilestone(ctx context.Context, actor Actor, id, milestoneID uint, payload dto.MilestoneToggleRequest) (dto.MilestoneResponse, error)
	Delete(ctx context.Context, actor Actor, id uint) error
}

type targetService struct {
	repo      repository.TargetRepository
	relations relations
	recorder  TransitionRecorder
	notifier  Notifier
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewTargetService builds the target service.
func NewTargetService(repo repository.TargetRepository, directory repository.DirectoryRepository, recorder TransitionRecorder, notifier Notifier, validate *validator.Validate, logger zerolog.Logger) TargetService {
	return &targetService{
		repo:      repo,
		relations: relations{directory: directory},
		recorder:  recorder,
		notifier:  notifier,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "target_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/hifz-api/internal/service/target"),
		now:       time.Now,
	}
}

func (s *targetService) List(ctx context.Context, actor Actor, query dto.TargetListQuery) ([]dto.TargetResponse, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, err
	}

	filter := repository.TargetFilter{
		SchoolID: actor.SchoolID,
		Scope:    query.Scope,
		Status:   query.Status,
	}

	switch actor.Role {
	case policy.RoleOwner, policy.RoleTeacher:
	case policy.RoleStudent, policy.RoleParent:
		students, _, err := s.relations.visibleStudents(ctx, actor)
		if err != nil {
			return nil, err
		}
		classes, err := s.relations.directory.ClassIDsOfStudents(ctx, students)
		if err != nil {
			return nil, err
		}
		filter.StudentIDs = students
		filter.ClassIDs = classes
		filter.Restrict = true
	default:
		return []dto.TargetResponse{}, nil
	}

	targets, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	out := make([]models.Target, 0, len(targets))
	for _, target := range targets {
		if query.StudentID != nil && (target.StudentID == nil || *target.StudentID != *query.StudentID) {
			continue
		}
		if query.ClassID != nil && (target.ClassID == nil || *target.ClassID != *query.ClassID) {
			continue
		}
		out = append(out, target)
	}

	return dto.NewTargetResponseSlice(out), nil
}

func (s *targetService) Get(ctx context.Context, actor Actor, id uint) (dto.TargetResponse, error) {
	target, err := s.authorized(ctx, actor, id, policy.TargetRead)
	if err != nil {
		return dto.TargetResponse{}, err
	}
	return dto.NewTargetResponse(target), nil
}

func (s *targetService) Create(ctx context.Context, actor Actor, payload dto.TargetCreateRequest) (dto.TargetResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.TargetResponse{}, err
	}

	scope := workflow.TargetScope(payload.Scope)
	target := models.Target{
		SchoolID:    actor.SchoolID,
		Scope:       scope,
		CreatedBy:   actor.UserID,
		Title:       strings.TrimSpace(s.sanitizer.Sanitize(payload.Title)),
		Description: strings.TrimSpace(s.sanitizer.Sanitize(payload.Description)),
		Status:      workflow.TargetActive,
	}
	if target.Title == "" {
		return dto.TargetResponse{}, &workflow.ValidationError{Field: "title", Reason: "is empty after sanitization"}
	}

	switch scope {
	case workflow.ScopeIndividual:
		if payload.StudentID == nil {
			return dto.TargetResponse{}, &workflow.ValidationError{Field: "student_id", Reason: "is required for individual targets"}
		}
		student, err := s.relations.directory.GetStudent(ctx, *payload.StudentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return dto.TargetResponse{}, ErrStudentNotFound
			}
			return dto.TargetResponse{}, err
		}
		studentID, classID := student.ID, student.ClassID
		target.SchoolID = student.SchoolID
		target.StudentID = &studentID
		target.ClassID = &classID
	case workflow.ScopeClass:
		if payload.ClassID == nil {
			return dto.TargetResponse{}, &workflow.ValidationError{Field: "class_id", Reason: "is required for class targets"}
		}
		class, err := s.relations.directory.GetClass(ctx, *payload.ClassID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return dto.TargetResponse{}, ErrClassNotFound
			}
			return dto.TargetResponse{}, err
		}
		classID := class.ID
		target.SchoolID = class.SchoolID
		target.ClassID = &classID
	case workflow.ScopeSchool:
	default:
		return dto.TargetResponse{}, &workflow.ValidationError{Field: "scope", Reason: fmt.Sprintf("unknown scope %q", payload.Scope)}
	}

	rel, err := s.relations.forTarget(ctx, actor, target, false)
	if err != nil {
		return dto.TargetResponse{}, err
	}
	if err := policy.Authorize(actor.Subject(), policy.TargetCreate, target.SchoolID, rel); err != nil {
		return dto.TargetResponse{}, err
	}

	if payload.DueDate != "" {
		parsed, err := time.Parse(time.RFC3339, payload.DueDate)
		if err != nil {
			return dto.TargetResponse{}, &workflow.ValidationError{Field: "due_date", Reason: "must be RFC3339"}
		}
		target.DueDate = &parsed
	}

	orders := make([]int, 0, len(payload.Milestones))
	for _, title := range payload.Milestones {
		order, err := workflow.NextMilestoneOrder(target.Status, orders)
		if err != nil {
			return dto.TargetResponse{}, err
		}
		clean := strings.TrimSpace(s.sanitizer.Sanitize(title))
		if clean == "" {
			return dto.TargetResponse{}, &workflow.ValidationError{Field: "milestones", Reason: "title is empty after sanitization"}
		}
		orders = append(orders, order)
		target.Milestones = append(target.Milestones, models.TargetMilestone{
			Title:      clean,
			OrderIndex: order,
		})
	}

	if err := s.repo.Create(ctx, &target); err != nil {
		return dto.TargetResponse{}, err
	}

	s.record(ctx, TransitionEntry{
		Actor:      actor,
		EntityType: EntityTarget,
		EntityID:   target.ID,
		Action:     "create",
		To:         string(workflow.TargetActive),
		Metadata:   map[string]interface{}{"scope": string(target.Scope)},
	})
	s.notifyStudent(ctx, target, "target.created", fmt.Sprintf("New target: %s", target.Title))

	return dto.NewTargetResponse(target), nil
}

func (s *targetService) UpdateProgress(ctx context.Context, actor Actor, id uint, payload dto.TargetProgressRequest) (dto.TargetResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.TargetResponse{}, err
	}

	target, err := s.authorized(ctx, actor, id, policy.TargetManage)
	if err != nil {
		return dto.TargetResponse{}, err
	}

	progress, err := workflow.SetTargetProgress(target.Status, *payload.Progress)
	if err != nil {
		return dto.TargetResponse{}, err
	}

	now := s.now().UTC()
	if err := s.transition(ctx, target, "update_progress", target.Status, map[string]interface{}{
		"progress":   progress,
		"updated_at": now,
	}); err != nil {
		return dto.TargetResponse{}, err
	}

	s.record(ctx, TransitionEntry{
		Actor:      actor,
		EntityType: EntityTarget,
		EntityID:   id,
		Action:     "update_progress",
		From:       string(target.Status),
		To:         string(target.Status),
		Metadata:   map[string]interface{}{"from_progress": target.Progress, "to_progress": progress, "requested": *payload.Progress},
	})

	return s.reload(ctx, id)
}

func (s *targetService) Complete(ctx context.Context, actor Actor, id uint) (dto.TargetResponse, error) {
	target, err := s.authorized(ctx, actor, id, policy.TargetManage)
	if err != nil {
		return dto.TargetResponse{}, err
	}

	next, err := workflow.CompleteTarget(target.Status)
	if err != nil {
		return dto.TargetResponse{}, err
	}

	now := s.now().UTC()
	if err := s.transition(ctx, target, "complete", next, map[string]interface{}{
		"status":       string(next),
		"completed_at": now,
		"updated_at":   now,
	}); err != nil {
		return dto.TargetResponse{}, err
	}

	s.record(ctx, TransitionEntry{
		Actor:      actor,
		EntityType: EntityTarget,
		EntityID:   id,
		Action:     "complete",
		From:       string(target.Status),
		To:         string(next),
	})
	s.notifyStudent(ctx, target, "target.completed", fmt.Sprintf("Target %q completed", target.Title))

	return s.reload(ctx, id)
}

func (s *targetService) Cancel(ctx context.Context, actor Actor, id uint, payload dto.TargetCancelRequest) (dto.TargetResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.TargetResponse{}, err
	}

	target, err := s.authorized(ctx, actor, id, policy.TargetManage)
	if err != nil {
		return dto.TargetResponse{}, err
	}

	reason := strings.TrimSpace(s.sanitizer.Sanitize(payload.Reason))
	next, err := workflow.CancelTarget(target.Status, reason)
	if err != nil {
		return dto.TargetResponse{}, err
	}

	now := s.now().UTC()
	if err := s.transition(ctx, target, "cancel", next, map[string]interface{}{
		"status":        string(next),
		"cancelled_at":  now,
		"cancel_reason": reason,
		"updated_at":    now,
	}); err != nil {
		return dto.TargetResponse{}, err
	}

	s.record(ctx, TransitionEntry{
		Actor:      actor,
		EntityType: EntityTarget,
		EntityID:   id,
		Action:     "cancel",
		From:       string(target.Status),
		To:         string(next),
		Metadata:   map[string]interface{}{"reason": reason},
	})
	s.notifyStudent(ctx, target, "target.cancelled", fmt.Sprintf("Target %q cancelled", target.Title))

	return s.reload(ctx, id)
}

func (s *targetService) AddMilestone(ctx context.Context, actor Actor, id uint, payload dto.MilestoneCreateRequest) (dto.MilestoneResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.MilestoneResponse{}, err
	}

	if _, err := s.authorized(ctx, actor, id, policy.TargetManage); err != nil {
		return dto.MilestoneResponse{}, err
	}

	title := strings.TrimSpace(s.sanitizer.Sanitize(payload.Title))
	if title == "" {
		return dto.MilestoneResponse{}, &workflow.ValidationError{Field: "title", Reason: "is empty after sanitization"}
	}

	milestone, err := s.repo.AddMilestone(ctx, id, title, func(target models.Target, orders []int) (int, error) {
		return workflow.NextMilestoneOrder(target.Status, orders)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.MilestoneResponse{}, ErrTargetNotFound
		}
		return dto.MilestoneResponse{}, err
	}

	s.record(ctx, TransitionEntry{
		Actor:      actor,
		EntityType: EntityTarget,
		EntityID:   id,
		Action:     "add_milestone",
		Metadata:   map[string]interface{}{"milestone_id": milestone.ID, "order_index": milestone.OrderIndex},
	})

	return dto.NewMilestoneResponse(milestone), nil
}

func (s *targetService) ToggleMilestone(ctx context.Context, actor Actor, id, milestoneID uint, payload dto.MilestoneToggleRequest) (dto.MilestoneResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.MilestoneResponse{}, err
	}

	if _, err := s.authorized(ctx, actor, id, policy.TargetManage); err != nil {
		return dto.MilestoneResponse{}, err
	}

	milestone, err := s.repo.SetMilestoneCompleted(ctx, id, milestoneID, *payload.Completed, s.now().UTC(), func(target models.Target) error {
		return workflow.ToggleMilestone(target.Status)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.MilestoneResponse{}, ErrMilestoneNotFound
		}
		return dto.MilestoneResponse{}, err
	}

	s.record(ctx, TransitionEntry{
		Actor:      actor,
		EntityType: EntityTarget,
		EntityID:   id,
		Action:     "toggle_milestone",
		Metadata:   map[string]interface{}{"milestone_id": milestone.ID, "completed": milestone.Completed},
	})

	return dto.NewMilestoneResponse(milestone), nil
}

func (s *targetService) Delete(ctx context.Context, actor Actor, id uint) error {
	target, err := s.load(ctx, id)
	if err != nil {
		return err
	}

	rel, err := s.relations.forTarget(ctx, actor, target, false)
	if err != nil {
		return err
	}
	// The creating teacher may remove a target even after leaving the class.
	if actor.Role == policy.RoleTeacher && target.CreatedBy == actor.UserID {
		rel.OwnsClass = true
	}
	if err := policy.Authorize(actor.Subject(), policy.TargetManage, target.SchoolID, rel); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTargetNotFound
		}
		return err
	}

	s.record(ctx, TransitionEntry{
		Actor:      actor,
		EntityType: EntityTarget,
		EntityID:   id,
		Action:     "delete",
		From:       string(target.Status),
	})

	return nil
}

// transition writes updates only while the target still holds the status it was read with.
func (s *targetService) transition(ctx context.Context, target models.Target, action string, next workflow.TargetStatus, updates map[string]interface{}) error {
	ctx, span := s.tracer.Start(ctx, "targets.transition", trace.WithAttributes(
		attribute.Int("target.id", int(target.ID)),
		attribute.String("target.action", action),
		attribute.String("target.to", string(next)),
	))
	defer span.End()

	if err := s.repo.Transition(ctx, target.ID, target.Status, updates); err != nil {
		span.RecordError(err)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTargetNotFound
		}
		if errors.Is(err, repository.ErrStaleState) {
			observability.StaleConflictsTotal().WithLabelValues(EntityTarget).Inc()
		}
		return err
	}

	observability.TransitionsTotal().WithLabelValues(EntityTarget, action).Inc()
	return nil
}

func (s *targetService) authorized(ctx context.Context, actor Actor, id uint, op policy.Operation) (models.Target, error) {
	target, err := s.load(ctx, id)
	if err != nil {
		return models.Target{}, err
	}

	rel, err := s.relations.forTarget(ctx, actor, target, op == policy.TargetRead)
	if err != nil {
		return models.Target{}, err
	}

	if err := policy.Authorize(actor.Subject(), op, target.SchoolID, rel); err != nil {
		return models.Target{}, err
	}

	return target, nil
}

func (s *targetService) load(ctx context.Context, id uint) (models.Target, error) {
	target, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Target{}, ErrTargetNotFound
		}
		return models.Target{}, err
	}
	return target, nil
}

func (s *targetService) reload(ctx context.Context, id uint) (dto.TargetResponse, error) {
	target, err := s.load(ctx, id)
	if err != nil {
		return dto.TargetResponse{}, err
	}
	return dto.NewTargetResponse(target), nil
}

func (s *targetService) notifyStudent(ctx context.Context, target models.Target, kind, message string) {
	if target.Scope != workflow.ScopeIndividual || target.StudentID == nil {
		return
	}
	notify(ctx, s.notifier, s.logger, dto.NotificationCreateRequest{
		SchoolID: target.SchoolID,
		UserID:   fmt.Sprintf("%d", *target.StudentID),
		Type:     kind,
		Message:  message,
	})
}

func (s *targetService) record(ctx context.Context, entry TransitionEntry) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Record(ctx, entry); err != nil {
		s.logger.Warn().Err(err).Str("action", entry.Action).Uint("entity_id", entry.EntityID).Msg("transition log write failed")
	}
}
