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
	"gorm.io/gorm"

	"github.com/noah-isme/hifz-api/internal/dto"
	"github.com/noah-isme/hifz-api/internal/models"
	"github.com/noah-isme/hifz-api/internal/observability"
	"github.com/noah-isme/hifz-api/internal/policy"
	"github.com/noah-isme/hifz-api/internal/repository"
	"github.com/noah-isme/hifz-api/internal/workflow"
)

// HomeworkService exposes the green/gold homework highlight use cases.
type HomeworkService interface {
	List(ctx context.Context, actor Actor, query dto.HomeworkListQuery) ([]dto.HomeworkResponse, error)
	Create(ctx context.Context, actor Actor, payload dto.HomeworkCreateRequest) (dto.HomeworkResponse, error)
	Complete(ctx context.Context, actor Actor, id uint) (dto.HomeworkResponse, error)
	Delete(ctx context.Context, actor Actor, id uint) error
}

type homeworkService struct {
	repo      repository.HomeworkRepository
	relations relations
	recorder  TransitionRecorder
	notifier  Notifier
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	now       func() time.Time
}

// NewHomeworkService builds the homework service.
func NewHomeworkService(repo repository.HomeworkRepository, directory repository.DirectoryRepository, recorder TransitionRecorder, notifier Notifier, validate *validator.Validate, logger zerolog.Logger) HomeworkService {
	return &homeworkService{
		repo:      repo,
		relations: relations{directory: directory},
		recorder:  recorder,
		notifier:  notifier,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "homework_service").Logger(),
		now:       time.Now,
	}
}

func (s *homeworkService) List(ctx context.Context, actor Actor, query dto.HomeworkListQuery) ([]dto.HomeworkResponse, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, err
	}

	visible, restrict, err := s.relations.visibleStudents(ctx, actor)
	if err != nil {
		return nil, err
	}

	students, ok := narrow(visible, restrict, query.StudentID)
	if !ok || (restrict && len(students) == 0) {
		return []dto.HomeworkResponse{}, nil
	}

	items, err := s.repo.List(ctx, repository.HomeworkFilter{
		SchoolID:   actor.SchoolID,
		StudentIDs: students,
		Restrict:   restrict,
		Color:      query.Color,
	})
	if err != nil {
		return nil, err
	}

	return dto.NewHomeworkResponseSlice(items), nil
}

func (s *homeworkService) Create(ctx context.Context, actor Actor, payload dto.HomeworkCreateRequest) (dto.HomeworkResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.HomeworkResponse{}, err
	}

	student, err := s.relations.directory.GetStudent(ctx, payload.StudentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.HomeworkResponse{}, ErrStudentNotFound
		}
		return dto.HomeworkResponse{}, err
	}

	rel, err := s.relations.forStudentInClass(ctx, actor, student.ClassID, student.ID)
	if err != nil {
		return dto.HomeworkResponse{}, err
	}
	if err := policy.Authorize(actor.Subject(), policy.HomeworkCreate, student.SchoolID, rel); err != nil {
		return dto.HomeworkResponse{}, err
	}

	homework := models.Homework{
		SchoolID:  student.SchoolID,
		StudentID: student.ID,
		TeacherID: actor.UserID,
		Surah:     payload.Surah,
		AyahStart: payload.AyahStart,
		AyahEnd:   payload.AyahEnd,
		Page:      payload.Page,
		Note:      strings.TrimSpace(s.sanitizer.Sanitize(payload.Note)),
		Color:     workflow.HomeworkPending,
	}

	if err := s.repo.Create(ctx, &homework); err != nil {
		return dto.HomeworkResponse{}, err
	}

	s.record(ctx, TransitionEntry{
		Actor:      actor,
		EntityType: EntityHomework,
		EntityID:   homework.ID,
		Action:     "create",
		To:         string(workflow.HomeworkPending),
	})
	notify(ctx, s.notifier, s.logger, dto.NotificationCreateRequest{
		SchoolID: homework.SchoolID,
		UserID:   fmt.Sprintf("%d", homework.StudentID),
		Type:     "homework.assigned",
		Message:  fmt.Sprintf("New homework: surah %d, ayah %d-%d", homework.Surah, homework.AyahStart, homework.AyahEnd),
	})

	return dto.NewHomeworkResponse(homework), nil
}

func (s *homeworkService) Complete(ctx context.Context, actor Actor, id uint) (dto.HomeworkResponse, error) {
	homework, err := s.authorized(ctx, actor, id, policy.HomeworkComplete)
	if err != nil {
		return dto.HomeworkResponse{}, err
	}

	next, err := workflow.CompleteHomework(homework.Color, actor.UserID)
	if err != nil {
		return dto.HomeworkResponse{}, err
	}

	now := s.now().UTC()
	completedBy := actor.UserID
	updates := map[string]interface{}{
		"color":        string(next),
		"completed_at": now,
		"completed_by": completedBy,
		"updated_at":   now,
	}
	if err := s.repo.Transition(ctx, id, homework.Color, updates); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.HomeworkResponse{}, ErrHomeworkNotFound
		}
		if errors.Is(err, repository.ErrStaleState) {
			observability.StaleConflictsTotal().WithLabelValues(EntityHomework).Inc()
		}
		return dto.HomeworkResponse{}, err
	}

	observability.TransitionsTotal().WithLabelValues(EntityHomework, "complete").Inc()
	s.record(ctx, TransitionEntry{
		Actor:      actor,
		EntityType: EntityHomework,
		EntityID:   id,
		Action:     "complete",
		From:       string(homework.Color),
		To:         string(next),
	})
	notify(ctx, s.notifier, s.logger, dto.NotificationCreateRequest{
		SchoolID: homework.SchoolID,
		UserID:   fmt.Sprintf("%d", homework.StudentID),
		Type:     "homework.completed",
		Message:  fmt.Sprintf("Homework for surah %d marked complete", homework.Surah),
	})

	homework.Color = next
	homework.CompletedAt = &now
	homework.CompletedBy = &completedBy
	homework.UpdatedAt = now

	return dto.NewHomeworkResponse(homework), nil
}

func (s *homeworkService) Delete(ctx context.Context, actor Actor, id uint) error {
	homework, err := s.authorized(ctx, actor, id, policy.HomeworkDelete)
	if err != nil {
		return err
	}

	if !workflow.HomeworkDeletable(homework.Color) {
		return &workflow.InvalidTransitionError{Entity: EntityHomework, From: string(homework.Color), Action: "delete"}
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrHomeworkNotFound
		}
		return err
	}

	s.record(ctx, TransitionEntry{
		Actor:      actor,
		EntityType: EntityHomework,
		EntityID:   id,
		Action:     "delete",
		From:       string(homework.Color),
	})

	return nil
}

func (s *homeworkService) authorized(ctx context.Context, actor Actor, id uint, op policy.Operation) (models.Homework, error) {
	homework, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Homework{}, ErrHomeworkNotFound
		}
		return models.Homework{}, err
	}

	rel, err := s.relations.forStudent(ctx, actor, homework.StudentID)
	if err != nil {
		return models.Homework{}, err
	}

	if err := policy.Authorize(actor.Subject(), op, homework.SchoolID, rel); err != nil {
		return models.Homework{}, err
	}

	return homework, nil
}

func (s *homeworkService) record(ctx context.Context, entry TransitionEntry) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Record(ctx, entry); err != nil {
		s.logger.Warn().Err(err).Str("action", entry.Action).Uint("entity_id", entry.EntityID).Msg("transition log write failed")
	}
}
