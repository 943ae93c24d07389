package handler

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/hifz-api/internal/middleware"
	"github.com/noah-isme/hifz-api/internal/policy"
	"github.com/noah-isme/hifz-api/internal/repository"
	"github.com/noah-isme/hifz-api/internal/service"
	"github.com/noah-isme/hifz-api/internal/utils"
	"github.com/noah-isme/hifz-api/internal/workflow"
)

func parseQueryInt(c *fiber.Ctx, key string) (int, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	return parsed, nil
}

func parseUintParam(c *fiber.Ctx, name string) (uint, error) {
	value := c.Params(name)
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil || parsed == 0 {
		return 0, errors.New("invalid identifier")
	}
	return uint(parsed), nil
}

func userIDFromContext(c *fiber.Ctx) uint {
	if v := c.Locals("user_id"); v != nil {
		if id, ok := v.(uint); ok {
			return id
		}
		if id, ok := v.(int); ok {
			if id < 0 {
				return 0
			}
			return uint(id)
		}
	}
	return 0
}

func userRoleFromContext(c *fiber.Ctx) string {
	if v := c.Locals("user_role"); v != nil {
		if role, ok := v.(string); ok {
			return role
		}
	}
	return ""
}

func schoolIDFromContext(c *fiber.Ctx) uint {
	if v, ok := c.Locals("school_id").(uint); ok {
		return v
	}
	return 0
}

func actorFromContext(c *fiber.Ctx) service.Actor {
	return service.Actor{
		UserID:   userIDFromContext(c),
		Role:     policy.ParseRole(userRoleFromContext(c)),
		SchoolID: schoolIDFromContext(c),
	}
}

func requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

type fieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// handleError maps service and workflow errors onto the failure envelope.
func handleError(c *fiber.Ctx, logger zerolog.Logger, err error) error {
	var (
		validationErrors  validator.ValidationErrors
		invalidTransition *workflow.InvalidTransitionError
		limitExceeded     *workflow.LimitExceededError
	)

	switch {
	case errors.As(err, &validationErrors):
		details := make([]fieldError, 0, len(validationErrors))
		for _, fe := range validationErrors {
			details = append(details, fieldError{Field: fe.Field(), Rule: fe.Tag()})
		}
		return utils.Fail(c, fiber.StatusBadRequest, utils.CodeValidation, "request validation failed", details)
	case errors.Is(err, workflow.ErrValidation):
		return utils.Fail(c, fiber.StatusBadRequest, utils.CodeValidation, err.Error(), nil)
	case errors.Is(err, policy.ErrForbidden):
		return utils.Fail(c, fiber.StatusForbidden, utils.CodeForbidden, err.Error(), nil)
	case isNotFound(err):
		return utils.Fail(c, fiber.StatusNotFound, utils.CodeNotFound, err.Error(), nil)
	case errors.Is(err, repository.ErrStaleState):
		return utils.Fail(c, fiber.StatusConflict, utils.CodeStaleState, "entity changed since it was read, reload and retry", nil)
	case errors.As(err, &invalidTransition):
		return utils.Fail(c, fiber.StatusUnprocessableEntity, utils.CodeInvalidTransition, err.Error(), fiber.Map{
			"entity": invalidTransition.Entity,
			"from":   invalidTransition.From,
			"action": invalidTransition.Action,
		})
	case errors.Is(err, workflow.ErrAlreadyCompleted):
		return utils.Fail(c, fiber.StatusUnprocessableEntity, utils.CodeAlreadyCompleted, err.Error(), nil)
	case errors.As(err, &limitExceeded):
		return utils.Fail(c, fiber.StatusUnprocessableEntity, utils.CodeLimitExceeded, err.Error(), fiber.Map{
			"resource": limitExceeded.Resource,
			"limit":    limitExceeded.Limit,
		})
	case errors.Is(err, service.ErrUploadTooLarge):
		return utils.Fail(c, fiber.StatusRequestEntityTooLarge, utils.CodeValidation, err.Error(), nil)
	case errors.Is(err, service.ErrUploadTypeNotAllowed):
		return utils.Fail(c, fiber.StatusUnsupportedMediaType, utils.CodeValidation, err.Error(), nil)
	case errors.Is(err, service.ErrUploadsDisabled):
		return utils.Fail(c, fiber.StatusServiceUnavailable, utils.CodeUploadsDisabled, err.Error(), nil)
	default:
		requestLogger(logger, c).Error().Err(err).Str("path", c.Path()).Msg("internal server error")
		return utils.Fail(c, fiber.StatusInternalServerError, utils.CodeInternal, "internal server error", nil)
	}
}

func isNotFound(err error) bool {
	for _, target := range []error{
		service.ErrAssignmentNotFound,
		service.ErrHomeworkNotFound,
		service.ErrTargetNotFound,
		service.ErrMilestoneNotFound,
		service.ErrStudentNotFound,
		service.ErrClassNotFound,
		service.ErrNotificationNotFound,
		gorm.ErrRecordNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func badRequest(c *fiber.Ctx, message string) error {
	return utils.Fail(c, fiber.StatusBadRequest, utils.CodeValidation, message, nil)
}
