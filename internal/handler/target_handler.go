package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/hifz-api/internal/dto"
	"github.com/noah-isme/hifz-api/internal/service"
	"github.com/noah-isme/hifz-api/internal/utils"
)

// TargetHandler exposes memorization target and milestone endpoints.
type TargetHandler struct {
	service service.TargetService
	logger  zerolog.Logger
}

// NewTargetHandler constructs the handler.
func NewTargetHandler(service service.TargetService, logger zerolog.Logger) *TargetHandler {
	return &TargetHandler{
		service: service,
		logger:  logger.With().Str("component", "target_handler").Logger(),
	}
}

// Register binds the target routes.
func (h *TargetHandler) Register(router fiber.Router, transitionGuard fiber.Handler) {
	router.Get("", h.list)
	router.Post("", h.create)
	router.Get("/:id", h.get)
	router.Delete("/:id", h.delete)
	router.Patch("/:id/progress", chain(h.progress, transitionGuard)...)
	router.Post("/:id/complete", chain(h.complete, transitionGuard)...)
	router.Post("/:id/cancel", chain(h.cancel, transitionGuard)...)
	router.Post("/:id/milestones", chain(h.addMilestone, transitionGuard)...)
	router.Patch("/:id/milestones/:milestoneId", chain(h.toggleMilestone, transitionGuard)...)
}

func (h *TargetHandler) list(c *fiber.Ctx) error {
	var query dto.TargetListQuery
	if err := c.QueryParser(&query); err != nil {
		return badRequest(c, "invalid query parameters")
	}

	targets, err := h.service.List(requestContext(c), actorFromContext(c), query)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendEntity(c, fiber.StatusOK, "targets", targets, "targets retrieved")
}

func (h *TargetHandler) create(c *fiber.Ctx) error {
	var payload dto.TargetCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, "invalid request body")
	}

	target, err := h.service.Create(requestContext(c), actorFromContext(c), payload)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendEntity(c, fiber.StatusCreated, "target", target, "target created")
}

func (h *TargetHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	target, err := h.service.Get(requestContext(c), actorFromContext(c), id)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendEntity(c, fiber.StatusOK, "target", target, "target retrieved")
}

func (h *TargetHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.service.Delete(requestContext(c), actorFromContext(c), id); err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendEntity(c, fiber.StatusOK, "target", fiber.Map{"id": id}, "target deleted")
}

func (h *TargetHandler) progress(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	var payload dto.TargetProgressRequest
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, "invalid request body")
	}

	target, err := h.service.UpdateProgress(requestContext(c), actorFromContext(c), id, payload)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendEntity(c, fiber.StatusOK, "target", target, "target progress updated")
}

func (h *TargetHandler) complete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	target, err := h.service.Complete(requestContext(c), actorFromContext(c), id)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendEntity(c, fiber.StatusOK, "target", target, "target completed")
}

func (h *TargetHandler) cancel(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	var payload dto.TargetCancelRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			return badRequest(c, "invalid request body")
		}
	}

	target, err := h.service.Cancel(requestContext(c), actorFromContext(c), id, payload)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendEntity(c, fiber.StatusOK, "target", target, "target cancelled")
}

func (h *TargetHandler) addMilestone(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	var payload dto.MilestoneCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, "invalid request body")
	}

	milestone, err := h.service.AddMilestone(requestContext(c), actorFromContext(c), id, payload)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendEntity(c, fiber.StatusCreated, "milestone", milestone, "milestone added")
}

func (h *TargetHandler) toggleMilestone(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	milestoneID, err := parseUintParam(c, "milestoneId")
	if err != nil {
		return badRequest(c, err.Error())
	}

	var payload dto.MilestoneToggleRequest
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, "invalid request body")
	}

	milestone, err := h.service.ToggleMilestone(requestContext(c), actorFromContext(c), id, milestoneID, payload)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendEntity(c, fiber.StatusOK, "milestone", milestone, "milestone updated")
}
