package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/hifz-api/internal/dto"
	"github.com/noah-isme/hifz-api/internal/service"
	"github.com/noah-isme/hifz-api/internal/utils"
)

// HomeworkHandler exposes the homework highlight endpoints.
type HomeworkHandler struct {
	service service.HomeworkService
	logger  zerolog.Logger
}

// NewHomeworkHandler constructs the handler.
func NewHomeworkHandler(service service.HomeworkService, logger zerolog.Logger) *HomeworkHandler {
	return &HomeworkHandler{
		service: service,
		logger:  logger.With().Str("component", "homework_handler").Logger(),
	}
}

// Register binds the homework routes.
func (h *HomeworkHandler) Register(router fiber.Router, transitionGuard fiber.Handler) {
	router.Get("", h.list)
	router.Post("", h.create)
	router.Delete("/:id", h.delete)
	router.Patch("/:id/complete", chain(h.complete, transitionGuard)...)
}

func (h *HomeworkHandler) list(c *fiber.Ctx) error {
	var query dto.HomeworkListQuery
	if err := c.QueryParser(&query); err != nil {
		return badRequest(c, "invalid query parameters")
	}

	items, err := h.service.List(requestContext(c), actorFromContext(c), query)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendEntity(c, fiber.StatusOK, "homework", items, "homework retrieved")
}

func (h *HomeworkHandler) create(c *fiber.Ctx) error {
	var payload dto.HomeworkCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, "invalid request body")
	}

	homework, err := h.service.Create(requestContext(c), actorFromContext(c), payload)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendEntity(c, fiber.StatusCreated, "homework", homework, "homework created")
}

func (h *HomeworkHandler) complete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	homework, err := h.service.Complete(requestContext(c), actorFromContext(c), id)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendEntity(c, fiber.StatusOK, "homework", homework, "homework completed")
}

func (h *HomeworkHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.service.Delete(requestContext(c), actorFromContext(c), id); err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendEntity(c, fiber.StatusOK, "homework", fiber.Map{"id": id}, "homework deleted")
}
