package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/hifz-api/internal/dto"
	"github.com/noah-isme/hifz-api/internal/service"
	"github.com/noah-isme/hifz-api/internal/utils"
)

// AssignmentHandler wires assignment HTTP routes.
type AssignmentHandler struct {
	service   service.AssignmentService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewAssignmentHandler constructs the handler.
func NewAssignmentHandler(service service.AssignmentService, validator *validator.Validate, logger zerolog.Logger) *AssignmentHandler {
	return &AssignmentHandler{
		service:   service,
		validator: validator,
		logger:    logger.With().Str("component", "assignment_handler").Logger(),
	}
}

// Register attaches assignment endpoints to the router group. The router supplies the rate
// limiter for transitions and the guards placed in front of attachment uploads.
func (h *AssignmentHandler) Register(router fiber.Router, transitionGuard fiber.Handler, uploadGuards ...fiber.Handler) {
	router.Get("", h.list)
	router.Post("", h.create)
	router.Get("/:id", h.get)
	router.Delete("/:id", h.delete)
	router.Get("/:id/history", h.history)
	router.Post("/:id/transition", chain(h.transition, transitionGuard)...)
	router.Post("/:id/attachments", chain(h.upload, uploadGuards...)...)
}

func (h *AssignmentHandler) list(c *fiber.Ctx) error {
	var query dto.AssignmentListQuery
	if err := c.QueryParser(&query); err != nil {
		return badRequest(c, "invalid query parameters")
	}

	result, err := h.service.List(requestContext(c), actorFromContext(c), query)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return c.JSON(fiber.Map{
		"success":     true,
		"message":     "assignments retrieved",
		"assignments": result.Items,
		"total":       result.Total,
	})
}

func (h *AssignmentHandler) create(c *fiber.Ctx) error {
	var payload dto.AssignmentCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, "invalid request body")
	}

	assignment, err := h.service.Create(requestContext(c), actorFromContext(c), payload)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendEntity(c, fiber.StatusCreated, "assignment", assignment, "assignment created")
}

func (h *AssignmentHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	assignment, err := h.service.Get(requestContext(c), actorFromContext(c), id)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendEntity(c, fiber.StatusOK, "assignment", assignment, "assignment retrieved")
}

func (h *AssignmentHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.service.Delete(requestContext(c), actorFromContext(c), id); err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendEntity(c, fiber.StatusOK, "assignment", fiber.Map{"id": id}, "assignment deleted")
}

func (h *AssignmentHandler) transition(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	var payload dto.AssignmentTransitionRequest
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := h.validator.Struct(payload); err != nil {
		return handleError(c, h.logger, err)
	}

	cmd, err := payload.Command()
	if err != nil {
		return handleError(c, h.logger, err)
	}

	assignment, err := h.service.Transition(requestContext(c), actorFromContext(c), id, cmd)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendEntity(c, fiber.StatusOK, "assignment", assignment, "assignment "+assignment.Status)
}

func (h *AssignmentHandler) history(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	entries, err := h.service.History(requestContext(c), actorFromContext(c), id)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendEntity(c, fiber.StatusOK, "history", entries, "history retrieved")
}

func (h *AssignmentHandler) upload(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	file, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "file is required")
	}

	attachment, err := h.service.UploadAttachment(requestContext(c), actorFromContext(c), id, file)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendEntity(c, fiber.StatusCreated, "attachment", attachment, "attachment uploaded")
}

// chain places the non-nil guards in front of a route handler.
func chain(handler fiber.Handler, guards ...fiber.Handler) []fiber.Handler {
	handlers := make([]fiber.Handler, 0, len(guards)+1)
	for _, guard := range guards {
		if guard != nil {
			handlers = append(handlers, guard)
		}
	}
	return append(handlers, handler)
}
