package handlers

import (
	statusController "statushub/internal/controllers/status"
	"statushub/internal/handlers/middleware"
	"statushub/pkg/logger"

	"github.com/gofiber/fiber/v2"
)

type StatusHandler struct {
	Handler
	statusController statusController.StatusControllerInterface
}

func NewStatusHandler(
	controller statusController.StatusControllerInterface,
	middleware middleware.Middleware,
	router fiber.Router,
) *StatusHandler {
	log := logger.New("handlers").File("status_handler")
	return &StatusHandler{
		statusController: controller,
		Handler: Handler{
			log:        log,
			router:     router,
			middleware: middleware,
		},
	}
}

func (h *StatusHandler) Register() {
	guard := h.middleware.RequireControlToken()

	status := h.router.Group("/status")
	status.Get("", h.getStatus)
	status.Get("/progress", h.getProgress)
	status.Get("/errors", h.getErrors)

	h.router.Post("/messages/clear", guard, h.clearMessages)
	h.router.Post("/alerts/dismiss", guard, h.dismissAlert)
	h.router.Post("/services/:name/toggle", guard, h.toggleService)
	h.router.Post("/events", guard, h.publishEvent)
}

func (h *StatusHandler) getStatus(c *fiber.Ctx) error {
	snapshot, err := h.statusController.GetStatus(c.UserContext())
	if err != nil {
		return respondError(c, err, "Failed to get status")
	}
	return c.JSON(snapshot)
}

func (h *StatusHandler) getProgress(c *fiber.Ctx) error {
	progress, err := h.statusController.GetProgress(c.UserContext())
	if err != nil {
		return respondError(c, err, "Failed to get progress")
	}
	return c.JSON(progress)
}

func (h *StatusHandler) getErrors(c *fiber.Ctx) error {
	errs, err := h.statusController.GetErrors(c.UserContext())
	if err != nil {
		return respondError(c, err, "Failed to get errors")
	}
	return c.JSON(errs)
}

func (h *StatusHandler) clearMessages(c *fiber.Ctx) error {
	if err := h.statusController.ClearMessages(c.UserContext()); err != nil {
		return respondError(c, err, "Failed to clear messages")
	}
	return c.Status(fiber.StatusNoContent).Send(nil)
}

func (h *StatusHandler) dismissAlert(c *fiber.Ctx) error {
	if err := h.statusController.DismissAlert(c.UserContext()); err != nil {
		return respondError(c, err, "Failed to dismiss alert")
	}
	return c.Status(fiber.StatusNoContent).Send(nil)
}

func (h *StatusHandler) toggleService(c *fiber.Ctx) error {
	resp, err := h.statusController.ToggleService(c.UserContext(), c.Params("name"))
	if err != nil {
		return respondError(c, err, "Failed to toggle service")
	}
	return c.JSON(resp)
}

func (h *StatusHandler) publishEvent(c *fiber.Ctx) error {
	resp, err := h.statusController.PublishEvent(c.UserContext(), c.Body())
	if err != nil {
		return respondError(c, err, "Failed to publish event")
	}

	h.log.Function("publishEvent").Debug("Event accepted",
		"kind", resp.Kind,
		"traceID", middleware.GetTraceID(c),
		"subject", middleware.GetControlSubject(c),
	)
	return c.Status(fiber.StatusAccepted).JSON(resp)
}
