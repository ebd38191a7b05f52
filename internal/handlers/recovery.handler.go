package handlers

import (
	statusController "statushub/internal/controllers/status"
	"statushub/internal/handlers/middleware"
	"statushub/pkg/logger"

	"github.com/gofiber/fiber/v2"
)

type RecoveryHandler struct {
	Handler
	statusController statusController.StatusControllerInterface
}

func NewRecoveryHandler(
	controller statusController.StatusControllerInterface,
	middleware middleware.Middleware,
	router fiber.Router,
) *RecoveryHandler {
	log := logger.New("handlers").File("recovery_handler")
	return &RecoveryHandler{
		statusController: controller,
		Handler: Handler{
			log:        log,
			router:     router,
			middleware: middleware,
		},
	}
}

func (h *RecoveryHandler) Register() {
	guard := h.middleware.RequireControlToken()

	recovery := h.router.Group("/recovery")
	recovery.Get("/sessions", h.getSessions)
	recovery.Post("/trigger", guard, h.trigger)
	recovery.Post("/pending/clear", guard, h.clearPending)
}

func (h *RecoveryHandler) getSessions(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 0)

	sessions, err := h.statusController.RecentSessions(c.UserContext(), limit)
	if err != nil {
		return respondError(c, err, "Failed to get recovery sessions")
	}

	return c.JSON(fiber.Map{
		"sessions": sessions,
	})
}

func (h *RecoveryHandler) trigger(c *fiber.Ctx) error {
	resp, err := h.statusController.TriggerRecovery(c.UserContext())
	if err != nil {
		return respondError(c, err, "Failed to trigger recovery")
	}

	code := fiber.StatusAccepted
	if !resp.Started {
		code = fiber.StatusOK
	}
	return c.Status(code).JSON(resp)
}

func (h *RecoveryHandler) clearPending(c *fiber.Ctx) error {
	cleared, err := h.statusController.ClearPendingRecovery(c.UserContext())
	if err != nil {
		return respondError(c, err, "Failed to clear pending recovery")
	}

	return c.JSON(fiber.Map{
		"cleared": cleared,
	})
}
