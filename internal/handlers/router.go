package handlers

import (
	"statushub/internal/app"
	"statushub/internal/handlers/middleware"
	"statushub/pkg/logger"

	"github.com/gofiber/fiber/v2"
)

type Handler struct {
	middleware middleware.Middleware
	log        logger.Logger
	router     fiber.Router
}

func Router(router fiber.Router, app *app.App) (err error) {
	router.Use(app.Middleware.TraceID())
	WebSocketHandler(router, app.Websocket)

	api := router.Group("/api")
	HealthHandler(api, app.Config)
	NewStatusHandler(app.Controllers.Status, app.Middleware, api).Register()
	NewRecoveryHandler(app.Controllers.Status, app.Middleware, api).Register()

	return nil
}
