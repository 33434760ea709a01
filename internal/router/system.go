package router

import (
	"github.com/deppfellow/agent-chat-backend/internal/handler"
	"github.com/labstack/echo/v4"
)

// registerSystemRoutes maps the probes and the API docs. They stay outside
// the authenticated group.
func registerSystemRoutes(r *echo.Echo, h *handler.Handlers) {
	r.GET("/ok", h.System.OK)
	r.GET("/info", h.System.Info)
	r.GET("/status", h.Health.CheckHealth)

	r.StaticFS("/static", h.OpenAPI.Assets())
	r.GET("/docs", h.OpenAPI.ServeOpenAPIUI)
}
