package handler

import (
	"net/http"

	"github.com/deppfellow/agent-chat-backend/internal/server"
	"github.com/labstack/echo/v4"
)

// ServiceInfo is the body of GET /info.
type ServiceInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Reported by GET /info.
const (
	ServiceName    = "echo-api"
	ServiceVersion = "1.0.0"
)

// SystemHandler serves the liveness probes the chat UI calls before it
// talks to a deployment.
type SystemHandler struct {
	Handler
}

func NewSystemHandler(s *server.Server) *SystemHandler {
	return &SystemHandler{Handler: NewHandler(s)}
}

func (h *SystemHandler) OK(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}

func (h *SystemHandler) Info(c echo.Context) error {
	return c.JSON(http.StatusOK, ServiceInfo{Name: ServiceName, Version: ServiceVersion})
}
