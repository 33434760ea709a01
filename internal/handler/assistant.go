package handler

import (
	"github.com/deppfellow/agent-chat-backend/internal/model"
	"github.com/deppfellow/agent-chat-backend/internal/server"
	"github.com/deppfellow/agent-chat-backend/internal/service"
	"github.com/deppfellow/agent-chat-backend/internal/validation"
	"github.com/labstack/echo/v4"
)

type AssistantHandler struct {
	Handler
	assistants *service.AssistantService
}

func NewAssistantHandler(s *server.Server, assistants *service.AssistantService) *AssistantHandler {
	return &AssistantHandler{
		Handler:    NewHandler(s),
		assistants: assistants,
	}
}

// SearchAssistantsRequest is the body of POST /assistants/search. Filters
// the chat UI may send (graph_id, metadata) are accepted and ignored: there
// is a single assistant.
type SearchAssistantsRequest struct {
	PageRequest
	GraphID  string       `json:"graph_id"`
	Metadata model.Object `json:"metadata"`
}

func (r *SearchAssistantsRequest) Validate() error {
	return validation.Struct(r)
}

type AssistantIDRequest struct {
	AssistantID string `param:"assistant_id" json:"-" validate:"required"`
}

func (r *AssistantIDRequest) Validate() error {
	return validation.Struct(r)
}

func (h *AssistantHandler) Search(c echo.Context, req *SearchAssistantsRequest) ([]model.Assistant, error) {
	page := h.assistants.Search(req.Offset, req.limit())
	writePageHeaders(c, page)
	return page.Items, nil
}

func (h *AssistantHandler) Get(c echo.Context, req *AssistantIDRequest) (model.Assistant, error) {
	return h.assistants.Get(req.AssistantID)
}

func (h *AssistantHandler) Schemas(c echo.Context, req *AssistantIDRequest) (*service.Schemas, error) {
	return h.assistants.Schemas(req.AssistantID)
}
