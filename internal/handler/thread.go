package handler

import (
	"github.com/deppfellow/agent-chat-backend/internal/model"
	"github.com/deppfellow/agent-chat-backend/internal/server"
	"github.com/deppfellow/agent-chat-backend/internal/service"
	"github.com/deppfellow/agent-chat-backend/internal/validation"
	"github.com/labstack/echo/v4"
)

type ThreadHandler struct {
	Handler
	threads *service.ThreadService
}

func NewThreadHandler(s *server.Server, threads *service.ThreadService) *ThreadHandler {
	return &ThreadHandler{
		Handler: NewHandler(s),
		threads: threads,
	}
}

// CreateThreadRequest is the body of POST /threads. Every field is
// optional.
type CreateThreadRequest struct {
	Metadata model.Object `json:"metadata"`
	Config   model.Object `json:"config"`
	Context  model.Object `json:"context"`
}

func (r *CreateThreadRequest) Validate() error {
	return validation.Struct(r)
}

type ThreadIDRequest struct {
	ThreadID string `param:"thread_id" json:"-" validate:"required"`
}

func (r *ThreadIDRequest) Validate() error {
	return validation.Struct(r)
}

// UpdateThreadRequest is the body of PATCH /threads/{thread_id}.
type UpdateThreadRequest struct {
	ThreadID string       `param:"thread_id" json:"-" validate:"required"`
	Metadata model.Object `json:"metadata"`
}

func (r *UpdateThreadRequest) Validate() error {
	return validation.Struct(r)
}

type SearchThreadsRequest struct {
	PageRequest
	Metadata model.Object `json:"metadata"`
	Status   string       `json:"status"`
}

func (r *SearchThreadsRequest) Validate() error {
	return validation.Struct(r)
}

type HistoryRequest struct {
	ThreadID string `param:"thread_id" json:"-" validate:"required"`
	PageRequest
}

func (r *HistoryRequest) Validate() error {
	return validation.Struct(r)
}

func (h *ThreadHandler) Create(c echo.Context, req *CreateThreadRequest) (model.Thread, error) {
	return h.threads.Create(c.Request().Context(), service.CreateThreadInput{
		Metadata: req.Metadata,
		Config:   req.Config,
		Context:  req.Context,
	})
}

func (h *ThreadHandler) Get(c echo.Context, req *ThreadIDRequest) (model.Thread, error) {
	return h.threads.Get(c.Request().Context(), req.ThreadID)
}

func (h *ThreadHandler) Update(c echo.Context, req *UpdateThreadRequest) (model.Thread, error) {
	return h.threads.UpdateMetadata(c.Request().Context(), req.ThreadID, req.Metadata)
}

func (h *ThreadHandler) Delete(c echo.Context, req *ThreadIDRequest) error {
	return h.threads.Delete(c.Request().Context(), req.ThreadID)
}

// Search answers POST /threads/search, most recently updated first.
func (h *ThreadHandler) Search(c echo.Context, req *SearchThreadsRequest) ([]model.Thread, error) {
	page, err := h.threads.Search(c.Request().Context(), req.Offset, req.limit())
	if err != nil {
		return nil, err
	}
	writePageHeaders(c, page)
	return page.Items, nil
}

func (h *ThreadHandler) State(c echo.Context, req *ThreadIDRequest) (model.Checkpoint, error) {
	return h.threads.State(c.Request().Context(), req.ThreadID)
}

// History answers POST /threads/{thread_id}/history and its /search alias
// with checkpoints, newest first.
func (h *ThreadHandler) History(c echo.Context, req *HistoryRequest) ([]model.Checkpoint, error) {
	page, err := h.threads.History(c.Request().Context(), req.ThreadID, req.Offset, req.limit())
	if err != nil {
		return nil, err
	}
	writePageHeaders(c, page)
	return page.Items, nil
}
