package handler

import (
	"fmt"

	"github.com/deppfellow/agent-chat-backend/internal/lib/sse"
	"github.com/deppfellow/agent-chat-backend/internal/model"
	"github.com/deppfellow/agent-chat-backend/internal/server"
	"github.com/deppfellow/agent-chat-backend/internal/service"
	"github.com/deppfellow/agent-chat-backend/internal/validation"
	"github.com/labstack/echo/v4"
)

type RunHandler struct {
	Handler
	runs *service.RunService
}

func NewRunHandler(s *server.Server, runs *service.RunService) *RunHandler {
	return &RunHandler{
		Handler: NewHandler(s),
		runs:    runs,
	}
}

// CreateRunRequest is the body of both run endpoints. The user's text is
// read from input, or from the last user message when input has none.
// Options the chat UI sends for a full LangGraph server (stream_mode,
// config, ...) are ignored.
type CreateRunRequest struct {
	ThreadID    string       `param:"thread_id" json:"-" validate:"required"`
	AssistantID string       `json:"assistant_id"`
	GraphID     string       `json:"graph_id"`
	Input       any          `json:"input"`
	Messages    any          `json:"messages"`
	Metadata    model.Object `json:"metadata"`
}

func (r *CreateRunRequest) Validate() error {
	return validation.Struct(r)
}

func (r *CreateRunRequest) input() service.RunInput {
	return service.RunInput{
		AssistantID: r.AssistantID,
		GraphID:     r.GraphID,
		Input:       r.Input,
		Messages:    r.Messages,
		Metadata:    r.Metadata,
	}
}

type ListRunsRequest struct {
	ThreadID string `param:"thread_id" json:"-" validate:"required"`
	Offset   int    `query:"offset" validate:"min=0"`
	Limit    *int   `query:"limit" validate:"omitempty,min=0,max=1000"`
}

func (r *ListRunsRequest) Validate() error {
	return validation.Struct(r)
}

type RunIDRequest struct {
	ThreadID string `param:"thread_id" json:"-" validate:"required"`
	RunID    string `param:"run_id" json:"-" validate:"required"`
}

func (r *RunIDRequest) Validate() error {
	return validation.Struct(r)
}

// HeaderContentLocation points at the run a request created.
const HeaderContentLocation = "Content-Location"

func runLocation(run model.Run) string {
	return fmt.Sprintf("/threads/%s/runs/%s", run.ThreadID, run.RunID)
}

// Create runs the assistant to completion.
func (h *RunHandler) Create(c echo.Context, req *CreateRunRequest) (model.Run, error) {
	run, err := h.runs.Create(c.Request().Context(), req.ThreadID, req.input())
	if err != nil {
		return model.Run{}, err
	}
	c.Response().Header().Set(HeaderContentLocation, runLocation(run))
	return run, nil
}

// Stream validates the run before any byte is written, so unknown threads
// and assistants still get a JSON error. The run itself happens in the
// returned StreamFunc.
func (h *RunHandler) Stream(c echo.Context, req *CreateRunRequest) (StreamFunc, error) {
	ctx := c.Request().Context()

	prepared, err := h.runs.Prepare(ctx, req.ThreadID, req.input())
	if err != nil {
		return nil, err
	}
	c.Response().Header().Set(HeaderContentLocation, runLocation(prepared.Run))

	return func(w *sse.Writer) error {
		return h.runs.Stream(ctx, prepared, w)
	}, nil
}

func (h *RunHandler) List(c echo.Context, req *ListRunsRequest) ([]model.Run, error) {
	page, err := h.runs.List(c.Request().Context(), req.ThreadID, req.Offset, service.PageLimit(req.Limit))
	if err != nil {
		return nil, err
	}
	writePageHeaders(c, page)
	return page.Items, nil
}

func (h *RunHandler) Get(c echo.Context, req *RunIDRequest) (model.Run, error) {
	return h.runs.Get(c.Request().Context(), req.ThreadID, req.RunID)
}
