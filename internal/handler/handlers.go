package handler

import (
	"github.com/deppfellow/agent-chat-backend/internal/repository"
	"github.com/deppfellow/agent-chat-backend/internal/server"
	"github.com/deppfellow/agent-chat-backend/internal/service"
)

// Handlers groups every HTTP handler so the router is wired from a single
// value.
type Handlers struct {
	System    *SystemHandler
	Health    *HealthHandler
	OpenAPI   *OpenAPIHandler
	Assistant *AssistantHandler
	Thread    *ThreadHandler
	Run       *RunHandler
}

func NewHandlers(s *server.Server, repos *repository.Repositories, services *service.Services) *Handlers {
	return &Handlers{
		System:    NewSystemHandler(s),
		Health:    NewHealthHandler(s, repos.Store),
		OpenAPI:   NewOpenAPIHandler(s),
		Assistant: NewAssistantHandler(s, services.Assistant),
		Thread:    NewThreadHandler(s, services.Thread),
		Run:       NewRunHandler(s, services.Run),
	}
}
