package service

import (
	"fmt"

	"github.com/deppfellow/agent-chat-backend/internal/lib/job"
	"github.com/deppfellow/agent-chat-backend/internal/repository"
	"github.com/deppfellow/agent-chat-backend/internal/server"
)

// Services groups the business services handed to the handlers.
type Services struct {
	Auth      *AuthService
	Assistant *AssistantService
	Thread    *ThreadService
	Run       *RunService
	// Job is nil when Redis is not configured.
	Job *job.JobService
}

// NewServices wires the services over the repositories. It fails when no
// agent is registered for the configured assistant's graph.
func NewServices(s *server.Server, repos *repository.Repositories, agents *AgentRegistry) (*Services, error) {
	assistants := NewAssistantService(s.Config.Assistant)

	if _, err := agents.Get(s.Config.Assistant.GraphID); err != nil {
		return nil, fmt.Errorf("assistant %s: %w", s.Config.Assistant.ID, err)
	}

	services := &Services{
		Auth:      NewAuthService(s),
		Assistant: assistants,
		Thread:    NewThreadService(repos.Store, assistants),
		Run:       NewRunService(repos.Store, assistants, agents, s.Config.Stream.TokenDelay),
		Job:       s.Job,
	}

	if services.Job != nil {
		services.Job.InitHandlers(services.Thread)
	}

	return services, nil
}
