package service

import (
	"github.com/clerk/clerk-sdk-go/v2"
	"github.com/deppfellow/agent-chat-backend/internal/server"
)

// AuthService configures Clerk when a secret key is set.
type AuthService struct {
	server  *server.Server
	enabled bool
}

func NewAuthService(s *server.Server) *AuthService {
	enabled := s.Config.Auth.Enabled()
	if enabled {
		clerk.SetKey(s.Config.Auth.SecretKey)
	}
	return &AuthService{server: s, enabled: enabled}
}

// Enabled reports whether API routes require a Clerk session.
func (a *AuthService) Enabled() bool {
	return a.enabled
}
