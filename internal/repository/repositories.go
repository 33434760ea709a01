package repository

import (
	"fmt"

	"github.com/deppfellow/agent-chat-backend/internal/config"
	"github.com/deppfellow/agent-chat-backend/internal/server"
)

// Repositories is a container for all repository instances.
type Repositories struct {
	Store Store
}

// NewRepositories builds the store selected by storage.driver. The postgres
// driver requires the server to hold an open database pool.
func NewRepositories(s *server.Server) (*Repositories, error) {
	switch s.Config.Storage.Driver {
	case config.StoragePostgres:
		if s.DB == nil {
			return nil, fmt.Errorf("storage driver %q selected but no database connection", config.StoragePostgres)
		}
		return &Repositories{Store: NewPostgresStore(s.DB.Pool)}, nil
	case config.StorageMemory, "":
		return &Repositories{Store: NewMemoryStore()}, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", s.Config.Storage.Driver)
	}
}
