// Package service contains the business logic.
//
// It sits between the handler and repository layers. It receives validated
// data from the handler, runs the assistant on threads, and calls the
// repository to persist threads, runs and checkpoints.
package service

import (
	"github.com/deppfellow/agent-chat-backend/internal/errs"
	"github.com/deppfellow/agent-chat-backend/internal/repository"
	"github.com/pkg/errors"
)

// Client-facing messages for missing resources.
const (
	MsgAssistantNotFound = "Assistant not found"
	MsgThreadNotFound    = "Thread not found"
	MsgRunNotFound       = "Run not found"
	MsgUnknownAssistant  = "Unknown assistant_id"
)

// notFound turns a repository.ErrNotFound into a 404 with message. Other
// errors get a stack trace for the 500 log line.
func notFound(err error, message string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return errs.NewNotFoundError(message, true, nil)
	}
	return errors.WithStack(err)
}
