package service

import (
	"github.com/deppfellow/agent-chat-backend/internal/config"
	"github.com/deppfellow/agent-chat-backend/internal/errs"
	"github.com/deppfellow/agent-chat-backend/internal/model"
)

// AssistantService serves the single configured assistant.
type AssistantService struct {
	assistant model.Assistant
}

func NewAssistantService(cfg config.AssistantConfig) *AssistantService {
	now := model.Now()
	return &AssistantService{
		assistant: model.Assistant{
			AssistantID: cfg.ID,
			GraphID:     cfg.GraphID,
			Name:        cfg.Name,
			Description: cfg.Description,
			Config:      model.Object{},
			Context:     model.Object{},
			CreatedAt:   now,
			UpdatedAt:   now,
		},
	}
}

// Assistant returns the configured assistant.
func (s *AssistantService) Assistant() model.Assistant {
	return s.assistant
}

// Search pages over the known assistants.
func (s *AssistantService) Search(offset, limit int) Page[model.Assistant] {
	all := []model.Assistant{s.assistant}

	page := Page[model.Assistant]{Items: []model.Assistant{}, Offset: offset, Limit: limit, Total: len(all)}
	if offset < len(all) {
		end := min(offset+limit, len(all))
		page.Items = all[offset:end]
	}
	return page
}

// matches reports whether id names the assistant, by assistant id or by
// graph id.
func (s *AssistantService) matches(id string) bool {
	return id == s.assistant.AssistantID || id == s.assistant.GraphID
}

// Get looks up an assistant by id or graph id.
func (s *AssistantService) Get(assistantID string) (model.Assistant, error) {
	if !s.matches(assistantID) {
		return model.Assistant{}, errs.NewNotFoundError(MsgAssistantNotFound, true, nil)
	}
	return s.assistant, nil
}

// Resolve picks the assistant for a run. An empty assistant id, an id or
// graph id naming the assistant, or a matching graph id all select it.
func (s *AssistantService) Resolve(assistantID, graphID string) (model.Assistant, error) {
	if assistantID == "" || s.matches(assistantID) || graphID == s.assistant.GraphID {
		return s.assistant, nil
	}
	return model.Assistant{}, errs.NewBadRequestError(MsgUnknownAssistant, true, nil, nil, nil)
}

// Schemas describes the JSON accepted and produced by an assistant.
type Schemas struct {
	InputSchema  model.Object `json:"input_schema"`
	OutputSchema model.Object `json:"output_schema"`
}

// Schemas returns the input and output schemas of an assistant.
func (s *AssistantService) Schemas(assistantID string) (*Schemas, error) {
	if _, err := s.Get(assistantID); err != nil {
		return nil, err
	}

	return &Schemas{
		InputSchema:  ioSchema("input"),
		OutputSchema: ioSchema("output"),
	}, nil
}

// ioSchema is an object with a string field named textField and a list of
// role/content messages.
func ioSchema(textField string) model.Object {
	return model.Object{
		"type": "object",
		"properties": model.Object{
			textField: model.Object{"type": "string"},
			"messages": model.Object{
				"type": "array",
				"items": model.Object{
					"type": "object",
					"properties": model.Object{
						"role":    model.Object{"type": "string"},
						"content": model.Object{"type": "string"},
					},
					"required": []string{"role", "content"},
				},
			},
		},
		"additionalProperties": true,
	}
}
