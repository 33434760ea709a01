package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// FallbackReply is what the echo agent says when there is nothing to echo.
const FallbackReply = "I didn't catch that!"

// EchoGraphID is the graph id of the built-in echo agent.
const EchoGraphID = "echo"

// echoPromptTokens is the fixed prompt token count reported by the echo
// agent.
const echoPromptTokens = 5

// Usage is the token accounting attached to an assistant message.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Agent produces the assistant's reply to a user text. It calls emit once
// per chunk, in order; a non-nil error from emit aborts the reply.
type Agent interface {
	Reply(ctx context.Context, text string, emit func(chunk string) error) (Usage, error)
}

// AgentFunc adapts a function to Agent.
type AgentFunc func(ctx context.Context, text string, emit func(chunk string) error) (Usage, error)

func (f AgentFunc) Reply(ctx context.Context, text string, emit func(chunk string) error) (Usage, error) {
	return f(ctx, text, emit)
}

// EchoAgent replies with the user's text, one word per chunk.
type EchoAgent struct{}

func (EchoAgent) Reply(ctx context.Context, text string, emit func(chunk string) error) (Usage, error) {
	chunks := EchoChunks(text)
	for _, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return Usage{}, err
		}
		if err := emit(chunk); err != nil {
			return Usage{}, err
		}
	}

	return Usage{
		PromptTokens:     echoPromptTokens,
		CompletionTokens: len(chunks),
		TotalTokens:      echoPromptTokens + len(chunks),
	}, nil
}

// EchoChunks splits text on whitespace. Every word but the last keeps one
// trailing space, so the chunks concatenate to the normalised text. Blank
// text yields the single chunk FallbackReply.
func EchoChunks(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{FallbackReply}
	}

	chunks := make([]string, len(words))
	for i, word := range words {
		if i < len(words)-1 {
			word += " "
		}
		chunks[i] = word
	}
	return chunks
}

// AgentRegistry maps graph ids to agents.
type AgentRegistry struct {
	agents map[string]Agent
}

// NewAgentRegistry returns a registry holding the echo agent.
func NewAgentRegistry() *AgentRegistry {
	r := &AgentRegistry{agents: make(map[string]Agent)}
	r.Register(EchoGraphID, EchoAgent{})
	return r
}

// Register adds or replaces the agent for graphID.
func (r *AgentRegistry) Register(graphID string, agent Agent) {
	r.agents[graphID] = agent
}

// Get returns the agent for graphID.
func (r *AgentRegistry) Get(graphID string) (Agent, error) {
	agent, ok := r.agents[graphID]
	if !ok {
		return nil, fmt.Errorf("no agent registered for graph %q (known: %s)", graphID, strings.Join(r.GraphIDs(), ", "))
	}
	return agent, nil
}

// GraphIDs lists the registered graph ids, sorted.
func (r *AgentRegistry) GraphIDs() []string {
	ids := make([]string, 0, len(r.agents))
	for id := range r.agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
