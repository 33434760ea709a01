// Package model holds the resources the API exchanges with the chat UI:
// assistants, threads, runs, messages and checkpoints.
//
// JSON field names follow the LangGraph API so the Agent Chat UI can talk to
// this backend unchanged.
package model

import (
	"encoding/json"
	"time"
)

// Thread statuses.
const (
	ThreadIdle  = "idle"
	ThreadBusy  = "busy"
	ThreadError = "error"
)

// Run statuses.
const (
	RunPending     = "pending"
	RunRunning     = "running"
	RunSuccess     = "success"
	RunError       = "error"
	RunInterrupted = "interrupted"
)

// Message roles and their LangChain message types.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"

	TypeHuman = "human"
	TypeAI    = "ai"
)

// MultitaskEnqueue queues concurrent runs on a thread one after another.
const MultitaskEnqueue = "enqueue"

// InitialRunID marks the checkpoint written when a thread is created.
const InitialRunID = "<initial>"

// Object is a free-form JSON object.
type Object = map[string]any

type Assistant struct {
	AssistantID string    `json:"assistant_id"`
	GraphID     string    `json:"graph_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Config      Object    `json:"config"`
	Context     Object    `json:"context"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Message struct {
	ID               string    `json:"id"`
	CreatedAt        time.Time `json:"created_at"`
	Role             string    `json:"role"`
	Content          string    `json:"content"`
	Type             string    `json:"type"`
	AdditionalKwargs Object    `json:"additional_kwargs"`
	ResponseMetadata Object    `json:"response_metadata"`
	ToolCalls        []any     `json:"tool_calls"`
	InvalidToolCalls []any     `json:"invalid_tool_calls"`
}

// Values is the graph state. The echo graph only keeps messages.
type Values struct {
	Messages []Message `json:"messages"`
}

type Thread struct {
	ThreadID   string    `json:"thread_id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	Metadata   Object    `json:"metadata"`
	Config     Object    `json:"config"`
	Context    Object    `json:"context"`
	Status     string    `json:"status"`
	Values     Values    `json:"values"`
	Interrupts Object    `json:"interrupts"`
	Tasks      []any     `json:"tasks"`
}

// CheckpointRef points at a checkpoint of a thread.
type CheckpointRef struct {
	ThreadID     string `json:"thread_id"`
	CheckpointID string `json:"checkpoint_id"`
}

type CheckpointMetadata struct {
	GraphID     string `json:"graph_id"`
	AssistantID string `json:"assistant_id"`
	RunID       string `json:"run_id"`
	ThreadID    string `json:"thread_id"`
	Step        int    `json:"step"`
}

// Checkpoint is a snapshot of a thread's state after a step of a run.
type Checkpoint struct {
	Values           Values             `json:"values"`
	Next             []string           `json:"next"`
	Tasks            []any              `json:"tasks"`
	Metadata         CheckpointMetadata `json:"metadata"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        *time.Time         `json:"updated_at,omitempty"`
	Checkpoint       CheckpointRef      `json:"checkpoint"`
	ParentCheckpoint *CheckpointRef     `json:"parent_checkpoint"`
}

type Run struct {
	RunID             string    `json:"run_id"`
	ThreadID          string    `json:"thread_id"`
	AssistantID       string    `json:"assistant_id"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
	Status            string    `json:"status"`
	Metadata          Object    `json:"metadata"`
	Kwargs            Object    `json:"kwargs"`
	MultitaskStrategy string    `json:"multitask_strategy"`
}

// Clone returns a deep copy of v by round-tripping it through JSON. Stores
// use it so callers never share mutable maps or slices with stored state.
func Clone[T any](v T) (T, error) {
	var out T
	data, err := json.Marshal(v)
	if err != nil {
		return out, err
	}
	err = json.Unmarshal(data, &out)
	return out, err
}
