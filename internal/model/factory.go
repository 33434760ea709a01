package model

import (
	"time"

	"github.com/google/uuid"
)

// Now returns the current UTC time. Every timestamp the API emits goes
// through it.
func Now() time.Time {
	return time.Now().UTC()
}

// NewMessage builds a chat message with a fresh id.
func NewMessage(role, content string) Message {
	msgType := TypeAI
	if role == RoleUser {
		msgType = TypeHuman
	}

	return Message{
		ID:               uuid.NewString(),
		CreatedAt:        Now(),
		Role:             role,
		Content:          content,
		Type:             msgType,
		AdditionalKwargs: Object{},
		ResponseMetadata: Object{},
		ToolCalls:        []any{},
		InvalidToolCalls: []any{},
	}
}

// CheckpointSpec describes a checkpoint to build with NewCheckpoint.
type CheckpointSpec struct {
	CheckpointID       string
	ParentCheckpointID string // empty for the first checkpoint of a thread
	ThreadID           string
	AssistantID        string
	RunID              string
	Step               int
	Messages           []Message
}

// CheckpointGraphID is the graph id recorded in checkpoint metadata.
const CheckpointGraphID = "agent"

// NewCheckpoint builds a checkpoint from spec.
func NewCheckpoint(spec CheckpointSpec) Checkpoint {
	messages := spec.Messages
	if messages == nil {
		messages = []Message{}
	}

	cp := Checkpoint{
		Values: Values{Messages: messages},
		Next:   []string{},
		Tasks:  []any{},
		Metadata: CheckpointMetadata{
			GraphID:     CheckpointGraphID,
			AssistantID: spec.AssistantID,
			RunID:       spec.RunID,
			ThreadID:    spec.ThreadID,
			Step:        spec.Step,
		},
		CreatedAt: Now(),
		Checkpoint: CheckpointRef{
			ThreadID:     spec.ThreadID,
			CheckpointID: spec.CheckpointID,
		},
	}

	if spec.ParentCheckpointID != "" {
		cp.ParentCheckpoint = &CheckpointRef{
			ThreadID:     spec.ThreadID,
			CheckpointID: spec.ParentCheckpointID,
		}
	}

	return cp
}

// NewThread builds an idle thread with no messages.
func NewThread(metadata, config, context Object) Thread {
	now := Now()
	return Thread{
		ThreadID:   uuid.NewString(),
		CreatedAt:  now,
		UpdatedAt:  now,
		Metadata:   orEmpty(metadata),
		Config:     orEmpty(config),
		Context:    orEmpty(context),
		Status:     ThreadIdle,
		Values:     Values{Messages: []Message{}},
		Interrupts: Object{},
		Tasks:      []any{},
	}
}

// InitialCheckpoint is the step -1 checkpoint every thread starts with.
func InitialCheckpoint(threadID, assistantID string) Checkpoint {
	return NewCheckpoint(CheckpointSpec{
		CheckpointID: uuid.NewString(),
		ThreadID:     threadID,
		AssistantID:  assistantID,
		RunID:        InitialRunID,
		Step:         -1,
	})
}

// NewRun builds a run in the given status.
func NewRun(threadID, assistantID, status string, metadata Object) Run {
	now := Now()
	return Run{
		RunID:             uuid.NewString(),
		ThreadID:          threadID,
		AssistantID:       assistantID,
		CreatedAt:         now,
		UpdatedAt:         now,
		Status:            status,
		Metadata:          orEmpty(metadata),
		Kwargs:            Object{},
		MultitaskStrategy: MultitaskEnqueue,
	}
}

func orEmpty(o Object) Object {
	if o == nil {
		return Object{}
	}
	return o
}
