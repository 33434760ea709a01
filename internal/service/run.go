package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/deppfellow/agent-chat-backend/internal/model"
	"github.com/deppfellow/agent-chat-backend/internal/repository"
	"github.com/rs/zerolog"
)

// cleanupTimeout bounds the status writes made after a run fails or its
// client goes away.
const cleanupTimeout = 5 * time.Second

// EventSink receives the events of a streaming run.
type EventSink interface {
	Comment(text string) error
	Send(event string, data any) error
}

// discardSink drops every event. Non-streaming runs execute against it.
type discardSink struct{}

func (discardSink) Comment(string) error   { return nil }
func (discardSink) Send(string, any) error { return nil }

// sinkError marks a failed write to the client.
type sinkError struct{ err error }

func (e *sinkError) Error() string { return "write event: " + e.err.Error() }
func (e *sinkError) Unwrap() error { return e.err }

// Patch is one JSON-patch style operation of a "data" event.
type Patch struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value"`
}

// RunInput is the caller-supplied part of a run request.
type RunInput struct {
	AssistantID string
	GraphID     string
	Input       any
	Messages    any
	Metadata    model.Object
}

// PreparedRun is a validated, stored run waiting for its thread.
type PreparedRun struct {
	Run   model.Run
	Text  string
	agent Agent
}

// RunService executes assistants on threads. Runs on the same thread are
// queued and execute one at a time.
type RunService struct {
	store      repository.Store
	assistants *AssistantService
	agents     *AgentRegistry
	locks      *threadLocks
	tokenDelay time.Duration
}

func NewRunService(store repository.Store, assistants *AssistantService, agents *AgentRegistry, tokenDelay time.Duration) *RunService {
	return &RunService{
		store:      store,
		assistants: assistants,
		agents:     agents,
		locks:      newThreadLocks(),
		tokenDelay: tokenDelay,
	}
}

// Prepare validates a run request and stores the run as pending. It fails
// with 404 for an unknown thread and 400 for an unknown assistant.
func (s *RunService) Prepare(ctx context.Context, threadID string, in RunInput) (*PreparedRun, error) {
	if _, err := s.store.GetThread(ctx, threadID); err != nil {
		return nil, notFound(err, MsgThreadNotFound)
	}

	assistant, err := s.assistants.Resolve(in.AssistantID, in.GraphID)
	if err != nil {
		return nil, err
	}

	agent, err := s.agents.Get(assistant.GraphID)
	if err != nil {
		return nil, err
	}

	run := model.NewRun(threadID, assistant.AssistantID, model.RunPending, in.Metadata)
	if err := s.store.SaveRun(ctx, run); err != nil {
		return nil, notFound(err, MsgThreadNotFound)
	}

	return &PreparedRun{
		Run:   run,
		Text:  strings.TrimSpace(ExtractUserText(in.Input, in.Messages)),
		agent: agent,
	}, nil
}

// Create runs the assistant to completion and returns the finished run.
// The run's kwargs carry the reply under "result".
func (s *RunService) Create(ctx context.Context, threadID string, in RunInput) (model.Run, error) {
	prepared, err := s.Prepare(ctx, threadID, in)
	if err != nil {
		return model.Run{}, err
	}

	ex := s.newExecution(prepared, discardSink{}, 0)
	ex.recordResult = true

	if err := s.execute(ctx, ex); err != nil {
		return model.Run{}, notFound(err, MsgThreadNotFound)
	}
	return ex.run, nil
}

// Stream executes a prepared run, reporting progress to sink. It always
// finishes the run: a client that goes away interrupts it, any other
// failure is reported to the client as an "error" event. The returned
// error is for logging only.
func (s *RunService) Stream(ctx context.Context, prepared *PreparedRun, sink EventSink) error {
	// Keep-alive first so the client sees the response before any queueing.
	if err := sink.Comment(""); err != nil {
		s.abandon(ctx, prepared.Run, model.RunInterrupted, "")
		return &sinkError{err: err}
	}

	return s.execute(ctx, s.newExecution(prepared, sink, s.tokenDelay))
}

// Get returns a run of a thread.
func (s *RunService) Get(ctx context.Context, threadID, runID string) (model.Run, error) {
	run, err := s.store.GetRun(ctx, threadID, runID)
	if err != nil {
		return model.Run{}, notFound(err, MsgRunNotFound)
	}
	return run, nil
}

// List pages the runs of a thread, newest first.
func (s *RunService) List(ctx context.Context, threadID string, offset, limit int) (Page[model.Run], error) {
	runs, total, err := s.store.ListRuns(ctx, threadID, offset, limit)
	if err != nil {
		return Page[model.Run]{}, notFound(err, MsgThreadNotFound)
	}
	return Page[model.Run]{Items: runs, Offset: offset, Limit: limit, Total: total}, nil
}

// execution is the state of one run while it holds its thread.
type execution struct {
	run          model.Run
	text         string
	agent        Agent
	sink         EventSink
	delay        time.Duration
	recordResult bool

	// completed is set once the outcome is persisted. Failures after that
	// only affect the client.
	completed bool
}

func (s *RunService) newExecution(prepared *PreparedRun, sink EventSink, delay time.Duration) *execution {
	return &execution{
		run:   prepared.Run,
		text:  prepared.Text,
		agent: prepared.agent,
		sink:  sink,
		delay: delay,
	}
}

func (e *execution) send(event string, data any) error {
	if err := e.sink.Send(event, data); err != nil {
		return &sinkError{err: err}
	}
	return nil
}

// execute waits for the thread, runs the agent and settles the outcome.
func (s *RunService) execute(ctx context.Context, ex *execution) error {
	log := zerolog.Ctx(ctx).With().
		Str("thread_id", ex.run.ThreadID).
		Str("run_id", ex.run.RunID).
		Logger()

	unlock, err := s.locks.Lock(ctx, ex.run.ThreadID)
	if err != nil {
		s.abandon(ctx, ex.run, model.RunInterrupted, "")
		return fmt.Errorf("waiting for thread: %w", err)
	}
	defer unlock()

	started := time.Now()
	log.Info().Msg("run started")

	err = s.runAgent(ctx, ex)
	switch {
	case err == nil:
		log.Info().Dur("duration", time.Since(started)).Msg("run completed")
		return nil

	case ex.completed:
		log.Warn().Err(err).Msg("run completed but the client missed the final events")
		return err

	case ctx.Err() != nil || errors.As(err, new(*sinkError)):
		log.Info().Err(err).Dur("duration", time.Since(started)).Msg("run interrupted by client")
		s.abandon(ctx, ex.run, model.RunInterrupted, model.ThreadIdle)
		return err

	default:
		log.Error().Err(err).Msg("run failed")
		s.abandon(ctx, ex.run, model.RunError, model.ThreadError)

		// Best effort; the client may be gone too.
		if ex.send("error", map[string]string{"run_id": ex.run.RunID, "message": err.Error()}) == nil {
			_ = ex.send("stream_end", map[string]string{"run_id": ex.run.RunID})
		}
		return err
	}
}

// runAgent writes the step checkpoints, streams the agent's reply into the
// thread and finalises run, checkpoint and thread.
func (s *RunService) runAgent(ctx context.Context, ex *execution) error {
	threadID := ex.run.ThreadID

	thread, err := s.store.GetThread(ctx, threadID)
	if err != nil {
		return err
	}
	latest, err := s.store.LatestCheckpoint(ctx, threadID)
	if err != nil {
		return err
	}

	now := model.Now()
	ex.run.Status = model.RunRunning
	ex.run.UpdatedAt = now
	if err := s.store.SaveRun(ctx, ex.run); err != nil {
		return err
	}
	thread.Status = model.ThreadBusy
	thread.UpdatedAt = now
	if err := s.store.UpdateThread(ctx, thread); err != nil {
		return err
	}

	if err := ex.send("metadata", map[string]string{"run_id": ex.run.RunID, "thread_id": threadID}); err != nil {
		return err
	}
	if err := ex.send("data", []Patch{{Op: "add", Path: "/runs/-", Value: ex.run}}); err != nil {
		return err
	}

	// Step 0: the user's message.
	messages := append([]model.Message{}, latest.Values.Messages...)
	if ex.text != "" {
		messages = append(messages, model.NewMessage(model.RoleUser, ex.text))
	}
	step0 := model.NewCheckpoint(model.CheckpointSpec{
		CheckpointID:       ex.run.RunID + ":step_0",
		ParentCheckpointID: latest.Checkpoint.CheckpointID,
		ThreadID:           threadID,
		AssistantID:        ex.run.AssistantID,
		RunID:              ex.run.RunID,
		Step:               0,
		Messages:           messages,
	})
	if err := s.addCheckpoint(ctx, ex, step0); err != nil {
		return err
	}

	// Step 1: an empty assistant message the reply streams into.
	messages = append(append([]model.Message{}, step0.Values.Messages...), model.NewMessage(model.RoleAssistant, ""))
	current := model.NewCheckpoint(model.CheckpointSpec{
		CheckpointID:       ex.run.RunID + ":step_1",
		ParentCheckpointID: step0.Checkpoint.CheckpointID,
		ThreadID:           threadID,
		AssistantID:        ex.run.AssistantID,
		RunID:              ex.run.RunID,
		Step:               1,
		Messages:           messages,
	})
	if err := s.addCheckpoint(ctx, ex, current); err != nil {
		return err
	}

	idx := len(current.Values.Messages) - 1
	contentPath := "/messages/" + strconv.Itoa(idx) + "/content/-"
	var reply strings.Builder

	usage, err := ex.agent.Reply(ctx, ex.text, func(chunk string) error {
		reply.WriteString(chunk)
		if err := ex.send("data", []Patch{{Op: "add", Path: contentPath, Value: chunk}}); err != nil {
			return err
		}
		current.Values.Messages[idx].Content = reply.String()
		if err := s.store.ReplaceLatestCheckpoint(ctx, threadID, current); err != nil {
			return err
		}
		return sleep(ctx, ex.delay)
	})
	if err != nil {
		return err
	}

	// Finalise.
	now = model.Now()
	current.UpdatedAt = &now
	current.Values.Messages[idx].ResponseMetadata = model.Object{"usage": usage}
	if err := s.store.ReplaceLatestCheckpoint(ctx, threadID, current); err != nil {
		return err
	}

	ex.run.Status = model.RunSuccess
	ex.run.UpdatedAt = now
	if ex.recordResult {
		ex.run.Kwargs["result"] = model.Object{
			"output":   reply.String(),
			"messages": []model.Message{current.Values.Messages[idx]},
		}
	}
	if err := s.store.SaveRun(ctx, ex.run); err != nil {
		return err
	}

	thread.Values = current.Values
	thread.Status = model.ThreadIdle
	thread.UpdatedAt = now
	if err := s.store.UpdateThread(ctx, thread); err != nil {
		return err
	}
	ex.completed = true

	if err := ex.send("data", []Patch{{Op: "replace", Path: "/runs/0", Value: ex.run}}); err != nil {
		return err
	}
	if err := ex.send("data", []Patch{{Op: "replace", Path: "/checkpoints/0", Value: current}}); err != nil {
		return err
	}
	return ex.send("stream_end", map[string]any{"run_id": ex.run.RunID, "final_checkpoint": current})
}

func (s *RunService) addCheckpoint(ctx context.Context, ex *execution, cp model.Checkpoint) error {
	if err := s.store.AddCheckpoint(ctx, ex.run.ThreadID, cp); err != nil {
		return err
	}
	return ex.send("data", []Patch{{Op: "add", Path: "/checkpoints/-", Value: cp}})
}

// abandon records the final status of a run that did not complete, and
// the thread status to leave behind. An empty threadStatus leaves the
// thread untouched. Errors are logged; the thread may have been deleted.
func (s *RunService) abandon(ctx context.Context, run model.Run, runStatus, threadStatus string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()
	log := zerolog.Ctx(ctx)

	now := model.Now()
	run.Status = runStatus
	run.UpdatedAt = now
	if err := s.store.SaveRun(ctx, run); err != nil {
		log.Warn().Err(err).Str("run_id", run.RunID).Msg("failed to record run status")
	}

	if threadStatus == "" {
		return
	}
	thread, err := s.store.GetThread(ctx, run.ThreadID)
	if err != nil {
		log.Warn().Err(err).Str("thread_id", run.ThreadID).Msg("failed to load thread after run")
		return
	}
	thread.Status = threadStatus
	thread.UpdatedAt = now
	if err := s.store.UpdateThread(ctx, thread); err != nil {
		log.Warn().Err(err).Str("thread_id", run.ThreadID).Msg("failed to record thread status")
	}
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
