package service

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/deppfellow/agent-chat-backend/internal/model"
	"github.com/deppfellow/agent-chat-backend/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentEvent struct {
	name string
	data any
}

// recordingSink records events. With failAt > 0, the failAt-th Send fails.
type recordingSink struct {
	mu       sync.Mutex
	comments []string
	events   []sentEvent
	failAt   int
	onSend   func(n int)
}

func (s *recordingSink) Comment(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.comments = append(s.comments, text)
	return nil
}

func (s *recordingSink) Send(event string, data any) error {
	s.mu.Lock()
	n := len(s.events) + 1
	if s.failAt > 0 && n >= s.failAt {
		s.mu.Unlock()
		return errors.New("broken pipe")
	}
	s.events = append(s.events, sentEvent{name: event, data: data})
	hook := s.onSend
	s.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	return nil
}

func (s *recordingSink) names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, len(s.events))
	for i, e := range s.events {
		names[i] = e.name
	}
	return names
}

func patchOf(t *testing.T, e sentEvent) Patch {
	t.Helper()
	patches, ok := e.data.([]Patch)
	require.True(t, ok, "event %q does not carry patches", e.name)
	require.Len(t, patches, 1)
	return patches[0]
}

type runFixture struct {
	store   *repository.MemoryStore
	threads *ThreadService
	runs    *RunService
	agents  *AgentRegistry
	thread  model.Thread
}

func newRunFixture(t *testing.T) *runFixture {
	t.Helper()
	store := repository.NewMemoryStore()
	assistants := newTestAssistants()
	agents := NewAgentRegistry()

	f := &runFixture{
		store:   store,
		threads: NewThreadService(store, assistants),
		runs:    NewRunService(store, assistants, agents, 0),
		agents:  agents,
	}

	thread, err := f.threads.Create(context.Background(), CreateThreadInput{})
	require.NoError(t, err)
	f.thread = thread
	return f
}

func (f *runFixture) stream(t *testing.T, ctx context.Context, text string, sink *recordingSink) (*PreparedRun, error) {
	t.Helper()
	prepared, err := f.runs.Prepare(ctx, f.thread.ThreadID, RunInput{Input: text})
	require.NoError(t, err)
	return prepared, f.runs.Stream(ctx, prepared, sink)
}

func TestRunService_StreamEventSequence(t *testing.T) {
	ctx := context.Background()
	f := newRunFixture(t)
	sink := &recordingSink{}

	prepared, err := f.stream(t, ctx, "  hello big world ", sink)
	require.NoError(t, err)
	runID := prepared.Run.RunID

	assert.Equal(t, []string{""}, sink.comments)
	assert.Equal(t, []string{
		"metadata", "data", "data", "data",
		"data", "data", "data",
		"data", "data", "stream_end",
	}, sink.names())

	ev := sink.events
	assert.Equal(t, map[string]string{"run_id": runID, "thread_id": f.thread.ThreadID}, ev[0].data)

	runAdd := patchOf(t, ev[1])
	assert.Equal(t, "add", runAdd.Op)
	assert.Equal(t, "/runs/-", runAdd.Path)
	assert.Equal(t, model.RunRunning, runAdd.Value.(model.Run).Status)

	step0 := patchOf(t, ev[2]).Value.(model.Checkpoint)
	assert.Equal(t, runID+":step_0", step0.Checkpoint.CheckpointID)
	require.Len(t, step0.Values.Messages, 1)
	assert.Equal(t, "hello big world", step0.Values.Messages[0].Content)
	assert.Equal(t, model.TypeHuman, step0.Values.Messages[0].Type)

	step1 := patchOf(t, ev[3]).Value.(model.Checkpoint)
	assert.Equal(t, runID+":step_1", step1.Checkpoint.CheckpointID)
	assert.Equal(t, step0.Checkpoint.CheckpointID, step1.ParentCheckpoint.CheckpointID)
	assert.Equal(t, 1, step1.Metadata.Step)

	var chunks []string
	for _, e := range ev[4:7] {
		p := patchOf(t, e)
		assert.Equal(t, "add", p.Op)
		assert.Equal(t, "/messages/1/content/-", p.Path)
		chunks = append(chunks, p.Value.(string))
	}
	assert.Equal(t, []string{"hello ", "big ", "world"}, chunks)

	runEnd := patchOf(t, ev[7])
	assert.Equal(t, "replace", runEnd.Op)
	assert.Equal(t, "/runs/0", runEnd.Path)
	assert.Equal(t, model.RunSuccess, runEnd.Value.(model.Run).Status)

	cpEnd := patchOf(t, ev[8])
	assert.Equal(t, "/checkpoints/0", cpEnd.Path)
	final := cpEnd.Value.(model.Checkpoint)
	require.NotNil(t, final.UpdatedAt)
	reply := final.Values.Messages[1]
	assert.Equal(t, "hello big world", reply.Content)
	assert.Equal(t, model.TypeAI, reply.Type)
	assert.Equal(t, Usage{PromptTokens: 5, CompletionTokens: 3, TotalTokens: 8}, reply.ResponseMetadata["usage"])

	end := ev[9].data.(map[string]any)
	assert.Equal(t, runID, end["run_id"])
	assert.Equal(t, final.Checkpoint.CheckpointID, end["final_checkpoint"].(model.Checkpoint).Checkpoint.CheckpointID)

	// Persisted state matches what was streamed.
	thread, err := f.threads.Get(ctx, f.thread.ThreadID)
	require.NoError(t, err)
	assert.Equal(t, model.ThreadIdle, thread.Status)
	require.Len(t, thread.Values.Messages, 2)
	assert.Equal(t, "hello big world", thread.Values.Messages[1].Content)

	history, err := f.threads.History(ctx, f.thread.ThreadID, 0, DefaultPageLimit)
	require.NoError(t, err)
	require.Len(t, history.Items, 3)
	assert.Equal(t, runID+":step_1", history.Items[0].Checkpoint.CheckpointID)
	assert.Equal(t, runID+":step_0", history.Items[1].Checkpoint.CheckpointID)
	assert.Equal(t, -1, history.Items[2].Metadata.Step)

	run, err := f.runs.Get(ctx, f.thread.ThreadID, runID)
	require.NoError(t, err)
	assert.Equal(t, model.RunSuccess, run.Status)
}

func TestRunService_SecondRunBuildsOnFirst(t *testing.T) {
	ctx := context.Background()
	f := newRunFixture(t)

	first, err := f.stream(t, ctx, "one", &recordingSink{})
	require.NoError(t, err)

	sink := &recordingSink{}
	_, err = f.stream(t, ctx, "two words", sink)
	require.NoError(t, err)

	step0 := patchOf(t, sink.events[2]).Value.(model.Checkpoint)
	assert.Equal(t, first.Run.RunID+":step_1", step0.ParentCheckpoint.CheckpointID)
	assert.Len(t, step0.Values.Messages, 3)
	assert.Equal(t, "/messages/3/content/-", patchOf(t, sink.events[4]).Path)

	thread, err := f.threads.Get(ctx, f.thread.ThreadID)
	require.NoError(t, err)
	assert.Len(t, thread.Values.Messages, 4)
}

func TestRunService_EmptyTextFallback(t *testing.T) {
	ctx := context.Background()
	f := newRunFixture(t)
	sink := &recordingSink{}

	_, err := f.stream(t, ctx, "   ", sink)
	require.NoError(t, err)

	step0 := patchOf(t, sink.events[2]).Value.(model.Checkpoint)
	assert.Empty(t, step0.Values.Messages)

	token := patchOf(t, sink.events[4])
	assert.Equal(t, "/messages/0/content/-", token.Path)
	assert.Equal(t, FallbackReply, token.Value)

	final := patchOf(t, sink.events[6]).Value.(model.Checkpoint)
	assert.Equal(t, Usage{PromptTokens: 5, CompletionTokens: 1, TotalTokens: 6}, final.Values.Messages[0].ResponseMetadata["usage"])
}

func TestRunService_ClientGoneInterrupts(t *testing.T) {
	ctx := context.Background()
	f := newRunFixture(t)

	// Fail on the first token.
	prepared, err := f.stream(t, ctx, "a b c", &recordingSink{failAt: 5})
	require.Error(t, err)

	run, err := f.runs.Get(ctx, f.thread.ThreadID, prepared.Run.RunID)
	require.NoError(t, err)
	assert.Equal(t, model.RunInterrupted, run.Status)

	thread, err := f.threads.Get(ctx, f.thread.ThreadID)
	require.NoError(t, err)
	assert.Equal(t, model.ThreadIdle, thread.Status)
}

func TestRunService_CancelDuringTokenDelay(t *testing.T) {
	f := newRunFixture(t)
	f.runs.tokenDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sink := &recordingSink{onSend: func(n int) {
		if n == 5 {
			cancel()
		}
	}}

	prepared, err := f.stream(t, ctx, "slow reply", sink)
	assert.ErrorIs(t, err, context.Canceled)

	run, err := f.runs.Get(context.Background(), f.thread.ThreadID, prepared.Run.RunID)
	require.NoError(t, err)
	assert.Equal(t, model.RunInterrupted, run.Status)
}

func TestRunService_AgentFailure(t *testing.T) {
	ctx := context.Background()
	f := newRunFixture(t)
	f.agents.Register(EchoGraphID, AgentFunc(func(_ context.Context, _ string, emit func(string) error) (Usage, error) {
		if err := emit("partial "); err != nil {
			return Usage{}, err
		}
		return Usage{}, errors.New("model exploded")
	}))
	sink := &recordingSink{}

	prepared, err := f.stream(t, ctx, "hi", sink)
	require.EqualError(t, err, "model exploded")

	names := sink.names()
	require.Len(t, names, 7)
	assert.Equal(t, []string{"error", "stream_end"}, names[5:])
	assert.Equal(t, map[string]string{"run_id": prepared.Run.RunID, "message": "model exploded"}, sink.events[5].data)
	assert.Equal(t, map[string]string{"run_id": prepared.Run.RunID}, sink.events[6].data)

	run, err := f.runs.Get(ctx, f.thread.ThreadID, prepared.Run.RunID)
	require.NoError(t, err)
	assert.Equal(t, model.RunError, run.Status)

	thread, err := f.threads.Get(ctx, f.thread.ThreadID)
	require.NoError(t, err)
	assert.Equal(t, model.ThreadError, thread.Status)
}

func TestRunService_CheckpointFollowsEachChunk(t *testing.T) {
	ctx := context.Background()
	f := newRunFixture(t)

	var seen []string
	f.agents.Register(EchoGraphID, AgentFunc(func(ctx context.Context, _ string, emit func(string) error) (Usage, error) {
		for _, chunk := range []string{"one ", "two"} {
			if err := emit(chunk); err != nil {
				return Usage{}, err
			}

			history, err := f.threads.History(ctx, f.thread.ThreadID, 0, 1)
			require.NoError(t, err)
			require.Len(t, history.Items, 1)
			latest := history.Items[0]
			assert.Equal(t, 1, latest.Metadata.Step)
			assert.Nil(t, latest.UpdatedAt)

			reply := latest.Values.Messages[len(latest.Values.Messages)-1]
			assert.Equal(t, model.RoleAssistant, reply.Role)
			seen = append(seen, reply.Content)
		}
		return Usage{CompletionTokens: 2}, nil
	}))

	_, err := f.stream(t, ctx, "ignored", &recordingSink{})
	require.NoError(t, err)
	assert.Equal(t, []string{"one ", "one two"}, seen)

	latest, err := f.store.LatestCheckpoint(ctx, f.thread.ThreadID)
	require.NoError(t, err)
	assert.NotNil(t, latest.UpdatedAt)
	assert.Equal(t, "one two", latest.Values.Messages[len(latest.Values.Messages)-1].Content)
}

func TestRunService_RunsOnAThreadAreQueued(t *testing.T) {
	ctx := context.Background()
	f := newRunFixture(t)

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	f.agents.Register(EchoGraphID, AgentFunc(func(ctx context.Context, text string, emit func(string) error) (Usage, error) {
		once.Do(func() {
			close(entered)
			<-release
		})
		return EchoAgent{}.Reply(ctx, text, emit)
	}))

	first, err := f.runs.Prepare(ctx, f.thread.ThreadID, RunInput{Input: "first"})
	require.NoError(t, err)
	second, err := f.runs.Prepare(ctx, f.thread.ThreadID, RunInput{Input: "second"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		assert.NoError(t, f.runs.Stream(ctx, first, &recordingSink{}))
	}()
	<-entered

	secondSink := &recordingSink{}
	go func() {
		defer wg.Done()
		assert.NoError(t, f.runs.Stream(ctx, second, secondSink))
	}()

	// While the first run holds the thread, the second stays pending.
	time.Sleep(20 * time.Millisecond)
	queued, err := f.runs.Get(ctx, f.thread.ThreadID, second.Run.RunID)
	require.NoError(t, err)
	assert.Equal(t, model.RunPending, queued.Status)
	busy, err := f.threads.Get(ctx, f.thread.ThreadID)
	require.NoError(t, err)
	assert.Equal(t, model.ThreadBusy, busy.Status)

	close(release)
	wg.Wait()

	step0 := patchOf(t, secondSink.events[2]).Value.(model.Checkpoint)
	assert.Equal(t, first.Run.RunID+":step_1", step0.ParentCheckpoint.CheckpointID)

	runs, err := f.runs.List(ctx, f.thread.ThreadID, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, runs.Total)
}

func TestRunService_CreateNonStreaming(t *testing.T) {
	ctx := context.Background()
	f := newRunFixture(t)

	run, err := f.runs.Create(ctx, f.thread.ThreadID, RunInput{
		Messages: []any{map[string]any{"role": "user", "content": "hi there"}},
		Metadata: model.Object{"source": "test"},
	})
	require.NoError(t, err)

	assert.Equal(t, model.RunSuccess, run.Status)
	assert.Equal(t, "test", run.Metadata["source"])
	assert.Equal(t, model.MultitaskEnqueue, run.MultitaskStrategy)

	result := run.Kwargs["result"].(model.Object)
	assert.Equal(t, "hi there", result["output"])
	messages := result["messages"].([]model.Message)
	require.Len(t, messages, 1)
	assert.Equal(t, model.RoleAssistant, messages[0].Role)
	assert.Equal(t, "hi there", messages[0].Content)

	thread, err := f.threads.Get(ctx, f.thread.ThreadID)
	require.NoError(t, err)
	require.Len(t, thread.Values.Messages, 2)
	assert.Equal(t, model.RoleUser, thread.Values.Messages[0].Role)
}

func TestRunService_PrepareErrors(t *testing.T) {
	ctx := context.Background()
	f := newRunFixture(t)

	_, err := f.runs.Prepare(ctx, "missing", RunInput{})
	requireHTTPError(t, err, http.StatusNotFound, MsgThreadNotFound)

	_, err = f.runs.Prepare(ctx, f.thread.ThreadID, RunInput{AssistantID: "someone-else"})
	requireHTTPError(t, err, http.StatusBadRequest, MsgUnknownAssistant)

	_, err = f.runs.Get(ctx, f.thread.ThreadID, "missing")
	requireHTTPError(t, err, http.StatusNotFound, MsgRunNotFound)

	_, err = f.runs.List(ctx, "missing", 0, 10)
	requireHTTPError(t, err, http.StatusNotFound, MsgThreadNotFound)
}
