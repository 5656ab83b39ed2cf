package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"symposium/api/internal/completion"
	"symposium/api/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeStore struct {
	mu       sync.Mutex
	owner    int64
	lineage  store.ObjectiveLineage
	tasks    []store.Task
	cards    []store.ContentCard
	messages []store.Message
	nextID   int64

	appendErr     error
	failAppendAt  int
	appendCalls   int
	historyErr    error
	rejectDoneCtx bool
	lastExcludeID int64
	lastTagIDs    []int64
}

func newFakeStore() *fakeStore {
	desc := "Understand users"
	return &fakeStore{
		owner: 1,
		lineage: store.ObjectiveLineage{
			Project:   store.Project{ID: 5, UserID: 1, Title: "Launch"},
			Objective: store.Objective{ID: 9, ProjectID: 5, Title: "Research", Description: &desc},
		},
		nextID: 100,
	}
}

func (f *fakeStore) GetObjectiveLineage(_ context.Context, userID, objectiveID int64) (store.ObjectiveLineage, error) {
	if userID != f.owner || objectiveID != f.lineage.Objective.ID {
		return store.ObjectiveLineage{}, store.ErrNotFound
	}
	return f.lineage, nil
}

func (f *fakeStore) ListTasks(_ context.Context, _, _ int64) ([]store.Task, error) {
	return f.tasks, nil
}

func (f *fakeStore) ListVisibleMessages(_ context.Context, _, _, excludeID int64) ([]store.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastExcludeID = excludeID
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	out := make([]store.Message, 0, len(f.messages))
	for _, m := range f.messages {
		if m.IsHidden || m.ID == excludeID {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeStore) ListPromptCards(_ context.Context, _ int64, activeTagIDs []int64) ([]store.ContentCard, error) {
	f.lastTagIDs = activeTagIDs
	return f.cards, nil
}

func (f *fakeStore) AppendMessage(ctx context.Context, msg store.NewMessage) (store.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appendCalls++
	if f.rejectDoneCtx && ctx.Err() != nil {
		return store.Message{}, ctx.Err()
	}
	if f.appendErr != nil && f.appendCalls >= f.failAppendAt {
		return store.Message{}, f.appendErr
	}
	f.nextID++
	m := store.Message{
		ID:          f.nextID,
		ObjectiveID: msg.ObjectiveID,
		Role:        msg.Role,
		Content:     msg.Content,
		CreatedAt:   time.Unix(f.nextID, 0),
	}
	if msg.ModelUsed != "" {
		model := msg.ModelUsed
		m.ModelUsed = &model
	}
	f.messages = append(f.messages, m)
	return m, nil
}

type stubCompleter struct {
	outcome  completion.Outcome
	requests []completion.Request
	// before runs ahead of returning the outcome.
	before func()
}

func (s *stubCompleter) Complete(_ context.Context, req completion.Request) completion.Outcome {
	s.requests = append(s.requests, req)
	if s.before != nil {
		s.before()
	}
	return s.outcome
}

func TestSendTurnStoresBothMessages(t *testing.T) {
	fs := newFakeStore()
	stub := &stubCompleter{outcome: completion.Success{Content: "Hi there", Model: "m1"}}
	p := NewPipeline(fs, stub, nil)

	turn, err := p.SendTurn(context.Background(), TurnRequest{
		UserID: 1, ObjectiveID: 9, Text: "Hello!", Model: "m1", Credential: "sk-test",
	})
	require.NoError(t, err)

	assert.Equal(t, store.RoleUser, turn.UserMessage.Role)
	assert.Equal(t, "Hello!", turn.UserMessage.Content)
	assert.Nil(t, turn.UserMessage.ModelUsed)
	require.NotNil(t, turn.AssistantMessage)
	assert.Equal(t, store.RoleAssistant, turn.AssistantMessage.Role)
	assert.Equal(t, "Hi there", turn.AssistantMessage.Content)
	require.NotNil(t, turn.AssistantMessage.ModelUsed)
	assert.Equal(t, "m1", *turn.AssistantMessage.ModelUsed)
	assert.True(t, turn.AssistantMessage.CreatedAt.After(turn.UserMessage.CreatedAt))

	require.Len(t, stub.requests, 1)
	req := stub.requests[0]
	assert.Equal(t, "sk-test", req.Credential)
	assert.Equal(t, "m1", req.Model)
	assert.Equal(t, "Hello!", req.UserMessage)
	assert.Contains(t, req.SystemPrompt, "**Project:** Launch")
	assert.Contains(t, req.SystemPrompt, "**Current Objective:** Research")
	assert.Contains(t, req.SystemPrompt, "## Current User Message\n\n**User:** Hello!")
	assert.NotContains(t, req.SystemPrompt, "## Previous Conversation")
}

func TestSendTurnExcludesCurrentMessageFromHistory(t *testing.T) {
	fs := newFakeStore()
	stub := &stubCompleter{outcome: completion.Success{Content: "ok", Model: "m1"}}
	p := NewPipeline(fs, stub, nil)
	ctx := context.Background()

	_, err := p.SendTurn(ctx, TurnRequest{UserID: 1, ObjectiveID: 9, Text: "first", Credential: "k"})
	require.NoError(t, err)
	turn, err := p.SendTurn(ctx, TurnRequest{UserID: 1, ObjectiveID: 9, Text: "second", Credential: "k"})
	require.NoError(t, err)

	assert.Equal(t, turn.UserMessage.ID, fs.lastExcludeID)
	prompt := stub.requests[1].SystemPrompt
	assert.Contains(t, prompt, "**User:** first\n\n**Assistant:** ok")
	assert.Equal(t, 1, strings.Count(prompt, "second"))
}

func TestSendTurnWithoutCredentialSkipsCompletion(t *testing.T) {
	fs := newFakeStore()
	stub := &stubCompleter{}
	p := NewPipeline(fs, stub, nil)

	turn, err := p.SendTurn(context.Background(), TurnRequest{UserID: 1, ObjectiveID: 9, Text: "hello"})
	require.NoError(t, err)
	assert.Nil(t, turn.AssistantMessage)
	assert.Empty(t, stub.requests)
	assert.Len(t, fs.messages, 1)
}

func TestSendTurnStoresApologyOnFailure(t *testing.T) {
	fs := newFakeStore()
	stub := &stubCompleter{outcome: completion.Failure{Reason: &completion.Error{Status: 401, Message: "bad key"}}}
	p := NewPipeline(fs, stub, nil)

	turn, err := p.SendTurn(context.Background(), TurnRequest{
		UserID: 1, ObjectiveID: 9, Text: "hello", Model: "x/y", Credential: "k",
	})
	require.NoError(t, err)
	require.NotNil(t, turn.AssistantMessage)
	assert.Equal(t, "Sorry, I encountered an error generating a response: OpenRouter API error: 401 - bad key", turn.AssistantMessage.Content)
	require.NotNil(t, turn.AssistantMessage.ModelUsed)
	assert.Equal(t, "x/y", *turn.AssistantMessage.ModelUsed)
}

func TestSendTurnGatherFailureBecomesApology(t *testing.T) {
	fs := newFakeStore()
	fs.historyErr = errors.New("connection reset")
	stub := &stubCompleter{outcome: completion.Success{Content: "unused"}}
	p := NewPipeline(fs, stub, nil)

	turn, err := p.SendTurn(context.Background(), TurnRequest{UserID: 1, ObjectiveID: 9, Text: "hello", Credential: "k"})
	require.NoError(t, err)
	require.NotNil(t, turn.AssistantMessage)
	assert.True(t, strings.HasPrefix(turn.AssistantMessage.Content, ApologyPrefix))
	assert.Contains(t, turn.AssistantMessage.Content, "connection reset")
	assert.Empty(t, stub.requests)
	assert.Equal(t, completion.DefaultChatModel, *turn.AssistantMessage.ModelUsed)
}

func TestSendTurnRejectsBlankText(t *testing.T) {
	fs := newFakeStore()
	p := NewPipeline(fs, &stubCompleter{}, nil)

	_, err := p.SendTurn(context.Background(), TurnRequest{UserID: 1, ObjectiveID: 9, Text: "   \n"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Empty(t, fs.messages)
}

func TestSendTurnRequiresOwnership(t *testing.T) {
	fs := newFakeStore()
	stub := &stubCompleter{}
	p := NewPipeline(fs, stub, nil)

	_, err := p.SendTurn(context.Background(), TurnRequest{UserID: 2, ObjectiveID: 9, Text: "hi", Credential: "k"})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, fs.messages)
	assert.Empty(t, stub.requests)
}

func TestSendTurnUserAppendFailure(t *testing.T) {
	fs := newFakeStore()
	fs.appendErr = errors.New("disk full")
	fs.failAppendAt = 1
	stub := &stubCompleter{}
	p := NewPipeline(fs, stub, nil)

	_, err := p.SendTurn(context.Background(), TurnRequest{UserID: 1, ObjectiveID: 9, Text: "hi", Credential: "k"})
	require.Error(t, err)
	assert.Empty(t, stub.requests)
}

func TestSendTurnAssistantAppendFailureKeepsUserMessage(t *testing.T) {
	fs := newFakeStore()
	fs.appendErr = errors.New("disk full")
	fs.failAppendAt = 2
	stub := &stubCompleter{outcome: completion.Success{Content: "ok", Model: "m"}}
	p := NewPipeline(fs, stub, nil)

	turn, err := p.SendTurn(context.Background(), TurnRequest{UserID: 1, ObjectiveID: 9, Text: "hi", Credential: "k"})
	require.Error(t, err)
	assert.Equal(t, "hi", turn.UserMessage.Content)
	assert.Nil(t, turn.AssistantMessage)
	assert.Len(t, fs.messages, 1)
}

func TestSendTurnPassesActiveTags(t *testing.T) {
	fs := newFakeStore()
	fs.cards = []store.ContentCard{{ID: 1, Title: "Persona", Content: "busy parents"}}
	stub := &stubCompleter{outcome: completion.Success{Content: "ok", Model: "m"}}
	p := NewPipeline(fs, stub, nil)

	_, err := p.SendTurn(context.Background(), TurnRequest{
		UserID: 1, ObjectiveID: 9, Text: "hi", Credential: "k", ActiveTagIDs: []int64{7},
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{7}, fs.lastTagIDs)
	assert.Contains(t, stub.requests[0].SystemPrompt, "### Persona\n\nbusy parents")
}

func TestSendTurnStoresApologyWhenRequestIsCancelled(t *testing.T) {
	fs := newFakeStore()
	fs.rejectDoneCtx = true
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stub := &stubCompleter{
		outcome: completion.Failure{Reason: context.Canceled},
		before:  cancel,
	}
	p := NewPipeline(fs, stub, nil)

	turn, err := p.SendTurn(ctx, TurnRequest{UserID: 1, ObjectiveID: 9, Text: "hi", Model: "m1", Credential: "k"})
	require.NoError(t, err)
	require.NotNil(t, turn.AssistantMessage)
	assert.Equal(t, ApologyPrefix+"context canceled", turn.AssistantMessage.Content)
	require.NotNil(t, turn.AssistantMessage.ModelUsed)
	assert.Equal(t, "m1", *turn.AssistantMessage.ModelUsed)
	assert.Len(t, fs.messages, 2)
}

func TestSendTurnEndToEnd(t *testing.T) {
	fs := newFakeStore()
	fs.tasks = []store.Task{
		{ID: 1, ObjectiveID: 9, Title: "Interview users", SequenceOrder: 1},
		{ID: 2, ObjectiveID: 9, Title: "Summarize findings", SequenceOrder: 2},
	}
	fs.messages = []store.Message{
		{ID: 11, ObjectiveID: 9, Role: store.RoleUser, Content: "visible question", CreatedAt: time.Unix(1, 0)},
		{ID: 12, ObjectiveID: 9, Role: store.RoleAssistant, Content: "hidden answer", IsHidden: true, CreatedAt: time.Unix(2, 0)},
	}
	stub := &stubCompleter{outcome: completion.Success{Content: "Hello!", Model: "m1"}}
	p := NewPipeline(fs, stub, nil)

	turn, err := p.SendTurn(context.Background(), TurnRequest{
		UserID: 1, ObjectiveID: 9, Text: "What next?", Model: "m1", Credential: "sk-test",
	})
	require.NoError(t, err)
	require.NotNil(t, turn.AssistantMessage)
	assert.Equal(t, "Hello!", turn.AssistantMessage.Content)
	require.NotNil(t, turn.AssistantMessage.ModelUsed)
	assert.Equal(t, "m1", *turn.AssistantMessage.ModelUsed)
	assert.Len(t, fs.messages, 4)

	require.Len(t, stub.requests, 1)
	sent := stub.requests[0].SystemPrompt
	assert.Contains(t, sent, "1. **Interview users** - ⏳ PENDING")
	assert.Contains(t, sent, "2. **Summarize findings** - ⏳ PENDING")
	assert.Contains(t, sent, "**User:** visible question")
	assert.NotContains(t, sent, "hidden answer")
	assert.Contains(t, sent, "## Current User Message\n\n**User:** What next?")
}
