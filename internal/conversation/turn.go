package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"symposium/api/internal/completion"
	"symposium/api/internal/prompt"
	"symposium/api/internal/store"
)

// replyWriteTimeout bounds the assistant write, which outlives the request.
const replyWriteTimeout = 10 * time.Second

// ApologyPrefix starts every assistant message synthesized from a failure.
const ApologyPrefix = "Sorry, I encountered an error generating a response: "

// TurnRequest is one user message sent to an objective's conversation.
type TurnRequest struct {
	UserID       int64
	ObjectiveID  int64
	Text         string
	ActiveTagIDs []int64
	Model        string
	// Credential is the user's completion API key. Empty means the turn is
	// stored without an assistant reply.
	Credential string
}

// Turn is the stored result of a request. AssistantMessage is nil when the
// user has no credential configured.
type Turn struct {
	UserMessage      store.Message  `json:"userMessage"`
	AssistantMessage *store.Message `json:"assistantMessage"`
}

// Pipeline runs gather, compose, complete and persist for each turn, in
// that order.
type Pipeline struct {
	store     Store
	gatherer  *Gatherer
	completer Completer
	logger    *zap.Logger
}

func NewPipeline(s Store, c Completer, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		store:     s,
		gatherer:  NewGatherer(s),
		completer: c,
		logger:    logger.Named("conversation"),
	}
}

// SendTurn validates and stores the user message, then asks the completer
// for a reply. A completion failure never fails the turn: it is stored as an
// apology from the assistant carrying the requested model. Storage failures
// are returned; a user message already written is kept.
func (p *Pipeline) SendTurn(ctx context.Context, req TurnRequest) (Turn, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return Turn{}, ErrInvalidInput
	}
	if req.Model == "" {
		req.Model = completion.DefaultChatModel
	}
	if _, err := p.store.GetObjectiveLineage(ctx, req.UserID, req.ObjectiveID); err != nil {
		return Turn{}, fmt.Errorf("resolve objective %d: %w", req.ObjectiveID, err)
	}

	userMsg, err := p.store.AppendMessage(ctx, store.NewMessage{
		ObjectiveID: req.ObjectiveID,
		Role:        store.RoleUser,
		Content:     text,
	})
	if err != nil {
		return Turn{}, err
	}
	turn := Turn{UserMessage: userMsg}

	if strings.TrimSpace(req.Credential) == "" {
		return turn, nil
	}

	outcome := p.generate(ctx, req, text, userMsg.ID)

	reply := store.NewMessage{ObjectiveID: req.ObjectiveID, Role: store.RoleAssistant}
	switch o := outcome.(type) {
	case completion.Success:
		reply.Content = o.Content
		reply.ModelUsed = o.Model
	case completion.Failure:
		p.logger.Warn("assistant reply replaced by apology",
			zap.Int64("objective_id", req.ObjectiveID),
			zap.String("model", req.Model),
			zap.Error(o.Reason),
		)
		reply.Content = ApologyPrefix + o.Message()
		reply.ModelUsed = req.Model
	}

	// The user message is already stored, so the reply is written even when
	// the caller has gone away.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), replyWriteTimeout)
	defer cancel()
	assistantMsg, err := p.store.AppendMessage(writeCtx, reply)
	if err != nil {
		return turn, err
	}
	turn.AssistantMessage = &assistantMsg
	return turn, nil
}

// generate gathers context, composes the prompt and calls the completer.
// Failures at any step become a Failure outcome.
func (p *Pipeline) generate(ctx context.Context, req TurnRequest, text string, userMessageID int64) completion.Outcome {
	snapshot, err := p.gatherer.Gather(ctx, GatherRequest{
		UserID:           req.UserID,
		ObjectiveID:      req.ObjectiveID,
		ActiveTagIDs:     req.ActiveTagIDs,
		UserMessage:      text,
		ExcludeMessageID: userMessageID,
	})
	if err != nil {
		return completion.Failure{Reason: err}
	}

	outcome := p.completer.Complete(ctx, completion.Request{
		Credential:   req.Credential,
		Model:        req.Model,
		SystemPrompt: prompt.Compose(snapshot),
		UserMessage:  text,
	})
	if outcome == nil {
		return completion.Failure{Reason: errors.New("no completion outcome")}
	}
	return outcome
}
