// Package conversation assembles assistant context for an objective and
// records conversation turns.
package conversation

import (
	"context"
	"errors"
	"fmt"

	"symposium/api/internal/completion"
	"symposium/api/internal/prompt"
	"symposium/api/internal/store"
)

var (
	// ErrNotFound is returned when the objective does not exist or belongs
	// to another user.
	ErrNotFound = store.ErrNotFound
	// ErrInvalidInput is returned for blank message text.
	ErrInvalidInput = errors.New("message content is required")
)

// Store is the storage the pipeline reads from and appends to. Every read is
// scoped to the requesting user.
type Store interface {
	GetObjectiveLineage(ctx context.Context, userID, objectiveID int64) (store.ObjectiveLineage, error)
	ListTasks(ctx context.Context, userID, objectiveID int64) ([]store.Task, error)
	ListVisibleMessages(ctx context.Context, userID, objectiveID, excludeID int64) ([]store.Message, error)
	ListPromptCards(ctx context.Context, userID int64, activeTagIDs []int64) ([]store.ContentCard, error)
	AppendMessage(ctx context.Context, msg store.NewMessage) (store.Message, error)
}

// Completer produces assistant replies.
type Completer interface {
	Complete(ctx context.Context, req completion.Request) completion.Outcome
}

// GatherRequest selects the context for one turn.
type GatherRequest struct {
	UserID       int64
	ObjectiveID  int64
	ActiveTagIDs []int64
	UserMessage  string
	// ExcludeMessageID keeps the message being answered out of the replayed
	// history; it is rendered as the current message instead.
	ExcludeMessageID int64
}

// Gatherer reads an objective's lineage and the user's knowledge base.
type Gatherer struct {
	store Store
}

func NewGatherer(s Store) *Gatherer {
	return &Gatherer{store: s}
}

// Gather returns a snapshot of the project, objective, tasks, visible
// history and selected cards. It fails with ErrNotFound when the objective
// is not owned by the user.
func (g *Gatherer) Gather(ctx context.Context, req GatherRequest) (prompt.Context, error) {
	lineage, err := g.store.GetObjectiveLineage(ctx, req.UserID, req.ObjectiveID)
	if err != nil {
		return prompt.Context{}, fmt.Errorf("resolve objective %d: %w", req.ObjectiveID, err)
	}

	tasks, err := g.store.ListTasks(ctx, req.UserID, req.ObjectiveID)
	if err != nil {
		return prompt.Context{}, fmt.Errorf("load tasks: %w", err)
	}
	messages, err := g.store.ListVisibleMessages(ctx, req.UserID, req.ObjectiveID, req.ExcludeMessageID)
	if err != nil {
		return prompt.Context{}, fmt.Errorf("load history: %w", err)
	}
	cards, err := g.store.ListPromptCards(ctx, req.UserID, req.ActiveTagIDs)
	if err != nil {
		return prompt.Context{}, fmt.Errorf("load knowledge base: %w", err)
	}

	out := prompt.Context{
		Project:     prompt.Section{Title: lineage.Project.Title, Description: deref(lineage.Project.Description)},
		Objective:   prompt.Section{Title: lineage.Objective.Title, Description: deref(lineage.Objective.Description)},
		Tasks:       make([]prompt.Task, 0, len(tasks)),
		Cards:       make([]prompt.Card, 0, len(cards)),
		History:     make([]prompt.Turn, 0, len(messages)),
		UserMessage: req.UserMessage,
	}
	for i, t := range tasks {
		out.Tasks = append(out.Tasks, prompt.Task{
			Position:    i + 1,
			Title:       t.Title,
			Description: deref(t.Description),
			Completed:   t.IsCompleted,
		})
	}
	seen := make(map[int64]struct{}, len(cards))
	for _, c := range cards {
		if _, dup := seen[c.ID]; dup {
			continue
		}
		seen[c.ID] = struct{}{}
		out.Cards = append(out.Cards, prompt.Card{Title: c.Title, Content: c.Content})
	}
	for _, m := range messages {
		if m.IsHidden {
			continue
		}
		out.History = append(out.History, prompt.Turn{Role: m.Role, Content: m.Content})
	}
	return out, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
