package export

import (
	"context"
	"fmt"
	"time"

	"symposium/api/internal/prompt"
	"symposium/api/internal/store"
)

// DataStore defines the interface for data access
type DataStore interface {
	GetObjectiveLineage(ctx context.Context, userID, objectiveID int64) (store.ObjectiveLineage, error)
	ListTasks(ctx context.Context, userID, objectiveID int64) ([]store.Task, error)
	ListMessages(ctx context.Context, userID, objectiveID int64) ([]store.Message, error)
}

type converter func(ctx context.Context, html, title string) (*Result, error)

// Service provides transcript export functionality
type Service struct {
	store DataStore
	pdf   converter
	docx  converter
	now   func() time.Time
}

// NewService creates a new export service
func NewService(store DataStore) *Service {
	return &Service{
		store: store,
		pdf:   exportPDF,
		docx:  exportDOCX,
		now:   time.Now,
	}
}

// Export generates an export in the requested format
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	transcript, err := s.Transcript(ctx, req)
	if err != nil {
		return nil, err
	}

	name := sanitizeFilename(transcript.ObjectiveTitle)
	if req.Format == FormatMarkdown {
		return &Result{
			Data:     []byte(RenderMarkdown(transcript)),
			Filename: name + ".md",
			MimeType: "text/markdown; charset=utf-8",
		}, nil
	}

	html, err := RenderHTML(transcript)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	switch req.Format {
	case FormatPDF:
		return s.pdf(ctx, html, transcript.ObjectiveTitle)
	case FormatDOCX:
		return s.docx(ctx, html, transcript.ObjectiveTitle)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, req.Format)
	}
}

// Transcript loads the objective, its tasks and its messages in
// chronological order. Hidden messages are left out unless requested.
func (s *Service) Transcript(ctx context.Context, req Request) (Transcript, error) {
	lineage, err := s.store.GetObjectiveLineage(ctx, req.UserID, req.ObjectiveID)
	if err != nil {
		return Transcript{}, fmt.Errorf("get objective: %w", err)
	}
	tasks, err := s.store.ListTasks(ctx, req.UserID, req.ObjectiveID)
	if err != nil {
		return Transcript{}, fmt.Errorf("list tasks: %w", err)
	}
	messages, err := s.store.ListMessages(ctx, req.UserID, req.ObjectiveID)
	if err != nil {
		return Transcript{}, fmt.Errorf("list messages: %w", err)
	}

	out := Transcript{
		ProjectTitle:   lineage.Project.Title,
		ObjectiveTitle: lineage.Objective.Title,
		Tasks:          make([]TranscriptTask, 0, len(tasks)),
		Messages:       make([]TranscriptMessage, 0, len(messages)),
		ExportedAt:     s.now().UTC(),
	}
	if lineage.Objective.Description != nil {
		out.ObjectiveDescription = *lineage.Objective.Description
	}
	for i, t := range tasks {
		out.Tasks = append(out.Tasks, TranscriptTask{Position: i + 1, Title: t.Title, Completed: t.IsCompleted})
	}
	for _, m := range messages {
		if m.IsHidden && !req.IncludeHidden {
			continue
		}
		msg := TranscriptMessage{
			Role:      prompt.RoleLabel(m.Role),
			Content:   m.Content,
			Hidden:    m.IsHidden,
			CreatedAt: m.CreatedAt.UTC(),
		}
		if m.ModelUsed != nil {
			msg.ModelUsed = *m.ModelUsed
		}
		out.Messages = append(out.Messages, msg)
	}
	return out, nil
}
