package app

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"symposium/api/internal/archive"
	"symposium/api/internal/conversation"
	"symposium/api/internal/export"
	"symposium/api/internal/store"
)

type SendMessageInput struct {
	Content      string  `json:"content"`
	SelectedTags []int64 `json:"selectedTags"`
	Model        string  `json:"model"`
}

// ExportOutput is a rendered transcript, plus its archive location when the
// caller asked for one.
type ExportOutput struct {
	Result   *export.Result
	Archived *archive.Archived
}

func (s *Service) ListMessages(ctx context.Context, userID, objectiveID int64) ([]store.Message, error) {
	if _, err := s.store.GetObjective(ctx, userID, objectiveID); err != nil {
		return nil, notFoundAs(err, "Objective")
	}
	return s.store.ListMessages(ctx, userID, objectiveID)
}

// SendMessage runs one conversation turn with the user's stored credential.
func (s *Service) SendMessage(ctx context.Context, userID, objectiveID int64, input SendMessageInput) (conversation.Turn, error) {
	if strings.TrimSpace(input.Content) == "" {
		return conversation.Turn{}, invalidInput("Message content is required")
	}
	key, err := s.credential(ctx, userID)
	if err != nil {
		return conversation.Turn{}, err
	}

	turn, err := s.pipeline.SendTurn(ctx, conversation.TurnRequest{
		UserID:       userID,
		ObjectiveID:  objectiveID,
		Text:         input.Content,
		ActiveTagIDs: input.SelectedTags,
		Model:        strings.TrimSpace(input.Model),
		Credential:   key,
	})
	switch {
	case errors.Is(err, conversation.ErrInvalidInput):
		return turn, invalidInput("Message content is required")
	case err != nil:
		return turn, notFoundAs(err, "Objective")
	}
	return turn, nil
}

func (s *Service) ToggleMessageHidden(ctx context.Context, userID, messageID int64) (store.Message, error) {
	msg, err := s.store.ToggleMessageHidden(ctx, userID, messageID)
	return msg, notFoundAs(err, "Message")
}

func (s *Service) DeleteMessage(ctx context.Context, userID, messageID int64) error {
	return notFoundAs(s.store.DeleteMessage(ctx, userID, messageID), "Message")
}

// MessageToCard copies a message into a new, hidden content card.
func (s *Service) MessageToCard(ctx context.Context, userID, messageID int64, title string) (store.ContentCard, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return store.ContentCard{}, invalidInput("Card title is required")
	}
	msg, err := s.store.GetMessage(ctx, userID, messageID)
	if err != nil {
		return store.ContentCard{}, notFoundAs(err, "Message")
	}
	card, err := s.store.CreateCard(ctx, userID, title, msg.Content, nil)
	if err != nil {
		return store.ContentCard{}, err
	}
	s.afterCardWrite(card, userID, "Create card from message")
	return card, nil
}

// ExportObjective renders the objective's transcript and, when archived is
// set and object storage is configured, uploads it.
func (s *Service) ExportObjective(ctx context.Context, userID, objectiveID int64, rawFormat string, includeHidden, archived bool) (ExportOutput, error) {
	format, err := export.ParseFormat(rawFormat)
	if err != nil {
		return ExportOutput{}, invalidInput("format must be one of md, pdf, docx")
	}
	if archived && s.archive == nil {
		return ExportOutput{}, invalidInput("Export archive is not configured")
	}

	result, err := s.exporter.Export(ctx, export.Request{
		UserID:        userID,
		ObjectiveID:   objectiveID,
		Format:        format,
		IncludeHidden: includeHidden,
	})
	if err != nil {
		return ExportOutput{}, notFoundAs(err, "Objective")
	}
	out := ExportOutput{Result: result}
	if !archived {
		return out, nil
	}

	stored, err := s.archive.Put(ctx, archive.Object{
		UserID:      userID,
		ObjectiveID: objectiveID,
		Filename:    result.Filename,
		ContentType: result.MimeType,
		Data:        result.Data,
	})
	if err != nil {
		s.logger.Error("archive export", zap.Int64("objective_id", objectiveID), zap.Error(err))
		return ExportOutput{}, err
	}
	out.Archived = &stored
	return out, nil
}
