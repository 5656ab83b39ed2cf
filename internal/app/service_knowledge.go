package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"symposium/api/internal/gitrepo"
	"symposium/api/internal/search"
	"symposium/api/internal/store"
)

const cardHistoryLimit = 50

type CardInput struct {
	Title   string  `json:"title"`
	Content string  `json:"content"`
	Tags    []int64 `json:"tags"`
}

// CardRevision is one stored revision of a card and how it differs from the
// card as it is now.
type CardRevision struct {
	Revision gitrepo.Revision      `json:"revision"`
	Content  gitrepo.Content       `json:"content"`
	Changes  []gitrepo.FieldChange `json:"changes"`
}

func (s *Service) ListCards(ctx context.Context, userID int64) ([]store.ContentCard, error) {
	return s.store.ListCards(ctx, userID)
}

func validateCard(input CardInput) (CardInput, error) {
	input.Title = strings.TrimSpace(input.Title)
	input.Content = strings.TrimSpace(input.Content)
	if input.Title == "" {
		return input, invalidInput("Card title is required")
	}
	if input.Content == "" {
		return input, invalidInput("Card content is required")
	}
	return input, nil
}

// CreateCard stores a new card. Cards start hidden from the assistant.
func (s *Service) CreateCard(ctx context.Context, userID int64, input CardInput) (store.ContentCard, error) {
	input, err := validateCard(input)
	if err != nil {
		return store.ContentCard{}, err
	}
	card, err := s.store.CreateCard(ctx, userID, input.Title, input.Content, input.Tags)
	if err != nil {
		return store.ContentCard{}, err
	}
	s.afterCardWrite(card, userID, "Create card")
	return card, nil
}

func (s *Service) UpdateCard(ctx context.Context, userID, cardID int64, input CardInput) (store.ContentCard, error) {
	input, err := validateCard(input)
	if err != nil {
		return store.ContentCard{}, err
	}
	card, err := s.store.UpdateCard(ctx, userID, cardID, input.Title, input.Content, input.Tags)
	if err != nil {
		return store.ContentCard{}, notFoundAs(err, "Content card")
	}
	s.afterCardWrite(card, userID, "Update card")
	return card, nil
}

func (s *Service) ToggleCardHidden(ctx context.Context, userID, cardID int64) (store.ContentCard, error) {
	card, err := s.store.ToggleCardHidden(ctx, userID, cardID)
	if err != nil {
		return store.ContentCard{}, notFoundAs(err, "Content card")
	}
	s.indexCard(card)
	return card, nil
}

func (s *Service) DeleteCard(ctx context.Context, userID, cardID int64) error {
	if err := s.store.DeleteCard(ctx, userID, cardID); err != nil {
		return notFoundAs(err, "Content card")
	}
	if s.search != nil {
		s.search.DeleteCard(cardID)
	}
	if s.history != nil {
		if err := s.history.Remove(cardID); err != nil {
			s.logger.Warn("remove card history", zap.Int64("card_id", cardID), zap.Error(err))
		}
	}
	return nil
}

func (s *Service) AddCardTags(ctx context.Context, userID, cardID int64, tagIDs []int64) (store.ContentCard, error) {
	if len(tagIDs) == 0 {
		return store.ContentCard{}, invalidInput("Tag IDs array is required")
	}
	card, err := s.store.AddCardTags(ctx, userID, cardID, tagIDs)
	if err != nil {
		return store.ContentCard{}, notFoundAs(err, "Content card")
	}
	s.afterCardWrite(card, userID, "Tag card")
	return card, nil
}

func (s *Service) RemoveCardTag(ctx context.Context, userID, cardID, tagID int64) error {
	if err := s.store.RemoveCardTag(ctx, userID, cardID, tagID); err != nil {
		return notFoundAs(err, "Content card")
	}
	if card, err := s.store.GetCard(ctx, userID, cardID); err == nil {
		s.afterCardWrite(card, userID, "Untag card")
	}
	return nil
}

// SearchCards runs a full-text search over the user's cards.
func (s *Service) SearchCards(ctx context.Context, userID int64, text string, tagID int64, limit, offset int) (search.Response, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return search.Response{}, invalidInput("Search query is required")
	}
	if s.search == nil {
		return search.Response{}, domainError(http.StatusServiceUnavailable, "SEARCH_UNAVAILABLE", "Search is not configured", nil)
	}
	return s.search.Search(ctx, search.Query{UserID: userID, Text: text, TagID: tagID, Limit: limit, Offset: offset}), nil
}

func (s *Service) CardHistory(ctx context.Context, userID, cardID int64) ([]gitrepo.Revision, error) {
	if _, err := s.store.GetCard(ctx, userID, cardID); err != nil {
		return nil, notFoundAs(err, "Content card")
	}
	if s.history == nil {
		return []gitrepo.Revision{}, nil
	}
	revisions, err := s.history.History(cardID, cardHistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("card %d history: %w", cardID, err)
	}
	return revisions, nil
}

func (s *Service) CardRevision(ctx context.Context, userID, cardID int64, hash string) (CardRevision, error) {
	card, err := s.store.GetCard(ctx, userID, cardID)
	if err != nil {
		return CardRevision{}, notFoundAs(err, "Content card")
	}
	if s.history == nil {
		return CardRevision{}, notFoundAs(store.ErrNotFound, "Revision")
	}
	content, rev, err := s.history.Get(cardID, strings.TrimSpace(hash))
	if errors.Is(err, gitrepo.ErrNotFound) {
		return CardRevision{}, notFoundAs(store.ErrNotFound, "Revision")
	}
	if err != nil {
		return CardRevision{}, err
	}
	current := gitrepo.Content{Title: card.Title, Content: card.Content, Tags: card.Tags}
	return CardRevision{Revision: rev, Content: content, Changes: gitrepo.DiffFields(content, current)}, nil
}

// afterCardWrite indexes the card and records a revision. Failures are
// logged and never fail the request.
func (s *Service) afterCardWrite(card store.ContentCard, userID int64, message string) {
	s.indexCard(card)
	if s.history == nil {
		return
	}
	content := gitrepo.Content{Title: card.Title, Content: card.Content, Tags: card.Tags}
	if _, err := s.history.Record(card.ID, content, fmt.Sprintf("user-%d", userID), message); err != nil {
		s.logger.Warn("record card revision", zap.Int64("card_id", card.ID), zap.Error(err))
	}
}

func (s *Service) indexCard(card store.ContentCard) {
	if s.search == nil {
		return
	}
	s.search.IndexCard(search.CardRecord{
		ID:       card.ID,
		UserID:   card.UserID,
		Title:    card.Title,
		Content:  card.Content,
		IsHidden: card.IsHidden,
		Tags:     card.Tags,
	})
}

func (s *Service) ListTags(ctx context.Context, userID int64) ([]store.Tag, error) {
	return s.store.ListTags(ctx, userID)
}

func (s *Service) CreateTag(ctx context.Context, userID int64, name, color string) (store.Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return store.Tag{}, invalidInput("Tag name is required")
	}
	tag, err := s.store.CreateTag(ctx, userID, name, strings.TrimSpace(color))
	return tag, tagConflict(err)
}

func (s *Service) UpdateTag(ctx context.Context, userID, tagID int64, name, color string) (store.Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return store.Tag{}, invalidInput("Tag name is required")
	}
	tag, err := s.store.UpdateTag(ctx, userID, tagID, name, strings.TrimSpace(color))
	return tag, notFoundAs(tagConflict(err), "Tag")
}

func (s *Service) DeleteTag(ctx context.Context, userID, tagID int64) error {
	return notFoundAs(s.store.DeleteTag(ctx, userID, tagID), "Tag")
}

func tagConflict(err error) error {
	if errors.Is(err, store.ErrConflict) {
		return domainError(http.StatusConflict, "CONFLICT", "Tag with this name already exists", nil)
	}
	return err
}
