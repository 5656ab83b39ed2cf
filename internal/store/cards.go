package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const cardColumns = `c.id, c.user_id, c.title, c.content, c.is_hidden, c.created_at, c.updated_at`

// ListCards returns every card of the user, most recently updated first.
func (s *PostgresStore) ListCards(ctx context.Context, userID int64) ([]ContentCard, error) {
	cards := make([]ContentCard, 0)
	err := s.db.SelectContext(ctx, &cards, `
		SELECT `+cardColumns+` FROM content_cards c
		WHERE c.user_id = $1
		ORDER BY c.updated_at DESC, c.id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list content cards: %w", err)
	}
	return cards, attachTags(ctx, s.db, cards)
}

// ListPromptCards returns the cards that feed the assistant: visible cards
// plus hidden cards carrying one of activeTagIDs. Each card appears once,
// most recently updated first. The filter lives in SQL; it is covered by
// TestListPromptCardsHonoursActiveTags against a real database.
func (s *PostgresStore) ListPromptCards(ctx context.Context, userID int64, activeTagIDs []int64) ([]ContentCard, error) {
	if activeTagIDs == nil {
		activeTagIDs = []int64{}
	}
	cards := make([]ContentCard, 0)
	err := s.db.SelectContext(ctx, &cards, `
		SELECT `+cardColumns+` FROM content_cards c
		WHERE c.user_id = $1 AND (
			c.is_hidden = FALSE OR EXISTS (
				SELECT 1 FROM content_card_tags ct
				WHERE ct.content_card_id = c.id AND ct.tag_id = ANY($2)
			)
		)
		ORDER BY c.updated_at DESC, c.id DESC
	`, userID, activeTagIDs)
	if err != nil {
		return nil, fmt.Errorf("list prompt cards: %w", err)
	}
	return cards, nil
}

func (s *PostgresStore) GetCard(ctx context.Context, userID, cardID int64) (ContentCard, error) {
	return getCard(ctx, s.db, userID, cardID)
}

func getCard(ctx context.Context, q sqlx.QueryerContext, userID, cardID int64) (ContentCard, error) {
	var c ContentCard
	err := sqlx.GetContext(ctx, q, &c, `SELECT `+cardColumns+` FROM content_cards c WHERE c.id = $1 AND c.user_id = $2`, cardID, userID)
	if err != nil {
		return ContentCard{}, notFound(err)
	}
	cards := []ContentCard{c}
	if err := attachTags(ctx, q, cards); err != nil {
		return ContentCard{}, err
	}
	return cards[0], nil
}

// CreateCard inserts a hidden card and links the given tags.
func (s *PostgresStore) CreateCard(ctx context.Context, userID int64, title, content string, tagIDs []int64) (ContentCard, error) {
	var out ContentCard
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var id int64
		if err := tx.GetContext(ctx, &id, `
			INSERT INTO content_cards (user_id, title, content, is_hidden)
			VALUES ($1, $2, $3, TRUE)
			RETURNING id
		`, userID, title, content); err != nil {
			return fmt.Errorf("insert content card: %w", err)
		}
		if err := linkTags(ctx, tx, userID, id, tagIDs); err != nil {
			return err
		}
		var err error
		out, err = getCard(ctx, tx, userID, id)
		return err
	})
	return out, err
}

// UpdateCard replaces the card's text and its tag set.
func (s *PostgresStore) UpdateCard(ctx context.Context, userID, cardID int64, title, content string, tagIDs []int64) (ContentCard, error) {
	var out ContentCard
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE content_cards SET title = $1, content = $2, updated_at = NOW()
			WHERE id = $3 AND user_id = $4
		`, title, content, cardID, userID)
		if err != nil {
			return fmt.Errorf("update content card: %w", err)
		}
		if err := requireRow(res); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM content_card_tags WHERE content_card_id = $1`, cardID); err != nil {
			return fmt.Errorf("clear card tags: %w", err)
		}
		if err := linkTags(ctx, tx, userID, cardID, tagIDs); err != nil {
			return err
		}
		out, err = getCard(ctx, tx, userID, cardID)
		return err
	})
	return out, err
}

func (s *PostgresStore) ToggleCardHidden(ctx context.Context, userID, cardID int64) (ContentCard, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE content_cards SET is_hidden = NOT is_hidden, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
	`, cardID, userID)
	if err != nil {
		return ContentCard{}, fmt.Errorf("toggle content card: %w", err)
	}
	if err := requireRow(res); err != nil {
		return ContentCard{}, err
	}
	return s.GetCard(ctx, userID, cardID)
}

func (s *PostgresStore) DeleteCard(ctx context.Context, userID, cardID int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM content_cards WHERE id = $1 AND user_id = $2`, cardID, userID)
	if err != nil {
		return fmt.Errorf("delete content card: %w", err)
	}
	return requireRow(res)
}

// AddCardTags links tags to a card, ignoring links that already exist.
func (s *PostgresStore) AddCardTags(ctx context.Context, userID, cardID int64, tagIDs []int64) (ContentCard, error) {
	var out ContentCard
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := getCard(ctx, tx, userID, cardID); err != nil {
			return err
		}
		if err := linkTags(ctx, tx, userID, cardID, tagIDs); err != nil {
			return err
		}
		var err error
		out, err = getCard(ctx, tx, userID, cardID)
		return err
	})
	return out, err
}

func (s *PostgresStore) RemoveCardTag(ctx context.Context, userID, cardID, tagID int64) error {
	if _, err := s.GetCard(ctx, userID, cardID); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM content_card_tags WHERE content_card_id = $1 AND tag_id = $2`, cardID, tagID); err != nil {
		return fmt.Errorf("remove card tag: %w", err)
	}
	return nil
}

// linkTags attaches tags that belong to userID; foreign tag ids are skipped.
func linkTags(ctx context.Context, tx *sqlx.Tx, userID, cardID int64, tagIDs []int64) error {
	if len(tagIDs) == 0 {
		return nil
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO content_card_tags (content_card_id, tag_id)
		SELECT $1, t.id FROM tags t
		WHERE t.user_id = $2 AND t.id = ANY($3)
		ON CONFLICT DO NOTHING
	`, cardID, userID, tagIDs)
	if err != nil {
		return fmt.Errorf("link card tags: %w", err)
	}
	return nil
}

func attachTags(ctx context.Context, q sqlx.QueryerContext, cards []ContentCard) error {
	if len(cards) == 0 {
		return nil
	}
	ids := make([]int64, len(cards))
	for i, c := range cards {
		ids[i] = c.ID
		cards[i].Tags = []int64{}
	}

	var links []struct {
		CardID int64 `db:"content_card_id"`
		TagID  int64 `db:"tag_id"`
	}
	err := sqlx.SelectContext(ctx, q, &links, `
		SELECT content_card_id, tag_id FROM content_card_tags
		WHERE content_card_id = ANY($1)
		ORDER BY tag_id ASC
	`, ids)
	if err != nil {
		return fmt.Errorf("load card tags: %w", err)
	}

	index := make(map[int64]int, len(cards))
	for i, c := range cards {
		index[c.ID] = i
	}
	for _, l := range links {
		if i, ok := index[l.CardID]; ok {
			cards[i].Tags = append(cards[i].Tags, l.TagID)
		}
	}
	return nil
}
