package store

import (
	"context"
	"fmt"
)

const tagColumns = `id, user_id, name, color, created_at`

func (s *PostgresStore) ListTags(ctx context.Context, userID int64) ([]Tag, error) {
	tags := make([]Tag, 0)
	if err := s.db.SelectContext(ctx, &tags, `SELECT `+tagColumns+` FROM tags WHERE user_id = $1 ORDER BY name ASC`, userID); err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	return tags, nil
}

func (s *PostgresStore) CreateTag(ctx context.Context, userID int64, name, color string) (Tag, error) {
	if color == "" {
		color = DefaultTagColor
	}
	var t Tag
	err := s.db.GetContext(ctx, &t, `
		INSERT INTO tags (user_id, name, color) VALUES ($1, $2, $3)
		RETURNING `+tagColumns, userID, name, color)
	if isUniqueViolation(err) {
		return Tag{}, ErrConflict
	}
	if err != nil {
		return Tag{}, fmt.Errorf("insert tag: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) UpdateTag(ctx context.Context, userID, tagID int64, name, color string) (Tag, error) {
	if color == "" {
		color = DefaultTagColor
	}
	var t Tag
	err := s.db.GetContext(ctx, &t, `
		UPDATE tags SET name = $1, color = $2
		WHERE id = $3 AND user_id = $4
		RETURNING `+tagColumns, name, color, tagID, userID)
	if isUniqueViolation(err) {
		return Tag{}, ErrConflict
	}
	if err != nil {
		return Tag{}, notFound(err)
	}
	return t, nil
}

func (s *PostgresStore) DeleteTag(ctx context.Context, userID, tagID int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tags WHERE id = $1 AND user_id = $2`, tagID, userID)
	if err != nil {
		return fmt.Errorf("delete tag: %w", err)
	}
	return requireRow(res)
}
