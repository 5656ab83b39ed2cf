package store

import (
	"context"
	"fmt"
)

const messageColumns = `m.id, m.objective_id, m.role, m.content, m.is_hidden, m.model_used, m.created_at`

// ListMessages returns the whole transcript of an objective, hidden messages
// included, oldest first.
func (s *PostgresStore) ListMessages(ctx context.Context, userID, objectiveID int64) ([]Message, error) {
	if _, err := s.GetObjective(ctx, userID, objectiveID); err != nil {
		return nil, err
	}
	items := make([]Message, 0)
	err := s.db.SelectContext(ctx, &items, `
		SELECT `+messageColumns+` FROM messages m
		WHERE m.objective_id = $1
		ORDER BY m.created_at ASC, m.id ASC
	`, objectiveID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return items, nil
}

// ListVisibleMessages returns the non-hidden transcript of an objective owned
// by userID, oldest first, leaving out excludeID (0 excludes nothing).
func (s *PostgresStore) ListVisibleMessages(ctx context.Context, userID, objectiveID, excludeID int64) ([]Message, error) {
	items := make([]Message, 0)
	err := s.db.SelectContext(ctx, &items, `
		SELECT `+messageColumns+` FROM messages m
		JOIN objectives o ON o.id = m.objective_id
		JOIN projects p ON p.id = o.project_id
		WHERE m.objective_id = $1 AND p.user_id = $2 AND m.is_hidden = FALSE AND m.id <> $3
		ORDER BY m.created_at ASC, m.id ASC
	`, objectiveID, userID, excludeID)
	if err != nil {
		return nil, fmt.Errorf("list visible messages: %w", err)
	}
	return items, nil
}

// AppendMessage inserts a new message. Messages are never edited in place.
func (s *PostgresStore) AppendMessage(ctx context.Context, msg NewMessage) (Message, error) {
	var out Message
	err := s.db.GetContext(ctx, &out, `
		INSERT INTO messages AS m (objective_id, role, content, model_used)
		VALUES ($1, $2, $3, $4)
		RETURNING `+messageColumns, msg.ObjectiveID, msg.Role, msg.Content, optional(msg.ModelUsed))
	if err != nil {
		return Message{}, fmt.Errorf("append message: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) GetMessage(ctx context.Context, userID, messageID int64) (Message, error) {
	var m Message
	err := s.db.GetContext(ctx, &m, `
		SELECT `+messageColumns+` FROM messages m
		JOIN objectives o ON o.id = m.objective_id
		JOIN projects p ON p.id = o.project_id
		WHERE m.id = $1 AND p.user_id = $2
	`, messageID, userID)
	if err != nil {
		return Message{}, notFound(err)
	}
	return m, nil
}

// ToggleMessageHidden flips is_hidden, which controls whether the message is
// replayed to the assistant.
func (s *PostgresStore) ToggleMessageHidden(ctx context.Context, userID, messageID int64) (Message, error) {
	if _, err := s.GetMessage(ctx, userID, messageID); err != nil {
		return Message{}, err
	}
	var m Message
	err := s.db.GetContext(ctx, &m, `
		UPDATE messages AS m SET is_hidden = NOT m.is_hidden
		WHERE m.id = $1
		RETURNING `+messageColumns, messageID)
	if err != nil {
		return Message{}, notFound(err)
	}
	return m, nil
}

func (s *PostgresStore) DeleteMessage(ctx context.Context, userID, messageID int64) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM messages m
		USING objectives o, projects p
		WHERE m.id = $1 AND o.id = m.objective_id AND p.id = o.project_id AND p.user_id = $2
	`, messageID, userID)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return requireRow(res)
}
