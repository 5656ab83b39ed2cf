package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const taskColumns = `t.id, t.objective_id, t.title, t.description, t.sequence_order, t.is_completed, t.created_at, t.updated_at`

// ListTasks returns the objective's tasks in sequence order.
func (s *PostgresStore) ListTasks(ctx context.Context, userID, objectiveID int64) ([]Task, error) {
	if _, err := s.GetObjective(ctx, userID, objectiveID); err != nil {
		return nil, err
	}
	items := make([]Task, 0)
	err := s.db.SelectContext(ctx, &items, `
		SELECT `+taskColumns+` FROM tasks t
		WHERE t.objective_id = $1
		ORDER BY t.sequence_order ASC, t.created_at ASC
	`, objectiveID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return items, nil
}

func getTask(ctx context.Context, q sqlx.QueryerContext, userID, taskID int64) (Task, error) {
	var t Task
	err := sqlx.GetContext(ctx, q, &t, `
		SELECT `+taskColumns+` FROM tasks t
		JOIN objectives o ON o.id = t.objective_id
		JOIN projects p ON p.id = o.project_id
		WHERE t.id = $1 AND p.user_id = $2
	`, taskID, userID)
	if err != nil {
		return Task{}, notFound(err)
	}
	return t, nil
}

func (s *PostgresStore) GetTask(ctx context.Context, userID, taskID int64) (Task, error) {
	return getTask(ctx, s.db, userID, taskID)
}

// lockObjective serializes sequence writes under one objective. Every
// transaction that reads or rewrites task orders takes it first.
func lockObjective(ctx context.Context, tx *sqlx.Tx, userID, objectiveID int64) error {
	var locked int64
	err := tx.GetContext(ctx, &locked, `
		SELECT o.id FROM objectives o
		JOIN projects p ON p.id = o.project_id
		WHERE o.id = $1 AND p.user_id = $2
		FOR UPDATE OF o
	`, objectiveID, userID)
	return notFound(err)
}

func (s *PostgresStore) CreateTask(ctx context.Context, userID, objectiveID int64, title, description string) (Task, error) {
	var t Task
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := lockObjective(ctx, tx, userID, objectiveID); err != nil {
			return err
		}
		next, err := taskSequence.nextOrder(ctx, tx, objectiveID)
		if err != nil {
			return err
		}
		if err := tx.GetContext(ctx, &t, `
			INSERT INTO tasks AS t (objective_id, title, description, sequence_order)
			VALUES ($1, $2, $3, $4)
			RETURNING `+taskColumns, objectiveID, title, optional(description), next); err != nil {
			return fmt.Errorf("insert task: %w", err)
		}
		return nil
	})
	return t, err
}

func (s *PostgresStore) UpdateTask(ctx context.Context, userID, taskID int64, title, description string) (Task, error) {
	if _, err := s.GetTask(ctx, userID, taskID); err != nil {
		return Task{}, err
	}
	var t Task
	err := s.db.GetContext(ctx, &t, `
		UPDATE tasks AS t SET title = $1, description = $2, updated_at = NOW()
		WHERE t.id = $3
		RETURNING `+taskColumns, title, optional(description), taskID)
	if err != nil {
		return Task{}, notFound(err)
	}
	return t, nil
}

// ToggleTaskCompleted flips is_completed and returns the updated task.
func (s *PostgresStore) ToggleTaskCompleted(ctx context.Context, userID, taskID int64) (Task, error) {
	if _, err := s.GetTask(ctx, userID, taskID); err != nil {
		return Task{}, err
	}
	var t Task
	err := s.db.GetContext(ctx, &t, `
		UPDATE tasks AS t SET is_completed = NOT t.is_completed, updated_at = NOW()
		WHERE t.id = $1
		RETURNING `+taskColumns, taskID)
	if err != nil {
		return Task{}, notFound(err)
	}
	return t, nil
}

// DeleteTask removes a task and renumbers the remaining siblings.
func (s *PostgresStore) DeleteTask(ctx context.Context, userID, taskID int64) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		t, err := getTask(ctx, tx, userID, taskID)
		if err != nil {
			return err
		}
		if err := lockObjective(ctx, tx, userID, t.ObjectiveID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, taskID); err != nil {
			return fmt.Errorf("delete task: %w", err)
		}
		return taskSequence.compact(ctx, tx, t.ObjectiveID)
	})
}

// ReorderTask moves a task to newOrder within its objective in a single
// transaction.
func (s *PostgresStore) ReorderTask(ctx context.Context, userID, taskID int64, newOrder int) (Task, error) {
	var out Task
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		t, err := getTask(ctx, tx, userID, taskID)
		if err != nil {
			return err
		}
		if err := lockObjective(ctx, tx, userID, t.ObjectiveID); err != nil {
			return err
		}
		if err := taskSequence.move(ctx, tx, t.ObjectiveID, taskID, newOrder); err != nil {
			return err
		}
		out, err = getTask(ctx, tx, userID, taskID)
		return err
	})
	return out, err
}
