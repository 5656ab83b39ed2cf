package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"symposium/api/internal/sequence"
)

// sequencedTable names a table whose rows carry a dense sequence_order
// within a parent. Values are fixed identifiers, never user input.
type sequencedTable struct {
	table  string
	parent string
}

var (
	objectiveSequence = sequencedTable{table: "objectives", parent: "project_id"}
	taskSequence      = sequencedTable{table: "tasks", parent: "objective_id"}
)

// lockGroup reads and row-locks every sibling in the group.
func (t sequencedTable) lockGroup(ctx context.Context, tx *sqlx.Tx, parentID int64) ([]sequence.Item, error) {
	rows, err := tx.QueryContext(ctx, fmt.Sprintf(
		`SELECT id, sequence_order FROM %s WHERE %s = $1 ORDER BY sequence_order ASC FOR UPDATE`,
		t.table, t.parent), parentID)
	if err != nil {
		return nil, fmt.Errorf("lock %s group: %w", t.table, err)
	}
	defer rows.Close()

	items := make([]sequence.Item, 0)
	for rows.Next() {
		var it sequence.Item
		if err := rows.Scan(&it.ID, &it.Order); err != nil {
			return nil, fmt.Errorf("scan %s order: %w", t.table, err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (t sequencedTable) apply(ctx context.Context, tx *sqlx.Tx, changes []sequence.Item) error {
	query := fmt.Sprintf(`UPDATE %s SET sequence_order = $1, updated_at = NOW() WHERE id = $2`, t.table)
	for _, c := range changes {
		if _, err := tx.ExecContext(ctx, query, c.Order, c.ID); err != nil {
			return fmt.Errorf("update %s %d order: %w", t.table, c.ID, err)
		}
	}
	return nil
}

// move reorders one item inside its locked group. The unique constraint on
// (parent, sequence_order) is deferred to commit, so intermediate rows may
// collide while the updates run.
func (t sequencedTable) move(ctx context.Context, tx *sqlx.Tx, parentID, itemID int64, newOrder int) error {
	items, err := t.lockGroup(ctx, tx, parentID)
	if err != nil {
		return err
	}
	changes, err := sequence.Reorder(items, itemID, newOrder)
	if err != nil {
		return fmt.Errorf("reorder %s: %w", t.table, err)
	}
	return t.apply(ctx, tx, changes)
}

// compact closes the gap left by a deleted sibling.
func (t sequencedTable) compact(ctx context.Context, tx *sqlx.Tx, parentID int64) error {
	items, err := t.lockGroup(ctx, tx, parentID)
	if err != nil {
		return err
	}
	return t.apply(ctx, tx, sequence.Compact(items))
}

func (t sequencedTable) nextOrder(ctx context.Context, tx *sqlx.Tx, parentID int64) (int, error) {
	var next int
	err := tx.GetContext(ctx, &next, fmt.Sprintf(
		`SELECT COALESCE(MAX(sequence_order), 0) + 1 FROM %s WHERE %s = $1`, t.table, t.parent), parentID)
	if err != nil {
		return 0, fmt.Errorf("next %s order: %w", t.table, err)
	}
	return next, nil
}
