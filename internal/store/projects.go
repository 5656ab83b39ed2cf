package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const (
	projectColumns   = `id, user_id, title, description, created_at, updated_at`
	objectiveColumns = `o.id, o.project_id, o.title, o.description, o.sequence_order, o.created_at, o.updated_at`
)

func (s *PostgresStore) ListProjects(ctx context.Context, userID int64) ([]Project, error) {
	items := make([]Project, 0)
	err := s.db.SelectContext(ctx, &items, `
		SELECT `+projectColumns+` FROM projects
		WHERE user_id = $1
		ORDER BY updated_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetProject(ctx context.Context, userID, projectID int64) (Project, error) {
	var p Project
	err := s.db.GetContext(ctx, &p, `SELECT `+projectColumns+` FROM projects WHERE id = $1 AND user_id = $2`, projectID, userID)
	if err != nil {
		return Project{}, notFound(err)
	}
	return p, nil
}

func (s *PostgresStore) CreateProject(ctx context.Context, userID int64, title, description string) (Project, error) {
	var p Project
	err := s.db.GetContext(ctx, &p, `
		INSERT INTO projects (user_id, title, description)
		VALUES ($1, $2, $3)
		RETURNING `+projectColumns, userID, title, optional(description))
	if err != nil {
		return Project{}, fmt.Errorf("insert project: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) UpdateProject(ctx context.Context, userID, projectID int64, title, description string) (Project, error) {
	var p Project
	err := s.db.GetContext(ctx, &p, `
		UPDATE projects SET title = $1, description = $2, updated_at = NOW()
		WHERE id = $3 AND user_id = $4
		RETURNING `+projectColumns, title, optional(description), projectID, userID)
	if err != nil {
		return Project{}, notFound(err)
	}
	return p, nil
}

func (s *PostgresStore) DeleteProject(ctx context.Context, userID, projectID int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1 AND user_id = $2`, projectID, userID)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return requireRow(res)
}

// CreateGeneratedProject inserts a project with its objectives and tasks in
// one transaction, numbering siblings in input order.
func (s *PostgresStore) CreateGeneratedProject(ctx context.Context, userID int64, gen GeneratedProject) (Project, error) {
	var project Project
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &project, `
			INSERT INTO projects (user_id, title, description)
			VALUES ($1, $2, $3)
			RETURNING `+projectColumns, userID, gen.Title, optional(gen.Description)); err != nil {
			return fmt.Errorf("insert project: %w", err)
		}

		for i, obj := range gen.Objectives {
			var objectiveID int64
			if err := tx.GetContext(ctx, &objectiveID, `
				INSERT INTO objectives (project_id, title, description, sequence_order)
				VALUES ($1, $2, $3, $4)
				RETURNING id
			`, project.ID, obj.Title, optional(obj.Description), i+1); err != nil {
				return fmt.Errorf("insert objective %d: %w", i+1, err)
			}
			for j, task := range obj.Tasks {
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO tasks (objective_id, title, description, sequence_order)
					VALUES ($1, $2, $3, $4)
				`, objectiveID, task.Title, optional(task.Description), j+1); err != nil {
					return fmt.Errorf("insert task %d of objective %d: %w", j+1, i+1, err)
				}
			}
		}
		return nil
	})
	return project, err
}

func (s *PostgresStore) ListObjectives(ctx context.Context, userID, projectID int64) ([]Objective, error) {
	if _, err := s.GetProject(ctx, userID, projectID); err != nil {
		return nil, err
	}
	items := make([]Objective, 0)
	err := s.db.SelectContext(ctx, &items, `
		SELECT `+objectiveColumns+` FROM objectives o
		WHERE o.project_id = $1
		ORDER BY o.sequence_order ASC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list objectives: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetObjective(ctx context.Context, userID, objectiveID int64) (Objective, error) {
	return getObjective(ctx, s.db, userID, objectiveID)
}

func getObjective(ctx context.Context, q sqlx.QueryerContext, userID, objectiveID int64) (Objective, error) {
	var o Objective
	err := sqlx.GetContext(ctx, q, &o, `
		SELECT `+objectiveColumns+` FROM objectives o
		JOIN projects p ON p.id = o.project_id
		WHERE o.id = $1 AND p.user_id = $2
	`, objectiveID, userID)
	if err != nil {
		return Objective{}, notFound(err)
	}
	return o, nil
}

// GetObjectiveLineage resolves an objective and its project, scoped to the
// owning user.
func (s *PostgresStore) GetObjectiveLineage(ctx context.Context, userID, objectiveID int64) (ObjectiveLineage, error) {
	o, err := s.GetObjective(ctx, userID, objectiveID)
	if err != nil {
		return ObjectiveLineage{}, err
	}
	p, err := s.GetProject(ctx, userID, o.ProjectID)
	if err != nil {
		return ObjectiveLineage{}, err
	}
	return ObjectiveLineage{Project: p, Objective: o}, nil
}

// lockProject serializes objective order writes under one project.
func lockProject(ctx context.Context, tx *sqlx.Tx, userID, projectID int64) error {
	var locked int64
	err := tx.GetContext(ctx, &locked, `SELECT id FROM projects WHERE id = $1 AND user_id = $2 FOR UPDATE`, projectID, userID)
	return notFound(err)
}

func (s *PostgresStore) CreateObjective(ctx context.Context, userID, projectID int64, title, description string) (Objective, error) {
	var o Objective
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := lockProject(ctx, tx, userID, projectID); err != nil {
			return err
		}
		next, err := objectiveSequence.nextOrder(ctx, tx, projectID)
		if err != nil {
			return err
		}
		if err := tx.GetContext(ctx, &o, `
			INSERT INTO objectives AS o (project_id, title, description, sequence_order)
			VALUES ($1, $2, $3, $4)
			RETURNING `+objectiveColumns, projectID, title, optional(description), next); err != nil {
			return fmt.Errorf("insert objective: %w", err)
		}
		return nil
	})
	return o, err
}

func (s *PostgresStore) UpdateObjective(ctx context.Context, userID, objectiveID int64, title, description string) (Objective, error) {
	var o Objective
	err := s.db.GetContext(ctx, &o, `
		UPDATE objectives AS o SET title = $1, description = $2, updated_at = NOW()
		FROM projects p
		WHERE o.id = $3 AND p.id = o.project_id AND p.user_id = $4
		RETURNING `+objectiveColumns, title, optional(description), objectiveID, userID)
	if err != nil {
		return Objective{}, notFound(err)
	}
	return o, nil
}

// DeleteObjective removes an objective and renumbers the remaining siblings.
func (s *PostgresStore) DeleteObjective(ctx context.Context, userID, objectiveID int64) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		o, err := getObjective(ctx, tx, userID, objectiveID)
		if err != nil {
			return err
		}
		if err := lockProject(ctx, tx, userID, o.ProjectID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM objectives WHERE id = $1`, objectiveID); err != nil {
			return fmt.Errorf("delete objective: %w", err)
		}
		return objectiveSequence.compact(ctx, tx, o.ProjectID)
	})
}

// ReorderObjective moves an objective to newOrder within its project in a
// single transaction.
func (s *PostgresStore) ReorderObjective(ctx context.Context, userID, objectiveID int64, newOrder int) (Objective, error) {
	var out Objective
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		o, err := getObjective(ctx, tx, userID, objectiveID)
		if err != nil {
			return err
		}
		if err := lockProject(ctx, tx, userID, o.ProjectID); err != nil {
			return err
		}
		if err := objectiveSequence.move(ctx, tx, o.ProjectID, objectiveID, newOrder); err != nil {
			return err
		}
		out, err = getObjective(ctx, tx, userID, objectiveID)
		return err
	})
	return out, err
}
