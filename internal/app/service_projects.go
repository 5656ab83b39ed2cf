package app

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"symposium/api/internal/completion"
	"symposium/api/internal/sequence"
	"symposium/api/internal/store"
)

const invalidOrderMessage = "Valid new order is required"

func (s *Service) ListProjects(ctx context.Context, userID int64) ([]store.Project, error) {
	return s.store.ListProjects(ctx, userID)
}

func (s *Service) CreateProject(ctx context.Context, userID int64, title, description string) (store.Project, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return store.Project{}, invalidInput("Project title is required")
	}
	return s.store.CreateProject(ctx, userID, title, description)
}

func (s *Service) UpdateProject(ctx context.Context, userID, projectID int64, title, description string) (store.Project, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return store.Project{}, invalidInput("Project title is required")
	}
	project, err := s.store.UpdateProject(ctx, userID, projectID, title, description)
	return project, notFoundAs(err, "Project")
}

func (s *Service) DeleteProject(ctx context.Context, userID, projectID int64) error {
	return notFoundAs(s.store.DeleteProject(ctx, userID, projectID), "Project")
}

// GenerateProject asks the model for a plan and stores the project, its
// objectives and tasks in one transaction.
func (s *Service) GenerateProject(ctx context.Context, userID int64, description, model string) (store.Project, completion.Plan, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return store.Project{}, completion.Plan{}, invalidInput("Project description is required")
	}
	if strings.TrimSpace(model) == "" {
		model = completion.DefaultPlanModel
	}
	key, err := s.requireCredential(ctx, userID, "OpenRouter API key is required for project generation")
	if err != nil {
		return store.Project{}, completion.Plan{}, err
	}

	plan, err := s.completion.PlanStructure(ctx, key, model, description)
	if err != nil {
		s.logger.Warn("project generation failed", zap.Int64("user_id", userID), zap.String("model", model), zap.Error(err))
		return store.Project{}, completion.Plan{}, upstreamError("Failed to generate project", err)
	}

	gen := store.GeneratedProject{
		Title:       plan.Title,
		Description: plan.Description,
		Objectives:  make([]store.GeneratedObjective, 0, len(plan.Objectives)),
	}
	for _, o := range plan.Objectives {
		obj := store.GeneratedObjective{Title: o.Title, Description: o.Description, Tasks: make([]store.GeneratedTask, 0, len(o.Tasks))}
		for _, t := range o.Tasks {
			obj.Tasks = append(obj.Tasks, store.GeneratedTask{Title: t.Title, Description: t.Description})
		}
		gen.Objectives = append(gen.Objectives, obj)
	}

	project, err := s.store.CreateGeneratedProject(ctx, userID, gen)
	if err != nil {
		return store.Project{}, completion.Plan{}, err
	}
	return project, plan, nil
}

func (s *Service) ListObjectives(ctx context.Context, userID, projectID int64) ([]store.Objective, error) {
	if _, err := s.store.GetProject(ctx, userID, projectID); err != nil {
		return nil, notFoundAs(err, "Project")
	}
	return s.store.ListObjectives(ctx, userID, projectID)
}

func (s *Service) CreateObjective(ctx context.Context, userID, projectID int64, title, description string) (store.Objective, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return store.Objective{}, invalidInput("Objective title is required")
	}
	objective, err := s.store.CreateObjective(ctx, userID, projectID, title, description)
	return objective, notFoundAs(err, "Project")
}

func (s *Service) UpdateObjective(ctx context.Context, userID, objectiveID int64, title, description string) (store.Objective, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return store.Objective{}, invalidInput("Objective title is required")
	}
	objective, err := s.store.UpdateObjective(ctx, userID, objectiveID, title, description)
	return objective, notFoundAs(err, "Objective")
}

func (s *Service) DeleteObjective(ctx context.Context, userID, objectiveID int64) error {
	return notFoundAs(s.store.DeleteObjective(ctx, userID, objectiveID), "Objective")
}

func (s *Service) ReorderObjective(ctx context.Context, userID, objectiveID int64, newOrder int) (store.Objective, error) {
	if newOrder < 1 {
		return store.Objective{}, invalidInput(invalidOrderMessage)
	}
	objective, err := s.store.ReorderObjective(ctx, userID, objectiveID, newOrder)
	return objective, reorderError(err, "Objective")
}

func (s *Service) ListTasks(ctx context.Context, userID, objectiveID int64) ([]store.Task, error) {
	if _, err := s.store.GetObjective(ctx, userID, objectiveID); err != nil {
		return nil, notFoundAs(err, "Objective")
	}
	return s.store.ListTasks(ctx, userID, objectiveID)
}

func (s *Service) CreateTask(ctx context.Context, userID, objectiveID int64, title, description string) (store.Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return store.Task{}, invalidInput("Task title is required")
	}
	task, err := s.store.CreateTask(ctx, userID, objectiveID, title, description)
	return task, notFoundAs(err, "Objective")
}

func (s *Service) UpdateTask(ctx context.Context, userID, taskID int64, title, description string) (store.Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return store.Task{}, invalidInput("Task title is required")
	}
	task, err := s.store.UpdateTask(ctx, userID, taskID, title, description)
	return task, notFoundAs(err, "Task")
}

func (s *Service) ToggleTaskCompleted(ctx context.Context, userID, taskID int64) (store.Task, error) {
	task, err := s.store.ToggleTaskCompleted(ctx, userID, taskID)
	return task, notFoundAs(err, "Task")
}

func (s *Service) DeleteTask(ctx context.Context, userID, taskID int64) error {
	return notFoundAs(s.store.DeleteTask(ctx, userID, taskID), "Task")
}

func (s *Service) ReorderTask(ctx context.Context, userID, taskID int64, newOrder int) (store.Task, error) {
	if newOrder < 1 {
		return store.Task{}, invalidInput(invalidOrderMessage)
	}
	task, err := s.store.ReorderTask(ctx, userID, taskID, newOrder)
	return task, reorderError(err, "Task")
}

func reorderError(err error, resource string) error {
	switch {
	case errors.Is(err, sequence.ErrInvalidPosition):
		return invalidInput(invalidOrderMessage)
	case errors.Is(err, sequence.ErrNotFound):
		// the item was deleted between the ownership check and the move
		return notFoundAs(store.ErrNotFound, resource)
	}
	return notFoundAs(err, resource)
}
