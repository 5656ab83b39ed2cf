package completion

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"symposium/api/internal/prompt"
)

// Plan is a generated project breakdown.
type Plan struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Objectives  []PlanObjective `json:"objectives"`
}

// PlanObjective is one phase of a generated plan.
type PlanObjective struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Tasks       []PlanTask `json:"tasks"`
}

// PlanTask is one actionable step of a generated objective.
type PlanTask struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Validate reports missing required fields.
func (p Plan) Validate() error {
	if strings.TrimSpace(p.Title) == "" {
		return fmt.Errorf("%w: missing title", ErrInvalidStructure)
	}
	if p.Objectives == nil {
		return fmt.Errorf("%w: missing objectives", ErrInvalidStructure)
	}
	for i, o := range p.Objectives {
		if strings.TrimSpace(o.Title) == "" {
			return fmt.Errorf("%w: objective %d has no title", ErrInvalidStructure, i+1)
		}
		for j, t := range o.Tasks {
			if strings.TrimSpace(t.Title) == "" {
				return fmt.Errorf("%w: objective %d task %d has no title", ErrInvalidStructure, i+1, j+1)
			}
		}
	}
	return nil
}

// PlanStructure asks the model to turn a freeform description into a Plan.
func (c *Client) PlanStructure(ctx context.Context, credential, model, description string) (Plan, error) {
	if strings.TrimSpace(credential) == "" {
		return Plan{}, ErrMissingCredential
	}

	body := newChatRequest(model, planParams, prompt.PlanSystemPrompt, prompt.PlanUserPrompt(description))
	resp, err := c.chat(ctx, credential, body)
	if err != nil {
		return Plan{}, err
	}
	content, err := firstContent(resp)
	if err != nil {
		return Plan{}, err
	}

	var plan Plan
	if err := decodeJSONObject(content, &plan); err != nil {
		c.logger.Warn("plan response is not JSON", zap.String("model", model), zap.Error(err))
		return Plan{}, err
	}
	if err := plan.Validate(); err != nil {
		return Plan{}, err
	}
	return plan, nil
}
