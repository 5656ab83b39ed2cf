package completion

import (
	"context"
	"encoding/json"
	"net/http"
)

// Model describes a model offered by the service.
type Model struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	Pricing       json.RawMessage `json:"pricing,omitempty"`
	ContextLength int             `json:"context_length,omitempty"`
}

// Credits is the remaining balance on an API key.
type Credits struct {
	Credits *float64 `json:"credits"`
	Usage   float64  `json:"usage"`
}

// ListModels returns the models available to credential.
func (c *Client) ListModels(ctx context.Context, credential string) ([]Model, error) {
	if credential == "" {
		return nil, ErrMissingCredential
	}

	var resp struct {
		Data []Model `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/models", credential, nil, &resp); err != nil {
		return nil, err
	}

	models := make([]Model, 0, len(resp.Data))
	for _, m := range resp.Data {
		if m.Name == "" {
			m.Name = m.ID
		}
		models = append(models, m)
	}
	return models, nil
}

// Credits returns the balance of credential.
func (c *Client) Credits(ctx context.Context, credential string) (Credits, error) {
	if credential == "" {
		return Credits{}, ErrMissingCredential
	}

	var resp struct {
		Data struct {
			CreditLeft *float64 `json:"credit_left"`
			Limit      *float64 `json:"limit"`
			Usage      float64  `json:"usage"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/auth/key", credential, nil, &resp); err != nil {
		return Credits{}, err
	}

	left := resp.Data.CreditLeft
	if left == nil && resp.Data.Limit != nil {
		v := *resp.Data.Limit - resp.Data.Usage
		left = &v
	}
	return Credits{Credits: left, Usage: resp.Data.Usage}, nil
}
