package search

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sqlx.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sqlx.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true; the API cannot serve anything without Postgres.
func (p *PgFTS) Healthy() bool {
	return true
}

const ftsWhere = `
	FROM content_cards c, plainto_tsquery('english', $2) q
	WHERE c.user_id = $1 AND c.search_vector @@ q
	AND ($3::bigint = 0 OR EXISTS (
		SELECT 1 FROM content_card_tags ct WHERE ct.content_card_id = c.id AND ct.tag_id = $3
	))`

// Search ranks the user's cards with ts_rank over the generated search_vector
// column and builds snippets with ts_headline.
func (p *PgFTS) Search(ctx context.Context, q Query) ([]Result, int, error) {
	q = normalize(q)

	var total int
	if err := p.db.GetContext(ctx, &total, `SELECT count(*)`+ftsWhere, q.UserID, q.Text, q.TagID); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}
	if total == 0 {
		return nil, 0, nil
	}

	var results []Result
	err := p.db.SelectContext(ctx, &results, `
		SELECT c.id, c.title, c.is_hidden,
			ts_headline('english', c.content, q, 'MaxFragments=1,MaxWords=30,StartSel=<mark>,StopSel=</mark>') AS snippet`+
		ftsWhere+`
		ORDER BY ts_rank(c.search_vector, q) DESC, c.id DESC
		LIMIT $4 OFFSET $5`,
		q.UserID, q.Text, q.TagID, q.Limit, q.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	return results, total, nil
}

// LoadAllRecords returns every card with its tag ids for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]CardRecord, error) {
	rows, err := p.db.QueryxContext(ctx, `
		SELECT id, user_id, title, content, is_hidden FROM content_cards ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("load cards: %w", err)
	}
	defer rows.Close()

	cards := make([]CardRecord, 0)
	index := make(map[int64]int)
	for rows.Next() {
		var c CardRecord
		if err := rows.Scan(&c.ID, &c.UserID, &c.Title, &c.Content, &c.IsHidden); err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		c.Tags = []int64{}
		index[c.ID] = len(cards)
		cards = append(cards, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cards: %w", err)
	}

	var links []struct {
		CardID int64 `db:"content_card_id"`
		TagID  int64 `db:"tag_id"`
	}
	if err := p.db.SelectContext(ctx, &links, `SELECT content_card_id, tag_id FROM content_card_tags ORDER BY tag_id`); err != nil {
		return nil, fmt.Errorf("load card tags: %w", err)
	}
	for _, l := range links {
		if i, ok := index[l.CardID]; ok {
			cards[i].Tags = append(cards[i].Tags, l.TagID)
		}
	}
	return cards, nil
}
