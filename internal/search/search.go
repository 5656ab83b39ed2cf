// Package search finds content cards by text. Meilisearch serves queries when
// it is reachable; PostgreSQL full-text search is the fallback.
package search

import "context"

// Result is a single search hit returned to the caller.
type Result struct {
	ID       int64  `db:"id" json:"id"`
	Title    string `db:"title" json:"title"`
	Snippet  string `db:"snippet" json:"snippet"`
	IsHidden bool   `db:"is_hidden" json:"is_hidden"`
}

// Query describes a search request. Results are always scoped to UserID.
type Query struct {
	UserID int64
	Text   string
	TagID  int64 // 0 = any tag
	Limit  int
	Offset int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
	Backend string   `json:"backend"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push cards into a search index.
type Indexer interface {
	IndexCards(cards []CardRecord) error
	DeleteCard(id int64) error
}

// CardRecord is the data we index for a content card.
type CardRecord struct {
	ID       int64   `json:"id"`
	UserID   int64   `json:"userId"`
	Title    string  `json:"title"`
	Content  string  `json:"content"`
	IsHidden bool    `json:"isHidden"`
	Tags     []int64 `json:"tags"`
}

const defaultLimit = 20

func normalize(q Query) Query {
	if q.Limit <= 0 || q.Limit > 100 {
		q.Limit = defaultLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return q
}
