package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
	"go.uber.org/zap"
)

const idxCards = "symposium_content_cards"

// Meili implements Searcher and Indexer via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	logger  *zap.Logger
	healthy atomic.Bool
	done    chan struct{}
	stopped chan struct{}
}

// NewMeili creates a Meilisearch client and configures the card index.
// An unreachable server is not an error: the client reports unhealthy and a
// background loop keeps probing until Close.
func NewMeili(url, apiKey string, logger *zap.Logger) *Meili {
	m := &Meili{
		client:  meili.New(url, meili.WithAPIKey(apiKey)),
		logger:  logger.Named("search"),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}

	if _, err := m.client.Health(); err != nil {
		m.logger.Warn("meilisearch unavailable", zap.String("url", url), zap.Error(err))
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndex()
	}

	go m.healthLoop(10 * time.Second)
	return m
}

func (m *Meili) configureIndex() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{
		Uid:        idxCards,
		PrimaryKey: "id",
	}); err != nil {
		m.logger.Debug("create index (may already exist)", zap.String("index", idxCards), zap.Error(err))
	}

	index := m.client.Index(idxCards)
	filterable := []interface{}{"userId", "tags", "isHidden"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		m.logger.Warn("update filterable attributes", zap.String("index", idxCards), zap.Error(err))
	}
	searchable := []string{"title", "content"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		m.logger.Warn("update searchable attributes", zap.String("index", idxCards), zap.Error(err))
	}
}

func (m *Meili) healthLoop(interval time.Duration) {
	defer close(m.stopped)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				m.logger.Info("meilisearch recovered, reconfiguring index")
				m.configureIndex()
			}
		}
	}
}

// Close stops the background health monitor and waits for it to exit.
func (m *Meili) Close() {
	close(m.done)
	<-m.stopped
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// Search queries the card index. The client call is not cancellable, so ctx
// is only checked before the request is sent.
func (m *Meili) Search(ctx context.Context, q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, fmt.Errorf("meilisearch unhealthy")
	}
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	q = normalize(q)

	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{
		Queries: []*meili.SearchRequest{{
			IndexUID:              idxCards,
			Query:                 q.Text,
			Limit:                 int64(q.Limit),
			Offset:                int64(q.Offset),
			Filter:                filters(q),
			AttributesToHighlight: []string{"title", "content"},
			AttributesToCrop:      []string{"content"},
			CropLength:            30,
			HighlightPreTag:       "<mark>",
			HighlightPostTag:      "</mark>",
		}},
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch multi-search: %w", err)
	}

	var results []Result
	total := 0
	for _, sr := range resp.Results {
		total += int(sr.EstimatedTotalHits)
		for _, hit := range sr.Hits {
			results = append(results, hitToResult(hit))
		}
	}
	return results, total, nil
}

func filters(q Query) []string {
	out := []string{fmt.Sprintf("userId = %d", q.UserID)}
	if q.TagID > 0 {
		out = append(out, fmt.Sprintf("tags = %d", q.TagID))
	}
	return out
}

func hitToResult(hit meili.Hit) Result {
	r := Result{
		ID:       decodeInt(hit, "id"),
		IsHidden: decodeBool(hit, "isHidden"),
	}
	r.Title = firstNonBlank(decodeFormattedString(hit, "title"), decodeString(hit, "title"))
	r.Snippet = firstNonBlank(decodeFormattedString(hit, "content"), decodeString(hit, "content"))
	return r
}

func decodeString(hit meili.Hit, key string) string {
	var s string
	if raw, ok := hit[key]; ok && json.Unmarshal(raw, &s) == nil {
		return s
	}
	return ""
}

func decodeInt(hit meili.Hit, key string) int64 {
	var n int64
	if raw, ok := hit[key]; ok && json.Unmarshal(raw, &n) == nil {
		return n
	}
	return 0
}

func decodeBool(hit meili.Hit, key string) bool {
	var b bool
	if raw, ok := hit[key]; ok && json.Unmarshal(raw, &b) == nil {
		return b
	}
	return false
}

func decodeFormattedString(hit meili.Hit, key string) string {
	raw, ok := hit["_formatted"]
	if !ok {
		return ""
	}
	var formatted map[string]json.RawMessage
	if err := json.Unmarshal(raw, &formatted); err != nil {
		return ""
	}
	var s string
	if err := json.Unmarshal(formatted[key], &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

// IndexCards adds or updates cards in the search index.
func (m *Meili) IndexCards(cards []CardRecord) error {
	if len(cards) == 0 {
		return nil
	}
	_, err := m.client.Index(idxCards).AddDocuments(cards, nil)
	return err
}

// DeleteCard removes a card from the search index.
func (m *Meili) DeleteCard(id int64) error {
	_, err := m.client.Index(idxCards).DeleteDocument(fmt.Sprint(id), nil)
	return err
}
