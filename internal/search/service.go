package search

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

type index interface {
	Searcher
	Indexer
}

type recordLoader interface {
	LoadAllRecords(ctx context.Context) ([]CardRecord, error)
}

type fallback interface {
	Searcher
	recordLoader
}

// Service is the facade that tries Meilisearch first and falls back to PG FTS.
// Index writes are asynchronous and never fail the caller.
type Service struct {
	primary  index
	fallback fallback
	logger   *zap.Logger
	pending  sync.WaitGroup
}

// NewService creates a search service. meili may be nil if Meilisearch is not
// configured.
func NewService(meili *Meili, pgfts *PgFTS, logger *zap.Logger) *Service {
	var primary index
	if meili != nil {
		primary = meili
	}
	return newService(primary, pgfts, logger)
}

func newService(primary index, fb fallback, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{primary: primary, fallback: fb, logger: logger.Named("search")}
}

// Search tries Meilisearch if healthy, otherwise falls back to PG FTS.
func (s *Service) Search(ctx context.Context, q Query) Response {
	q = normalize(q)
	if s.primary != nil && s.primary.Healthy() {
		results, total, err := s.primary.Search(ctx, q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text, Backend: "meilisearch"}
		}
		s.logger.Warn("meilisearch error, falling back to pgfts", zap.Error(err))
	}

	results, total, err := s.fallback.Search(ctx, q)
	if err != nil {
		s.logger.Error("pgfts search failed", zap.Error(err))
		return Response{Results: []Result{}, Total: 0, Query: q.Text, Backend: "postgres"}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text, Backend: "postgres"}
}

// IndexCard indexes a card (fire-and-forget to Meilisearch).
func (s *Service) IndexCard(card CardRecord) {
	if s.primary == nil || !s.primary.Healthy() {
		return
	}
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		if err := s.primary.IndexCards([]CardRecord{card}); err != nil {
			s.logger.Warn("index card", zap.Int64("card_id", card.ID), zap.Error(err))
		}
	}()
}

// DeleteCard removes a card from the search index (fire-and-forget).
func (s *Service) DeleteCard(id int64) {
	if s.primary == nil || !s.primary.Healthy() {
		return
	}
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		if err := s.primary.DeleteCard(id); err != nil {
			s.logger.Warn("delete card", zap.Int64("card_id", id), zap.Error(err))
		}
	}()
}

// ReindexAllFromPG pushes every card stored in PostgreSQL into Meilisearch.
func (s *Service) ReindexAllFromPG(ctx context.Context) {
	if s.primary == nil || !s.primary.Healthy() || s.fallback == nil {
		return
	}
	cards, err := s.fallback.LoadAllRecords(ctx)
	if err != nil {
		s.logger.Warn("reindex load failed", zap.Error(err))
		return
	}
	if err := s.primary.IndexCards(cards); err != nil {
		s.logger.Warn("reindex cards", zap.Error(err))
		return
	}
	s.logger.Info("reindexed cards", zap.Int("count", len(cards)))
}

// Wait blocks until queued index writes have finished.
func (s *Service) Wait() {
	s.pending.Wait()
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
