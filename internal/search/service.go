package search

import (
	"context"
	"log/slog"
)

// PartyLoader reads the full party set for reindexing.
type PartyLoader interface {
	LoadParties(ctx context.Context) ([]Party, error)
}

type indexSearcher interface {
	Searcher
	Indexer
}

// Service tries Meilisearch first and falls back to the database.
type Service struct {
	primary  indexSearcher
	fallback Searcher
	logger   *slog.Logger
}

// NewService creates a search service. primary may be nil when Meilisearch is not configured.
func NewService(primary indexSearcher, fallback Searcher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{primary: primary, fallback: fallback, logger: logger}
}

func (s *Service) primaryUp() bool {
	return s.primary != nil && s.primary.Healthy()
}

func (s *Service) SearchParties(ctx context.Context, orgID, term string, limit int) ([]Match, error) {
	if s.primaryUp() {
		matches, err := s.primary.SearchParties(ctx, orgID, term, limit)
		if err == nil {
			return matches, nil
		}
		s.logger.Warn("meilisearch error, falling back to pgfts", "error", err)
	}
	return s.fallback.SearchParties(ctx, orgID, term, limit)
}

// IndexParties pushes parties to Meilisearch. Failures are logged; the
// database fallback still finds the rows.
func (s *Service) IndexParties(ctx context.Context, parties []Party) {
	if !s.primaryUp() || len(parties) == 0 {
		return
	}
	if err := s.primary.IndexParties(ctx, parties); err != nil {
		s.logger.Warn("index parties", "count", len(parties), "error", err)
	}
}

// Reindex loads every party from the database into Meilisearch.
func (s *Service) Reindex(ctx context.Context, loader PartyLoader) {
	if !s.primaryUp() || loader == nil {
		return
	}
	parties, err := loader.LoadParties(ctx)
	if err != nil {
		s.logger.Warn("party reindex load failed", "error", err)
		return
	}
	s.IndexParties(ctx, parties)
	s.logger.Info("party index rebuilt", "count", len(parties))
}
