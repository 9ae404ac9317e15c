package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
)

const idxParties = "lexdesk_parties"

// Meili implements Searcher and Indexer via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	logger  *slog.Logger
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates a Meilisearch client and configures the party index.
// An unreachable server is tolerated; the health loop picks it up later.
func NewMeili(url, apiKey string, logger *slog.Logger) *Meili {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Meili{
		client: meili.New(url, meili.WithAPIKey(apiKey)),
		logger: logger,
		done:   make(chan struct{}),
	}

	if _, err := m.client.Health(); err != nil {
		logger.Warn("meilisearch unavailable", "url", url, "error", err)
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndex()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndex() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{Uid: idxParties, PrimaryKey: "id"}); err != nil {
		m.logger.Debug("create party index (may already exist)", "error", err)
	}

	index := m.client.Index(idxParties)
	filterable := []interface{}{"organizationId", "entityType"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		m.logger.Warn("update filterable attributes", "index", idxParties, "error", err)
	}
	searchable := []string{"name"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		m.logger.Warn("update searchable attributes", "index", idxParties, "error", err)
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
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
				m.logger.Info("meilisearch recovered, reconfiguring party index")
				m.configureIndex()
			}
		}
	}
}

func (m *Meili) Close() {
	close(m.done)
}

func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

func (m *Meili) SearchParties(_ context.Context, orgID, term string, limit int) ([]Match, error) {
	if !m.healthy.Load() {
		return nil, fmt.Errorf("meilisearch unhealthy")
	}
	if limit <= 0 {
		limit = 20
	}

	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{
		Queries: []*meili.SearchRequest{{
			IndexUID: idxParties,
			Query:    term,
			Limit:    int64(limit),
			Filter:   []string{fmt.Sprintf("organizationId = %q", orgID)},
		}},
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, fmt.Errorf("meilisearch party search: %w", err)
	}

	var matches []Match
	for _, result := range resp.Results {
		for _, hit := range result.Hits {
			if match, ok := hitToMatch(hit, orgID); ok {
				matches = append(matches, match)
			}
		}
	}
	return matches, nil
}

// hitToMatch drops hits from other organizations even if the filter was ignored.
func hitToMatch(hit meili.Hit, orgID string) (Match, bool) {
	if decodeString(hit, "organizationId") != orgID {
		return Match{}, false
	}
	return Match{
		EntityType: decodeString(hit, "entityType"),
		EntityID:   decodeString(hit, "entityId"),
		Name:       decodeString(hit, "name"),
		Role:       decodeString(hit, "role"),
	}, true
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func (m *Meili) IndexParties(_ context.Context, parties []Party) error {
	if len(parties) == 0 {
		return nil
	}
	if _, err := m.client.Index(idxParties).AddDocuments(parties, nil); err != nil {
		return fmt.Errorf("index parties: %w", err)
	}
	return nil
}
