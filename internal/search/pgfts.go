package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS searches leads and matters with PostgreSQL full-text search.
type PgFTS struct {
	db *sql.DB
}

func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy is always true; without Postgres nothing else works either.
func (p *PgFTS) Healthy() bool {
	return true
}

func (p *PgFTS) SearchParties(ctx context.Context, orgID, term string, limit int) ([]Match, error) {
	if strings.TrimSpace(term) == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT entity_type, entity_id, name, role FROM (
			SELECT 'lead'::text AS entity_type, l.id AS entity_id, l.name, 'prospect'::text AS role
			FROM leads l
			WHERE l.organization_id = $1
			  AND to_tsvector('simple', l.name) @@ plainto_tsquery('simple', $2)
			UNION ALL
			SELECT 'matter', m.id, m.client_name, 'client'
			FROM matters m
			WHERE m.organization_id = $1
			  AND to_tsvector('simple', m.client_name) @@ plainto_tsquery('simple', $2)
			UNION ALL
			SELECT 'matter', m.id, party.name, 'opposing_party'
			FROM matters m, jsonb_array_elements_text(m.opposing_parties) AS party(name)
			WHERE m.organization_id = $1
			  AND to_tsvector('simple', party.name) @@ plainto_tsquery('simple', $2)
		) hits
		LIMIT $3
	`, orgID, term, limit)
	if err != nil {
		return nil, fmt.Errorf("pgfts party search: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.EntityType, &m.EntityID, &m.Name, &m.Role); err != nil {
			return nil, fmt.Errorf("pgfts scan: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// LoadParties returns every party of every organization for a full reindex.
func (p *PgFTS) LoadParties(ctx context.Context) ([]Party, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, organization_id, id, name, 'lead', 'prospect' FROM leads
		UNION ALL
		SELECT id || '_client', organization_id, id, client_name, 'matter', 'client' FROM matters
		UNION ALL
		SELECT m.id || '_opp_' || (party.ord - 1)::text, m.organization_id, m.id, party.name, 'matter', 'opposing_party'
		FROM matters m, jsonb_array_elements_text(m.opposing_parties) WITH ORDINALITY AS party(name, ord)
	`)
	if err != nil {
		return nil, fmt.Errorf("load parties: %w", err)
	}
	defer rows.Close()

	parties := make([]Party, 0)
	for rows.Next() {
		var party Party
		if err := rows.Scan(&party.ID, &party.OrganizationID, &party.EntityID, &party.Name, &party.EntityType, &party.Role); err != nil {
			return nil, fmt.Errorf("scan party: %w", err)
		}
		parties = append(parties, party)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate parties: %w", err)
	}
	return parties, nil
}
