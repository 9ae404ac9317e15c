// Package search maintains the party index used by conflict checks.
package search

import (
	"context"
	"strconv"
	"strings"

	"lexdesk/api/internal/store"
)

const (
	EntityLead   = "lead"
	EntityMatter = "matter"

	RoleProspect      = "prospect"
	RoleClient        = "client"
	RoleOpposingParty = "opposing_party"
)

// Party is one searchable name tied to a lead or matter.
type Party struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organizationId"`
	EntityType     string `json:"entityType"`
	EntityID       string `json:"entityId"`
	Name           string `json:"name"`
	Role           string `json:"role"`
}

// Match is a party returned for a search term.
type Match struct {
	EntityType string `json:"entityType"`
	EntityID   string `json:"entityId"`
	Name       string `json:"name"`
	Role       string `json:"role"`
}

// Searcher finds parties of one organization by name.
type Searcher interface {
	SearchParties(ctx context.Context, orgID, term string, limit int) ([]Match, error)
	Healthy() bool
}

// Indexer pushes parties into a search index.
type Indexer interface {
	IndexParties(ctx context.Context, parties []Party) error
}

func LeadParties(lead store.Lead) []Party {
	if strings.TrimSpace(lead.Name) == "" {
		return nil
	}
	return []Party{{
		ID:             lead.ID,
		OrganizationID: lead.OrganizationID,
		EntityType:     EntityLead,
		EntityID:       lead.ID,
		Name:           lead.Name,
		Role:           RoleProspect,
	}}
}

// MatterParties returns the client and every opposing party of the matter.
func MatterParties(matter store.Matter) []Party {
	parties := []Party{{
		ID:             matter.ID + "_client",
		OrganizationID: matter.OrganizationID,
		EntityType:     EntityMatter,
		EntityID:       matter.ID,
		Name:           matter.ClientName,
		Role:           RoleClient,
	}}
	for i, name := range matter.OpposingParties {
		if strings.TrimSpace(name) == "" {
			continue
		}
		parties = append(parties, Party{
			ID:             matter.ID + "_opp_" + strconv.Itoa(i),
			OrganizationID: matter.OrganizationID,
			EntityType:     EntityMatter,
			EntityID:       matter.ID,
			Name:           name,
			Role:           RoleOpposingParty,
		})
	}
	return parties
}
