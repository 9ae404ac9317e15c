package search

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	meili "github.com/meilisearch/meilisearch-go"

	"lexdesk/api/internal/store"
)

type fakeIndex struct {
	healthy bool
	matches []Match
	err     error
	indexed []Party
	calls   int
}

func (f *fakeIndex) Healthy() bool { return f.healthy }

func (f *fakeIndex) SearchParties(context.Context, string, string, int) ([]Match, error) {
	f.calls++
	return f.matches, f.err
}

func (f *fakeIndex) IndexParties(_ context.Context, parties []Party) error {
	f.indexed = append(f.indexed, parties...)
	return f.err
}

type loaderFunc func(ctx context.Context) ([]Party, error)

func (fn loaderFunc) LoadParties(ctx context.Context) ([]Party, error) { return fn(ctx) }

func TestSearchUsesPrimaryWhenHealthy(t *testing.T) {
	primary := &fakeIndex{healthy: true, matches: []Match{{EntityID: "lead_1"}}}
	fallback := &fakeIndex{healthy: true, matches: []Match{{EntityID: "lead_2"}}}
	svc := NewService(primary, fallback, nil)

	got, err := svc.SearchParties(context.Background(), "org_1", "acme", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 1 || got[0].EntityID != "lead_1" || fallback.calls != 0 {
		t.Fatalf("expected primary result only, got %+v (fallback calls %d)", got, fallback.calls)
	}
}

func TestSearchFallsBack(t *testing.T) {
	cases := map[string]*fakeIndex{
		"unhealthy": {healthy: false},
		"erroring":  {healthy: true, err: errors.New("boom")},
	}
	for name, primary := range cases {
		t.Run(name, func(t *testing.T) {
			fallback := &fakeIndex{healthy: true, matches: []Match{{EntityID: "matter_1"}}}
			got, err := NewService(primary, fallback, nil).SearchParties(context.Background(), "org_1", "acme", 10)
			if err != nil {
				t.Fatalf("search: %v", err)
			}
			if len(got) != 1 || got[0].EntityID != "matter_1" {
				t.Fatalf("expected fallback result, got %+v", got)
			}
		})
	}
}

func TestSearchWithoutPrimary(t *testing.T) {
	fallback := &fakeIndex{healthy: true, matches: []Match{{EntityID: "lead_9"}}}
	got, err := NewService(nil, fallback, nil).SearchParties(context.Background(), "org_1", "x", 5)
	if err != nil || len(got) != 1 {
		t.Fatalf("expected fallback match, got %+v, %v", got, err)
	}
}

func TestReindexPushesLoadedParties(t *testing.T) {
	primary := &fakeIndex{healthy: true}
	svc := NewService(primary, &fakeIndex{}, nil)
	svc.Reindex(context.Background(), loaderFunc(func(context.Context) ([]Party, error) {
		return []Party{{ID: "lead_1"}, {ID: "mat_1_client"}}, nil
	}))
	if len(primary.indexed) != 2 {
		t.Fatalf("expected 2 indexed parties, got %d", len(primary.indexed))
	}
}

func TestMatterPartiesSkipsBlankNames(t *testing.T) {
	parties := MatterParties(store.Matter{
		ID:              "mat_1",
		OrganizationID:  "org_1",
		ClientName:      "Jane Roe",
		OpposingParties: []string{"Acme Corp", " ", "Bob Smith"},
	})
	if len(parties) != 3 {
		t.Fatalf("expected client plus two opposing parties, got %+v", parties)
	}
	if parties[0].Role != RoleClient || parties[0].ID != "mat_1_client" {
		t.Fatalf("unexpected client party %+v", parties[0])
	}
	if parties[2].ID != "mat_1_opp_2" || parties[2].Role != RoleOpposingParty {
		t.Fatalf("unexpected opposing party %+v", parties[2])
	}
	if LeadParties(store.Lead{ID: "lead_1"}) != nil {
		t.Fatal("expected no party for unnamed lead")
	}
}

func TestHitToMatchRejectsForeignOrganization(t *testing.T) {
	hit := meili.Hit{
		"organizationId": json.RawMessage(`"org_2"`),
		"entityType":     json.RawMessage(`"lead"`),
		"entityId":       json.RawMessage(`"lead_1"`),
		"name":           json.RawMessage(`"Acme"`),
		"role":           json.RawMessage(`"prospect"`),
	}
	if _, ok := hitToMatch(hit, "org_1"); ok {
		t.Fatal("expected hit from another organization to be dropped")
	}
	match, ok := hitToMatch(hit, "org_2")
	if !ok || match.EntityID != "lead_1" || match.Name != "Acme" {
		t.Fatalf("unexpected match %+v", match)
	}
}
