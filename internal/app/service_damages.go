package app

import (
	"context"
	"encoding/json"
	"fmt"

	"lexdesk/api/internal/damages"
	"lexdesk/api/internal/store"
)

// CalculateDamages runs the calculation without saving it.
func (s *Service) CalculateDamages(input damages.Input) (damages.Result, error) {
	return damages.Calculate(input, s.mileageRate)
}

// SaveDamageCalculation computes damages for a matter and stores input and result.
func (s *Service) SaveDamageCalculation(ctx context.Context, orgID, actorID, matterID string, input damages.Input) (map[string]any, error) {
	if _, err := s.store.GetMatter(ctx, orgID, matterID); err != nil {
		return nil, err
	}
	result, err := damages.Calculate(input, s.mileageRate)
	if err != nil {
		return nil, err
	}
	encodedInput, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("encode damages input: %w", err)
	}
	encodedResult, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encode damages result: %w", err)
	}

	calc := store.DamageCalculation{
		ID:             s.newID("dmg"),
		OrganizationID: orgID,
		MatterID:       matterID,
		Input:          encodedInput,
		Result:         encodedResult,
		Total:          result.NetDamages.StringFixed(2),
		CreatedBy:      actorID,
		CreatedAt:      s.now(),
	}
	if err := s.store.InsertDamageCalculation(ctx, calc); err != nil {
		return nil, err
	}
	s.audit(ctx, orgID, actorID, "damages.calculate", "matter", matterID, map[string]any{
		"calculationId": calc.ID,
		"netDamages":    calc.Total,
	})
	return damageCalculationView(calc), nil
}

func (s *Service) ListDamageCalculations(ctx context.Context, orgID, matterID string) ([]map[string]any, error) {
	if _, err := s.store.GetMatter(ctx, orgID, matterID); err != nil {
		return nil, err
	}
	calcs, err := s.store.ListDamageCalculations(ctx, orgID, matterID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(calcs))
	for _, calc := range calcs {
		items = append(items, damageCalculationView(calc))
	}
	return items, nil
}

func (s *Service) CalculateOffenseLevel(input damages.SentencingInput) (damages.SentencingResult, error) {
	return damages.OffenseLevel(input)
}
