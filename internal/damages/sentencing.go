package damages

import "fmt"

const (
	MinOffenseLevel = 1
	MaxOffenseLevel = 43

	acceptanceLevels      = 2
	governmentMotionLevel = 1
	// The extra level for a government motion only applies at 16 or above.
	governmentMotionFloor = 16
)

type Adjustment struct {
	Description string `json:"description"`
	Levels      int    `json:"levels"`
}

type SentencingInput struct {
	BaseOffenseLevel      int          `json:"baseOffenseLevel"`
	SpecificAdjustments   []Adjustment `json:"specificAdjustments"`
	RoleAdjustment        int          `json:"roleAdjustment"`
	AcceptsResponsibility bool         `json:"acceptsResponsibility"`
	GovernmentMotion      bool         `json:"governmentMotion"`
}

type SentencingResult struct {
	BaseOffenseLevel    int  `json:"baseOffenseLevel"`
	SpecificAdjustments int  `json:"specificAdjustments"`
	RoleAdjustment      int  `json:"roleAdjustment"`
	AdjustedLevel       int  `json:"adjustedLevel"`
	AcceptanceReduction int  `json:"acceptanceReduction"`
	TotalOffenseLevel   int  `json:"totalOffenseLevel"`
	Clamped             bool `json:"clamped"`
}

// OffenseLevel computes the total offense level, clamped to [1,43].
func OffenseLevel(in SentencingInput) (SentencingResult, error) {
	problems := map[string]string{}
	if in.BaseOffenseLevel < MinOffenseLevel || in.BaseOffenseLevel > MaxOffenseLevel {
		problems["baseOffenseLevel"] = fmt.Sprintf("must be between %d and %d", MinOffenseLevel, MaxOffenseLevel)
	}
	if in.RoleAdjustment < -4 || in.RoleAdjustment > 4 {
		problems["roleAdjustment"] = "must be between -4 and 4"
	}
	for i, adj := range in.SpecificAdjustments {
		if adj.Levels < -MaxOffenseLevel || adj.Levels > MaxOffenseLevel {
			problems[fmt.Sprintf("specificAdjustments[%d].levels", i)] = fmt.Sprintf("must be between %d and %d", -MaxOffenseLevel, MaxOffenseLevel)
		}
	}
	if in.GovernmentMotion && !in.AcceptsResponsibility {
		problems["governmentMotion"] = "requires acceptance of responsibility"
	}
	if len(problems) > 0 {
		return SentencingResult{}, &InputError{Fields: problems}
	}

	result := SentencingResult{
		BaseOffenseLevel: in.BaseOffenseLevel,
		RoleAdjustment:   in.RoleAdjustment,
	}
	for _, adj := range in.SpecificAdjustments {
		result.SpecificAdjustments += adj.Levels
	}
	result.AdjustedLevel = in.BaseOffenseLevel + result.SpecificAdjustments + in.RoleAdjustment

	if in.AcceptsResponsibility {
		result.AcceptanceReduction = acceptanceLevels
		if in.GovernmentMotion && result.AdjustedLevel >= governmentMotionFloor {
			result.AcceptanceReduction += governmentMotionLevel
		}
	}

	total := result.AdjustedLevel - result.AcceptanceReduction
	switch {
	case total < MinOffenseLevel:
		total, result.Clamped = MinOffenseLevel, true
	case total > MaxOffenseLevel:
		total, result.Clamped = MaxOffenseLevel, true
	}
	result.TotalOffenseLevel = total
	return result, nil
}
