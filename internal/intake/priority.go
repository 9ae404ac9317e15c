package intake

import (
	"strings"
	"unicode/utf8"
)

const (
	DefaultPriority = 50
	maxPriority     = 100
)

// Score sums the priority rules for a submission and clamps the result to [0,100].
func Score(fields Fields) int {
	score := 0
	if strings.EqualFold(fields.Text(KeyUrgency), "HIGH") {
		score += 30
	}
	if fields.Get(KeyUrgent).Bool() {
		score += 25
	}
	if strings.EqualFold(fields.Text(KeyChargeType), "felony") {
		score += 40
	}
	if !fields.Get(KeyInjuries).IsEmpty() {
		score += 35
	}
	if !fields.Get(KeyCourtDate).IsEmpty() {
		score += 20
	}
	if !fields.Get(KeyEmail).IsEmpty() {
		score += 5
	}
	if !fields.Get(KeyPhone).IsEmpty() {
		score += 5
	}

	incident := utf8.RuneCountInString(fields.Get(KeyIncidentDescription).String())
	if incident > 100 {
		score += 10
	}
	if incident > 300 {
		score += 10
	}

	switch {
	case score > maxPriority:
		return maxPriority
	case score < 0:
		return 0
	default:
		return score
	}
}

// ScoreRaw scores a raw payload, falling back to DefaultPriority when it cannot be parsed.
func ScoreRaw(raw []byte) int {
	fields, err := ParseFields(raw)
	if err != nil {
		return DefaultPriority
	}
	return Score(fields)
}
