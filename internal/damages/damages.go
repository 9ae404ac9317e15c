// Package damages computes personal-injury damages and sentencing offense levels.
package damages

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidInput = errors.New("invalid damages input")

var (
	DefaultMileageRate = decimal.RequireFromString("0.70")
	minMultiplier      = decimal.NewFromInt(1)
	maxMultiplier      = decimal.NewFromInt(5)
	hundred            = decimal.NewFromInt(100)
)

// InputError lists every invalid field at once.
type InputError struct {
	Fields map[string]string
}

func (e *InputError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, problem := range e.Fields {
		parts = append(parts, field+" "+problem)
	}
	return fmt.Sprintf("invalid damages input: %s", strings.Join(parts, "; "))
}

func (e *InputError) Unwrap() error { return ErrInvalidInput }

// Input amounts are in dollars. Zero MileageRate uses the configured default and
// zero Multiplier means 1.0.
type Input struct {
	PastMedical             decimal.Decimal `json:"pastMedical"`
	FutureMedical           decimal.Decimal `json:"futureMedical"`
	LostWageHours           decimal.Decimal `json:"lostWageHours"`
	HourlyRate              decimal.Decimal `json:"hourlyRate"`
	OtherLostIncome         decimal.Decimal `json:"otherLostIncome"`
	FutureLostEarnings      decimal.Decimal `json:"futureLostEarnings"`
	PropertyDamage          decimal.Decimal `json:"propertyDamage"`
	Miles                   decimal.Decimal `json:"miles"`
	MileageRate             decimal.Decimal `json:"mileageRate"`
	Multiplier              decimal.Decimal `json:"multiplier"`
	ComparativeFaultPercent decimal.Decimal `json:"comparativeFaultPercent"`
}

type Result struct {
	MedicalExpenses    decimal.Decimal `json:"medicalExpenses"`
	LostWages          decimal.Decimal `json:"lostWages"`
	PropertyDamage     decimal.Decimal `json:"propertyDamage"`
	MileageRate        decimal.Decimal `json:"mileageRate"`
	Mileage            decimal.Decimal `json:"mileage"`
	EconomicDamages    decimal.Decimal `json:"economicDamages"`
	Multiplier         decimal.Decimal `json:"multiplier"`
	NonEconomicDamages decimal.Decimal `json:"nonEconomicDamages"`
	GrossDamages       decimal.Decimal `json:"grossDamages"`
	FaultReduction     decimal.Decimal `json:"faultReduction"`
	NetDamages         decimal.Decimal `json:"netDamages"`
}

// Calculate applies the multiplier method: non-economic damages are economic
// damages times the multiplier, and comparative fault reduces the gross total.
// Every component is rounded to cents.
func Calculate(in Input, defaultRate decimal.Decimal) (Result, error) {
	if err := validate(in); err != nil {
		return Result{}, err
	}

	rate := in.MileageRate
	if rate.IsZero() {
		rate = defaultRate
	}
	multiplier := in.Multiplier
	if multiplier.IsZero() {
		multiplier = minMultiplier
	}

	var r Result
	r.MedicalExpenses = in.PastMedical.Add(in.FutureMedical).Round(2)
	r.LostWages = in.LostWageHours.Mul(in.HourlyRate).Add(in.OtherLostIncome).Add(in.FutureLostEarnings).Round(2)
	r.PropertyDamage = in.PropertyDamage.Round(2)
	r.MileageRate = rate
	r.Mileage = in.Miles.Mul(rate).Round(2)
	r.EconomicDamages = r.MedicalExpenses.Add(r.LostWages).Add(r.PropertyDamage).Add(r.Mileage)
	r.Multiplier = multiplier
	r.NonEconomicDamages = r.EconomicDamages.Mul(multiplier).Round(2)
	r.GrossDamages = r.EconomicDamages.Add(r.NonEconomicDamages)
	r.FaultReduction = r.GrossDamages.Mul(in.ComparativeFaultPercent).Div(hundred).Round(2)
	r.NetDamages = r.GrossDamages.Sub(r.FaultReduction)
	return r, nil
}

func validate(in Input) error {
	problems := map[string]string{}
	amounts := map[string]decimal.Decimal{
		"pastMedical":        in.PastMedical,
		"futureMedical":      in.FutureMedical,
		"lostWageHours":      in.LostWageHours,
		"hourlyRate":         in.HourlyRate,
		"otherLostIncome":    in.OtherLostIncome,
		"futureLostEarnings": in.FutureLostEarnings,
		"propertyDamage":     in.PropertyDamage,
		"miles":              in.Miles,
		"mileageRate":        in.MileageRate,
	}
	for field, value := range amounts {
		if value.IsNegative() {
			problems[field] = "must not be negative"
		}
	}
	if !in.Multiplier.IsZero() && (in.Multiplier.LessThan(minMultiplier) || in.Multiplier.GreaterThan(maxMultiplier)) {
		problems["multiplier"] = "must be between 1.0 and 5.0"
	}
	if in.ComparativeFaultPercent.IsNegative() || in.ComparativeFaultPercent.GreaterThan(hundred) {
		problems["comparativeFaultPercent"] = "must be between 0 and 100"
	}
	if len(problems) > 0 {
		return &InputError{Fields: problems}
	}
	return nil
}
