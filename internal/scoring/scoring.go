// Package scoring maps one rake's operational signals to per-criterion
// scores in [0, 100].
//
// Every function is pure and reproducible: scores are computed in float64,
// multiplied by 100, rounded half away from zero (math.Round), then clamped.
package scoring

import (
	"math"

	"github.com/kmrl/induction/internal/fleet"
)

// Criterion names one scoring objective.
type Criterion string

// The five induction objectives.
const (
	CriterionReadiness Criterion = "readiness"
	CriterionBranding  Criterion = "branding"
	CriterionMileage   Criterion = "mileage"
	CriterionCleaning  Criterion = "cleaning"
	CriterionStabling  Criterion = "stabling"
)

// Criteria returns every criterion in its fixed reporting order.
func Criteria() []Criterion {
	return []Criterion{
		CriterionReadiness,
		CriterionBranding,
		CriterionMileage,
		CriterionCleaning,
		CriterionStabling,
	}
}

// Valid reports whether c is one of the five known criteria.
func (c Criterion) Valid() bool {
	switch c {
	case CriterionReadiness, CriterionBranding, CriterionMileage, CriterionCleaning, CriterionStabling:
		return true
	}
	return false
}

// Scoring constants.
const (
	MinScore = 0
	MaxScore = 100

	JobCardPenalty    = 0.2 // readiness lost per open job-card
	MaxJobCardPenalty = 0.8

	BrandingTargetHours = 10.0 // shortfall at which branding scores zero

	TargetMileageKm       = 950.0 // balancing target for recent mileage
	MaxMileageDeviationKm = 250.0 // deviation at which mileage scores zero

	CleaningDueScore = 65 // discouraged, not disqualifying
	CleaningOKScore  = 100
)

// Clamp bounds n to [MinScore, MaxScore].
func Clamp(n int) int {
	if n < MinScore {
		return MinScore
	}
	if n > MaxScore {
		return MaxScore
	}
	return n
}

// percent converts a fraction to a clamped integer percentage.
// Bounds are applied before the int conversion so out-of-range caller input
// (negative hours, NaN) cannot overflow.
func percent(fraction float64) int {
	v := math.Round(fraction * 100)
	switch {
	case math.IsNaN(v), v <= MinScore:
		return MinScore
	case v >= MaxScore:
		return MaxScore
	}
	return int(v)
}

// Readiness rewards fitness certificates and penalises open job-cards.
//
// Formula: clamp(round((certified/3 - min(openJobs*0.2, 0.8)) * 100))
func Readiness(r fleet.Rake) int {
	fc := float64(r.CertifiedCount()) / float64(fleet.NumSubsystems)
	jobPenalty := math.Min(float64(r.OpenJobCards)*JobCardPenalty, MaxJobCardPenalty)
	return percent(fc - jobPenalty)
}

// Branding scores advertiser exposure: no shortfall is 100, ten or more
// hours short is 0.
//
// Formula: clamp(round((1 - min(shortfall, 10)/10) * 100))
func Branding(r fleet.Rake) int {
	shortfall := math.Min(r.BrandingShortfallHours, BrandingTargetHours)
	return percent(1 - shortfall/BrandingTargetHours)
}

// MileageDeviation returns the absolute distance from the balancing target.
func MileageDeviation(r fleet.Rake) float64 {
	return math.Abs(r.MileageKm - TargetMileageKm)
}

// Mileage favours rakes close to the balancing target.
//
// Formula: clamp(round((1 - min(|km - 950|, 250)/250) * 100))
func Mileage(r fleet.Rake) int {
	dev := math.Min(MileageDeviation(r), MaxMileageDeviationKm)
	return percent(1 - dev/MaxMileageDeviationKm)
}

// Cleaning returns 65 when a deep clean is due tonight, otherwise 100.
func Cleaning(r fleet.Rake) int {
	if r.CleaningDue {
		return CleaningDueScore
	}
	return CleaningOKScore
}

// Stabling converts the stabling penalty into a score. The penalty is
// clamped to [0, 100] first.
func Stabling(r fleet.Rake) int {
	return MaxScore - Clamp(r.StablingPenalty)
}

// Breakdown holds all five criterion scores for one rake.
type Breakdown struct {
	Readiness int `json:"readiness" yaml:"readiness"`
	Branding  int `json:"branding" yaml:"branding"`
	Mileage   int `json:"mileage" yaml:"mileage"`
	Cleaning  int `json:"cleaning" yaml:"cleaning"`
	Stabling  int `json:"stabling" yaml:"stabling"`
}

// Score evaluates every criterion for r.
func Score(r fleet.Rake) Breakdown {
	return Breakdown{
		Readiness: Readiness(r),
		Branding:  Branding(r),
		Mileage:   Mileage(r),
		Cleaning:  Cleaning(r),
		Stabling:  Stabling(r),
	}
}

// Get returns the score for one criterion, or 0 for an unknown criterion.
func (b Breakdown) Get(c Criterion) int {
	switch c {
	case CriterionReadiness:
		return b.Readiness
	case CriterionBranding:
		return b.Branding
	case CriterionMileage:
		return b.Mileage
	case CriterionCleaning:
		return b.Cleaning
	case CriterionStabling:
		return b.Stabling
	}
	return 0
}
