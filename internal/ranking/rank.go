package ranking

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/kmrl/induction/internal/fleet"
	"github.com/kmrl/induction/internal/scoring"
)

// NoIssues is the single explanation emitted for a rake with nothing to
// report. It is distinct from an empty (not yet computed) reason list.
const NoIssues = "No issues detected"

// Explanation thresholds.
const (
	MileageDeviationAlertKm = 100.0 // deviation above this is reported
	StablingPenaltyAlert    = 20    // penalty above this is reported
)

// Status is the operator-facing disposition of a ranked rake.
type Status string

// Rake dispositions.
const (
	StatusReady   Status = "ready"   // eligible, nothing to report
	StatusCheck   Status = "check"   // eligible, with warnings
	StatusBlocked Status = "blocked" // must not enter service
)

// ScoredRake is the ranking result for one rake.
// It is built fresh on every Rank call and never mutated afterwards.
type ScoredRake struct {
	Rake      fleet.Rake        `json:"rake" yaml:"rake"`
	Scores    scoring.Breakdown `json:"scores" yaml:"scores"`
	Composite int               `json:"composite" yaml:"composite"`
	Reasons   []string          `json:"reasons" yaml:"reasons"`
	HardBlock bool              `json:"hard_block" yaml:"hard_block"`
}

// Conflicts returns the reasons without the NoIssues marker.
func (s ScoredRake) Conflicts() []string {
	out := make([]string, 0, len(s.Reasons))
	for _, r := range s.Reasons {
		if r != NoIssues {
			out = append(out, r)
		}
	}
	return out
}

// Status reports Blocked for hard-blocked rakes, Check when any conflict is
// reported and Ready otherwise.
func (s ScoredRake) Status() Status {
	switch {
	case s.HardBlock:
		return StatusBlocked
	case len(s.Conflicts()) > 0:
		return StatusCheck
	default:
		return StatusReady
	}
}

// HardBlocked reports whether r must be kept out of active service: any
// missing fitness certificate or any open job-card.
func HardBlocked(r fleet.Rake) bool {
	return !r.FullyCertified() || r.OpenJobCards > 0
}

// Explain lists the human-readable reasons behind a rake's deductions and
// blocks. The order is fixed: missing certificates (in subsystem order), open
// job-cards, branding shortfall, mileage deviation, cleaning, stabling.
func Explain(r fleet.Rake) []string {
	var reasons []string

	for _, s := range fleet.Subsystems() {
		if !r.FitnessCertified(s) {
			reasons = append(reasons, s.Label()+" FC missing")
		}
	}
	if r.OpenJobCards > 0 {
		reasons = append(reasons, fmt.Sprintf("%d open job-card(s)", r.OpenJobCards))
	}
	if r.BrandingShortfallHours > 0 {
		reasons = append(reasons, formatNumber(r.BrandingShortfallHours)+"h branding shortfall")
	}
	if dev := scoring.MileageDeviation(r); dev > MileageDeviationAlertKm {
		reasons = append(reasons, "Mileage deviation "+formatNumber(dev)+" km")
	}
	if r.CleaningDue {
		reasons = append(reasons, "Deep-clean due tonight")
	}
	if r.StablingPenalty > StablingPenaltyAlert {
		reasons = append(reasons, "Unfavourable stabling position")
	}

	if len(reasons) == 0 {
		return []string{NoIssues}
	}
	return reasons
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Composite computes round(sum(score * weight) / total weight).
// Callers must pass weights that satisfy Validate.
func Composite(b scoring.Breakdown, w Weights) int {
	total := w.Total()
	if total <= 0 {
		return 0
	}
	sum := 0
	for _, c := range scoring.Criteria() {
		sum += b.Get(c) * w[c]
	}
	return scoring.Clamp(int(math.Round(float64(sum) / float64(total))))
}

// Score evaluates a single rake. Callers must pass validated weights.
func Score(r fleet.Rake, w Weights) ScoredRake {
	b := scoring.Score(r)
	return ScoredRake{
		Rake:      r,
		Scores:    b,
		Composite: Composite(b, w),
		Reasons:   Explain(r),
		HardBlock: HardBlocked(r),
	}
}

// Rank scores every rake and orders them by composite score, highest first.
// Ties are broken by rake ID ascending so the output is fully reproducible.
// Hard-blocked rakes stay in the list, flagged.
//
// Invalid weights fail before any scoring with an error wrapping
// ErrInvalidWeights. The input slice is never modified.
func Rank(rakes []fleet.Rake, w Weights) ([]ScoredRake, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}

	out := make([]ScoredRake, len(rakes))
	for i, r := range rakes {
		out[i] = Score(r, w)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Composite != out[j].Composite {
			return out[i].Composite > out[j].Composite
		}
		return out[i].Rake.ID < out[j].Rake.ID
	})
	return out, nil
}

// Summary counts rakes by disposition.
type Summary struct {
	Ready   int `json:"ready" yaml:"ready"`
	Check   int `json:"check" yaml:"check"`
	Blocked int `json:"blocked" yaml:"blocked"`
}

// Summarize counts the dispositions in a ranked list.
func Summarize(list []ScoredRake) Summary {
	var s Summary
	for _, r := range list {
		switch r.Status() {
		case StatusBlocked:
			s.Blocked++
		case StatusCheck:
			s.Check++
		default:
			s.Ready++
		}
	}
	return s
}

// NeedsAttention returns, in rank order, up to limit rakes that are blocked
// or carry conflicts. A limit of zero or less returns all of them.
func NeedsAttention(list []ScoredRake, limit int) []ScoredRake {
	var out []ScoredRake
	for _, r := range list {
		if r.Status() == StatusReady {
			continue
		}
		out = append(out, r)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
