package ranking

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/kmrl/induction/internal/scoring"
)

// ErrInvalidWeights is returned when a weight vector cannot be used for
// ranking: all weights zero, a negative or oversized weight, or an unknown
// criterion.
var ErrInvalidWeights = errors.New("invalid ranking weights")

// MaxWeight bounds a single criterion weight so that the weighted sum of
// five scores of at most 100 always fits in an int.
const MaxWeight = 1_000_000

// Weights maps each criterion to a non-negative integer weight.
// Weights need not sum to 100; the composite is normalised by the actual
// total. A criterion missing from the map weighs zero.
type Weights map[scoring.Criterion]int

// DefaultWeights returns the standard nightly induction weighting.
//
// Readiness dominates at 40; branding, mileage, cleaning and stabling share
// the remaining 60 equally.
func DefaultWeights() Weights {
	return Weights{
		scoring.CriterionReadiness: 40,
		scoring.CriterionBranding:  15,
		scoring.CriterionMileage:   15,
		scoring.CriterionCleaning:  15,
		scoring.CriterionStabling:  15,
	}
}

// Total returns the sum of all weights.
func (w Weights) Total() int {
	total := 0
	for _, v := range w {
		total += v
	}
	return total
}

// Validate checks that the weights can normalise a composite score.
// An all-zero vector is rejected rather than silently replaced.
func (w Weights) Validate() error {
	keys := make([]string, 0, len(w))
	for c := range w {
		keys = append(keys, string(c))
	}
	sort.Strings(keys)

	for _, k := range keys {
		c := scoring.Criterion(k)
		if !c.Valid() {
			return fmt.Errorf("%w: unknown criterion %q", ErrInvalidWeights, k)
		}
		if w[c] < 0 {
			return fmt.Errorf("%w: %s weight %d is negative", ErrInvalidWeights, k, w[c])
		}
		if w[c] > MaxWeight {
			return fmt.Errorf("%w: %s weight %d exceeds %d", ErrInvalidWeights, k, w[c], MaxWeight)
		}
	}
	if w.Total() == 0 {
		return fmt.Errorf("%w: weights sum to zero", ErrInvalidWeights)
	}
	return nil
}

// Clone returns an independent copy of w.
func (w Weights) Clone() Weights {
	out := make(Weights, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}

// String renders the weights in criterion order, e.g.
// "readiness=40,branding=15,mileage=15,cleaning=15,stabling=15".
func (w Weights) String() string {
	parts := make([]string, 0, len(w))
	for _, c := range scoring.Criteria() {
		if v, ok := w[c]; ok {
			parts = append(parts, fmt.Sprintf("%s=%d", c, v))
		}
	}
	return strings.Join(parts, ",")
}

// ParseWeights parses a "criterion=weight" list separated by commas.
// Criteria not mentioned keep their value from base (which may be nil).
func ParseWeights(s string, base Weights) (Weights, error) {
	out := base.Clone()
	if strings.TrimSpace(s) == "" {
		return out, nil
	}

	for _, part := range strings.Split(s, ",") {
		name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			return nil, fmt.Errorf("%w: expected criterion=weight, got %q", ErrInvalidWeights, part)
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("%w: %s weight %q is not an integer", ErrInvalidWeights, name, value)
		}
		out[scoring.Criterion(strings.ToLower(strings.TrimSpace(name)))] = n
	}
	return out, nil
}
