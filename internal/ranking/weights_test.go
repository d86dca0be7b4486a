package ranking

import (
	"errors"
	"testing"

	"github.com/kmrl/induction/internal/scoring"
)

func TestDefaultWeights(t *testing.T) {
	w := DefaultWeights()
	if w.Total() != 100 {
		t.Errorf("expected default weights to sum to 100, got %d", w.Total())
	}
	if w[scoring.CriterionReadiness] != 40 {
		t.Errorf("expected readiness 40, got %d", w[scoring.CriterionReadiness])
	}
	if err := w.Validate(); err != nil {
		t.Errorf("default weights should validate: %v", err)
	}
}

// TestWeights_Validate tests rejection of unusable weight vectors.
func TestWeights_Validate(t *testing.T) {
	tests := []struct {
		name    string
		weights Weights
		wantErr bool
	}{
		{"defaults", DefaultWeights(), false},
		{"single criterion", Weights{scoring.CriterionMileage: 1}, false},
		{"sum not 100", Weights{scoring.CriterionReadiness: 3, scoring.CriterionStabling: 2}, false},
		{"all zero", Weights{scoring.CriterionReadiness: 0, scoring.CriterionBranding: 0}, true},
		{"empty", Weights{}, true},
		{"nil", nil, true},
		{"negative", Weights{scoring.CriterionReadiness: 50, scoring.CriterionBranding: -5}, true},
		{"unknown criterion", Weights{scoring.CriterionReadiness: 50, "speed": 10}, true},
		{"at cap", Weights{scoring.CriterionReadiness: MaxWeight, scoring.CriterionBranding: MaxWeight}, false},
		{"above cap", Weights{scoring.CriterionReadiness: MaxWeight + 1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.weights.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidWeights) {
					t.Errorf("expected ErrInvalidWeights, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestWeights_Clone(t *testing.T) {
	w := DefaultWeights()
	c := w.Clone()
	c[scoring.CriterionReadiness] = 1

	if w[scoring.CriterionReadiness] != 40 {
		t.Error("mutating the clone changed the original")
	}
}

func TestWeights_String(t *testing.T) {
	want := "readiness=40,branding=15,mileage=15,cleaning=15,stabling=15"
	if got := DefaultWeights().String(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestParseWeights(t *testing.T) {
	t.Run("overrides base", func(t *testing.T) {
		w, err := ParseWeights("Readiness=60, stabling = 0", DefaultWeights())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if w[scoring.CriterionReadiness] != 60 || w[scoring.CriterionStabling] != 0 {
			t.Errorf("overrides not applied: %v", w)
		}
		if w[scoring.CriterionBranding] != 15 {
			t.Errorf("expected branding to keep base value, got %d", w[scoring.CriterionBranding])
		}
	})

	t.Run("empty keeps base", func(t *testing.T) {
		w, err := ParseWeights("  ", DefaultWeights())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if w.String() != DefaultWeights().String() {
			t.Errorf("expected defaults, got %v", w)
		}
	})

	t.Run("nil base", func(t *testing.T) {
		w, err := ParseWeights("mileage=1", nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(w) != 1 || w[scoring.CriterionMileage] != 1 {
			t.Errorf("expected only mileage=1, got %v", w)
		}
	})

	for _, in := range []string{"readiness", "readiness=high", "branding=1.5"} {
		if _, err := ParseWeights(in, nil); !errors.Is(err, ErrInvalidWeights) {
			t.Errorf("ParseWeights(%q): expected ErrInvalidWeights, got %v", in, err)
		}
	}
}
