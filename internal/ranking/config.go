package ranking

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/kmrl/induction/internal/scoring"
)

// CalibrationConfig represents the JSON structure of the calibration file.
type CalibrationConfig struct {
	Version string  `json:"version"` // Config version for future compatibility
	Weights Weights `json:"weights"` // Per-criterion weights; omitted criteria keep defaults
}

// LoadCalibration loads ranking weights from a JSON calibration file.
// If the file doesn't exist or can't be read, returns default weights with an error.
// Partial configurations are merged with defaults for graceful degradation.
//
// Example file:
//
//	{"version": "1", "weights": {"readiness": 50, "branding": 20}}
func LoadCalibration(filePath string) (Weights, error) {
	if filePath == "" {
		return DefaultWeights(), nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		slog.Warn("failed to read calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultWeights(), fmt.Errorf("failed to read calibration file: %w", err)
	}

	var config CalibrationConfig
	if err := json.Unmarshal(data, &config); err != nil {
		slog.Warn("failed to parse calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultWeights(), fmt.Errorf("failed to parse calibration file: %w", err)
	}

	defaults := DefaultWeights()
	merged := MergeCalibration(defaults, config.Weights)
	if err := merged.Validate(); err != nil {
		slog.Warn("calibration file produced invalid weights, using defaults",
			"path", filePath,
			"error", err)
		return defaults, fmt.Errorf("invalid calibration file %s: %w", filePath, err)
	}

	logCalibrationOverrides(defaults, merged)
	return merged, nil
}

// MergeCalibration overlays override onto base.
// Every criterion present in override replaces the base value, including an
// explicit zero, which disables that criterion.
func MergeCalibration(base, override Weights) Weights {
	if base == nil {
		base = DefaultWeights()
	}
	result := base.Clone()
	for c, v := range override {
		result[c] = v
	}
	return result
}

// logCalibrationOverrides logs which weights differ from the defaults.
func logCalibrationOverrides(defaults, loaded Weights) {
	var overrides []string
	for _, c := range scoring.Criteria() {
		if loaded[c] != defaults[c] {
			overrides = append(overrides, fmt.Sprintf("%s: %d -> %d", c, defaults[c], loaded[c]))
		}
	}

	if len(overrides) > 0 {
		slog.Info("loaded ranking calibration with overrides",
			"overrides", overrides)
	} else {
		slog.Info("loaded ranking calibration (using all defaults)")
	}
}
