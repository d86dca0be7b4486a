// Package ranking combines per-criterion rake scores into a weighted
// composite, applies hard eligibility blocks and explains every decision.
//
// Basic Usage:
//
//	// Load calibration (typically at startup)
//	weights, err := ranking.LoadCalibration("configs/ranking.calibration.json")
//	if err != nil {
//		log.Warn("using default weights", "error", err)
//	}
//
//	ranked, err := ranking.Rank(rakes, weights)
//	if errors.Is(err, ranking.ErrInvalidWeights) {
//		// reject the request; nothing was scored
//	}
//
// Ranking:
//
// Rank is a pure function of its inputs. Rakes are ordered by composite
// score, highest first, with ties broken by rake ID. A rake with a missing
// fitness certificate or an open job-card is flagged HardBlock but still
// ranked, so operators can see where it would have placed.
//
// Calibration:
//
// Weights can be tuned at deploy time via a JSON calibration file loaded at
// startup. Criteria omitted from the file keep their default weight. See
// configs/ranking.calibration.json for the default configuration.
package ranking
