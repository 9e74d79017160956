package compliance

import (
	"github.com/cloudrecon-labs/posturescan/internal/models"
)

// Overall computes the severity-weighted posture score (0-100) for a
// finding set. Each pass or fail finding contributes the weight of its
// severity; the score is the weighted pass fraction. An account with no
// scored findings gets 100: nothing measured, nothing failing.
func Overall(findings []models.Finding, weights map[models.Severity]float64) float64 {
	var earned, total float64
	for _, f := range findings {
		switch f.Status {
		case models.StatusPass, models.StatusFail:
		default:
			continue
		}
		w := weights[f.Severity]
		if w <= 0 {
			continue
		}
		total += w
		if f.Status == models.StatusPass {
			earned += w
		}
	}
	if total == 0 {
		return 100
	}
	return 100 * earned / total
}
