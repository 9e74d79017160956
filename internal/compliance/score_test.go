package compliance

import (
	"math"
	"testing"

	"github.com/cloudrecon-labs/posturescan/internal/models"
)

var testWeights = map[models.Severity]float64{
	models.SeverityCritical: 10,
	models.SeverityHigh:     6,
	models.SeverityMedium:   3,
	models.SeverityLow:      1,
	models.SeverityInfo:     0.5,
}

func TestOverall_AllPassing(t *testing.T) {
	findings := []models.Finding{
		{Status: models.StatusPass, Severity: models.SeverityCritical},
		{Status: models.StatusPass, Severity: models.SeverityLow},
	}
	if got := Overall(findings, testWeights); got != 100 {
		t.Errorf("Overall = %v; want 100", got)
	}
}

func TestOverall_AllFailing(t *testing.T) {
	findings := []models.Finding{
		{Status: models.StatusFail, Severity: models.SeverityCritical},
		{Status: models.StatusFail, Severity: models.SeverityMedium},
	}
	if got := Overall(findings, testWeights); got != 0 {
		t.Errorf("Overall = %v; want 0", got)
	}
}

func TestOverall_SeverityWeighting(t *testing.T) {
	// A critical failure (weight 10) against a low pass (weight 1):
	// 1 / 11 earned.
	findings := []models.Finding{
		{Status: models.StatusFail, Severity: models.SeverityCritical},
		{Status: models.StatusPass, Severity: models.SeverityLow},
	}
	got := Overall(findings, testWeights)
	want := 100.0 / 11.0
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("Overall = %v; want %v", got, want)
	}

	// The same statuses with severities swapped score much higher: the
	// weighting is the whole point.
	swapped := []models.Finding{
		{Status: models.StatusFail, Severity: models.SeverityLow},
		{Status: models.StatusPass, Severity: models.SeverityCritical},
	}
	if higher := Overall(swapped, testWeights); higher <= got {
		t.Errorf("low-severity failure scored %v; must beat critical failure %v", higher, got)
	}
}

func TestOverall_NothingScoredIs100(t *testing.T) {
	if got := Overall(nil, testWeights); got != 100 {
		t.Errorf("Overall(nil) = %v; want 100", got)
	}

	findings := []models.Finding{
		{Status: models.StatusError, Severity: models.SeverityHigh},
		{Status: models.StatusNotApplicable, Severity: models.SeverityHigh},
	}
	if got := Overall(findings, testWeights); got != 100 {
		t.Errorf("error/not-applicable only = %v; want 100", got)
	}
}

func TestOverall_ZeroWeightSeveritySkipped(t *testing.T) {
	weights := map[models.Severity]float64{
		models.SeverityHigh: 6,
		// Info absent: weight 0, excluded from the denominator.
	}
	findings := []models.Finding{
		{Status: models.StatusFail, Severity: models.SeverityInfo},
		{Status: models.StatusPass, Severity: models.SeverityHigh},
	}
	if got := Overall(findings, weights); got != 100 {
		t.Errorf("Overall = %v; want 100 (zero-weight failures excluded)", got)
	}
}
