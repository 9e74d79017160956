package compliance

import (
	"github.com/cloudrecon-labs/posturescan/internal/models"
)

// controlState tracks whether a control saw evidence and whether any of it
// failed.
type controlState struct {
	seen   bool
	failed bool
}

// Scores computes the per-framework compliance scores for a finding set.
//
// Only pass and fail findings establish control applicability: errored and
// not-applicable findings carry no evidence either way. A control passes
// when every finding mapped to it passed. The score is the fraction of
// applicable controls with no failure, scaled to 0-100. Frameworks with no
// applicable control in this scan are absent from the result, not zero:
// a basic-level scan must not report HIPAA compliance it never measured.
func Scores(findings []models.Finding) map[string]float64 {
	states := make(map[Framework]map[string]*controlState)

	for _, f := range findings {
		if f.Status != models.StatusPass && f.Status != models.StatusFail {
			continue
		}
		for _, ref := range Controls(f.CheckID) {
			byControl := states[ref.Framework]
			if byControl == nil {
				byControl = make(map[string]*controlState)
				states[ref.Framework] = byControl
			}
			st := byControl[ref.Control]
			if st == nil {
				st = &controlState{}
				byControl[ref.Control] = st
			}
			st.seen = true
			if f.Status == models.StatusFail {
				st.failed = true
			}
		}
	}

	scores := make(map[string]float64, len(states))
	for fw, byControl := range states {
		applicable, passing := 0, 0
		for _, st := range byControl {
			if !st.seen {
				continue
			}
			applicable++
			if !st.failed {
				passing++
			}
		}
		if applicable == 0 {
			continue
		}
		scores[string(fw)] = 100 * float64(passing) / float64(applicable)
	}
	return scores
}
