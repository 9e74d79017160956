package policy

import (
	"strings"

	"github.com/cloudrecon-labs/posturescan/internal/models"
)

var validSeverities = map[models.Severity]struct{}{
	models.SeverityCritical: {},
	models.SeverityHigh:     {},
	models.SeverityMedium:   {},
	models.SeverityLow:      {},
	models.SeverityInfo:     {},
}

// Apply filters and rewrites findings according to cfg. Findings whose
// check is disabled are dropped; severity overrides are applied to the
// rest. A nil cfg returns findings unchanged.
//
// Apply runs after evaluation and before aggregation, so compliance scores
// see the policy-adjusted finding set.
func Apply(findings []models.Finding, cfg *PolicyConfig) []models.Finding {
	if cfg == nil || len(cfg.Checks) == 0 {
		return findings
	}

	out := make([]models.Finding, 0, len(findings))
	for _, f := range findings {
		cc, ok := cfg.Checks[f.CheckID]
		if !ok {
			out = append(out, f)
			continue
		}
		if cc.Enabled != nil && !*cc.Enabled {
			continue
		}
		if cc.Severity != "" {
			sev := models.Severity(strings.ToUpper(cc.Severity))
			if _, valid := validSeverities[sev]; valid {
				f.Severity = sev
			}
		}
		out = append(out, f)
	}
	return out
}

// Disabled reports whether cfg explicitly disables the given check ID.
// Scanners use it to skip evaluation work for disabled checks entirely.
func Disabled(cfg *PolicyConfig, checkID string) bool {
	if cfg == nil {
		return false
	}
	cc, ok := cfg.Checks[checkID]
	return ok && cc.Enabled != nil && !*cc.Enabled
}
