package models

import "time"

// ScanError records a (region, service) unit that could not be completed,
// with the reason. Units that partially completed keep their findings and
// still appear here.
type ScanError struct {
	Region  string `json:"region"`
	Service string `json:"service"`
	Message string `json:"message"`
}

// ScanSummary aggregates finding counts for one scan.
// Severity counts include failed findings only; passes and errors are
// totalled separately.
type ScanSummary struct {
	TotalFindings    int              `json:"total_findings"`
	Passed           int              `json:"passed"`
	Failed           int              `json:"failed"`
	Errored          int              `json:"errored"`
	NotApplicable    int              `json:"not_applicable"`
	FailedBySeverity map[Severity]int `json:"failed_by_severity"`
}

// ScanResult is the terminal aggregate of one scan. It is created once, by
// the scan manager, after every scanner has completed or been cut short;
// the engine holds no reference to it afterwards.
type ScanResult struct {
	ScanID      string    `json:"scan_id"`
	AccountID   string    `json:"account_id"`
	Level       string    `json:"level"`
	Regions     []string  `json:"regions"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`

	// Findings is unordered; callers that need ordering sort downstream.
	Findings []Finding   `json:"findings"`
	Summary  ScanSummary `json:"summary"`

	// FrameworkScores maps framework name to a 0-100 compliance score.
	// Frameworks with no applicable controls in this scan are absent.
	FrameworkScores map[string]float64 `json:"framework_scores"`

	// OverallScore is the severity-weighted posture score (0-100).
	OverallScore float64 `json:"overall_score"`

	// Errors lists every (region, service) unit that failed or was skipped.
	Errors []ScanError `json:"errors,omitempty"`

	// Partial is true when the scan was cut short by its deadline or when
	// any planned unit did not complete.
	Partial bool `json:"partial"`

	// PlannedUnits and CompletedUnits expose plan coverage so callers can
	// judge how much of the account the result actually covers.
	PlannedUnits   int `json:"planned_units"`
	CompletedUnits int `json:"completed_units"`
}

// Summarize computes a ScanSummary from a finding list.
func Summarize(findings []Finding) ScanSummary {
	s := ScanSummary{
		TotalFindings:    len(findings),
		FailedBySeverity: make(map[Severity]int),
	}
	for _, f := range findings {
		switch f.Status {
		case StatusPass:
			s.Passed++
		case StatusFail:
			s.Failed++
			s.FailedBySeverity[f.Severity]++
		case StatusError:
			s.Errored++
		case StatusNotApplicable:
			s.NotApplicable++
		}
	}
	return s
}
