package models

import "time"

// Severity represents the impact level of a check.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
	SeverityInfo     Severity = "INFO"
)

// FindingStatus is the verdict of one check evaluation against one resource.
type FindingStatus string

const (
	// StatusPass means the resource satisfies the check.
	StatusPass FindingStatus = "PASS"

	// StatusFail means the resource violates the check.
	StatusFail FindingStatus = "FAIL"

	// StatusError means the check could not be evaluated, most commonly
	// because the scanning principal lacked permission to read the data.
	// Error findings carry the failure reason in Evidence["error"].
	StatusError FindingStatus = "ERROR"

	// StatusNotApplicable means the check does not apply to this resource
	// (e.g. a listener check on a load balancer with no listeners).
	StatusNotApplicable FindingStatus = "NOT_APPLICABLE"
)

// Finding is the outcome of running one check against one resource.
// It is the atomic output unit of every scanner and is immutable once
// returned; aggregation happens only in the scan manager.
type Finding struct {
	CheckID      string         `json:"check_id"`
	CheckTitle   string         `json:"check_title"`
	ResourceID   string         `json:"resource_id"`
	ResourceKind ResourceKind   `json:"resource_kind"`
	Region       string         `json:"region"`
	AccountID    string         `json:"account_id"`
	Severity     Severity       `json:"severity"`
	Status       FindingStatus  `json:"status"`
	Message      string         `json:"message,omitempty"`
	Evidence     map[string]any `json:"evidence,omitempty"`
	DetectedAt   time.Time      `json:"detected_at"`
}

// Failed reports whether this finding represents a confirmed violation.
func (f Finding) Failed() bool { return f.Status == StatusFail }

// SeverityRank orders severities for sorting (critical first).
// Unknown severities sort last.
func SeverityRank(s Severity) int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 3
	case SeverityInfo:
		return 4
	default:
		return 5
	}
}
