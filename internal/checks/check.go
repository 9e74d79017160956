// Package checks defines the security check primitive. A check is data: a
// named, pure predicate bound to one resource kind. Checks never perform
// I/O; scanners discover resources first and evaluate checks against the
// cached snapshots.
package checks

import (
	"context"
	"sync"
	"time"

	"github.com/cloudrecon-labs/posturescan/internal/executor"
	"github.com/cloudrecon-labs/posturescan/internal/models"
	"github.com/cloudrecon-labs/posturescan/internal/policy"
)

// Result is the outcome of evaluating one check against one resource.
type Result struct {
	Status   models.FindingStatus
	Message  string
	Evidence map[string]any
}

// Pass builds a passing result.
func Pass(msg string, evidence map[string]any) Result {
	return Result{Status: models.StatusPass, Message: msg, Evidence: evidence}
}

// Fail builds a failing result.
func Fail(msg string, evidence map[string]any) Result {
	return Result{Status: models.StatusFail, Message: msg, Evidence: evidence}
}

// NotApplicable builds a result for resources the check does not apply to.
func NotApplicable(msg string) Result {
	return Result{Status: models.StatusNotApplicable, Message: msg}
}

// Check is a single named security predicate. Stateless and side-effect
// free; Evaluate must only read the resource snapshot.
type Check struct {
	// ID is the stable check identifier, e.g. "s3_bucket_public_access".
	ID string

	// Title is the short human-readable check name.
	Title string

	// Kind is the resource kind the check applies to.
	Kind models.ResourceKind

	// Severity is the impact when the check fails.
	Severity models.Severity

	// MinLevel is the lowest scan level at which the check runs.
	MinLevel models.ScanLevel

	// Evaluate inspects the resource and returns the verdict.
	Evaluate func(r *models.Resource) Result
}

// Finding materialises an evaluation result into an immutable Finding.
func (c Check) Finding(accountID string, r *models.Resource, res Result) models.Finding {
	return models.Finding{
		CheckID:      c.ID,
		CheckTitle:   c.Title,
		ResourceID:   r.ID,
		ResourceKind: r.Kind,
		Region:       r.Region,
		AccountID:    accountID,
		Severity:     c.Severity,
		Status:       res.Status,
		Message:      res.Message,
		Evidence:     res.Evidence,
		DetectedAt:   time.Now().UTC(),
	}
}

// ErrorFinding records that a check could not be evaluated. Used for
// permission-denied reads: a denied read is a security-relevant signal, so
// it becomes a low-confidence error-status finding instead of aborting the
// scanner.
func ErrorFinding(c Check, accountID, resourceID, region string, err error) models.Finding {
	return models.Finding{
		CheckID:      c.ID,
		CheckTitle:   c.Title,
		ResourceID:   resourceID,
		ResourceKind: c.Kind,
		Region:       region,
		AccountID:    accountID,
		Severity:     models.SeverityInfo,
		Status:       models.StatusError,
		Message:      "insufficient permissions to evaluate this control",
		Evidence:     map[string]any{"error": err.Error()},
		DetectedAt:   time.Now().UTC(),
	}
}

// RunBattery evaluates every applicable check against every resource, with
// at most concurrency evaluations in flight. Checks below the scan level or
// disabled by policy are skipped. Findings are unordered.
func RunBattery(
	ctx context.Context,
	battery []Check,
	level models.ScanLevel,
	pol *policy.PolicyConfig,
	accountID string,
	resources []*models.Resource,
	concurrency int,
) []models.Finding {
	type pair struct {
		check    Check
		resource *models.Resource
	}

	var work []pair
	for _, c := range battery {
		if !level.Includes(c.MinLevel) {
			continue
		}
		if policy.Disabled(pol, c.ID) {
			continue
		}
		for _, r := range resources {
			if r.Kind != c.Kind {
				continue
			}
			work = append(work, pair{check: c, resource: r})
		}
	}

	var (
		mu       sync.Mutex
		findings []models.Finding
	)
	executor.ForEach(ctx, concurrency, work, func(p pair) {
		res := p.check.Evaluate(p.resource)
		f := p.check.Finding(accountID, p.resource, res)
		mu.Lock()
		findings = append(findings, f)
		mu.Unlock()
	})
	return findings
}
