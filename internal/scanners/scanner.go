// Package scanners contains the per-service security scanners. Each
// scanner owns discovery (via the client factory and resource cache) and
// evaluation (a fixed battery of checks) for one AWS service.
package scanners

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/cloudrecon-labs/posturescan/internal/awsconn"
	"github.com/cloudrecon-labs/posturescan/internal/cache"
	"github.com/cloudrecon-labs/posturescan/internal/checks"
	"github.com/cloudrecon-labs/posturescan/internal/models"
	"github.com/cloudrecon-labs/posturescan/internal/policy"
)

// GlobalRegion is the pseudo-region scanners for global services run under.
// API calls for those scanners go to the canonical us-east-1 endpoint.
const GlobalRegion = "global"

// Context is the live state of one scan execution, shared read-only across
// every scanner invocation of that scan. The cache and client factory are
// internally synchronized; scanners never need their own locking and must
// never share mutable finding state with each other.
type Context struct {
	Request models.ScanRequest
	Cache   *cache.ResourceCache
	Clients *awsconn.Factory
	Policy  *policy.PolicyConfig

	// CheckConcurrency bounds parallel check evaluation within a scanner.
	CheckConcurrency int

	Logger zerolog.Logger
}

// AccountID returns the scanned account's ID.
func (sc *Context) AccountID() string { return sc.Clients.AccountID() }

// Partition returns the ARN partition of the scanned account.
func (sc *Context) Partition() string { return sc.Clients.Partition() }

// Do runs one outbound API call under the scan-wide rate gate and maps any
// failure onto the engine's error taxonomy.
func (sc *Context) Do(ctx context.Context, service, region, operation string, call func() error) error {
	if err := sc.Clients.Wait(ctx); err != nil {
		return err
	}
	return awsconn.Classify(call(), service, region, operation)
}

// Scanner discovers resources for one service and evaluates its check
// battery against them. Scan must return whatever findings it produced
// even when it also returns an error; partial results are preserved.
type Scanner interface {
	// Service is the stable service name used in plans and scan errors.
	Service() string

	// MinLevel is the lowest scan level that enables this scanner.
	MinLevel() models.ScanLevel

	// Global reports whether the service is account-global. Global
	// scanners run once per scan (under GlobalRegion) instead of once
	// per region.
	Global() bool

	// Scan discovers and evaluates one (region, service) unit.
	Scan(ctx context.Context, sc *Context, region string) ([]models.Finding, error)
}

// apiRegion maps the pseudo-region of global scanners onto the canonical
// endpoint region.
func apiRegion(region string) string {
	if region == GlobalRegion {
		return "us-east-1"
	}
	return region
}

// handleDiscoveryError implements the shared partial-failure policy for
// discovery calls. Permission denials become one low-confidence error
// finding per applicable check (a denied read is itself a signal), vanished
// resources are skipped silently, and everything else — throttling
// included — propagates as the unit's scanner-level error.
func handleDiscoveryError(sc *Context, battery []checks.Check, region string, err error) ([]models.Finding, error) {
	var pe *models.PermissionDeniedError
	if errors.As(err, &pe) {
		return permissionFindings(sc, battery, region, err), nil
	}
	var ge *models.ResourceGoneError
	if errors.As(err, &ge) {
		return nil, nil
	}
	return nil, err
}

// permissionFindings emits one error-status finding per check the current
// level would have run.
func permissionFindings(sc *Context, battery []checks.Check, region string, err error) []models.Finding {
	var findings []models.Finding
	for _, c := range battery {
		if !sc.Request.Level.Includes(c.MinLevel) {
			continue
		}
		if policy.Disabled(sc.Policy, c.ID) {
			continue
		}
		findings = append(findings, checks.ErrorFinding(c, sc.AccountID(), "unknown", region, err))
	}
	return findings
}

// gone reports whether err means the resource vanished between discovery
// and inspection; callers skip the resource silently.
func gone(err error) bool {
	var ge *models.ResourceGoneError
	return errors.As(err, &ge)
}

// evaluate runs a scanner's battery over its discovered resources.
func evaluate(ctx context.Context, sc *Context, battery []checks.Check, resources []*models.Resource) []models.Finding {
	return checks.RunBattery(ctx, battery, sc.Request.Level, sc.Policy, sc.AccountID(), resources, sc.CheckConcurrency)
}
