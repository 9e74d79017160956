package scanners

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	wafsvc "github.com/aws/aws-sdk-go-v2/service/wafv2"
	waftypes "github.com/aws/aws-sdk-go-v2/service/wafv2/types"

	"github.com/cloudrecon-labs/posturescan/internal/checks"
	"github.com/cloudrecon-labs/posturescan/internal/models"
)

// wafAPIClient is the narrow WAFv2 interface used by the WAF scanner.
type wafAPIClient interface {
	ListWebACLs(ctx context.Context, params *wafsvc.ListWebACLsInput, optFns ...func(*wafsvc.Options)) (*wafsvc.ListWebACLsOutput, error)
	GetWebACL(ctx context.Context, params *wafsvc.GetWebACLInput, optFns ...func(*wafsvc.Options)) (*wafsvc.GetWebACLOutput, error)
}

// WAFScanner audits regional web ACLs: an ACL that exists but evaluates no
// rules gives a false sense of protection.
type WAFScanner struct {
	newClient func(aws.Config) wafAPIClient
}

func init() {
	Register("wafv2", func() Scanner {
		return &WAFScanner{newClient: func(cfg aws.Config) wafAPIClient { return wafsvc.NewFromConfig(cfg) }}
	})
}

// NewWAFScannerWithClient returns a WAFScanner using f to build its client.
func NewWAFScannerWithClient(f func(aws.Config) wafAPIClient) *WAFScanner {
	return &WAFScanner{newClient: f}
}

func (s *WAFScanner) Service() string            { return "wafv2" }
func (s *WAFScanner) MinLevel() models.ScanLevel { return models.LevelExhaustive }
func (s *WAFScanner) Global() bool               { return false }

var wafBattery = []checks.Check{
	{
		ID:       "wafv2_web_acl_has_rules",
		Title:    "WAF web ACL evaluates at least one rule",
		Kind:     models.KindWebACL,
		Severity: models.SeverityMedium,
		MinLevel: models.LevelExhaustive,
		Evaluate: func(r *models.Resource) checks.Result {
			if r.IntAttr("rule_count") == 0 {
				return checks.Fail("web ACL has no rules", nil)
			}
			return checks.Pass("web ACL has rules", map[string]any{
				"rule_count": r.IntAttr("rule_count"),
			})
		},
	},
}

// Scan implements Scanner.
func (s *WAFScanner) Scan(ctx context.Context, sc *Context, region string) ([]models.Finding, error) {
	client := sc.Clients.Client("wafv2", region, func(cfg aws.Config) any { return s.newClient(cfg) }).(wafAPIClient)

	resources, err := sc.Cache.GetOrFetchList(ctx, models.KindWebACL, "wafv2:"+region, func(ctx context.Context) ([]*models.Resource, error) {
		return s.discover(ctx, sc, client, region)
	})
	if err != nil {
		return handleDiscoveryError(sc, wafBattery, region, err)
	}
	return evaluate(ctx, sc, wafBattery, resources), nil
}

func (s *WAFScanner) discover(ctx context.Context, sc *Context, client wafAPIClient, region string) ([]*models.Resource, error) {
	var (
		resources []*models.Resource
		marker    *string
	)
	// ListWebACLs has no SDK paginator; page manually on NextMarker.
	for {
		var out *wafsvc.ListWebACLsOutput
		err := sc.Do(ctx, "wafv2", region, "ListWebACLs", func() error {
			var callErr error
			out, callErr = client.ListWebACLs(ctx, &wafsvc.ListWebACLsInput{
				Scope:      waftypes.ScopeRegional,
				NextMarker: marker,
			})
			return callErr
		})
		if err != nil {
			return resources, err
		}

		for _, summary := range out.WebACLs {
			ruleCount := 0
			aclErr := sc.Do(ctx, "wafv2", region, "GetWebACL", func() error {
				detail, callErr := client.GetWebACL(ctx, &wafsvc.GetWebACLInput{
					Name:  summary.Name,
					Id:    summary.Id,
					Scope: waftypes.ScopeRegional,
				})
				if callErr != nil {
					return callErr
				}
				if detail.WebACL != nil {
					ruleCount = len(detail.WebACL.Rules)
				}
				return nil
			})
			if gone(aclErr) {
				continue
			}
			resources = append(resources, &models.Resource{
				Kind:   models.KindWebACL,
				ID:     aws.ToString(summary.ARN),
				Name:   aws.ToString(summary.Name),
				Region: region,
				Attrs: map[string]any{
					"rule_count": ruleCount,
				},
				DiscoveredAt: time.Now().UTC(),
			})
		}

		if aws.ToString(out.NextMarker) == "" || len(out.WebACLs) == 0 {
			return resources, nil
		}
		marker = out.NextMarker
	}
}
