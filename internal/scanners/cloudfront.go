package scanners

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	cfsvc "github.com/aws/aws-sdk-go-v2/service/cloudfront"
	cftypes "github.com/aws/aws-sdk-go-v2/service/cloudfront/types"

	"github.com/cloudrecon-labs/posturescan/internal/arn"
	"github.com/cloudrecon-labs/posturescan/internal/awsconn"
	"github.com/cloudrecon-labs/posturescan/internal/checks"
	"github.com/cloudrecon-labs/posturescan/internal/models"
)

// cloudfrontAPIClient is the narrow CloudFront interface used by the
// CloudFront scanner.
type cloudfrontAPIClient interface {
	cfsvc.ListDistributionsAPIClient
}

// CloudFrontScanner audits CDN distribution posture: viewer protocol
// enforcement and WAF association. CloudFront is global.
type CloudFrontScanner struct {
	newClient func(aws.Config) cloudfrontAPIClient
}

func init() {
	Register("cloudfront", func() Scanner {
		return &CloudFrontScanner{newClient: func(cfg aws.Config) cloudfrontAPIClient { return cfsvc.NewFromConfig(cfg) }}
	})
}

// NewCloudFrontScannerWithClient returns a CloudFrontScanner using f to
// build its client.
func NewCloudFrontScannerWithClient(f func(aws.Config) cloudfrontAPIClient) *CloudFrontScanner {
	return &CloudFrontScanner{newClient: f}
}

func (s *CloudFrontScanner) Service() string            { return "cloudfront" }
func (s *CloudFrontScanner) MinLevel() models.ScanLevel { return models.LevelExhaustive }
func (s *CloudFrontScanner) Global() bool               { return true }

var cloudfrontBattery = []checks.Check{
	{
		ID:       "cloudfront_viewer_https",
		Title:    "CloudFront distribution enforces HTTPS to viewers",
		Kind:     models.KindCloudFrontDist,
		Severity: models.SeverityHigh,
		MinLevel: models.LevelExhaustive,
		Evaluate: func(r *models.Resource) checks.Result {
			if r.StringAttr("viewer_protocol_policy") == string(cftypes.ViewerProtocolPolicyAllowAll) {
				return checks.Fail("distribution serves plain HTTP to viewers", nil)
			}
			return checks.Pass("HTTPS enforced for viewers", nil)
		},
	},
	{
		ID:       "cloudfront_waf_associated",
		Title:    "CloudFront distribution has a WAF web ACL",
		Kind:     models.KindCloudFrontDist,
		Severity: models.SeverityMedium,
		MinLevel: models.LevelExhaustive,
		Evaluate: func(r *models.Resource) checks.Result {
			if r.StringAttr("web_acl_id") == "" {
				return checks.Fail("no web ACL protects this distribution", nil)
			}
			return checks.Pass("web ACL associated", nil)
		},
	},
}

// Scan implements Scanner.
func (s *CloudFrontScanner) Scan(ctx context.Context, sc *Context, region string) ([]models.Finding, error) {
	client := sc.Clients.Client("cloudfront", apiRegion(region), func(cfg aws.Config) any { return s.newClient(cfg) }).(cloudfrontAPIClient)

	resources, err := sc.Cache.GetOrFetchList(ctx, models.KindCloudFrontDist, "cloudfront:distributions", func(ctx context.Context) ([]*models.Resource, error) {
		return s.discover(ctx, sc, client, region)
	})
	if err != nil {
		return handleDiscoveryError(sc, cloudfrontBattery, region, err)
	}
	return evaluate(ctx, sc, cloudfrontBattery, resources), nil
}

func (s *CloudFrontScanner) discover(ctx context.Context, sc *Context, client cloudfrontAPIClient, region string) ([]*models.Resource, error) {
	var resources []*models.Resource

	paginator := cfsvc.NewListDistributionsPaginator(client, &cfsvc.ListDistributionsInput{})
	for paginator.HasMorePages() {
		if err := sc.Clients.Wait(ctx); err != nil {
			return resources, err
		}
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return resources, awsconn.Classify(err, "cloudfront", region, "ListDistributions")
		}
		if page.DistributionList == nil {
			continue
		}
		for _, d := range page.DistributionList.Items {
			id := aws.ToString(d.Id)
			distARN := aws.ToString(d.ARN)
			if distARN == "" {
				distARN = arn.CloudFrontDistribution(sc.Partition(), sc.AccountID(), id)
			}
			attrs := map[string]any{
				"web_acl_id": aws.ToString(d.WebACLId),
			}
			if d.DefaultCacheBehavior != nil {
				attrs["viewer_protocol_policy"] = string(d.DefaultCacheBehavior.ViewerProtocolPolicy)
			}
			resources = append(resources, &models.Resource{
				Kind:         models.KindCloudFrontDist,
				ID:           distARN,
				Name:         id,
				Region:       GlobalRegion,
				Attrs:        attrs,
				DiscoveredAt: time.Now().UTC(),
			})
		}
	}
	return resources, nil
}
