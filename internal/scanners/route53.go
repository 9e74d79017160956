package scanners

import (
	"context"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	r53svc "github.com/aws/aws-sdk-go-v2/service/route53"

	"github.com/cloudrecon-labs/posturescan/internal/arn"
	"github.com/cloudrecon-labs/posturescan/internal/awsconn"
	"github.com/cloudrecon-labs/posturescan/internal/checks"
	"github.com/cloudrecon-labs/posturescan/internal/models"
)

// route53APIClient is the narrow Route 53 interface used by the Route 53
// scanner.
type route53APIClient interface {
	r53svc.ListHostedZonesAPIClient
	ListQueryLoggingConfigs(ctx context.Context, params *r53svc.ListQueryLoggingConfigsInput, optFns ...func(*r53svc.Options)) (*r53svc.ListQueryLoggingConfigsOutput, error)
}

// Route53Scanner audits DNS query logging coverage. Route 53 is global.
type Route53Scanner struct {
	newClient func(aws.Config) route53APIClient
}

func init() {
	Register("route53", func() Scanner {
		return &Route53Scanner{newClient: func(cfg aws.Config) route53APIClient { return r53svc.NewFromConfig(cfg) }}
	})
}

// NewRoute53ScannerWithClient returns a Route53Scanner using f to build its
// client.
func NewRoute53ScannerWithClient(f func(aws.Config) route53APIClient) *Route53Scanner {
	return &Route53Scanner{newClient: f}
}

func (s *Route53Scanner) Service() string            { return "route53" }
func (s *Route53Scanner) MinLevel() models.ScanLevel { return models.LevelExhaustive }
func (s *Route53Scanner) Global() bool               { return true }

var route53Battery = []checks.Check{
	{
		ID:       "route53_query_logging",
		Title:    "Hosted zone has DNS query logging enabled",
		Kind:     models.KindHostedZone,
		Severity: models.SeverityLow,
		MinLevel: models.LevelExhaustive,
		Evaluate: func(r *models.Resource) checks.Result {
			if r.BoolAttr("private") {
				return checks.NotApplicable("query logging is not available for private zones")
			}
			if !r.BoolAttr("query_logging") {
				return checks.Fail("DNS queries for this zone are not logged", nil)
			}
			return checks.Pass("query logging enabled", nil)
		},
	},
}

// Scan implements Scanner.
func (s *Route53Scanner) Scan(ctx context.Context, sc *Context, region string) ([]models.Finding, error) {
	client := sc.Clients.Client("route53", apiRegion(region), func(cfg aws.Config) any { return s.newClient(cfg) }).(route53APIClient)

	resources, err := sc.Cache.GetOrFetchList(ctx, models.KindHostedZone, "route53:zones", func(ctx context.Context) ([]*models.Resource, error) {
		return s.discover(ctx, sc, client, region)
	})
	if err != nil {
		return handleDiscoveryError(sc, route53Battery, region, err)
	}
	return evaluate(ctx, sc, route53Battery, resources), nil
}

func (s *Route53Scanner) discover(ctx context.Context, sc *Context, client route53APIClient, region string) ([]*models.Resource, error) {
	var resources []*models.Resource

	paginator := r53svc.NewListHostedZonesPaginator(client, &r53svc.ListHostedZonesInput{})
	for paginator.HasMorePages() {
		if err := sc.Clients.Wait(ctx); err != nil {
			return resources, err
		}
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return resources, awsconn.Classify(err, "route53", region, "ListHostedZones")
		}
		for _, zone := range page.HostedZones {
			zoneID := strings.TrimPrefix(aws.ToString(zone.Id), "/hostedzone/")
			private := zone.Config != nil && zone.Config.PrivateZone

			attrs := map[string]any{"private": private}
			if !private {
				logErr := sc.Do(ctx, "route53", region, "ListQueryLoggingConfigs", func() error {
					out, callErr := client.ListQueryLoggingConfigs(ctx, &r53svc.ListQueryLoggingConfigsInput{
						HostedZoneId: aws.String(zoneID),
					})
					if callErr != nil {
						return callErr
					}
					attrs["query_logging"] = len(out.QueryLoggingConfigs) > 0
					return nil
				})
				if gone(logErr) {
					continue
				}
			}

			resources = append(resources, &models.Resource{
				Kind:         models.KindHostedZone,
				ID:           arn.HostedZone(sc.Partition(), zoneID),
				Name:         strings.TrimSuffix(aws.ToString(zone.Name), "."),
				Region:       GlobalRegion,
				Attrs:        attrs,
				DiscoveredAt: time.Now().UTC(),
			})
		}
	}
	return resources, nil
}
