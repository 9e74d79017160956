package scanners

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	rssvc "github.com/aws/aws-sdk-go-v2/service/redshift"

	"github.com/cloudrecon-labs/posturescan/internal/arn"
	"github.com/cloudrecon-labs/posturescan/internal/awsconn"
	"github.com/cloudrecon-labs/posturescan/internal/checks"
	"github.com/cloudrecon-labs/posturescan/internal/models"
)

// redshiftAPIClient is the narrow Redshift interface used by the Redshift
// scanner.
type redshiftAPIClient interface {
	rssvc.DescribeClustersAPIClient
}

// RedshiftScanner audits warehouse cluster posture: encryption at rest and
// public reachability.
type RedshiftScanner struct {
	newClient func(aws.Config) redshiftAPIClient
}

func init() {
	Register("redshift", func() Scanner {
		return &RedshiftScanner{newClient: func(cfg aws.Config) redshiftAPIClient { return rssvc.NewFromConfig(cfg) }}
	})
}

// NewRedshiftScannerWithClient returns a RedshiftScanner using f to build
// its client.
func NewRedshiftScannerWithClient(f func(aws.Config) redshiftAPIClient) *RedshiftScanner {
	return &RedshiftScanner{newClient: f}
}

func (s *RedshiftScanner) Service() string            { return "redshift" }
func (s *RedshiftScanner) MinLevel() models.ScanLevel { return models.LevelAdvanced }
func (s *RedshiftScanner) Global() bool               { return false }

var redshiftBattery = []checks.Check{
	{
		ID:       "redshift_cluster_encrypted",
		Title:    "Redshift cluster is encrypted at rest",
		Kind:     models.KindRedshiftCluster,
		Severity: models.SeverityHigh,
		MinLevel: models.LevelAdvanced,
		Evaluate: func(r *models.Resource) checks.Result {
			if !r.BoolAttr("encrypted") {
				return checks.Fail("cluster storage is not encrypted", nil)
			}
			return checks.Pass("cluster encrypted", nil)
		},
	},
	{
		ID:       "redshift_cluster_not_public",
		Title:    "Redshift cluster is not publicly accessible",
		Kind:     models.KindRedshiftCluster,
		Severity: models.SeverityCritical,
		MinLevel: models.LevelAdvanced,
		Evaluate: func(r *models.Resource) checks.Result {
			if r.BoolAttr("publicly_accessible") {
				return checks.Fail("cluster endpoint is reachable from the internet", nil)
			}
			return checks.Pass("cluster is not public", nil)
		},
	},
}

// Scan implements Scanner.
func (s *RedshiftScanner) Scan(ctx context.Context, sc *Context, region string) ([]models.Finding, error) {
	client := sc.Clients.Client("redshift", region, func(cfg aws.Config) any { return s.newClient(cfg) }).(redshiftAPIClient)

	resources, err := sc.Cache.GetOrFetchList(ctx, models.KindRedshiftCluster, "redshift:"+region, func(ctx context.Context) ([]*models.Resource, error) {
		return s.discover(ctx, sc, client, region)
	})
	if err != nil {
		return handleDiscoveryError(sc, redshiftBattery, region, err)
	}
	return evaluate(ctx, sc, redshiftBattery, resources), nil
}

func (s *RedshiftScanner) discover(ctx context.Context, sc *Context, client redshiftAPIClient, region string) ([]*models.Resource, error) {
	var resources []*models.Resource

	paginator := rssvc.NewDescribeClustersPaginator(client, &rssvc.DescribeClustersInput{})
	for paginator.HasMorePages() {
		if err := sc.Clients.Wait(ctx); err != nil {
			return resources, err
		}
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return resources, awsconn.Classify(err, "redshift", region, "DescribeClusters")
		}
		for _, c := range page.Clusters {
			id := aws.ToString(c.ClusterIdentifier)
			resources = append(resources, &models.Resource{
				Kind:   models.KindRedshiftCluster,
				ID:     arn.RedshiftCluster(sc.Partition(), region, sc.AccountID(), id),
				Name:   id,
				Region: region,
				Attrs: map[string]any{
					"encrypted":           aws.ToBool(c.Encrypted),
					"publicly_accessible": aws.ToBool(c.PubliclyAccessible),
				},
				DiscoveredAt: time.Now().UTC(),
			})
		}
	}
	return resources, nil
}
