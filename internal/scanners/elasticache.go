package scanners

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	ecsvc "github.com/aws/aws-sdk-go-v2/service/elasticache"

	"github.com/cloudrecon-labs/posturescan/internal/arn"
	"github.com/cloudrecon-labs/posturescan/internal/awsconn"
	"github.com/cloudrecon-labs/posturescan/internal/checks"
	"github.com/cloudrecon-labs/posturescan/internal/models"
)

// elasticacheAPIClient is the narrow ElastiCache interface used by the
// ElastiCache scanner.
type elasticacheAPIClient interface {
	ecsvc.DescribeCacheClustersAPIClient
}

// ElastiCacheScanner audits cache cluster encryption in transit and at
// rest.
type ElastiCacheScanner struct {
	newClient func(aws.Config) elasticacheAPIClient
}

func init() {
	Register("elasticache", func() Scanner {
		return &ElastiCacheScanner{newClient: func(cfg aws.Config) elasticacheAPIClient { return ecsvc.NewFromConfig(cfg) }}
	})
}

// NewElastiCacheScannerWithClient returns an ElastiCacheScanner using f to
// build its client.
func NewElastiCacheScannerWithClient(f func(aws.Config) elasticacheAPIClient) *ElastiCacheScanner {
	return &ElastiCacheScanner{newClient: f}
}

func (s *ElastiCacheScanner) Service() string            { return "elasticache" }
func (s *ElastiCacheScanner) MinLevel() models.ScanLevel { return models.LevelAdvanced }
func (s *ElastiCacheScanner) Global() bool               { return false }

var elasticacheBattery = []checks.Check{
	{
		ID:       "elasticache_encryption_in_transit",
		Title:    "ElastiCache cluster encrypts traffic in transit",
		Kind:     models.KindElastiCacheNode,
		Severity: models.SeverityHigh,
		MinLevel: models.LevelAdvanced,
		Evaluate: func(r *models.Resource) checks.Result {
			if !r.BoolAttr("transit_encryption") {
				return checks.Fail("in-transit encryption is disabled", nil)
			}
			return checks.Pass("in-transit encryption enabled", nil)
		},
	},
	{
		ID:       "elasticache_encryption_at_rest",
		Title:    "ElastiCache cluster encrypts data at rest",
		Kind:     models.KindElastiCacheNode,
		Severity: models.SeverityHigh,
		MinLevel: models.LevelAdvanced,
		Evaluate: func(r *models.Resource) checks.Result {
			if !r.BoolAttr("at_rest_encryption") {
				return checks.Fail("at-rest encryption is disabled", nil)
			}
			return checks.Pass("at-rest encryption enabled", nil)
		},
	},
}

// Scan implements Scanner.
func (s *ElastiCacheScanner) Scan(ctx context.Context, sc *Context, region string) ([]models.Finding, error) {
	client := sc.Clients.Client("elasticache", region, func(cfg aws.Config) any { return s.newClient(cfg) }).(elasticacheAPIClient)

	resources, err := sc.Cache.GetOrFetchList(ctx, models.KindElastiCacheNode, "elasticache:"+region, func(ctx context.Context) ([]*models.Resource, error) {
		return s.discover(ctx, sc, client, region)
	})
	if err != nil {
		return handleDiscoveryError(sc, elasticacheBattery, region, err)
	}
	return evaluate(ctx, sc, elasticacheBattery, resources), nil
}

func (s *ElastiCacheScanner) discover(ctx context.Context, sc *Context, client elasticacheAPIClient, region string) ([]*models.Resource, error) {
	var resources []*models.Resource

	paginator := ecsvc.NewDescribeCacheClustersPaginator(client, &ecsvc.DescribeCacheClustersInput{})
	for paginator.HasMorePages() {
		if err := sc.Clients.Wait(ctx); err != nil {
			return resources, err
		}
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return resources, awsconn.Classify(err, "elasticache", region, "DescribeCacheClusters")
		}
		for _, c := range page.CacheClusters {
			id := aws.ToString(c.CacheClusterId)
			clusterARN := aws.ToString(c.ARN)
			if clusterARN == "" {
				clusterARN = arn.ElastiCacheCluster(sc.Partition(), region, sc.AccountID(), id)
			}
			resources = append(resources, &models.Resource{
				Kind:   models.KindElastiCacheNode,
				ID:     clusterARN,
				Name:   id,
				Region: region,
				Attrs: map[string]any{
					"engine":             aws.ToString(c.Engine),
					"transit_encryption": aws.ToBool(c.TransitEncryptionEnabled),
					"at_rest_encryption": aws.ToBool(c.AtRestEncryptionEnabled),
				},
				DiscoveredAt: time.Now().UTC(),
			})
		}
	}
	return resources, nil
}
