package scanners

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	ecssvc "github.com/aws/aws-sdk-go-v2/service/ecs"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"

	"github.com/cloudrecon-labs/posturescan/internal/arn"
	"github.com/cloudrecon-labs/posturescan/internal/awsconn"
	"github.com/cloudrecon-labs/posturescan/internal/checks"
	"github.com/cloudrecon-labs/posturescan/internal/models"
)

// ecsAPIClient is the narrow ECS interface used by the ECS scanner.
type ecsAPIClient interface {
	ecssvc.ListClustersAPIClient
	DescribeClusters(ctx context.Context, params *ecssvc.DescribeClustersInput, optFns ...func(*ecssvc.Options)) (*ecssvc.DescribeClustersOutput, error)
}

// ECSScanner audits container cluster observability.
type ECSScanner struct {
	newClient func(aws.Config) ecsAPIClient
}

func init() {
	Register("ecs", func() Scanner {
		return &ECSScanner{newClient: func(cfg aws.Config) ecsAPIClient { return ecssvc.NewFromConfig(cfg) }}
	})
}

// NewECSScannerWithClient returns an ECSScanner using f to build its client.
func NewECSScannerWithClient(f func(aws.Config) ecsAPIClient) *ECSScanner {
	return &ECSScanner{newClient: f}
}

func (s *ECSScanner) Service() string            { return "ecs" }
func (s *ECSScanner) MinLevel() models.ScanLevel { return models.LevelAdvanced }
func (s *ECSScanner) Global() bool               { return false }

var ecsBattery = []checks.Check{
	{
		ID:       "ecs_container_insights",
		Title:    "ECS cluster has Container Insights enabled",
		Kind:     models.KindECSCluster,
		Severity: models.SeverityLow,
		MinLevel: models.LevelAdvanced,
		Evaluate: func(r *models.Resource) checks.Result {
			if !r.BoolAttr("container_insights") {
				return checks.Fail("Container Insights is disabled", nil)
			}
			return checks.Pass("Container Insights enabled", nil)
		},
	},
}

// Scan implements Scanner.
func (s *ECSScanner) Scan(ctx context.Context, sc *Context, region string) ([]models.Finding, error) {
	client := sc.Clients.Client("ecs", region, func(cfg aws.Config) any { return s.newClient(cfg) }).(ecsAPIClient)

	resources, err := sc.Cache.GetOrFetchList(ctx, models.KindECSCluster, "ecs:"+region, func(ctx context.Context) ([]*models.Resource, error) {
		return s.discover(ctx, sc, client, region)
	})
	if err != nil {
		return handleDiscoveryError(sc, ecsBattery, region, err)
	}
	return evaluate(ctx, sc, ecsBattery, resources), nil
}

func (s *ECSScanner) discover(ctx context.Context, sc *Context, client ecsAPIClient, region string) ([]*models.Resource, error) {
	var arns []string

	paginator := ecssvc.NewListClustersPaginator(client, &ecssvc.ListClustersInput{})
	for paginator.HasMorePages() {
		if err := sc.Clients.Wait(ctx); err != nil {
			return nil, err
		}
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, awsconn.Classify(err, "ecs", region, "ListClusters")
		}
		arns = append(arns, page.ClusterArns...)
	}
	if len(arns) == 0 {
		return nil, nil
	}

	var clusters []ecstypes.Cluster
	err := sc.Do(ctx, "ecs", region, "DescribeClusters", func() error {
		out, callErr := client.DescribeClusters(ctx, &ecssvc.DescribeClustersInput{
			Clusters: arns,
			Include:  []ecstypes.ClusterField{ecstypes.ClusterFieldSettings},
		})
		if callErr != nil {
			return callErr
		}
		clusters = out.Clusters
		return nil
	})
	if err != nil {
		return nil, err
	}

	resources := make([]*models.Resource, 0, len(clusters))
	for _, c := range clusters {
		insights := false
		for _, setting := range c.Settings {
			if setting.Name == ecstypes.ClusterSettingNameContainerInsights {
				insights = aws.ToString(setting.Value) == "enabled"
			}
		}
		name := aws.ToString(c.ClusterName)
		clusterARN := aws.ToString(c.ClusterArn)
		if clusterARN == "" {
			clusterARN = arn.ECSCluster(sc.Partition(), region, sc.AccountID(), name)
		}
		resources = append(resources, &models.Resource{
			Kind:   models.KindECSCluster,
			ID:     clusterARN,
			Name:   name,
			Region: region,
			Attrs: map[string]any{
				"container_insights": insights,
			},
			DiscoveredAt: time.Now().UTC(),
		})
	}
	return resources, nil
}
