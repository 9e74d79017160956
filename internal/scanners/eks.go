package scanners

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	ekssvc "github.com/aws/aws-sdk-go-v2/service/eks"
	ekstypes "github.com/aws/aws-sdk-go-v2/service/eks/types"

	"github.com/cloudrecon-labs/posturescan/internal/arn"
	"github.com/cloudrecon-labs/posturescan/internal/awsconn"
	"github.com/cloudrecon-labs/posturescan/internal/checks"
	"github.com/cloudrecon-labs/posturescan/internal/models"
)

// eksAPIClient is the narrow EKS interface used by the EKS scanner.
type eksAPIClient interface {
	ekssvc.ListClustersAPIClient
	DescribeCluster(ctx context.Context, params *ekssvc.DescribeClusterInput, optFns ...func(*ekssvc.Options)) (*ekssvc.DescribeClusterOutput, error)
}

// EKSScanner audits Kubernetes cluster posture: API endpoint exposure,
// control plane logging, and secrets envelope encryption.
type EKSScanner struct {
	newClient func(aws.Config) eksAPIClient
}

func init() {
	Register("eks", func() Scanner {
		return &EKSScanner{newClient: func(cfg aws.Config) eksAPIClient { return ekssvc.NewFromConfig(cfg) }}
	})
}

// NewEKSScannerWithClient returns an EKSScanner using f to build its client.
func NewEKSScannerWithClient(f func(aws.Config) eksAPIClient) *EKSScanner {
	return &EKSScanner{newClient: f}
}

func (s *EKSScanner) Service() string            { return "eks" }
func (s *EKSScanner) MinLevel() models.ScanLevel { return models.LevelAdvanced }
func (s *EKSScanner) Global() bool               { return false }

var eksBattery = []checks.Check{
	{
		ID:       "eks_endpoint_not_public",
		Title:    "EKS cluster API endpoint is not public",
		Kind:     models.KindEKSCluster,
		Severity: models.SeverityHigh,
		MinLevel: models.LevelAdvanced,
		Evaluate: func(r *models.Resource) checks.Result {
			if r.BoolAttr("endpoint_public") {
				return checks.Fail("cluster API endpoint is reachable from the internet", nil)
			}
			return checks.Pass("API endpoint is private", nil)
		},
	},
	{
		ID:       "eks_control_plane_logging",
		Title:    "EKS cluster has control plane logging enabled",
		Kind:     models.KindEKSCluster,
		Severity: models.SeverityMedium,
		MinLevel: models.LevelAdvanced,
		Evaluate: func(r *models.Resource) checks.Result {
			if !r.BoolAttr("control_plane_logging") {
				return checks.Fail("no control plane log type is enabled", nil)
			}
			return checks.Pass("control plane logging enabled", nil)
		},
	},
	{
		ID:       "eks_secrets_encryption",
		Title:    "EKS cluster encrypts Kubernetes secrets with KMS",
		Kind:     models.KindEKSCluster,
		Severity: models.SeverityMedium,
		MinLevel: models.LevelExhaustive,
		Evaluate: func(r *models.Resource) checks.Result {
			if !r.BoolAttr("secrets_encryption") {
				return checks.Fail("Kubernetes secrets are not envelope-encrypted", nil)
			}
			return checks.Pass("secrets envelope encryption enabled", nil)
		},
	},
}

// Scan implements Scanner.
func (s *EKSScanner) Scan(ctx context.Context, sc *Context, region string) ([]models.Finding, error) {
	client := sc.Clients.Client("eks", region, func(cfg aws.Config) any { return s.newClient(cfg) }).(eksAPIClient)

	resources, err := sc.Cache.GetOrFetchList(ctx, models.KindEKSCluster, "eks:"+region, func(ctx context.Context) ([]*models.Resource, error) {
		return s.discover(ctx, sc, client, region)
	})
	if err != nil {
		return handleDiscoveryError(sc, eksBattery, region, err)
	}
	return evaluate(ctx, sc, eksBattery, resources), nil
}

func (s *EKSScanner) discover(ctx context.Context, sc *Context, client eksAPIClient, region string) ([]*models.Resource, error) {
	var resources []*models.Resource

	paginator := ekssvc.NewListClustersPaginator(client, &ekssvc.ListClustersInput{})
	for paginator.HasMorePages() {
		if err := sc.Clients.Wait(ctx); err != nil {
			return resources, err
		}
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return resources, awsconn.Classify(err, "eks", region, "ListClusters")
		}
		for _, name := range page.Clusters {
			var cluster *ekstypes.Cluster
			descErr := sc.Do(ctx, "eks", region, "DescribeCluster", func() error {
				out, callErr := client.DescribeCluster(ctx, &ekssvc.DescribeClusterInput{Name: aws.String(name)})
				if callErr != nil {
					return callErr
				}
				cluster = out.Cluster
				return nil
			})
			if gone(descErr) || cluster == nil {
				continue
			}

			attrs := map[string]any{}
			if vc := cluster.ResourcesVpcConfig; vc != nil {
				attrs["endpoint_public"] = vc.EndpointPublicAccess
			}
			if lg := cluster.Logging; lg != nil {
				for _, setup := range lg.ClusterLogging {
					if aws.ToBool(setup.Enabled) && len(setup.Types) > 0 {
						attrs["control_plane_logging"] = true
					}
				}
			}
			for _, enc := range cluster.EncryptionConfig {
				for _, res := range enc.Resources {
					if res == "secrets" {
						attrs["secrets_encryption"] = true
					}
				}
			}

			clusterARN := aws.ToString(cluster.Arn)
			if clusterARN == "" {
				clusterARN = arn.EKSCluster(sc.Partition(), region, sc.AccountID(), name)
			}
			resources = append(resources, &models.Resource{
				Kind:         models.KindEKSCluster,
				ID:           clusterARN,
				Name:         name,
				Region:       region,
				Attrs:        attrs,
				DiscoveredAt: time.Now().UTC(),
			})
		}
	}
	return resources, nil
}
