package scanners

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	ecrsvc "github.com/aws/aws-sdk-go-v2/service/ecr"
	ecrtypes "github.com/aws/aws-sdk-go-v2/service/ecr/types"

	"github.com/cloudrecon-labs/posturescan/internal/arn"
	"github.com/cloudrecon-labs/posturescan/internal/awsconn"
	"github.com/cloudrecon-labs/posturescan/internal/checks"
	"github.com/cloudrecon-labs/posturescan/internal/models"
)

// ecrAPIClient is the narrow ECR interface used by the ECR scanner.
type ecrAPIClient interface {
	ecrsvc.DescribeRepositoriesAPIClient
}

// ECRScanner audits container registry posture: image scanning and tag
// immutability.
type ECRScanner struct {
	newClient func(aws.Config) ecrAPIClient
}

func init() {
	Register("ecr", func() Scanner {
		return &ECRScanner{newClient: func(cfg aws.Config) ecrAPIClient { return ecrsvc.NewFromConfig(cfg) }}
	})
}

// NewECRScannerWithClient returns an ECRScanner using f to build its client.
func NewECRScannerWithClient(f func(aws.Config) ecrAPIClient) *ECRScanner {
	return &ECRScanner{newClient: f}
}

func (s *ECRScanner) Service() string            { return "ecr" }
func (s *ECRScanner) MinLevel() models.ScanLevel { return models.LevelAdvanced }
func (s *ECRScanner) Global() bool               { return false }

var ecrBattery = []checks.Check{
	{
		ID:       "ecr_scan_on_push",
		Title:    "ECR repository scans images on push",
		Kind:     models.KindECRRepository,
		Severity: models.SeverityMedium,
		MinLevel: models.LevelAdvanced,
		Evaluate: func(r *models.Resource) checks.Result {
			if !r.BoolAttr("scan_on_push") {
				return checks.Fail("image scanning on push is disabled", nil)
			}
			return checks.Pass("scan on push enabled", nil)
		},
	},
	{
		ID:       "ecr_tag_immutability",
		Title:    "ECR repository has immutable tags",
		Kind:     models.KindECRRepository,
		Severity: models.SeverityLow,
		MinLevel: models.LevelAdvanced,
		Evaluate: func(r *models.Resource) checks.Result {
			if !r.BoolAttr("tag_immutable") {
				return checks.Fail("image tags can be overwritten", nil)
			}
			return checks.Pass("tags immutable", nil)
		},
	},
}

// Scan implements Scanner.
func (s *ECRScanner) Scan(ctx context.Context, sc *Context, region string) ([]models.Finding, error) {
	client := sc.Clients.Client("ecr", region, func(cfg aws.Config) any { return s.newClient(cfg) }).(ecrAPIClient)

	resources, err := sc.Cache.GetOrFetchList(ctx, models.KindECRRepository, "ecr:"+region, func(ctx context.Context) ([]*models.Resource, error) {
		return s.discover(ctx, sc, client, region)
	})
	if err != nil {
		return handleDiscoveryError(sc, ecrBattery, region, err)
	}
	return evaluate(ctx, sc, ecrBattery, resources), nil
}

func (s *ECRScanner) discover(ctx context.Context, sc *Context, client ecrAPIClient, region string) ([]*models.Resource, error) {
	var resources []*models.Resource

	paginator := ecrsvc.NewDescribeRepositoriesPaginator(client, &ecrsvc.DescribeRepositoriesInput{})
	for paginator.HasMorePages() {
		if err := sc.Clients.Wait(ctx); err != nil {
			return resources, err
		}
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return resources, awsconn.Classify(err, "ecr", region, "DescribeRepositories")
		}
		for _, repo := range page.Repositories {
			name := aws.ToString(repo.RepositoryName)
			repoARN := aws.ToString(repo.RepositoryArn)
			if repoARN == "" {
				repoARN = arn.ECRRepository(sc.Partition(), region, sc.AccountID(), name)
			}
			scanOnPush := false
			if repo.ImageScanningConfiguration != nil {
				scanOnPush = repo.ImageScanningConfiguration.ScanOnPush
			}
			resources = append(resources, &models.Resource{
				Kind:   models.KindECRRepository,
				ID:     repoARN,
				Name:   name,
				Region: region,
				Attrs: map[string]any{
					"scan_on_push":  scanOnPush,
					"tag_immutable": repo.ImageTagMutability == ecrtypes.ImageTagMutabilityImmutable,
				},
				DiscoveredAt: time.Now().UTC(),
			})
		}
	}
	return resources, nil
}
