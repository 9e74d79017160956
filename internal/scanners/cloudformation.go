package scanners

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	cfnsvc "github.com/aws/aws-sdk-go-v2/service/cloudformation"
	cfntypes "github.com/aws/aws-sdk-go-v2/service/cloudformation/types"

	"github.com/cloudrecon-labs/posturescan/internal/awsconn"
	"github.com/cloudrecon-labs/posturescan/internal/checks"
	"github.com/cloudrecon-labs/posturescan/internal/models"
)

// cloudformationAPIClient is the narrow CloudFormation interface used by
// the CloudFormation scanner.
type cloudformationAPIClient interface {
	cfnsvc.DescribeStacksAPIClient
}

// CloudFormationScanner audits stack guard rails.
type CloudFormationScanner struct {
	newClient func(aws.Config) cloudformationAPIClient
}

func init() {
	Register("cloudformation", func() Scanner {
		return &CloudFormationScanner{newClient: func(cfg aws.Config) cloudformationAPIClient { return cfnsvc.NewFromConfig(cfg) }}
	})
}

// NewCloudFormationScannerWithClient returns a CloudFormationScanner using
// f to build its client.
func NewCloudFormationScannerWithClient(f func(aws.Config) cloudformationAPIClient) *CloudFormationScanner {
	return &CloudFormationScanner{newClient: f}
}

func (s *CloudFormationScanner) Service() string            { return "cloudformation" }
func (s *CloudFormationScanner) MinLevel() models.ScanLevel { return models.LevelExhaustive }
func (s *CloudFormationScanner) Global() bool               { return false }

var cloudformationBattery = []checks.Check{
	{
		ID:       "cloudformation_termination_protection",
		Title:    "CloudFormation stack has termination protection enabled",
		Kind:     models.KindCFNStack,
		Severity: models.SeverityLow,
		MinLevel: models.LevelExhaustive,
		Evaluate: func(r *models.Resource) checks.Result {
			if r.BoolAttr("nested") {
				return checks.NotApplicable("nested stacks inherit protection from the root stack")
			}
			if !r.BoolAttr("termination_protection") {
				return checks.Fail("termination protection is disabled", nil)
			}
			return checks.Pass("termination protection enabled", nil)
		},
	},
}

// Scan implements Scanner.
func (s *CloudFormationScanner) Scan(ctx context.Context, sc *Context, region string) ([]models.Finding, error) {
	client := sc.Clients.Client("cloudformation", region, func(cfg aws.Config) any { return s.newClient(cfg) }).(cloudformationAPIClient)

	resources, err := sc.Cache.GetOrFetchList(ctx, models.KindCFNStack, "cloudformation:"+region, func(ctx context.Context) ([]*models.Resource, error) {
		return s.discover(ctx, sc, client, region)
	})
	if err != nil {
		return handleDiscoveryError(sc, cloudformationBattery, region, err)
	}
	return evaluate(ctx, sc, cloudformationBattery, resources), nil
}

func (s *CloudFormationScanner) discover(ctx context.Context, sc *Context, client cloudformationAPIClient, region string) ([]*models.Resource, error) {
	var resources []*models.Resource

	paginator := cfnsvc.NewDescribeStacksPaginator(client, &cfnsvc.DescribeStacksInput{})
	for paginator.HasMorePages() {
		if err := sc.Clients.Wait(ctx); err != nil {
			return resources, err
		}
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return resources, awsconn.Classify(err, "cloudformation", region, "DescribeStacks")
		}
		for _, st := range page.Stacks {
			if st.StackStatus == cfntypes.StackStatusDeleteComplete {
				continue
			}
			resources = append(resources, &models.Resource{
				Kind:   models.KindCFNStack,
				ID:     aws.ToString(st.StackId),
				Name:   aws.ToString(st.StackName),
				Region: region,
				Attrs: map[string]any{
					"termination_protection": aws.ToBool(st.EnableTerminationProtection),
					"nested":                 aws.ToString(st.RootId) != "",
				},
				DiscoveredAt: time.Now().UTC(),
			})
		}
	}
	return resources, nil
}
