package scanners

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	ssmsvc "github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"

	"github.com/cloudrecon-labs/posturescan/internal/arn"
	"github.com/cloudrecon-labs/posturescan/internal/awsconn"
	"github.com/cloudrecon-labs/posturescan/internal/checks"
	"github.com/cloudrecon-labs/posturescan/internal/models"
)

// ssmAPIClient is the narrow SSM interface used by the SSM scanner.
type ssmAPIClient interface {
	ssmsvc.DescribeInstanceInformationAPIClient
}

// SSMScanner audits managed-instance fleet health: agent connectivity and
// agent currency.
type SSMScanner struct {
	newClient func(aws.Config) ssmAPIClient
}

func init() {
	Register("ssm", func() Scanner {
		return &SSMScanner{newClient: func(cfg aws.Config) ssmAPIClient { return ssmsvc.NewFromConfig(cfg) }}
	})
}

// NewSSMScannerWithClient returns an SSMScanner using f to build its client.
func NewSSMScannerWithClient(f func(aws.Config) ssmAPIClient) *SSMScanner {
	return &SSMScanner{newClient: f}
}

func (s *SSMScanner) Service() string            { return "ssm" }
func (s *SSMScanner) MinLevel() models.ScanLevel { return models.LevelExhaustive }
func (s *SSMScanner) Global() bool               { return false }

var ssmBattery = []checks.Check{
	{
		ID:       "ssm_instance_online",
		Title:    "SSM managed instance is reachable",
		Kind:     models.KindSSMInstance,
		Severity: models.SeverityMedium,
		MinLevel: models.LevelExhaustive,
		Evaluate: func(r *models.Resource) checks.Result {
			if r.StringAttr("ping_status") != string(ssmtypes.PingStatusOnline) {
				return checks.Fail("instance has lost contact with Systems Manager", map[string]any{
					"ping_status": r.StringAttr("ping_status"),
				})
			}
			return checks.Pass("instance online", nil)
		},
	},
	{
		ID:       "ssm_agent_current",
		Title:    "SSM agent is up to date",
		Kind:     models.KindSSMInstance,
		Severity: models.SeverityLow,
		MinLevel: models.LevelExhaustive,
		Evaluate: func(r *models.Resource) checks.Result {
			if !r.BoolAttr("agent_latest") {
				return checks.Fail("SSM agent is outdated", map[string]any{
					"agent_version": r.StringAttr("agent_version"),
				})
			}
			return checks.Pass("agent up to date", nil)
		},
	},
}

// Scan implements Scanner.
func (s *SSMScanner) Scan(ctx context.Context, sc *Context, region string) ([]models.Finding, error) {
	client := sc.Clients.Client("ssm", region, func(cfg aws.Config) any { return s.newClient(cfg) }).(ssmAPIClient)

	resources, err := sc.Cache.GetOrFetchList(ctx, models.KindSSMInstance, "ssm:"+region, func(ctx context.Context) ([]*models.Resource, error) {
		return s.discover(ctx, sc, client, region)
	})
	if err != nil {
		return handleDiscoveryError(sc, ssmBattery, region, err)
	}
	return evaluate(ctx, sc, ssmBattery, resources), nil
}

func (s *SSMScanner) discover(ctx context.Context, sc *Context, client ssmAPIClient, region string) ([]*models.Resource, error) {
	var resources []*models.Resource

	paginator := ssmsvc.NewDescribeInstanceInformationPaginator(client, &ssmsvc.DescribeInstanceInformationInput{})
	for paginator.HasMorePages() {
		if err := sc.Clients.Wait(ctx); err != nil {
			return resources, err
		}
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return resources, awsconn.Classify(err, "ssm", region, "DescribeInstanceInformation")
		}
		for _, info := range page.InstanceInformationList {
			id := aws.ToString(info.InstanceId)
			resources = append(resources, &models.Resource{
				Kind:   models.KindSSMInstance,
				ID:     arn.EC2Instance(sc.Partition(), region, sc.AccountID(), id),
				Name:   id,
				Region: region,
				Attrs: map[string]any{
					"ping_status":   string(info.PingStatus),
					"agent_latest":  aws.ToBool(info.IsLatestVersion),
					"agent_version": aws.ToString(info.AgentVersion),
				},
				DiscoveredAt: time.Now().UTC(),
			})
		}
	}
	return resources, nil
}
