package scanners

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	asgsvc "github.com/aws/aws-sdk-go-v2/service/autoscaling"

	"github.com/cloudrecon-labs/posturescan/internal/arn"
	"github.com/cloudrecon-labs/posturescan/internal/awsconn"
	"github.com/cloudrecon-labs/posturescan/internal/checks"
	"github.com/cloudrecon-labs/posturescan/internal/models"
)

// autoscalingAPIClient is the narrow Auto Scaling interface used by the
// Auto Scaling scanner.
type autoscalingAPIClient interface {
	asgsvc.DescribeAutoScalingGroupsAPIClient
}

// AutoScalingScanner audits group resilience: single-AZ groups and groups
// behind a load balancer that still use plain EC2 health checks.
type AutoScalingScanner struct {
	newClient func(aws.Config) autoscalingAPIClient
}

func init() {
	Register("autoscaling", func() Scanner {
		return &AutoScalingScanner{newClient: func(cfg aws.Config) autoscalingAPIClient { return asgsvc.NewFromConfig(cfg) }}
	})
}

// NewAutoScalingScannerWithClient returns an AutoScalingScanner using f to
// build its client.
func NewAutoScalingScannerWithClient(f func(aws.Config) autoscalingAPIClient) *AutoScalingScanner {
	return &AutoScalingScanner{newClient: f}
}

func (s *AutoScalingScanner) Service() string            { return "autoscaling" }
func (s *AutoScalingScanner) MinLevel() models.ScanLevel { return models.LevelExhaustive }
func (s *AutoScalingScanner) Global() bool               { return false }

var autoscalingBattery = []checks.Check{
	{
		ID:       "autoscaling_multi_az",
		Title:    "Auto Scaling group spans multiple availability zones",
		Kind:     models.KindAutoScalingGroup,
		Severity: models.SeverityMedium,
		MinLevel: models.LevelExhaustive,
		Evaluate: func(r *models.Resource) checks.Result {
			if n := r.IntAttr("availability_zones"); n < 2 {
				return checks.Fail("group runs in a single availability zone", map[string]any{
					"availability_zones": n,
				})
			}
			return checks.Pass("group spans multiple availability zones", nil)
		},
	},
	{
		ID:       "autoscaling_elb_health_check",
		Title:    "Auto Scaling group behind a load balancer uses ELB health checks",
		Kind:     models.KindAutoScalingGroup,
		Severity: models.SeverityLow,
		MinLevel: models.LevelExhaustive,
		Evaluate: func(r *models.Resource) checks.Result {
			if !r.BoolAttr("behind_load_balancer") {
				return checks.NotApplicable("group is not attached to a load balancer")
			}
			if r.StringAttr("health_check_type") != "ELB" {
				return checks.Fail("group relies on EC2 health checks behind a load balancer", nil)
			}
			return checks.Pass("ELB health checks in use", nil)
		},
	},
}

// Scan implements Scanner.
func (s *AutoScalingScanner) Scan(ctx context.Context, sc *Context, region string) ([]models.Finding, error) {
	client := sc.Clients.Client("autoscaling", region, func(cfg aws.Config) any { return s.newClient(cfg) }).(autoscalingAPIClient)

	resources, err := sc.Cache.GetOrFetchList(ctx, models.KindAutoScalingGroup, "autoscaling:"+region, func(ctx context.Context) ([]*models.Resource, error) {
		return s.discover(ctx, sc, client, region)
	})
	if err != nil {
		return handleDiscoveryError(sc, autoscalingBattery, region, err)
	}
	return evaluate(ctx, sc, autoscalingBattery, resources), nil
}

func (s *AutoScalingScanner) discover(ctx context.Context, sc *Context, client autoscalingAPIClient, region string) ([]*models.Resource, error) {
	var resources []*models.Resource

	paginator := asgsvc.NewDescribeAutoScalingGroupsPaginator(client, &asgsvc.DescribeAutoScalingGroupsInput{})
	for paginator.HasMorePages() {
		if err := sc.Clients.Wait(ctx); err != nil {
			return resources, err
		}
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return resources, awsconn.Classify(err, "autoscaling", region, "DescribeAutoScalingGroups")
		}
		for _, g := range page.AutoScalingGroups {
			name := aws.ToString(g.AutoScalingGroupName)
			groupARN := aws.ToString(g.AutoScalingGroupARN)
			if groupARN == "" {
				groupARN = arn.AutoScalingGroup(sc.Partition(), region, sc.AccountID(), name)
			}
			resources = append(resources, &models.Resource{
				Kind:   models.KindAutoScalingGroup,
				ID:     groupARN,
				Name:   name,
				Region: region,
				Attrs: map[string]any{
					"availability_zones":   len(g.AvailabilityZones),
					"health_check_type":    aws.ToString(g.HealthCheckType),
					"behind_load_balancer": len(g.LoadBalancerNames) > 0 || len(g.TargetGroupARNs) > 0,
				},
				DiscoveredAt: time.Now().UTC(),
			})
		}
	}
	return resources, nil
}
