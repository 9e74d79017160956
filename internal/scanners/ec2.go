package scanners

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	ec2svc "github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/cloudrecon-labs/posturescan/internal/arn"
	"github.com/cloudrecon-labs/posturescan/internal/awsconn"
	"github.com/cloudrecon-labs/posturescan/internal/checks"
	"github.com/cloudrecon-labs/posturescan/internal/models"
)

// ec2APIClient is the narrow EC2 interface used by the EC2 scanner.
type ec2APIClient interface {
	ec2svc.DescribeInstancesAPIClient
	ec2svc.DescribeVolumesAPIClient
}

// EC2Scanner audits compute posture: instance metadata service hardening,
// public exposure, monitoring, and EBS volume encryption.
type EC2Scanner struct {
	newClient func(aws.Config) ec2APIClient
}

func init() {
	Register("ec2", func() Scanner {
		return &EC2Scanner{newClient: func(cfg aws.Config) ec2APIClient { return ec2svc.NewFromConfig(cfg) }}
	})
}

// NewEC2ScannerWithClient returns an EC2Scanner using f to build its client.
func NewEC2ScannerWithClient(f func(aws.Config) ec2APIClient) *EC2Scanner {
	return &EC2Scanner{newClient: f}
}

func (s *EC2Scanner) Service() string            { return "ec2" }
func (s *EC2Scanner) MinLevel() models.ScanLevel { return models.LevelBasic }
func (s *EC2Scanner) Global() bool               { return false }

var ec2Battery = []checks.Check{
	{
		ID:       "ec2_instance_imdsv2_required",
		Title:    "EC2 instance requires IMDSv2",
		Kind:     models.KindEC2Instance,
		Severity: models.SeverityHigh,
		MinLevel: models.LevelBasic,
		Evaluate: func(r *models.Resource) checks.Result {
			if r.StringAttr("http_tokens") != "required" {
				return checks.Fail("instance metadata service accepts IMDSv1 requests", map[string]any{
					"http_tokens": r.StringAttr("http_tokens"),
				})
			}
			return checks.Pass("IMDSv2 required", nil)
		},
	},
	{
		ID:       "ec2_instance_no_public_ip",
		Title:    "EC2 instance has no public IP address",
		Kind:     models.KindEC2Instance,
		Severity: models.SeverityMedium,
		MinLevel: models.LevelStandard,
		Evaluate: func(r *models.Resource) checks.Result {
			if ip := r.StringAttr("public_ip"); ip != "" {
				return checks.Fail("instance is directly reachable from the internet", map[string]any{
					"public_ip": ip,
				})
			}
			return checks.Pass("no public IP assigned", nil)
		},
	},
	{
		ID:       "ec2_instance_detailed_monitoring",
		Title:    "EC2 instance has detailed monitoring enabled",
		Kind:     models.KindEC2Instance,
		Severity: models.SeverityLow,
		MinLevel: models.LevelExhaustive,
		Evaluate: func(r *models.Resource) checks.Result {
			if !r.BoolAttr("detailed_monitoring") {
				return checks.Fail("detailed monitoring is disabled", nil)
			}
			return checks.Pass("detailed monitoring enabled", nil)
		},
	},
	{
		ID:       "ec2_ebs_volume_encrypted",
		Title:    "EBS volume is encrypted at rest",
		Kind:     models.KindEBSVolume,
		Severity: models.SeverityHigh,
		MinLevel: models.LevelBasic,
		Evaluate: func(r *models.Resource) checks.Result {
			if !r.BoolAttr("encrypted") {
				return checks.Fail("volume is not encrypted", nil)
			}
			return checks.Pass("volume encrypted", nil)
		},
	},
}

// Scan implements Scanner.
func (s *EC2Scanner) Scan(ctx context.Context, sc *Context, region string) ([]models.Finding, error) {
	client := sc.Clients.Client("ec2", region, func(cfg aws.Config) any { return s.newClient(cfg) }).(ec2APIClient)

	var all []*models.Resource

	instances, err := sc.Cache.GetOrFetchList(ctx, models.KindEC2Instance, "ec2:instances:"+region, func(ctx context.Context) ([]*models.Resource, error) {
		return s.discoverInstances(ctx, sc, client, region)
	})
	if err != nil {
		return handleDiscoveryError(sc, ec2Battery, region, err)
	}
	all = append(all, instances...)

	volumes, err := sc.Cache.GetOrFetchList(ctx, models.KindEBSVolume, "ec2:volumes:"+region, func(ctx context.Context) ([]*models.Resource, error) {
		return s.discoverVolumes(ctx, sc, client, region)
	})
	if err != nil {
		return handleDiscoveryError(sc, ec2Battery, region, err)
	}
	all = append(all, volumes...)

	return evaluate(ctx, sc, ec2Battery, all), nil
}

func (s *EC2Scanner) discoverInstances(ctx context.Context, sc *Context, client ec2APIClient, region string) ([]*models.Resource, error) {
	var resources []*models.Resource

	paginator := ec2svc.NewDescribeInstancesPaginator(client, &ec2svc.DescribeInstancesInput{})
	for paginator.HasMorePages() {
		if err := sc.Clients.Wait(ctx); err != nil {
			return resources, err
		}
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return resources, awsconn.Classify(err, "ec2", region, "DescribeInstances")
		}
		for _, res := range page.Reservations {
			for _, inst := range res.Instances {
				// Terminated instances are not a posture concern.
				if inst.State != nil && inst.State.Name == ec2types.InstanceStateNameTerminated {
					continue
				}
				id := aws.ToString(inst.InstanceId)
				attrs := map[string]any{
					"public_ip": aws.ToString(inst.PublicIpAddress),
				}
				if mo := inst.MetadataOptions; mo != nil {
					attrs["http_tokens"] = string(mo.HttpTokens)
				}
				if inst.Monitoring != nil {
					attrs["detailed_monitoring"] = inst.Monitoring.State == ec2types.MonitoringStateEnabled
				}
				resources = append(resources, &models.Resource{
					Kind:         models.KindEC2Instance,
					ID:           arn.EC2Instance(sc.Partition(), region, sc.AccountID(), id),
					Name:         id,
					Region:       region,
					Attrs:        attrs,
					DiscoveredAt: time.Now().UTC(),
				})
			}
		}
	}
	return resources, nil
}

func (s *EC2Scanner) discoverVolumes(ctx context.Context, sc *Context, client ec2APIClient, region string) ([]*models.Resource, error) {
	var resources []*models.Resource

	paginator := ec2svc.NewDescribeVolumesPaginator(client, &ec2svc.DescribeVolumesInput{})
	for paginator.HasMorePages() {
		if err := sc.Clients.Wait(ctx); err != nil {
			return resources, err
		}
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return resources, awsconn.Classify(err, "ec2", region, "DescribeVolumes")
		}
		for _, v := range page.Volumes {
			id := aws.ToString(v.VolumeId)
			resources = append(resources, &models.Resource{
				Kind:   models.KindEBSVolume,
				ID:     arn.EBSVolume(sc.Partition(), region, sc.AccountID(), id),
				Name:   id,
				Region: region,
				Attrs: map[string]any{
					"encrypted": aws.ToBool(v.Encrypted),
				},
				DiscoveredAt: time.Now().UTC(),
			})
		}
	}
	return resources, nil
}
