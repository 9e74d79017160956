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

// vpcAPIClient is the narrow EC2 networking interface used by the VPC
// scanner.
type vpcAPIClient interface {
	ec2svc.DescribeVpcsAPIClient
	ec2svc.DescribeSecurityGroupsAPIClient
	ec2svc.DescribeFlowLogsAPIClient
}

// VPCScanner audits network posture: VPC flow logging and security group
// exposure of administrative ports.
type VPCScanner struct {
	newClient func(aws.Config) vpcAPIClient
}

func init() {
	Register("vpc", func() Scanner {
		return &VPCScanner{newClient: func(cfg aws.Config) vpcAPIClient { return ec2svc.NewFromConfig(cfg) }}
	})
}

// NewVPCScannerWithClient returns a VPCScanner using f to build its client.
func NewVPCScannerWithClient(f func(aws.Config) vpcAPIClient) *VPCScanner {
	return &VPCScanner{newClient: f}
}

func (s *VPCScanner) Service() string            { return "vpc" }
func (s *VPCScanner) MinLevel() models.ScanLevel { return models.LevelStandard }
func (s *VPCScanner) Global() bool               { return false }

var vpcBattery = []checks.Check{
	{
		ID:       "vpc_flow_logs_enabled",
		Title:    "VPC has flow logs enabled",
		Kind:     models.KindVPC,
		Severity: models.SeverityMedium,
		MinLevel: models.LevelStandard,
		Evaluate: func(r *models.Resource) checks.Result {
			if !r.BoolAttr("flow_logs") {
				return checks.Fail("no flow log captures traffic for this VPC", nil)
			}
			return checks.Pass("flow logs enabled", nil)
		},
	},
	{
		ID:       "vpc_sg_no_open_ssh",
		Title:    "Security group does not expose SSH to the world",
		Kind:     models.KindSecurityGroup,
		Severity: models.SeverityCritical,
		MinLevel: models.LevelStandard,
		Evaluate: func(r *models.Resource) checks.Result {
			if r.BoolAttr("open_ssh") {
				return checks.Fail("port 22 is open to 0.0.0.0/0", nil)
			}
			return checks.Pass("SSH not world-reachable", nil)
		},
	},
	{
		ID:       "vpc_sg_no_open_rdp",
		Title:    "Security group does not expose RDP to the world",
		Kind:     models.KindSecurityGroup,
		Severity: models.SeverityCritical,
		MinLevel: models.LevelStandard,
		Evaluate: func(r *models.Resource) checks.Result {
			if r.BoolAttr("open_rdp") {
				return checks.Fail("port 3389 is open to 0.0.0.0/0", nil)
			}
			return checks.Pass("RDP not world-reachable", nil)
		},
	},
	{
		ID:       "vpc_default_sg_restricts_traffic",
		Title:    "Default security group has no ingress rules",
		Kind:     models.KindSecurityGroup,
		Severity: models.SeverityMedium,
		MinLevel: models.LevelStandard,
		Evaluate: func(r *models.Resource) checks.Result {
			if r.Name != "default" {
				return checks.NotApplicable("not a default security group")
			}
			if n := r.IntAttr("ingress_rules"); n > 0 {
				return checks.Fail("default security group permits ingress traffic", map[string]any{
					"ingress_rules": n,
				})
			}
			return checks.Pass("default security group has no ingress rules", nil)
		},
	},
}

// Scan implements Scanner.
func (s *VPCScanner) Scan(ctx context.Context, sc *Context, region string) ([]models.Finding, error) {
	client := sc.Clients.Client("ec2", region, func(cfg aws.Config) any { return s.newClient(cfg) }).(vpcAPIClient)

	var all []*models.Resource

	vpcs, err := sc.Cache.GetOrFetchList(ctx, models.KindVPC, "vpc:vpcs:"+region, func(ctx context.Context) ([]*models.Resource, error) {
		return s.discoverVPCs(ctx, sc, client, region)
	})
	if err != nil {
		return handleDiscoveryError(sc, vpcBattery, region, err)
	}
	all = append(all, vpcs...)

	groups, err := sc.Cache.GetOrFetchList(ctx, models.KindSecurityGroup, "vpc:security-groups:"+region, func(ctx context.Context) ([]*models.Resource, error) {
		return s.discoverSecurityGroups(ctx, sc, client, region)
	})
	if err != nil {
		return handleDiscoveryError(sc, vpcBattery, region, err)
	}
	all = append(all, groups...)

	return evaluate(ctx, sc, vpcBattery, all), nil
}

func (s *VPCScanner) discoverVPCs(ctx context.Context, sc *Context, client vpcAPIClient, region string) ([]*models.Resource, error) {
	// One flow-log listing covers every VPC in the region.
	logged := make(map[string]bool)
	flPaginator := ec2svc.NewDescribeFlowLogsPaginator(client, &ec2svc.DescribeFlowLogsInput{})
	for flPaginator.HasMorePages() {
		if err := sc.Clients.Wait(ctx); err != nil {
			return nil, err
		}
		page, err := flPaginator.NextPage(ctx)
		if err != nil {
			return nil, awsconn.Classify(err, "vpc", region, "DescribeFlowLogs")
		}
		for _, fl := range page.FlowLogs {
			logged[aws.ToString(fl.ResourceId)] = true
		}
	}

	var resources []*models.Resource
	paginator := ec2svc.NewDescribeVpcsPaginator(client, &ec2svc.DescribeVpcsInput{})
	for paginator.HasMorePages() {
		if err := sc.Clients.Wait(ctx); err != nil {
			return resources, err
		}
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return resources, awsconn.Classify(err, "vpc", region, "DescribeVpcs")
		}
		for _, v := range page.Vpcs {
			id := aws.ToString(v.VpcId)
			resources = append(resources, &models.Resource{
				Kind:   models.KindVPC,
				ID:     arn.VPC(sc.Partition(), region, sc.AccountID(), id),
				Name:   id,
				Region: region,
				Attrs: map[string]any{
					"flow_logs":  logged[id],
					"is_default": aws.ToBool(v.IsDefault),
				},
				DiscoveredAt: time.Now().UTC(),
			})
		}
	}
	return resources, nil
}

func (s *VPCScanner) discoverSecurityGroups(ctx context.Context, sc *Context, client vpcAPIClient, region string) ([]*models.Resource, error) {
	var resources []*models.Resource

	paginator := ec2svc.NewDescribeSecurityGroupsPaginator(client, &ec2svc.DescribeSecurityGroupsInput{})
	for paginator.HasMorePages() {
		if err := sc.Clients.Wait(ctx); err != nil {
			return resources, err
		}
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return resources, awsconn.Classify(err, "vpc", region, "DescribeSecurityGroups")
		}
		for _, g := range page.SecurityGroups {
			id := aws.ToString(g.GroupId)
			resources = append(resources, &models.Resource{
				Kind:   models.KindSecurityGroup,
				ID:     arn.SecurityGroup(sc.Partition(), region, sc.AccountID(), id),
				Name:   aws.ToString(g.GroupName),
				Region: region,
				Attrs: map[string]any{
					"open_ssh":      portOpenToWorld(g.IpPermissions, 22),
					"open_rdp":      portOpenToWorld(g.IpPermissions, 3389),
					"ingress_rules": len(g.IpPermissions),
					"vpc_id":        aws.ToString(g.VpcId),
				},
				DiscoveredAt: time.Now().UTC(),
			})
		}
	}
	return resources, nil
}

// portOpenToWorld reports whether any ingress rule admits the given port
// from 0.0.0.0/0 or ::/0. A rule with no port range ("all traffic") counts.
func portOpenToWorld(perms []ec2types.IpPermission, port int32) bool {
	for _, p := range perms {
		if p.FromPort != nil && p.ToPort != nil {
			if port < aws.ToInt32(p.FromPort) || port > aws.ToInt32(p.ToPort) {
				continue
			}
		}
		for _, r := range p.IpRanges {
			if aws.ToString(r.CidrIp) == "0.0.0.0/0" {
				return true
			}
		}
		for _, r := range p.Ipv6Ranges {
			if aws.ToString(r.CidrIpv6) == "::/0" {
				return true
			}
		}
	}
	return false
}
