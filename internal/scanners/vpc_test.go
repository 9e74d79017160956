package scanners

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	ec2svc "github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/cloudrecon-labs/posturescan/internal/models"
)

type fakeVPC struct {
	vpcs     []ec2types.Vpc
	groups   []ec2types.SecurityGroup
	flowLogs []ec2types.FlowLog
}

func (f *fakeVPC) DescribeVpcs(ctx context.Context, params *ec2svc.DescribeVpcsInput, optFns ...func(*ec2svc.Options)) (*ec2svc.DescribeVpcsOutput, error) {
	return &ec2svc.DescribeVpcsOutput{Vpcs: f.vpcs}, nil
}

func (f *fakeVPC) DescribeSecurityGroups(ctx context.Context, params *ec2svc.DescribeSecurityGroupsInput, optFns ...func(*ec2svc.Options)) (*ec2svc.DescribeSecurityGroupsOutput, error) {
	return &ec2svc.DescribeSecurityGroupsOutput{SecurityGroups: f.groups}, nil
}

func (f *fakeVPC) DescribeFlowLogs(ctx context.Context, params *ec2svc.DescribeFlowLogsInput, optFns ...func(*ec2svc.Options)) (*ec2svc.DescribeFlowLogsOutput, error) {
	return &ec2svc.DescribeFlowLogsOutput{FlowLogs: f.flowLogs}, nil
}

func worldOpenRule(port int32) ec2types.IpPermission {
	return ec2types.IpPermission{
		FromPort: aws.Int32(port),
		ToPort:   aws.Int32(port),
		IpRanges: []ec2types.IpRange{{CidrIp: aws.String("0.0.0.0/0")}},
	}
}

func vpcScannerWith(client *fakeVPC) *VPCScanner {
	return NewVPCScannerWithClient(func(cfg aws.Config) vpcAPIClient { return client })
}

func TestVPCScan_FlowLogsAndExposure(t *testing.T) {
	client := &fakeVPC{
		vpcs: []ec2types.Vpc{
			{VpcId: aws.String("vpc-logged")},
			{VpcId: aws.String("vpc-dark")},
		},
		flowLogs: []ec2types.FlowLog{{ResourceId: aws.String("vpc-logged")}},
		groups: []ec2types.SecurityGroup{
			{
				GroupId:       aws.String("sg-bastion"),
				GroupName:     aws.String("bastion"),
				VpcId:         aws.String("vpc-logged"),
				IpPermissions: []ec2types.IpPermission{worldOpenRule(22)},
			},
			{
				GroupId:   aws.String("sg-default"),
				GroupName: aws.String("default"),
				VpcId:     aws.String("vpc-dark"),
				IpPermissions: []ec2types.IpPermission{
					{IpRanges: []ec2types.IpRange{{CidrIp: aws.String("10.0.0.0/8")}}},
				},
			},
		},
	}
	sc := newTestContext(models.LevelStandard)

	findings, err := vpcScannerWith(client).Scan(context.Background(), sc, "us-east-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 2 VPCs x 1 check + 2 groups x 3 checks.
	if len(findings) != 8 {
		t.Fatalf("got %d findings; want 8", len(findings))
	}

	logged := statusByCheck(findings, "arn:aws:ec2:us-east-1:123456789012:vpc/vpc-logged")
	if logged["vpc_flow_logs_enabled"] != models.StatusPass {
		t.Errorf("vpc-logged flow logs = %q; want PASS", logged["vpc_flow_logs_enabled"])
	}
	dark := statusByCheck(findings, "arn:aws:ec2:us-east-1:123456789012:vpc/vpc-dark")
	if dark["vpc_flow_logs_enabled"] != models.StatusFail {
		t.Errorf("vpc-dark flow logs = %q; want FAIL", dark["vpc_flow_logs_enabled"])
	}

	bastion := statusByCheck(findings, "arn:aws:ec2:us-east-1:123456789012:security-group/sg-bastion")
	if bastion["vpc_sg_no_open_ssh"] != models.StatusFail {
		t.Errorf("bastion SSH = %q; want FAIL", bastion["vpc_sg_no_open_ssh"])
	}
	if bastion["vpc_sg_no_open_rdp"] != models.StatusPass {
		t.Errorf("bastion RDP = %q; want PASS", bastion["vpc_sg_no_open_rdp"])
	}
	if bastion["vpc_default_sg_restricts_traffic"] != models.StatusNotApplicable {
		t.Errorf("bastion default-sg check = %q; want NOT_APPLICABLE", bastion["vpc_default_sg_restricts_traffic"])
	}

	def := statusByCheck(findings, "arn:aws:ec2:us-east-1:123456789012:security-group/sg-default")
	if def["vpc_default_sg_restricts_traffic"] != models.StatusFail {
		t.Errorf("default sg with ingress = %q; want FAIL", def["vpc_default_sg_restricts_traffic"])
	}
	// A private CIDR is not world exposure even though the rule has no port range.
	if def["vpc_sg_no_open_ssh"] != models.StatusPass {
		t.Errorf("default sg SSH = %q; want PASS", def["vpc_sg_no_open_ssh"])
	}
}

func TestPortOpenToWorld(t *testing.T) {
	cases := []struct {
		name  string
		perms []ec2types.IpPermission
		port  int32
		want  bool
	}{
		{
			name:  "exact port to world",
			perms: []ec2types.IpPermission{worldOpenRule(22)},
			port:  22,
			want:  true,
		},
		{
			name:  "different port",
			perms: []ec2types.IpPermission{worldOpenRule(443)},
			port:  22,
			want:  false,
		},
		{
			name: "port inside range",
			perms: []ec2types.IpPermission{{
				FromPort: aws.Int32(0),
				ToPort:   aws.Int32(1024),
				IpRanges: []ec2types.IpRange{{CidrIp: aws.String("0.0.0.0/0")}},
			}},
			port: 22,
			want: true,
		},
		{
			name: "all traffic rule counts",
			perms: []ec2types.IpPermission{{
				IpRanges: []ec2types.IpRange{{CidrIp: aws.String("0.0.0.0/0")}},
			}},
			port: 3389,
			want: true,
		},
		{
			name: "ipv6 world",
			perms: []ec2types.IpPermission{{
				FromPort:   aws.Int32(22),
				ToPort:     aws.Int32(22),
				Ipv6Ranges: []ec2types.Ipv6Range{{CidrIpv6: aws.String("::/0")}},
			}},
			port: 22,
			want: true,
		},
		{
			name: "private cidr only",
			perms: []ec2types.IpPermission{{
				FromPort: aws.Int32(22),
				ToPort:   aws.Int32(22),
				IpRanges: []ec2types.IpRange{{CidrIp: aws.String("192.168.0.0/16")}},
			}},
			port: 22,
			want: false,
		},
		{
			name:  "no rules",
			perms: nil,
			port:  22,
			want:  false,
		},
	}

	for _, c := range cases {
		if got := portOpenToWorld(c.perms, c.port); got != c.want {
			t.Errorf("%s: portOpenToWorld = %v; want %v", c.name, got, c.want)
		}
	}
}

func TestVPCScanner_Metadata(t *testing.T) {
	s := vpcScannerWith(&fakeVPC{})
	if s.Service() != "vpc" {
		t.Errorf("Service = %q", s.Service())
	}
	if s.Global() {
		t.Error("VPC posture is regional")
	}
	if s.MinLevel() != models.LevelStandard {
		t.Errorf("MinLevel = %v", s.MinLevel())
	}
}
