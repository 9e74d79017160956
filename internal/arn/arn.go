// Package arn builds canonical AWS resource identifiers. The builders are
// pure functions; the engine uses their output to key cache entries and to
// correlate findings across scanners.
package arn

import (
	"fmt"
	"strings"
)

// DefaultPartition is used when the caller does not know the partition.
const DefaultPartition = "aws"

// Build assembles an ARN from its six components. resource already includes
// any type prefix (e.g. "function:my-fn" or "table/my-table").
func Build(partition, service, region, accountID, resource string) string {
	if partition == "" {
		partition = DefaultPartition
	}
	return fmt.Sprintf("arn:%s:%s:%s:%s:%s", partition, service, region, accountID, resource)
}

// Parts holds the parsed components of an ARN.
type Parts struct {
	Partition string
	Service   string
	Region    string
	AccountID string
	Resource  string
}

// Parse splits an ARN into its components. The resource segment may itself
// contain colons; everything after the fifth colon is kept intact.
func Parse(s string) (Parts, error) {
	const prefix = "arn:"
	if !strings.HasPrefix(s, prefix) {
		return Parts{}, fmt.Errorf("not an ARN: %q", s)
	}
	fields := strings.SplitN(s, ":", 6)
	if len(fields) < 6 {
		return Parts{}, fmt.Errorf("malformed ARN %q", s)
	}
	return Parts{
		Partition: fields[1],
		Service:   fields[2],
		Region:    fields[3],
		AccountID: fields[4],
		Resource:  fields[5],
	}, nil
}

// Global services use an empty region segment.

func S3Bucket(partition, name string) string {
	return Build(partition, "s3", "", "", name)
}

func IAMUser(partition, accountID, name string) string {
	return Build(partition, "iam", "", accountID, "user/"+name)
}

func IAMRoot(partition, accountID string) string {
	return Build(partition, "iam", "", accountID, "root")
}

func IAMPasswordPolicy(partition, accountID string) string {
	return Build(partition, "iam", "", accountID, "account-password-policy")
}

func EC2Instance(partition, region, accountID, id string) string {
	return Build(partition, "ec2", region, accountID, "instance/"+id)
}

func EBSVolume(partition, region, accountID, id string) string {
	return Build(partition, "ec2", region, accountID, "volume/"+id)
}

func SecurityGroup(partition, region, accountID, id string) string {
	return Build(partition, "ec2", region, accountID, "security-group/"+id)
}

func VPC(partition, region, accountID, id string) string {
	return Build(partition, "ec2", region, accountID, "vpc/"+id)
}

func CloudTrail(partition, region, accountID, name string) string {
	return Build(partition, "cloudtrail", region, accountID, "trail/"+name)
}

func GuardDutyDetector(partition, region, accountID, id string) string {
	return Build(partition, "guardduty", region, accountID, "detector/"+id)
}

func ConfigRecorder(partition, region, accountID, name string) string {
	return Build(partition, "config", region, accountID, "config-recorder/"+name)
}

func RDSInstance(partition, region, accountID, id string) string {
	return Build(partition, "rds", region, accountID, "db:"+id)
}

func KMSKey(partition, region, accountID, id string) string {
	return Build(partition, "kms", region, accountID, "key/"+id)
}

func LambdaFunction(partition, region, accountID, name string) string {
	return Build(partition, "lambda", region, accountID, "function:"+name)
}

func DynamoDBTable(partition, region, accountID, name string) string {
	return Build(partition, "dynamodb", region, accountID, "table/"+name)
}

func SNSTopic(partition, region, accountID, name string) string {
	return Build(partition, "sns", region, accountID, name)
}

func SQSQueue(partition, region, accountID, name string) string {
	return Build(partition, "sqs", region, accountID, name)
}

func ElastiCacheCluster(partition, region, accountID, id string) string {
	return Build(partition, "elasticache", region, accountID, "cluster:"+id)
}

func RedshiftCluster(partition, region, accountID, id string) string {
	return Build(partition, "redshift", region, accountID, "cluster:"+id)
}

func EKSCluster(partition, region, accountID, name string) string {
	return Build(partition, "eks", region, accountID, "cluster/"+name)
}

func ECSCluster(partition, region, accountID, name string) string {
	return Build(partition, "ecs", region, accountID, "cluster/"+name)
}

func ECRRepository(partition, region, accountID, name string) string {
	return Build(partition, "ecr", region, accountID, "repository/"+name)
}

func CloudFrontDistribution(partition, accountID, id string) string {
	return Build(partition, "cloudfront", "", accountID, "distribution/"+id)
}

func APIGatewayStage(partition, region, apiID, stage string) string {
	// API Gateway ARNs omit the account ID.
	return Build(partition, "apigateway", region, "", fmt.Sprintf("/restapis/%s/stages/%s", apiID, stage))
}

func CloudWatchAlarm(partition, region, accountID, name string) string {
	return Build(partition, "cloudwatch", region, accountID, "alarm:"+name)
}

func HostedZone(partition, id string) string {
	return Build(partition, "route53", "", "", "hostedzone/"+id)
}

func AutoScalingGroup(partition, region, accountID, name string) string {
	return Build(partition, "autoscaling", region, accountID, "autoScalingGroup:*:autoScalingGroupName/"+name)
}

func Account(partition, accountID string) string {
	return Build(partition, "iam", "", accountID, "account")
}
