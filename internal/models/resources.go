package models

import "time"

// ResourceKind identifies the kind of cloud resource a finding refers to.
type ResourceKind string

const (
	KindS3Bucket          ResourceKind = "S3_BUCKET"
	KindIAMUser           ResourceKind = "IAM_USER"
	KindIAMPasswordPolicy ResourceKind = "IAM_PASSWORD_POLICY"
	KindRootAccount       ResourceKind = "ROOT_ACCOUNT"
	KindEC2Instance       ResourceKind = "EC2_INSTANCE"
	KindEBSVolume         ResourceKind = "EBS_VOLUME"
	KindSecurityGroup     ResourceKind = "SECURITY_GROUP"
	KindVPC               ResourceKind = "VPC"
	KindCloudTrail        ResourceKind = "CLOUDTRAIL_TRAIL"
	KindGuardDutyDetector ResourceKind = "GUARDDUTY_DETECTOR"
	KindConfigRecorder    ResourceKind = "CONFIG_RECORDER"
	KindRDSInstance       ResourceKind = "RDS_INSTANCE"
	KindKMSKey            ResourceKind = "KMS_KEY"
	KindLambdaFunction    ResourceKind = "LAMBDA_FUNCTION"
	KindLoadBalancer      ResourceKind = "LOAD_BALANCER"
	KindDynamoDBTable     ResourceKind = "DYNAMODB_TABLE"
	KindSNSTopic          ResourceKind = "SNS_TOPIC"
	KindSQSQueue          ResourceKind = "SQS_QUEUE"
	KindElastiCacheNode   ResourceKind = "ELASTICACHE_CLUSTER"
	KindRedshiftCluster   ResourceKind = "REDSHIFT_CLUSTER"
	KindEKSCluster        ResourceKind = "EKS_CLUSTER"
	KindECSCluster        ResourceKind = "ECS_CLUSTER"
	KindECRRepository     ResourceKind = "ECR_REPOSITORY"
	KindSecret            ResourceKind = "SECRETSMANAGER_SECRET"
	KindCloudFrontDist    ResourceKind = "CLOUDFRONT_DISTRIBUTION"
	KindAPIGatewayStage   ResourceKind = "APIGATEWAY_STAGE"
	KindCloudWatchAlarm   ResourceKind = "CLOUDWATCH_ALARM"
	KindHostedZone        ResourceKind = "ROUTE53_HOSTED_ZONE"
	KindWebACL            ResourceKind = "WAFV2_WEB_ACL"
	KindAutoScalingGroup  ResourceKind = "AUTOSCALING_GROUP"
	KindCFNStack          ResourceKind = "CLOUDFORMATION_STACK"
	KindSSMInstance       ResourceKind = "SSM_MANAGED_INSTANCE"
	KindCostMonitor       ResourceKind = "COST_ANOMALY_MONITOR"
	KindAccount           ResourceKind = "ACCOUNT"
)

// Resource is a discovered cloud object. Attrs is a kind-specific attribute
// bag populated during discovery; checks read it and must not modify it.
// A Resource is cached by ID for the duration of one scan run and shared as
// a single immutable snapshot between all checks that need it.
type Resource struct {
	Kind         ResourceKind   `json:"kind"`
	ID           string         `json:"id"`
	Name         string         `json:"name,omitempty"`
	Region       string         `json:"region"`
	Attrs        map[string]any `json:"attrs,omitempty"`
	DiscoveredAt time.Time      `json:"discovered_at"`
}

// StringAttr returns the named attribute as a string, or "" when absent or
// of a different type.
func (r *Resource) StringAttr(key string) string {
	if v, ok := r.Attrs[key].(string); ok {
		return v
	}
	return ""
}

// BoolAttr returns the named attribute as a bool, or false when absent or
// of a different type.
func (r *Resource) BoolAttr(key string) bool {
	if v, ok := r.Attrs[key].(bool); ok {
		return v
	}
	return false
}

// IntAttr returns the named attribute as an int, handling the numeric types
// produced during discovery. Returns 0 when absent.
func (r *Resource) IntAttr(key string) int {
	switch v := r.Attrs[key].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
