package scanners

import (
	"github.com/cloudrecon-labs/posturescan/internal/checks"
)

// Batteries returns every scanner's check battery keyed by service name.
// The slices are the live battery definitions; callers must not modify
// them.
func Batteries() map[string][]checks.Check {
	return map[string][]checks.Check{
		"apigateway":     apigatewayBattery,
		"autoscaling":    autoscalingBattery,
		"cloudformation": cloudformationBattery,
		"cloudfront":     cloudfrontBattery,
		"cloudtrail":     cloudtrailBattery,
		"cloudwatch":     cloudwatchBattery,
		"config":         configBattery,
		"costexplorer":   costBattery,
		"dynamodb":       dynamodbBattery,
		"ec2":            ec2Battery,
		"ecr":            ecrBattery,
		"ecs":            ecsBattery,
		"eks":            eksBattery,
		"elasticache":    elasticacheBattery,
		"elbv2":          elbBattery,
		"guardduty":      guarddutyBattery,
		"iam":            iamBattery,
		"kms":            kmsBattery,
		"lambda":         lambdaBattery,
		"rds":            rdsBattery,
		"redshift":       redshiftBattery,
		"route53":        route53Battery,
		"s3":             s3Battery,
		"secretsmanager": secretsBattery,
		"sns":            snsBattery,
		"sqs":            sqsBattery,
		"ssm":            ssmBattery,
		"vpc":            vpcBattery,
		"wafv2":          wafBattery,
	}
}
