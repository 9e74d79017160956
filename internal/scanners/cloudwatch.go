package scanners

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwsvc "github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/cloudrecon-labs/posturescan/internal/arn"
	"github.com/cloudrecon-labs/posturescan/internal/awsconn"
	"github.com/cloudrecon-labs/posturescan/internal/checks"
	"github.com/cloudrecon-labs/posturescan/internal/models"
)

// cloudwatchAPIClient is the narrow CloudWatch interface used by the
// CloudWatch scanner.
type cloudwatchAPIClient interface {
	cwsvc.DescribeAlarmsAPIClient
}

// CloudWatchScanner audits alarm hygiene: alarms whose actions are
// suppressed or missing never page anyone.
type CloudWatchScanner struct {
	newClient func(aws.Config) cloudwatchAPIClient
}

func init() {
	Register("cloudwatch", func() Scanner {
		return &CloudWatchScanner{newClient: func(cfg aws.Config) cloudwatchAPIClient { return cwsvc.NewFromConfig(cfg) }}
	})
}

// NewCloudWatchScannerWithClient returns a CloudWatchScanner using f to
// build its client.
func NewCloudWatchScannerWithClient(f func(aws.Config) cloudwatchAPIClient) *CloudWatchScanner {
	return &CloudWatchScanner{newClient: f}
}

func (s *CloudWatchScanner) Service() string            { return "cloudwatch" }
func (s *CloudWatchScanner) MinLevel() models.ScanLevel { return models.LevelExhaustive }
func (s *CloudWatchScanner) Global() bool               { return false }

var cloudwatchBattery = []checks.Check{
	{
		ID:       "cloudwatch_alarm_actions_enabled",
		Title:    "CloudWatch alarm has actions enabled",
		Kind:     models.KindCloudWatchAlarm,
		Severity: models.SeverityMedium,
		MinLevel: models.LevelExhaustive,
		Evaluate: func(r *models.Resource) checks.Result {
			if !r.BoolAttr("actions_enabled") {
				return checks.Fail("alarm actions are suppressed", nil)
			}
			if r.IntAttr("alarm_actions") == 0 {
				return checks.Fail("alarm has no actions configured", nil)
			}
			return checks.Pass("alarm actions active", nil)
		},
	},
}

// Scan implements Scanner.
func (s *CloudWatchScanner) Scan(ctx context.Context, sc *Context, region string) ([]models.Finding, error) {
	client := sc.Clients.Client("cloudwatch", region, func(cfg aws.Config) any { return s.newClient(cfg) }).(cloudwatchAPIClient)

	resources, err := sc.Cache.GetOrFetchList(ctx, models.KindCloudWatchAlarm, "cloudwatch:"+region, func(ctx context.Context) ([]*models.Resource, error) {
		return s.discover(ctx, sc, client, region)
	})
	if err != nil {
		return handleDiscoveryError(sc, cloudwatchBattery, region, err)
	}
	return evaluate(ctx, sc, cloudwatchBattery, resources), nil
}

func (s *CloudWatchScanner) discover(ctx context.Context, sc *Context, client cloudwatchAPIClient, region string) ([]*models.Resource, error) {
	var resources []*models.Resource

	paginator := cwsvc.NewDescribeAlarmsPaginator(client, &cwsvc.DescribeAlarmsInput{
		AlarmTypes: []cwtypes.AlarmType{cwtypes.AlarmTypeMetricAlarm},
	})
	for paginator.HasMorePages() {
		if err := sc.Clients.Wait(ctx); err != nil {
			return resources, err
		}
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return resources, awsconn.Classify(err, "cloudwatch", region, "DescribeAlarms")
		}
		for _, a := range page.MetricAlarms {
			name := aws.ToString(a.AlarmName)
			alarmARN := aws.ToString(a.AlarmArn)
			if alarmARN == "" {
				alarmARN = arn.CloudWatchAlarm(sc.Partition(), region, sc.AccountID(), name)
			}
			resources = append(resources, &models.Resource{
				Kind:   models.KindCloudWatchAlarm,
				ID:     alarmARN,
				Name:   name,
				Region: region,
				Attrs: map[string]any{
					"actions_enabled": aws.ToBool(a.ActionsEnabled),
					"alarm_actions":   len(a.AlarmActions),
				},
				DiscoveredAt: time.Now().UTC(),
			})
		}
	}
	return resources, nil
}
