package scanners

import (
	"context"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	sqssvc "github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/cloudrecon-labs/posturescan/internal/arn"
	"github.com/cloudrecon-labs/posturescan/internal/awsconn"
	"github.com/cloudrecon-labs/posturescan/internal/checks"
	"github.com/cloudrecon-labs/posturescan/internal/models"
)

// sqsAPIClient is the narrow SQS interface used by the SQS scanner.
type sqsAPIClient interface {
	sqssvc.ListQueuesAPIClient
	GetQueueAttributes(ctx context.Context, params *sqssvc.GetQueueAttributesInput, optFns ...func(*sqssvc.Options)) (*sqssvc.GetQueueAttributesOutput, error)
}

// SQSScanner audits queue encryption at rest. SQS-managed SSE and
// customer-managed KMS keys both satisfy the check.
type SQSScanner struct {
	newClient func(aws.Config) sqsAPIClient
}

func init() {
	Register("sqs", func() Scanner {
		return &SQSScanner{newClient: func(cfg aws.Config) sqsAPIClient { return sqssvc.NewFromConfig(cfg) }}
	})
}

// NewSQSScannerWithClient returns an SQSScanner using f to build its client.
func NewSQSScannerWithClient(f func(aws.Config) sqsAPIClient) *SQSScanner {
	return &SQSScanner{newClient: f}
}

func (s *SQSScanner) Service() string            { return "sqs" }
func (s *SQSScanner) MinLevel() models.ScanLevel { return models.LevelAdvanced }
func (s *SQSScanner) Global() bool               { return false }

var sqsBattery = []checks.Check{
	{
		ID:       "sqs_queue_encrypted",
		Title:    "SQS queue is encrypted at rest",
		Kind:     models.KindSQSQueue,
		Severity: models.SeverityMedium,
		MinLevel: models.LevelAdvanced,
		Evaluate: func(r *models.Resource) checks.Result {
			if r.StringAttr("kms_key_id") == "" && !r.BoolAttr("sse_managed") {
				return checks.Fail("queue has no at-rest encryption", nil)
			}
			return checks.Pass("queue encrypted", nil)
		},
	},
}

// Scan implements Scanner.
func (s *SQSScanner) Scan(ctx context.Context, sc *Context, region string) ([]models.Finding, error) {
	client := sc.Clients.Client("sqs", region, func(cfg aws.Config) any { return s.newClient(cfg) }).(sqsAPIClient)

	resources, err := sc.Cache.GetOrFetchList(ctx, models.KindSQSQueue, "sqs:"+region, func(ctx context.Context) ([]*models.Resource, error) {
		return s.discover(ctx, sc, client, region)
	})
	if err != nil {
		return handleDiscoveryError(sc, sqsBattery, region, err)
	}
	return evaluate(ctx, sc, sqsBattery, resources), nil
}

func (s *SQSScanner) discover(ctx context.Context, sc *Context, client sqsAPIClient, region string) ([]*models.Resource, error) {
	var resources []*models.Resource

	paginator := sqssvc.NewListQueuesPaginator(client, &sqssvc.ListQueuesInput{})
	for paginator.HasMorePages() {
		if err := sc.Clients.Wait(ctx); err != nil {
			return resources, err
		}
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return resources, awsconn.Classify(err, "sqs", region, "ListQueues")
		}
		for _, url := range page.QueueUrls {
			attrs := map[string]any{}
			queueARN := ""
			attrErr := sc.Do(ctx, "sqs", region, "GetQueueAttributes", func() error {
				out, callErr := client.GetQueueAttributes(ctx, &sqssvc.GetQueueAttributesInput{
					QueueUrl: aws.String(url),
					AttributeNames: []sqstypes.QueueAttributeName{
						sqstypes.QueueAttributeNameQueueArn,
						sqstypes.QueueAttributeNameKmsMasterKeyId,
						sqstypes.QueueAttributeNameSqsManagedSseEnabled,
					},
				})
				if callErr != nil {
					return callErr
				}
				queueARN = out.Attributes[string(sqstypes.QueueAttributeNameQueueArn)]
				attrs["kms_key_id"] = out.Attributes[string(sqstypes.QueueAttributeNameKmsMasterKeyId)]
				attrs["sse_managed"] = out.Attributes[string(sqstypes.QueueAttributeNameSqsManagedSseEnabled)] == "true"
				return nil
			})
			if gone(attrErr) {
				continue
			}

			name := url
			if i := strings.LastIndex(url, "/"); i >= 0 {
				name = url[i+1:]
			}
			if queueARN == "" {
				queueARN = arn.SQSQueue(sc.Partition(), region, sc.AccountID(), name)
			}
			resources = append(resources, &models.Resource{
				Kind:         models.KindSQSQueue,
				ID:           queueARN,
				Name:         name,
				Region:       region,
				Attrs:        attrs,
				DiscoveredAt: time.Now().UTC(),
			})
		}
	}
	return resources, nil
}
