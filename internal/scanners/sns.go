package scanners

import (
	"context"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	snssvc "github.com/aws/aws-sdk-go-v2/service/sns"

	"github.com/cloudrecon-labs/posturescan/internal/awsconn"
	"github.com/cloudrecon-labs/posturescan/internal/checks"
	"github.com/cloudrecon-labs/posturescan/internal/models"
)

// snsAPIClient is the narrow SNS interface used by the SNS scanner.
type snsAPIClient interface {
	snssvc.ListTopicsAPIClient
	GetTopicAttributes(ctx context.Context, params *snssvc.GetTopicAttributesInput, optFns ...func(*snssvc.Options)) (*snssvc.GetTopicAttributesOutput, error)
}

// SNSScanner audits topic encryption at rest.
type SNSScanner struct {
	newClient func(aws.Config) snsAPIClient
}

func init() {
	Register("sns", func() Scanner {
		return &SNSScanner{newClient: func(cfg aws.Config) snsAPIClient { return snssvc.NewFromConfig(cfg) }}
	})
}

// NewSNSScannerWithClient returns an SNSScanner using f to build its client.
func NewSNSScannerWithClient(f func(aws.Config) snsAPIClient) *SNSScanner {
	return &SNSScanner{newClient: f}
}

func (s *SNSScanner) Service() string            { return "sns" }
func (s *SNSScanner) MinLevel() models.ScanLevel { return models.LevelAdvanced }
func (s *SNSScanner) Global() bool               { return false }

var snsBattery = []checks.Check{
	{
		ID:       "sns_topic_encrypted",
		Title:    "SNS topic is encrypted at rest",
		Kind:     models.KindSNSTopic,
		Severity: models.SeverityMedium,
		MinLevel: models.LevelAdvanced,
		Evaluate: func(r *models.Resource) checks.Result {
			if r.StringAttr("kms_key_id") == "" {
				return checks.Fail("topic has no KMS encryption key", nil)
			}
			return checks.Pass("topic encrypted", nil)
		},
	},
}

// Scan implements Scanner.
func (s *SNSScanner) Scan(ctx context.Context, sc *Context, region string) ([]models.Finding, error) {
	client := sc.Clients.Client("sns", region, func(cfg aws.Config) any { return s.newClient(cfg) }).(snsAPIClient)

	resources, err := sc.Cache.GetOrFetchList(ctx, models.KindSNSTopic, "sns:"+region, func(ctx context.Context) ([]*models.Resource, error) {
		return s.discover(ctx, sc, client, region)
	})
	if err != nil {
		return handleDiscoveryError(sc, snsBattery, region, err)
	}
	return evaluate(ctx, sc, snsBattery, resources), nil
}

func (s *SNSScanner) discover(ctx context.Context, sc *Context, client snsAPIClient, region string) ([]*models.Resource, error) {
	var resources []*models.Resource

	paginator := snssvc.NewListTopicsPaginator(client, &snssvc.ListTopicsInput{})
	for paginator.HasMorePages() {
		if err := sc.Clients.Wait(ctx); err != nil {
			return resources, err
		}
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return resources, awsconn.Classify(err, "sns", region, "ListTopics")
		}
		for _, t := range page.Topics {
			topicARN := aws.ToString(t.TopicArn)

			kmsKey := ""
			attrErr := sc.Do(ctx, "sns", region, "GetTopicAttributes", func() error {
				out, callErr := client.GetTopicAttributes(ctx, &snssvc.GetTopicAttributesInput{TopicArn: aws.String(topicARN)})
				if callErr != nil {
					return callErr
				}
				kmsKey = out.Attributes["KmsMasterKeyId"]
				return nil
			})
			if gone(attrErr) {
				continue
			}

			name := topicARN
			if i := strings.LastIndex(topicARN, ":"); i >= 0 {
				name = topicARN[i+1:]
			}
			resources = append(resources, &models.Resource{
				Kind:   models.KindSNSTopic,
				ID:     topicARN,
				Name:   name,
				Region: region,
				Attrs: map[string]any{
					"kms_key_id": kmsKey,
				},
				DiscoveredAt: time.Now().UTC(),
			})
		}
	}
	return resources, nil
}
