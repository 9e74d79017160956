package scanners

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	ddbsvc "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/cloudrecon-labs/posturescan/internal/arn"
	"github.com/cloudrecon-labs/posturescan/internal/awsconn"
	"github.com/cloudrecon-labs/posturescan/internal/checks"
	"github.com/cloudrecon-labs/posturescan/internal/models"
)

// dynamodbAPIClient is the narrow DynamoDB interface used by the DynamoDB
// scanner.
type dynamodbAPIClient interface {
	ddbsvc.ListTablesAPIClient
	DescribeTable(ctx context.Context, params *ddbsvc.DescribeTableInput, optFns ...func(*ddbsvc.Options)) (*ddbsvc.DescribeTableOutput, error)
	DescribeContinuousBackups(ctx context.Context, params *ddbsvc.DescribeContinuousBackupsInput, optFns ...func(*ddbsvc.Options)) (*ddbsvc.DescribeContinuousBackupsOutput, error)
}

// DynamoDBScanner audits table posture: point-in-time recovery, encryption
// key type, and deletion protection.
type DynamoDBScanner struct {
	newClient func(aws.Config) dynamodbAPIClient
}

func init() {
	Register("dynamodb", func() Scanner {
		return &DynamoDBScanner{newClient: func(cfg aws.Config) dynamodbAPIClient { return ddbsvc.NewFromConfig(cfg) }}
	})
}

// NewDynamoDBScannerWithClient returns a DynamoDBScanner using f to build
// its client.
func NewDynamoDBScannerWithClient(f func(aws.Config) dynamodbAPIClient) *DynamoDBScanner {
	return &DynamoDBScanner{newClient: f}
}

func (s *DynamoDBScanner) Service() string            { return "dynamodb" }
func (s *DynamoDBScanner) MinLevel() models.ScanLevel { return models.LevelStandard }
func (s *DynamoDBScanner) Global() bool               { return false }

var dynamodbBattery = []checks.Check{
	{
		ID:       "dynamodb_pitr_enabled",
		Title:    "DynamoDB table has point-in-time recovery enabled",
		Kind:     models.KindDynamoDBTable,
		Severity: models.SeverityMedium,
		MinLevel: models.LevelStandard,
		Evaluate: func(r *models.Resource) checks.Result {
			if !r.BoolAttr("pitr_enabled") {
				return checks.Fail("point-in-time recovery is disabled", nil)
			}
			return checks.Pass("point-in-time recovery enabled", nil)
		},
	},
	{
		ID:       "dynamodb_cmk_encrypted",
		Title:    "DynamoDB table is encrypted with a KMS key",
		Kind:     models.KindDynamoDBTable,
		Severity: models.SeverityLow,
		MinLevel: models.LevelAdvanced,
		Evaluate: func(r *models.Resource) checks.Result {
			if r.StringAttr("sse_type") != string(ddbtypes.SSETypeKms) {
				return checks.Fail("table uses the default owned key instead of KMS", map[string]any{
					"sse_type": r.StringAttr("sse_type"),
				})
			}
			return checks.Pass("table encrypted with KMS", nil)
		},
	},
	{
		ID:       "dynamodb_deletion_protection",
		Title:    "DynamoDB table has deletion protection enabled",
		Kind:     models.KindDynamoDBTable,
		Severity: models.SeverityLow,
		MinLevel: models.LevelExhaustive,
		Evaluate: func(r *models.Resource) checks.Result {
			if !r.BoolAttr("deletion_protection") {
				return checks.Fail("deletion protection is disabled", nil)
			}
			return checks.Pass("deletion protection enabled", nil)
		},
	},
}

// Scan implements Scanner.
func (s *DynamoDBScanner) Scan(ctx context.Context, sc *Context, region string) ([]models.Finding, error) {
	client := sc.Clients.Client("dynamodb", region, func(cfg aws.Config) any { return s.newClient(cfg) }).(dynamodbAPIClient)

	resources, err := sc.Cache.GetOrFetchList(ctx, models.KindDynamoDBTable, "dynamodb:"+region, func(ctx context.Context) ([]*models.Resource, error) {
		return s.discover(ctx, sc, client, region)
	})
	if err != nil {
		return handleDiscoveryError(sc, dynamodbBattery, region, err)
	}
	return evaluate(ctx, sc, dynamodbBattery, resources), nil
}

func (s *DynamoDBScanner) discover(ctx context.Context, sc *Context, client dynamodbAPIClient, region string) ([]*models.Resource, error) {
	var resources []*models.Resource

	paginator := ddbsvc.NewListTablesPaginator(client, &ddbsvc.ListTablesInput{})
	for paginator.HasMorePages() {
		if err := sc.Clients.Wait(ctx); err != nil {
			return resources, err
		}
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return resources, awsconn.Classify(err, "dynamodb", region, "ListTables")
		}
		for _, name := range page.TableNames {
			r, skip := s.inspectTable(ctx, sc, client, region, name)
			if skip {
				continue
			}
			resources = append(resources, r)
		}
	}
	return resources, nil
}

func (s *DynamoDBScanner) inspectTable(ctx context.Context, sc *Context, client dynamodbAPIClient, region, name string) (*models.Resource, bool) {
	attrs := map[string]any{}
	tableARN := arn.DynamoDBTable(sc.Partition(), region, sc.AccountID(), name)

	err := sc.Do(ctx, "dynamodb", region, "DescribeTable", func() error {
		out, callErr := client.DescribeTable(ctx, &ddbsvc.DescribeTableInput{TableName: aws.String(name)})
		if callErr != nil {
			return callErr
		}
		t := out.Table
		if t == nil {
			return nil
		}
		if a := aws.ToString(t.TableArn); a != "" {
			tableARN = a
		}
		if t.SSEDescription != nil {
			attrs["sse_type"] = string(t.SSEDescription.SSEType)
		}
		attrs["deletion_protection"] = aws.ToBool(t.DeletionProtectionEnabled)
		return nil
	})
	if gone(err) {
		return nil, true
	}

	_ = sc.Do(ctx, "dynamodb", region, "DescribeContinuousBackups", func() error {
		out, callErr := client.DescribeContinuousBackups(ctx, &ddbsvc.DescribeContinuousBackupsInput{TableName: aws.String(name)})
		if callErr != nil {
			return callErr
		}
		if d := out.ContinuousBackupsDescription; d != nil && d.PointInTimeRecoveryDescription != nil {
			attrs["pitr_enabled"] = d.PointInTimeRecoveryDescription.PointInTimeRecoveryStatus == ddbtypes.PointInTimeRecoveryStatusEnabled
		}
		return nil
	})

	return &models.Resource{
		Kind:         models.KindDynamoDBTable,
		ID:           tableARN,
		Name:         name,
		Region:       region,
		Attrs:        attrs,
		DiscoveredAt: time.Now().UTC(),
	}, false
}
