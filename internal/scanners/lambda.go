package scanners

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	lambdasvc "github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"

	"github.com/cloudrecon-labs/posturescan/internal/arn"
	"github.com/cloudrecon-labs/posturescan/internal/awsconn"
	"github.com/cloudrecon-labs/posturescan/internal/checks"
	"github.com/cloudrecon-labs/posturescan/internal/models"
)

// lambdaAPIClient is the narrow Lambda interface used by the Lambda
// scanner.
type lambdaAPIClient interface {
	lambdasvc.ListFunctionsAPIClient
}

// deprecatedRuntimes are runtimes past their end of support.
var deprecatedRuntimes = map[string]bool{
	"python2.7":     true,
	"python3.6":     true,
	"python3.7":     true,
	"nodejs10.x":    true,
	"nodejs12.x":    true,
	"nodejs14.x":    true,
	"ruby2.5":       true,
	"ruby2.7":       true,
	"dotnetcore2.1": true,
	"dotnetcore3.1": true,
	"go1.x":         true,
}

// LambdaScanner audits function posture: runtime support status, tracing,
// and environment encryption.
type LambdaScanner struct {
	newClient func(aws.Config) lambdaAPIClient
}

func init() {
	Register("lambda", func() Scanner {
		return &LambdaScanner{newClient: func(cfg aws.Config) lambdaAPIClient { return lambdasvc.NewFromConfig(cfg) }}
	})
}

// NewLambdaScannerWithClient returns a LambdaScanner using f to build its
// client.
func NewLambdaScannerWithClient(f func(aws.Config) lambdaAPIClient) *LambdaScanner {
	return &LambdaScanner{newClient: f}
}

func (s *LambdaScanner) Service() string            { return "lambda" }
func (s *LambdaScanner) MinLevel() models.ScanLevel { return models.LevelStandard }
func (s *LambdaScanner) Global() bool               { return false }

var lambdaBattery = []checks.Check{
	{
		ID:       "lambda_runtime_supported",
		Title:    "Lambda function runs on a supported runtime",
		Kind:     models.KindLambdaFunction,
		Severity: models.SeverityMedium,
		MinLevel: models.LevelStandard,
		Evaluate: func(r *models.Resource) checks.Result {
			rt := r.StringAttr("runtime")
			if rt == "" {
				return checks.NotApplicable("container-image function has no managed runtime")
			}
			if deprecatedRuntimes[rt] {
				return checks.Fail("function runtime is past end of support", map[string]any{
					"runtime": rt,
				})
			}
			return checks.Pass("runtime supported", map[string]any{"runtime": rt})
		},
	},
	{
		ID:       "lambda_tracing_enabled",
		Title:    "Lambda function has active tracing",
		Kind:     models.KindLambdaFunction,
		Severity: models.SeverityLow,
		MinLevel: models.LevelAdvanced,
		Evaluate: func(r *models.Resource) checks.Result {
			if !r.BoolAttr("tracing_active") {
				return checks.Fail("X-Ray tracing is not active", nil)
			}
			return checks.Pass("tracing active", nil)
		},
	},
	{
		ID:       "lambda_env_cmk_encrypted",
		Title:    "Lambda environment uses a customer-managed key",
		Kind:     models.KindLambdaFunction,
		Severity: models.SeverityMedium,
		MinLevel: models.LevelAdvanced,
		Evaluate: func(r *models.Resource) checks.Result {
			if r.StringAttr("kms_key_arn") == "" {
				return checks.Fail("environment variables use the default service key", nil)
			}
			return checks.Pass("environment encrypted with customer-managed key", nil)
		},
	},
}

// Scan implements Scanner.
func (s *LambdaScanner) Scan(ctx context.Context, sc *Context, region string) ([]models.Finding, error) {
	client := sc.Clients.Client("lambda", region, func(cfg aws.Config) any { return s.newClient(cfg) }).(lambdaAPIClient)

	resources, err := sc.Cache.GetOrFetchList(ctx, models.KindLambdaFunction, "lambda:"+region, func(ctx context.Context) ([]*models.Resource, error) {
		return s.discover(ctx, sc, client, region)
	})
	if err != nil {
		return handleDiscoveryError(sc, lambdaBattery, region, err)
	}
	return evaluate(ctx, sc, lambdaBattery, resources), nil
}

func (s *LambdaScanner) discover(ctx context.Context, sc *Context, client lambdaAPIClient, region string) ([]*models.Resource, error) {
	var resources []*models.Resource

	paginator := lambdasvc.NewListFunctionsPaginator(client, &lambdasvc.ListFunctionsInput{})
	for paginator.HasMorePages() {
		if err := sc.Clients.Wait(ctx); err != nil {
			return resources, err
		}
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return resources, awsconn.Classify(err, "lambda", region, "ListFunctions")
		}
		for _, fn := range page.Functions {
			name := aws.ToString(fn.FunctionName)
			fnARN := aws.ToString(fn.FunctionArn)
			if fnARN == "" {
				fnARN = arn.LambdaFunction(sc.Partition(), region, sc.AccountID(), name)
			}
			attrs := map[string]any{
				"runtime":     string(fn.Runtime),
				"kms_key_arn": aws.ToString(fn.KMSKeyArn),
			}
			if fn.TracingConfig != nil {
				attrs["tracing_active"] = fn.TracingConfig.Mode == lambdatypes.TracingModeActive
			}
			resources = append(resources, &models.Resource{
				Kind:         models.KindLambdaFunction,
				ID:           fnARN,
				Name:         name,
				Region:       region,
				Attrs:        attrs,
				DiscoveredAt: time.Now().UTC(),
			})
		}
	}
	return resources, nil
}
