package scanners

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	apigwsvc "github.com/aws/aws-sdk-go-v2/service/apigateway"

	"github.com/cloudrecon-labs/posturescan/internal/arn"
	"github.com/cloudrecon-labs/posturescan/internal/awsconn"
	"github.com/cloudrecon-labs/posturescan/internal/checks"
	"github.com/cloudrecon-labs/posturescan/internal/models"
)

// apigatewayAPIClient is the narrow API Gateway interface used by the API
// Gateway scanner.
type apigatewayAPIClient interface {
	apigwsvc.GetRestApisAPIClient
	GetStages(ctx context.Context, params *apigwsvc.GetStagesInput, optFns ...func(*apigwsvc.Options)) (*apigwsvc.GetStagesOutput, error)
}

// APIGatewayScanner audits REST API stage observability: execution logging
// and tracing.
type APIGatewayScanner struct {
	newClient func(aws.Config) apigatewayAPIClient
}

func init() {
	Register("apigateway", func() Scanner {
		return &APIGatewayScanner{newClient: func(cfg aws.Config) apigatewayAPIClient { return apigwsvc.NewFromConfig(cfg) }}
	})
}

// NewAPIGatewayScannerWithClient returns an APIGatewayScanner using f to
// build its client.
func NewAPIGatewayScannerWithClient(f func(aws.Config) apigatewayAPIClient) *APIGatewayScanner {
	return &APIGatewayScanner{newClient: f}
}

func (s *APIGatewayScanner) Service() string            { return "apigateway" }
func (s *APIGatewayScanner) MinLevel() models.ScanLevel { return models.LevelExhaustive }
func (s *APIGatewayScanner) Global() bool               { return false }

var apigatewayBattery = []checks.Check{
	{
		ID:       "apigateway_stage_logging",
		Title:    "API Gateway stage has execution logging enabled",
		Kind:     models.KindAPIGatewayStage,
		Severity: models.SeverityMedium,
		MinLevel: models.LevelExhaustive,
		Evaluate: func(r *models.Resource) checks.Result {
			level := r.StringAttr("logging_level")
			if level == "" || level == "OFF" {
				return checks.Fail("execution logging is off for this stage", nil)
			}
			return checks.Pass("execution logging enabled", map[string]any{
				"logging_level": level,
			})
		},
	},
	{
		ID:       "apigateway_stage_tracing",
		Title:    "API Gateway stage has tracing enabled",
		Kind:     models.KindAPIGatewayStage,
		Severity: models.SeverityLow,
		MinLevel: models.LevelExhaustive,
		Evaluate: func(r *models.Resource) checks.Result {
			if !r.BoolAttr("tracing_enabled") {
				return checks.Fail("X-Ray tracing is disabled for this stage", nil)
			}
			return checks.Pass("tracing enabled", nil)
		},
	},
}

// Scan implements Scanner.
func (s *APIGatewayScanner) Scan(ctx context.Context, sc *Context, region string) ([]models.Finding, error) {
	client := sc.Clients.Client("apigateway", region, func(cfg aws.Config) any { return s.newClient(cfg) }).(apigatewayAPIClient)

	resources, err := sc.Cache.GetOrFetchList(ctx, models.KindAPIGatewayStage, "apigateway:"+region, func(ctx context.Context) ([]*models.Resource, error) {
		return s.discover(ctx, sc, client, region)
	})
	if err != nil {
		return handleDiscoveryError(sc, apigatewayBattery, region, err)
	}
	return evaluate(ctx, sc, apigatewayBattery, resources), nil
}

func (s *APIGatewayScanner) discover(ctx context.Context, sc *Context, client apigatewayAPIClient, region string) ([]*models.Resource, error) {
	var resources []*models.Resource

	paginator := apigwsvc.NewGetRestApisPaginator(client, &apigwsvc.GetRestApisInput{})
	for paginator.HasMorePages() {
		if err := sc.Clients.Wait(ctx); err != nil {
			return resources, err
		}
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return resources, awsconn.Classify(err, "apigateway", region, "GetRestApis")
		}
		for _, api := range page.Items {
			apiID := aws.ToString(api.Id)

			var out *apigwsvc.GetStagesOutput
			stageErr := sc.Do(ctx, "apigateway", region, "GetStages", func() error {
				var callErr error
				out, callErr = client.GetStages(ctx, &apigwsvc.GetStagesInput{RestApiId: aws.String(apiID)})
				return callErr
			})
			if gone(stageErr) {
				continue
			}
			if stageErr != nil || out == nil {
				continue
			}

			for _, stage := range out.Item {
				stageName := aws.ToString(stage.StageName)
				attrs := map[string]any{
					"tracing_enabled": stage.TracingEnabled,
				}
				// The */* method setting carries the stage-wide logging level.
				if ms, ok := stage.MethodSettings["*/*"]; ok {
					attrs["logging_level"] = aws.ToString(ms.LoggingLevel)
				}
				resources = append(resources, &models.Resource{
					Kind:         models.KindAPIGatewayStage,
					ID:           arn.APIGatewayStage(sc.Partition(), region, apiID, stageName),
					Name:         aws.ToString(api.Name) + "/" + stageName,
					Region:       region,
					Attrs:        attrs,
					DiscoveredAt: time.Now().UTC(),
				})
			}
		}
	}
	return resources, nil
}
