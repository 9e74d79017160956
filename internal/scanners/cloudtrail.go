package scanners

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	ctsvc "github.com/aws/aws-sdk-go-v2/service/cloudtrail"

	"github.com/cloudrecon-labs/posturescan/internal/arn"
	"github.com/cloudrecon-labs/posturescan/internal/checks"
	"github.com/cloudrecon-labs/posturescan/internal/models"
)

// cloudtrailAPIClient is the narrow CloudTrail interface used by the
// CloudTrail scanner.
type cloudtrailAPIClient interface {
	DescribeTrails(ctx context.Context, params *ctsvc.DescribeTrailsInput, optFns ...func(*ctsvc.Options)) (*ctsvc.DescribeTrailsOutput, error)
	GetTrailStatus(ctx context.Context, params *ctsvc.GetTrailStatusInput, optFns ...func(*ctsvc.Options)) (*ctsvc.GetTrailStatusOutput, error)
}

// CloudTrailScanner audits API audit-trail coverage. DescribeTrails with
// shadow trails included sees every trail in the account, so the scanner
// runs once per scan.
type CloudTrailScanner struct {
	newClient func(aws.Config) cloudtrailAPIClient
}

func init() {
	Register("cloudtrail", func() Scanner {
		return &CloudTrailScanner{newClient: func(cfg aws.Config) cloudtrailAPIClient { return ctsvc.NewFromConfig(cfg) }}
	})
}

// NewCloudTrailScannerWithClient returns a CloudTrailScanner using f to
// build its client.
func NewCloudTrailScannerWithClient(f func(aws.Config) cloudtrailAPIClient) *CloudTrailScanner {
	return &CloudTrailScanner{newClient: f}
}

func (s *CloudTrailScanner) Service() string            { return "cloudtrail" }
func (s *CloudTrailScanner) MinLevel() models.ScanLevel { return models.LevelBasic }
func (s *CloudTrailScanner) Global() bool               { return true }

var cloudtrailBattery = []checks.Check{
	{
		ID:       "cloudtrail_account_trail_active",
		Title:    "Account has at least one active multi-region trail",
		Kind:     models.KindAccount,
		Severity: models.SeverityHigh,
		MinLevel: models.LevelBasic,
		Evaluate: func(r *models.Resource) checks.Result {
			if !r.BoolAttr("active_multi_region_trail") {
				return checks.Fail("no active multi-region trail records account activity", map[string]any{
					"trail_count": r.IntAttr("trail_count"),
				})
			}
			return checks.Pass("active multi-region trail present", map[string]any{
				"trail_count": r.IntAttr("trail_count"),
			})
		},
	},
	{
		ID:       "cloudtrail_trail_logging",
		Title:    "CloudTrail trail is actively logging",
		Kind:     models.KindCloudTrail,
		Severity: models.SeverityHigh,
		MinLevel: models.LevelBasic,
		Evaluate: func(r *models.Resource) checks.Result {
			if !r.BoolAttr("logging") {
				return checks.Fail("trail exists but logging is stopped", nil)
			}
			return checks.Pass("trail is logging", nil)
		},
	},
	{
		ID:       "cloudtrail_log_file_validation",
		Title:    "CloudTrail trail has log file validation enabled",
		Kind:     models.KindCloudTrail,
		Severity: models.SeverityMedium,
		MinLevel: models.LevelStandard,
		Evaluate: func(r *models.Resource) checks.Result {
			if !r.BoolAttr("log_file_validation") {
				return checks.Fail("log file integrity validation is disabled", nil)
			}
			return checks.Pass("log file validation enabled", nil)
		},
	},
	{
		ID:       "cloudtrail_logs_encrypted",
		Title:    "CloudTrail logs are encrypted with a KMS key",
		Kind:     models.KindCloudTrail,
		Severity: models.SeverityHigh,
		MinLevel: models.LevelStandard,
		Evaluate: func(r *models.Resource) checks.Result {
			if r.StringAttr("kms_key_id") == "" {
				return checks.Fail("trail logs are not KMS-encrypted", nil)
			}
			return checks.Pass("trail logs KMS-encrypted", nil)
		},
	},
}

// Scan implements Scanner.
func (s *CloudTrailScanner) Scan(ctx context.Context, sc *Context, region string) ([]models.Finding, error) {
	client := sc.Clients.Client("cloudtrail", apiRegion(region), func(cfg aws.Config) any { return s.newClient(cfg) }).(cloudtrailAPIClient)

	resources, err := sc.Cache.GetOrFetchList(ctx, models.KindCloudTrail, "cloudtrail:trails", func(ctx context.Context) ([]*models.Resource, error) {
		return s.discover(ctx, sc, client, region)
	})
	if err != nil {
		return handleDiscoveryError(sc, cloudtrailBattery, region, err)
	}
	return evaluate(ctx, sc, cloudtrailBattery, resources), nil
}

// discover lists every trail plus a synthetic account-level resource that
// summarises trail coverage, so the account check fires even when the
// account has zero trails.
func (s *CloudTrailScanner) discover(ctx context.Context, sc *Context, client cloudtrailAPIClient, region string) ([]*models.Resource, error) {
	var out *ctsvc.DescribeTrailsOutput
	err := sc.Do(ctx, "cloudtrail", region, "DescribeTrails", func() error {
		var callErr error
		out, callErr = client.DescribeTrails(ctx, &ctsvc.DescribeTrailsInput{
			IncludeShadowTrails: aws.Bool(false),
		})
		return callErr
	})
	if err != nil {
		return nil, err
	}

	var (
		resources        []*models.Resource
		activeMultiTrail bool
	)
	for _, t := range out.TrailList {
		name := aws.ToString(t.Name)
		trailARN := aws.ToString(t.TrailARN)
		if trailARN == "" {
			trailARN = arn.CloudTrail(sc.Partition(), aws.ToString(t.HomeRegion), sc.AccountID(), name)
		}

		logging := false
		statusErr := sc.Do(ctx, "cloudtrail", region, "GetTrailStatus", func() error {
			st, callErr := client.GetTrailStatus(ctx, &ctsvc.GetTrailStatusInput{Name: aws.String(trailARN)})
			if callErr != nil {
				return callErr
			}
			logging = aws.ToBool(st.IsLogging)
			return nil
		})
		if gone(statusErr) {
			continue
		}

		if logging && aws.ToBool(t.IsMultiRegionTrail) {
			activeMultiTrail = true
		}

		resources = append(resources, &models.Resource{
			Kind:   models.KindCloudTrail,
			ID:     trailARN,
			Name:   name,
			Region: aws.ToString(t.HomeRegion),
			Attrs: map[string]any{
				"logging":             logging,
				"multi_region":        aws.ToBool(t.IsMultiRegionTrail),
				"log_file_validation": aws.ToBool(t.LogFileValidationEnabled),
				"kms_key_id":          aws.ToString(t.KmsKeyId),
			},
			DiscoveredAt: time.Now().UTC(),
		})
	}

	resources = append(resources, &models.Resource{
		Kind:   models.KindAccount,
		ID:     arn.Account(sc.Partition(), sc.AccountID()),
		Name:   sc.AccountID(),
		Region: GlobalRegion,
		Attrs: map[string]any{
			"trail_count":               len(out.TrailList),
			"active_multi_region_trail": activeMultiTrail,
		},
		DiscoveredAt: time.Now().UTC(),
	})
	return resources, nil
}
