package scanners

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	gdsvc "github.com/aws/aws-sdk-go-v2/service/guardduty"
	gdtypes "github.com/aws/aws-sdk-go-v2/service/guardduty/types"

	"github.com/cloudrecon-labs/posturescan/internal/arn"
	"github.com/cloudrecon-labs/posturescan/internal/checks"
	"github.com/cloudrecon-labs/posturescan/internal/models"
)

// guarddutyAPIClient is the narrow GuardDuty interface used by the
// GuardDuty scanner.
type guarddutyAPIClient interface {
	ListDetectors(ctx context.Context, params *gdsvc.ListDetectorsInput, optFns ...func(*gdsvc.Options)) (*gdsvc.ListDetectorsOutput, error)
	GetDetector(ctx context.Context, params *gdsvc.GetDetectorInput, optFns ...func(*gdsvc.Options)) (*gdsvc.GetDetectorOutput, error)
}

// GuardDutyScanner audits threat-detection coverage per region. A region
// with no detector is modelled as a disabled detector resource so the
// check still produces a finding there.
type GuardDutyScanner struct {
	newClient func(aws.Config) guarddutyAPIClient
}

func init() {
	Register("guardduty", func() Scanner {
		return &GuardDutyScanner{newClient: func(cfg aws.Config) guarddutyAPIClient { return gdsvc.NewFromConfig(cfg) }}
	})
}

// NewGuardDutyScannerWithClient returns a GuardDutyScanner using f to
// build its client.
func NewGuardDutyScannerWithClient(f func(aws.Config) guarddutyAPIClient) *GuardDutyScanner {
	return &GuardDutyScanner{newClient: f}
}

func (s *GuardDutyScanner) Service() string            { return "guardduty" }
func (s *GuardDutyScanner) MinLevel() models.ScanLevel { return models.LevelBasic }
func (s *GuardDutyScanner) Global() bool               { return false }

var guarddutyBattery = []checks.Check{
	{
		ID:       "guardduty_enabled",
		Title:    "GuardDuty is enabled in the region",
		Kind:     models.KindGuardDutyDetector,
		Severity: models.SeverityHigh,
		MinLevel: models.LevelBasic,
		Evaluate: func(r *models.Resource) checks.Result {
			if !r.BoolAttr("enabled") {
				return checks.Fail("GuardDuty is not enabled in this region", nil)
			}
			return checks.Pass("GuardDuty enabled", nil)
		},
	},
}

// Scan implements Scanner.
func (s *GuardDutyScanner) Scan(ctx context.Context, sc *Context, region string) ([]models.Finding, error) {
	client := sc.Clients.Client("guardduty", region, func(cfg aws.Config) any { return s.newClient(cfg) }).(guarddutyAPIClient)

	resources, err := sc.Cache.GetOrFetchList(ctx, models.KindGuardDutyDetector, "guardduty:"+region, func(ctx context.Context) ([]*models.Resource, error) {
		return s.discover(ctx, sc, client, region)
	})
	if err != nil {
		return handleDiscoveryError(sc, guarddutyBattery, region, err)
	}
	return evaluate(ctx, sc, guarddutyBattery, resources), nil
}

func (s *GuardDutyScanner) discover(ctx context.Context, sc *Context, client guarddutyAPIClient, region string) ([]*models.Resource, error) {
	var ids []string
	err := sc.Do(ctx, "guardduty", region, "ListDetectors", func() error {
		out, callErr := client.ListDetectors(ctx, &gdsvc.ListDetectorsInput{})
		if callErr != nil {
			return callErr
		}
		ids = out.DetectorIds
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		return []*models.Resource{{
			Kind:         models.KindGuardDutyDetector,
			ID:           arn.GuardDutyDetector(sc.Partition(), region, sc.AccountID(), "none"),
			Name:         "none",
			Region:       region,
			Attrs:        map[string]any{"enabled": false},
			DiscoveredAt: time.Now().UTC(),
		}}, nil
	}

	var resources []*models.Resource
	for _, id := range ids {
		enabled := false
		detErr := sc.Do(ctx, "guardduty", region, "GetDetector", func() error {
			out, callErr := client.GetDetector(ctx, &gdsvc.GetDetectorInput{DetectorId: aws.String(id)})
			if callErr != nil {
				return callErr
			}
			enabled = out.Status == gdtypes.DetectorStatusEnabled
			return nil
		})
		if gone(detErr) {
			continue
		}
		resources = append(resources, &models.Resource{
			Kind:         models.KindGuardDutyDetector,
			ID:           arn.GuardDutyDetector(sc.Partition(), region, sc.AccountID(), id),
			Name:         id,
			Region:       region,
			Attrs:        map[string]any{"enabled": enabled},
			DiscoveredAt: time.Now().UTC(),
		})
	}
	return resources, nil
}
