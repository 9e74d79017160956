package scanners

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	cesvc "github.com/aws/aws-sdk-go-v2/service/costexplorer"

	"github.com/cloudrecon-labs/posturescan/internal/arn"
	"github.com/cloudrecon-labs/posturescan/internal/checks"
	"github.com/cloudrecon-labs/posturescan/internal/models"
)

// costexplorerAPIClient is the narrow Cost Explorer interface used by the
// cost scanner.
type costexplorerAPIClient interface {
	GetAnomalyMonitors(ctx context.Context, params *cesvc.GetAnomalyMonitorsInput, optFns ...func(*cesvc.Options)) (*cesvc.GetAnomalyMonitorsOutput, error)
}

// CostScanner audits spend-anomaly coverage. A compromised account often
// shows up first as a cost spike, so a missing anomaly monitor is a
// security signal too. Cost Explorer is global.
type CostScanner struct {
	newClient func(aws.Config) costexplorerAPIClient
}

func init() {
	Register("costexplorer", func() Scanner {
		return &CostScanner{newClient: func(cfg aws.Config) costexplorerAPIClient { return cesvc.NewFromConfig(cfg) }}
	})
}

// NewCostScannerWithClient returns a CostScanner using f to build its
// client.
func NewCostScannerWithClient(f func(aws.Config) costexplorerAPIClient) *CostScanner {
	return &CostScanner{newClient: f}
}

func (s *CostScanner) Service() string            { return "costexplorer" }
func (s *CostScanner) MinLevel() models.ScanLevel { return models.LevelExhaustive }
func (s *CostScanner) Global() bool               { return true }

var costBattery = []checks.Check{
	{
		ID:       "cost_anomaly_monitor_configured",
		Title:    "Account has a cost anomaly monitor",
		Kind:     models.KindCostMonitor,
		Severity: models.SeverityLow,
		MinLevel: models.LevelExhaustive,
		Evaluate: func(r *models.Resource) checks.Result {
			if r.IntAttr("monitor_count") == 0 {
				return checks.Fail("no cost anomaly monitor watches this account", nil)
			}
			return checks.Pass("cost anomaly monitoring configured", map[string]any{
				"monitor_count": r.IntAttr("monitor_count"),
			})
		},
	},
}

// Scan implements Scanner.
func (s *CostScanner) Scan(ctx context.Context, sc *Context, region string) ([]models.Finding, error) {
	client := sc.Clients.Client("costexplorer", apiRegion(region), func(cfg aws.Config) any { return s.newClient(cfg) }).(costexplorerAPIClient)

	resources, err := sc.Cache.GetOrFetchList(ctx, models.KindCostMonitor, "costexplorer:monitors", func(ctx context.Context) ([]*models.Resource, error) {
		return s.discover(ctx, sc, client, region)
	})
	if err != nil {
		return handleDiscoveryError(sc, costBattery, region, err)
	}
	return evaluate(ctx, sc, costBattery, resources), nil
}

func (s *CostScanner) discover(ctx context.Context, sc *Context, client costexplorerAPIClient, region string) ([]*models.Resource, error) {
	count := 0
	err := sc.Do(ctx, "costexplorer", region, "GetAnomalyMonitors", func() error {
		out, callErr := client.GetAnomalyMonitors(ctx, &cesvc.GetAnomalyMonitorsInput{})
		if callErr != nil {
			return callErr
		}
		count = len(out.AnomalyMonitors)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return []*models.Resource{{
		Kind:   models.KindCostMonitor,
		ID:     arn.Account(sc.Partition(), sc.AccountID()),
		Name:   sc.AccountID(),
		Region: GlobalRegion,
		Attrs: map[string]any{
			"monitor_count": count,
		},
		DiscoveredAt: time.Now().UTC(),
	}}, nil
}
