package scanners

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	cfgsvc "github.com/aws/aws-sdk-go-v2/service/configservice"

	"github.com/cloudrecon-labs/posturescan/internal/arn"
	"github.com/cloudrecon-labs/posturescan/internal/checks"
	"github.com/cloudrecon-labs/posturescan/internal/models"
)

// configAPIClient is the narrow AWS Config interface used by the Config
// scanner.
type configAPIClient interface {
	DescribeConfigurationRecorders(ctx context.Context, params *cfgsvc.DescribeConfigurationRecordersInput, optFns ...func(*cfgsvc.Options)) (*cfgsvc.DescribeConfigurationRecordersOutput, error)
	DescribeConfigurationRecorderStatus(ctx context.Context, params *cfgsvc.DescribeConfigurationRecorderStatusInput, optFns ...func(*cfgsvc.Options)) (*cfgsvc.DescribeConfigurationRecorderStatusOutput, error)
}

// ConfigScanner audits configuration-recording coverage per region. A
// region with no recorder is modelled as a disabled recorder resource.
type ConfigScanner struct {
	newClient func(aws.Config) configAPIClient
}

func init() {
	Register("config", func() Scanner {
		return &ConfigScanner{newClient: func(cfg aws.Config) configAPIClient { return cfgsvc.NewFromConfig(cfg) }}
	})
}

// NewConfigScannerWithClient returns a ConfigScanner using f to build its
// client.
func NewConfigScannerWithClient(f func(aws.Config) configAPIClient) *ConfigScanner {
	return &ConfigScanner{newClient: f}
}

func (s *ConfigScanner) Service() string            { return "config" }
func (s *ConfigScanner) MinLevel() models.ScanLevel { return models.LevelStandard }
func (s *ConfigScanner) Global() bool               { return false }

var configBattery = []checks.Check{
	{
		ID:       "config_recorder_recording",
		Title:    "AWS Config recorder is enabled and recording",
		Kind:     models.KindConfigRecorder,
		Severity: models.SeverityMedium,
		MinLevel: models.LevelStandard,
		Evaluate: func(r *models.Resource) checks.Result {
			if !r.BoolAttr("recording") {
				return checks.Fail("configuration changes are not being recorded in this region", nil)
			}
			if !r.BoolAttr("all_supported") {
				return checks.Fail("recorder does not cover all supported resource types", nil)
			}
			return checks.Pass("recorder active for all supported resource types", nil)
		},
	},
}

// Scan implements Scanner.
func (s *ConfigScanner) Scan(ctx context.Context, sc *Context, region string) ([]models.Finding, error) {
	client := sc.Clients.Client("config", region, func(cfg aws.Config) any { return s.newClient(cfg) }).(configAPIClient)

	resources, err := sc.Cache.GetOrFetchList(ctx, models.KindConfigRecorder, "config:"+region, func(ctx context.Context) ([]*models.Resource, error) {
		return s.discover(ctx, sc, client, region)
	})
	if err != nil {
		return handleDiscoveryError(sc, configBattery, region, err)
	}
	return evaluate(ctx, sc, configBattery, resources), nil
}

func (s *ConfigScanner) discover(ctx context.Context, sc *Context, client configAPIClient, region string) ([]*models.Resource, error) {
	var out *cfgsvc.DescribeConfigurationRecordersOutput
	err := sc.Do(ctx, "config", region, "DescribeConfigurationRecorders", func() error {
		var callErr error
		out, callErr = client.DescribeConfigurationRecorders(ctx, &cfgsvc.DescribeConfigurationRecordersInput{})
		return callErr
	})
	if err != nil {
		return nil, err
	}

	if len(out.ConfigurationRecorders) == 0 {
		return []*models.Resource{{
			Kind:         models.KindConfigRecorder,
			ID:           arn.ConfigRecorder(sc.Partition(), region, sc.AccountID(), "none"),
			Name:         "none",
			Region:       region,
			Attrs:        map[string]any{"recording": false},
			DiscoveredAt: time.Now().UTC(),
		}}, nil
	}

	recording := make(map[string]bool)
	err = sc.Do(ctx, "config", region, "DescribeConfigurationRecorderStatus", func() error {
		st, callErr := client.DescribeConfigurationRecorderStatus(ctx, &cfgsvc.DescribeConfigurationRecorderStatusInput{})
		if callErr != nil {
			return callErr
		}
		for _, rs := range st.ConfigurationRecordersStatus {
			recording[aws.ToString(rs.Name)] = rs.Recording
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var resources []*models.Resource
	for _, rec := range out.ConfigurationRecorders {
		name := aws.ToString(rec.Name)
		allSupported := false
		if rec.RecordingGroup != nil {
			allSupported = rec.RecordingGroup.AllSupported
		}
		resources = append(resources, &models.Resource{
			Kind:   models.KindConfigRecorder,
			ID:     arn.ConfigRecorder(sc.Partition(), region, sc.AccountID(), name),
			Name:   name,
			Region: region,
			Attrs: map[string]any{
				"recording":     recording[name],
				"all_supported": allSupported,
			},
			DiscoveredAt: time.Now().UTC(),
		})
	}
	return resources, nil
}
