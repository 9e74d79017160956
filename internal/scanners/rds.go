package scanners

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	rdssvc "github.com/aws/aws-sdk-go-v2/service/rds"

	"github.com/cloudrecon-labs/posturescan/internal/arn"
	"github.com/cloudrecon-labs/posturescan/internal/awsconn"
	"github.com/cloudrecon-labs/posturescan/internal/checks"
	"github.com/cloudrecon-labs/posturescan/internal/models"
)

// rdsAPIClient is the narrow RDS interface used by the RDS scanner.
type rdsAPIClient interface {
	rdssvc.DescribeDBInstancesAPIClient
}

// RDSScanner audits database instance posture: encryption, public
// reachability, backups, and availability configuration.
type RDSScanner struct {
	newClient func(aws.Config) rdsAPIClient
}

func init() {
	Register("rds", func() Scanner {
		return &RDSScanner{newClient: func(cfg aws.Config) rdsAPIClient { return rdssvc.NewFromConfig(cfg) }}
	})
}

// NewRDSScannerWithClient returns an RDSScanner using f to build its client.
func NewRDSScannerWithClient(f func(aws.Config) rdsAPIClient) *RDSScanner {
	return &RDSScanner{newClient: f}
}

func (s *RDSScanner) Service() string            { return "rds" }
func (s *RDSScanner) MinLevel() models.ScanLevel { return models.LevelStandard }
func (s *RDSScanner) Global() bool               { return false }

var rdsBattery = []checks.Check{
	{
		ID:       "rds_storage_encrypted",
		Title:    "RDS instance storage is encrypted",
		Kind:     models.KindRDSInstance,
		Severity: models.SeverityHigh,
		MinLevel: models.LevelStandard,
		Evaluate: func(r *models.Resource) checks.Result {
			if !r.BoolAttr("storage_encrypted") {
				return checks.Fail("database storage is not encrypted", nil)
			}
			return checks.Pass("storage encrypted", nil)
		},
	},
	{
		ID:       "rds_not_publicly_accessible",
		Title:    "RDS instance is not publicly accessible",
		Kind:     models.KindRDSInstance,
		Severity: models.SeverityCritical,
		MinLevel: models.LevelStandard,
		Evaluate: func(r *models.Resource) checks.Result {
			if r.BoolAttr("publicly_accessible") {
				return checks.Fail("database endpoint is reachable from the internet", nil)
			}
			return checks.Pass("database is not public", nil)
		},
	},
	{
		ID:       "rds_backup_retention",
		Title:    "RDS instance has automated backups enabled",
		Kind:     models.KindRDSInstance,
		Severity: models.SeverityMedium,
		MinLevel: models.LevelStandard,
		Evaluate: func(r *models.Resource) checks.Result {
			days := r.IntAttr("backup_retention_days")
			if days < 7 {
				return checks.Fail("automated backup retention below 7 days", map[string]any{
					"backup_retention_days": days,
				})
			}
			return checks.Pass("automated backups retained", map[string]any{
				"backup_retention_days": days,
			})
		},
	},
	{
		ID:       "rds_multi_az",
		Title:    "RDS instance is deployed multi-AZ",
		Kind:     models.KindRDSInstance,
		Severity: models.SeverityLow,
		MinLevel: models.LevelAdvanced,
		Evaluate: func(r *models.Resource) checks.Result {
			if !r.BoolAttr("multi_az") {
				return checks.Fail("instance runs in a single availability zone", nil)
			}
			return checks.Pass("multi-AZ deployment", nil)
		},
	},
	{
		ID:       "rds_deletion_protection",
		Title:    "RDS instance has deletion protection enabled",
		Kind:     models.KindRDSInstance,
		Severity: models.SeverityMedium,
		MinLevel: models.LevelAdvanced,
		Evaluate: func(r *models.Resource) checks.Result {
			if !r.BoolAttr("deletion_protection") {
				return checks.Fail("deletion protection is disabled", nil)
			}
			return checks.Pass("deletion protection enabled", nil)
		},
	},
}

// Scan implements Scanner.
func (s *RDSScanner) Scan(ctx context.Context, sc *Context, region string) ([]models.Finding, error) {
	client := sc.Clients.Client("rds", region, func(cfg aws.Config) any { return s.newClient(cfg) }).(rdsAPIClient)

	resources, err := sc.Cache.GetOrFetchList(ctx, models.KindRDSInstance, "rds:"+region, func(ctx context.Context) ([]*models.Resource, error) {
		return s.discover(ctx, sc, client, region)
	})
	if err != nil {
		return handleDiscoveryError(sc, rdsBattery, region, err)
	}
	return evaluate(ctx, sc, rdsBattery, resources), nil
}

func (s *RDSScanner) discover(ctx context.Context, sc *Context, client rdsAPIClient, region string) ([]*models.Resource, error) {
	var resources []*models.Resource

	paginator := rdssvc.NewDescribeDBInstancesPaginator(client, &rdssvc.DescribeDBInstancesInput{})
	for paginator.HasMorePages() {
		if err := sc.Clients.Wait(ctx); err != nil {
			return resources, err
		}
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return resources, awsconn.Classify(err, "rds", region, "DescribeDBInstances")
		}
		for _, db := range page.DBInstances {
			id := aws.ToString(db.DBInstanceIdentifier)
			dbARN := aws.ToString(db.DBInstanceArn)
			if dbARN == "" {
				dbARN = arn.RDSInstance(sc.Partition(), region, sc.AccountID(), id)
			}
			resources = append(resources, &models.Resource{
				Kind:   models.KindRDSInstance,
				ID:     dbARN,
				Name:   id,
				Region: region,
				Attrs: map[string]any{
					"engine":                aws.ToString(db.Engine),
					"storage_encrypted":     aws.ToBool(db.StorageEncrypted),
					"publicly_accessible":   aws.ToBool(db.PubliclyAccessible),
					"backup_retention_days": int(aws.ToInt32(db.BackupRetentionPeriod)),
					"multi_az":              aws.ToBool(db.MultiAZ),
					"deletion_protection":   aws.ToBool(db.DeletionProtection),
				},
				DiscoveredAt: time.Now().UTC(),
			})
		}
	}
	return resources, nil
}
