package scanners

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	kmssvc "github.com/aws/aws-sdk-go-v2/service/kms"
	kmstypes "github.com/aws/aws-sdk-go-v2/service/kms/types"

	"github.com/cloudrecon-labs/posturescan/internal/arn"
	"github.com/cloudrecon-labs/posturescan/internal/awsconn"
	"github.com/cloudrecon-labs/posturescan/internal/checks"
	"github.com/cloudrecon-labs/posturescan/internal/models"
)

// kmsAPIClient is the narrow KMS interface used by the KMS scanner.
type kmsAPIClient interface {
	kmssvc.ListKeysAPIClient
	DescribeKey(ctx context.Context, params *kmssvc.DescribeKeyInput, optFns ...func(*kmssvc.Options)) (*kmssvc.DescribeKeyOutput, error)
	GetKeyRotationStatus(ctx context.Context, params *kmssvc.GetKeyRotationStatusInput, optFns ...func(*kmssvc.Options)) (*kmssvc.GetKeyRotationStatusOutput, error)
}

// KMSScanner audits customer-managed key hygiene: automatic rotation and
// keys left pending deletion.
type KMSScanner struct {
	newClient func(aws.Config) kmsAPIClient
}

func init() {
	Register("kms", func() Scanner {
		return &KMSScanner{newClient: func(cfg aws.Config) kmsAPIClient { return kmssvc.NewFromConfig(cfg) }}
	})
}

// NewKMSScannerWithClient returns a KMSScanner using f to build its client.
func NewKMSScannerWithClient(f func(aws.Config) kmsAPIClient) *KMSScanner {
	return &KMSScanner{newClient: f}
}

func (s *KMSScanner) Service() string            { return "kms" }
func (s *KMSScanner) MinLevel() models.ScanLevel { return models.LevelStandard }
func (s *KMSScanner) Global() bool               { return false }

var kmsBattery = []checks.Check{
	{
		ID:       "kms_key_rotation_enabled",
		Title:    "Customer-managed KMS key has rotation enabled",
		Kind:     models.KindKMSKey,
		Severity: models.SeverityMedium,
		MinLevel: models.LevelStandard,
		Evaluate: func(r *models.Resource) checks.Result {
			if r.StringAttr("manager") != "CUSTOMER" {
				return checks.NotApplicable("AWS-managed key rotates automatically")
			}
			if !r.BoolAttr("rotation_enabled") {
				return checks.Fail("automatic key rotation is disabled", nil)
			}
			return checks.Pass("rotation enabled", nil)
		},
	},
	{
		ID:       "kms_key_not_pending_deletion",
		Title:    "KMS key is not pending deletion",
		Kind:     models.KindKMSKey,
		Severity: models.SeverityLow,
		MinLevel: models.LevelAdvanced,
		Evaluate: func(r *models.Resource) checks.Result {
			if r.StringAttr("state") == string(kmstypes.KeyStatePendingDeletion) {
				return checks.Fail("key is scheduled for deletion", map[string]any{
					"state": r.StringAttr("state"),
				})
			}
			return checks.Pass("key not pending deletion", nil)
		},
	},
}

// Scan implements Scanner.
func (s *KMSScanner) Scan(ctx context.Context, sc *Context, region string) ([]models.Finding, error) {
	client := sc.Clients.Client("kms", region, func(cfg aws.Config) any { return s.newClient(cfg) }).(kmsAPIClient)

	resources, err := sc.Cache.GetOrFetchList(ctx, models.KindKMSKey, "kms:"+region, func(ctx context.Context) ([]*models.Resource, error) {
		return s.discover(ctx, sc, client, region)
	})
	if err != nil {
		return handleDiscoveryError(sc, kmsBattery, region, err)
	}
	return evaluate(ctx, sc, kmsBattery, resources), nil
}

func (s *KMSScanner) discover(ctx context.Context, sc *Context, client kmsAPIClient, region string) ([]*models.Resource, error) {
	var resources []*models.Resource

	paginator := kmssvc.NewListKeysPaginator(client, &kmssvc.ListKeysInput{})
	for paginator.HasMorePages() {
		if err := sc.Clients.Wait(ctx); err != nil {
			return resources, err
		}
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return resources, awsconn.Classify(err, "kms", region, "ListKeys")
		}
		for _, k := range page.Keys {
			id := aws.ToString(k.KeyId)
			keyARN := aws.ToString(k.KeyArn)
			if keyARN == "" {
				keyARN = arn.KMSKey(sc.Partition(), region, sc.AccountID(), id)
			}

			var meta *kmstypes.KeyMetadata
			descErr := sc.Do(ctx, "kms", region, "DescribeKey", func() error {
				out, callErr := client.DescribeKey(ctx, &kmssvc.DescribeKeyInput{KeyId: aws.String(id)})
				if callErr != nil {
					return callErr
				}
				meta = out.KeyMetadata
				return nil
			})
			if gone(descErr) || meta == nil {
				continue
			}

			attrs := map[string]any{
				"manager": string(meta.KeyManager),
				"state":   string(meta.KeyState),
			}
			if meta.KeyManager == kmstypes.KeyManagerTypeCustomer {
				// Rotation status is only queryable for customer-managed keys.
				_ = sc.Do(ctx, "kms", region, "GetKeyRotationStatus", func() error {
					out, callErr := client.GetKeyRotationStatus(ctx, &kmssvc.GetKeyRotationStatusInput{KeyId: aws.String(id)})
					if callErr != nil {
						return callErr
					}
					attrs["rotation_enabled"] = out.KeyRotationEnabled
					return nil
				})
			}

			resources = append(resources, &models.Resource{
				Kind:         models.KindKMSKey,
				ID:           keyARN,
				Name:         id,
				Region:       region,
				Attrs:        attrs,
				DiscoveredAt: time.Now().UTC(),
			})
		}
	}
	return resources, nil
}
