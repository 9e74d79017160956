package scanners

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	smsvc "github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	"github.com/cloudrecon-labs/posturescan/internal/awsconn"
	"github.com/cloudrecon-labs/posturescan/internal/checks"
	"github.com/cloudrecon-labs/posturescan/internal/models"
)

// secretsAPIClient is the narrow Secrets Manager interface used by the
// secrets scanner.
type secretsAPIClient interface {
	smsvc.ListSecretsAPIClient
}

// maxSecretRotationDays is the window after which an unrotated secret is
// considered stale.
const maxSecretRotationDays = 90

// SecretsScanner audits secret rotation posture.
type SecretsScanner struct {
	newClient func(aws.Config) secretsAPIClient
}

func init() {
	Register("secretsmanager", func() Scanner {
		return &SecretsScanner{newClient: func(cfg aws.Config) secretsAPIClient { return smsvc.NewFromConfig(cfg) }}
	})
}

// NewSecretsScannerWithClient returns a SecretsScanner using f to build its
// client.
func NewSecretsScannerWithClient(f func(aws.Config) secretsAPIClient) *SecretsScanner {
	return &SecretsScanner{newClient: f}
}

func (s *SecretsScanner) Service() string            { return "secretsmanager" }
func (s *SecretsScanner) MinLevel() models.ScanLevel { return models.LevelAdvanced }
func (s *SecretsScanner) Global() bool               { return false }

var secretsBattery = []checks.Check{
	{
		ID:       "secretsmanager_rotation_enabled",
		Title:    "Secret has automatic rotation enabled",
		Kind:     models.KindSecret,
		Severity: models.SeverityMedium,
		MinLevel: models.LevelAdvanced,
		Evaluate: func(r *models.Resource) checks.Result {
			if !r.BoolAttr("rotation_enabled") {
				return checks.Fail("automatic rotation is disabled", nil)
			}
			if age := r.IntAttr("days_since_rotation"); age > maxSecretRotationDays {
				return checks.Fail("secret has not rotated within the expected window", map[string]any{
					"days_since_rotation": age,
				})
			}
			return checks.Pass("rotation enabled", nil)
		},
	},
}

// Scan implements Scanner.
func (s *SecretsScanner) Scan(ctx context.Context, sc *Context, region string) ([]models.Finding, error) {
	client := sc.Clients.Client("secretsmanager", region, func(cfg aws.Config) any { return s.newClient(cfg) }).(secretsAPIClient)

	resources, err := sc.Cache.GetOrFetchList(ctx, models.KindSecret, "secretsmanager:"+region, func(ctx context.Context) ([]*models.Resource, error) {
		return s.discover(ctx, sc, client, region)
	})
	if err != nil {
		return handleDiscoveryError(sc, secretsBattery, region, err)
	}
	return evaluate(ctx, sc, secretsBattery, resources), nil
}

func (s *SecretsScanner) discover(ctx context.Context, sc *Context, client secretsAPIClient, region string) ([]*models.Resource, error) {
	var resources []*models.Resource

	paginator := smsvc.NewListSecretsPaginator(client, &smsvc.ListSecretsInput{})
	for paginator.HasMorePages() {
		if err := sc.Clients.Wait(ctx); err != nil {
			return resources, err
		}
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return resources, awsconn.Classify(err, "secretsmanager", region, "ListSecrets")
		}
		for _, entry := range page.SecretList {
			attrs := map[string]any{
				"rotation_enabled": aws.ToBool(entry.RotationEnabled),
			}
			if entry.LastRotatedDate != nil {
				attrs["days_since_rotation"] = int(time.Since(*entry.LastRotatedDate).Hours() / 24)
			}
			resources = append(resources, &models.Resource{
				Kind:         models.KindSecret,
				ID:           aws.ToString(entry.ARN),
				Name:         aws.ToString(entry.Name),
				Region:       region,
				Attrs:        attrs,
				DiscoveredAt: time.Now().UTC(),
			})
		}
	}
	return resources, nil
}
