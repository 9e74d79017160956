package scanners

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	s3svc "github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/cloudrecon-labs/posturescan/internal/arn"
	"github.com/cloudrecon-labs/posturescan/internal/checks"
	"github.com/cloudrecon-labs/posturescan/internal/models"
)

// s3APIClient is the narrow S3 interface used by the S3 scanner. It covers
// bucket listing plus the per-bucket posture reads the checks need.
type s3APIClient interface {
	ListBuckets(ctx context.Context, params *s3svc.ListBucketsInput, optFns ...func(*s3svc.Options)) (*s3svc.ListBucketsOutput, error)
	GetBucketPolicyStatus(ctx context.Context, params *s3svc.GetBucketPolicyStatusInput, optFns ...func(*s3svc.Options)) (*s3svc.GetBucketPolicyStatusOutput, error)
	GetPublicAccessBlock(ctx context.Context, params *s3svc.GetPublicAccessBlockInput, optFns ...func(*s3svc.Options)) (*s3svc.GetPublicAccessBlockOutput, error)
	GetBucketEncryption(ctx context.Context, params *s3svc.GetBucketEncryptionInput, optFns ...func(*s3svc.Options)) (*s3svc.GetBucketEncryptionOutput, error)
	GetBucketVersioning(ctx context.Context, params *s3svc.GetBucketVersioningInput, optFns ...func(*s3svc.Options)) (*s3svc.GetBucketVersioningOutput, error)
	GetBucketLogging(ctx context.Context, params *s3svc.GetBucketLoggingInput, optFns ...func(*s3svc.Options)) (*s3svc.GetBucketLoggingOutput, error)
}

// S3Scanner audits S3 bucket posture: public exposure, default encryption,
// versioning, and access logging. S3 is a global service; the scanner runs
// once per scan.
type S3Scanner struct {
	newClient func(aws.Config) s3APIClient
}

func init() {
	Register("s3", func() Scanner {
		return &S3Scanner{newClient: func(cfg aws.Config) s3APIClient { return s3svc.NewFromConfig(cfg) }}
	})
}

// NewS3ScannerWithClient returns an S3Scanner using f to build its client.
// Pass a fake factory in tests.
func NewS3ScannerWithClient(f func(aws.Config) s3APIClient) *S3Scanner {
	return &S3Scanner{newClient: f}
}

func (s *S3Scanner) Service() string            { return "s3" }
func (s *S3Scanner) MinLevel() models.ScanLevel { return models.LevelBasic }
func (s *S3Scanner) Global() bool               { return true }

var s3Battery = []checks.Check{
	{
		ID:       "s3_bucket_public_access",
		Title:    "S3 bucket is not publicly accessible",
		Kind:     models.KindS3Bucket,
		Severity: models.SeverityCritical,
		MinLevel: models.LevelBasic,
		Evaluate: func(r *models.Resource) checks.Result {
			if r.BoolAttr("policy_public") {
				return checks.Fail("bucket policy grants public access", map[string]any{
					"policy_public": true,
				})
			}
			if !r.BoolAttr("public_access_block") {
				return checks.Fail("bucket has no public access block configuration", map[string]any{
					"public_access_block": false,
				})
			}
			return checks.Pass("bucket is not public", map[string]any{
				"public_access_block": true,
			})
		},
	},
	{
		ID:       "s3_bucket_default_encryption",
		Title:    "S3 bucket has default encryption enabled",
		Kind:     models.KindS3Bucket,
		Severity: models.SeverityHigh,
		MinLevel: models.LevelBasic,
		Evaluate: func(r *models.Resource) checks.Result {
			if !r.BoolAttr("encryption_enabled") {
				return checks.Fail("bucket has no default server-side encryption", nil)
			}
			return checks.Pass("default encryption configured", map[string]any{
				"sse_algorithm": r.StringAttr("sse_algorithm"),
			})
		},
	},
	{
		ID:       "s3_bucket_versioning",
		Title:    "S3 bucket has versioning enabled",
		Kind:     models.KindS3Bucket,
		Severity: models.SeverityMedium,
		MinLevel: models.LevelStandard,
		Evaluate: func(r *models.Resource) checks.Result {
			if !r.BoolAttr("versioning_enabled") {
				return checks.Fail("bucket versioning is disabled", nil)
			}
			return checks.Pass("versioning enabled", nil)
		},
	},
	{
		ID:       "s3_bucket_access_logging",
		Title:    "S3 bucket has server access logging enabled",
		Kind:     models.KindS3Bucket,
		Severity: models.SeverityLow,
		MinLevel: models.LevelAdvanced,
		Evaluate: func(r *models.Resource) checks.Result {
			if !r.BoolAttr("logging_enabled") {
				return checks.Fail("server access logging is not configured", nil)
			}
			return checks.Pass("access logging enabled", map[string]any{
				"target_bucket": r.StringAttr("logging_target"),
			})
		},
	},
}

// Scan implements Scanner.
func (s *S3Scanner) Scan(ctx context.Context, sc *Context, region string) ([]models.Finding, error) {
	client := sc.Clients.Client("s3", apiRegion(region), func(cfg aws.Config) any { return s.newClient(cfg) }).(s3APIClient)

	resources, err := sc.Cache.GetOrFetchList(ctx, models.KindS3Bucket, "s3:"+region, func(ctx context.Context) ([]*models.Resource, error) {
		return s.discover(ctx, sc, client, region)
	})
	if err != nil {
		return handleDiscoveryError(sc, s3Battery, region, err)
	}
	return evaluate(ctx, sc, s3Battery, resources), nil
}

// discover lists every bucket and snapshots its posture attributes. A
// bucket that disappears between listing and inspection is skipped.
func (s *S3Scanner) discover(ctx context.Context, sc *Context, client s3APIClient, region string) ([]*models.Resource, error) {
	var list *s3svc.ListBucketsOutput
	err := sc.Do(ctx, "s3", region, "ListBuckets", func() error {
		var callErr error
		list, callErr = client.ListBuckets(ctx, &s3svc.ListBucketsInput{})
		return callErr
	})
	if err != nil {
		return nil, err
	}

	resources := make([]*models.Resource, 0, len(list.Buckets))
	for _, b := range list.Buckets {
		name := aws.ToString(b.Name)
		attrs, gone := s.inspectBucket(ctx, sc, client, region, name)
		if gone {
			continue
		}
		resources = append(resources, &models.Resource{
			Kind:         models.KindS3Bucket,
			ID:           arn.S3Bucket(sc.Partition(), name),
			Name:         name,
			Region:       region,
			Attrs:        attrs,
			DiscoveredAt: time.Now().UTC(),
		})
	}
	return resources, nil
}

// inspectBucket reads the posture attributes for one bucket. Individual
// read failures degrade to conservative attribute values rather than
// failing the whole discovery, matching the per-resource recovery scope.
func (s *S3Scanner) inspectBucket(ctx context.Context, sc *Context, client s3APIClient, region, name string) (map[string]any, bool) {
	attrs := map[string]any{}

	err := sc.Do(ctx, "s3", region, "GetBucketPolicyStatus", func() error {
		out, callErr := client.GetBucketPolicyStatus(ctx, &s3svc.GetBucketPolicyStatusInput{Bucket: aws.String(name)})
		if callErr != nil {
			return callErr
		}
		if out.PolicyStatus != nil {
			attrs["policy_public"] = aws.ToBool(out.PolicyStatus.IsPublic)
		}
		return nil
	})
	if gone(err) {
		return nil, true
	}

	_ = sc.Do(ctx, "s3", region, "GetPublicAccessBlock", func() error {
		out, callErr := client.GetPublicAccessBlock(ctx, &s3svc.GetPublicAccessBlockInput{Bucket: aws.String(name)})
		if callErr != nil {
			return callErr
		}
		if c := out.PublicAccessBlockConfiguration; c != nil {
			attrs["public_access_block"] = aws.ToBool(c.BlockPublicAcls) &&
				aws.ToBool(c.BlockPublicPolicy) &&
				aws.ToBool(c.IgnorePublicAcls) &&
				aws.ToBool(c.RestrictPublicBuckets)
		}
		return nil
	})

	_ = sc.Do(ctx, "s3", region, "GetBucketEncryption", func() error {
		out, callErr := client.GetBucketEncryption(ctx, &s3svc.GetBucketEncryptionInput{Bucket: aws.String(name)})
		if callErr != nil {
			// Missing configuration means encryption is off; the check fails.
			return nil
		}
		if cfg := out.ServerSideEncryptionConfiguration; cfg != nil && len(cfg.Rules) > 0 {
			attrs["encryption_enabled"] = true
			if def := cfg.Rules[0].ApplyServerSideEncryptionByDefault; def != nil {
				attrs["sse_algorithm"] = string(def.SSEAlgorithm)
			}
		}
		return nil
	})

	_ = sc.Do(ctx, "s3", region, "GetBucketVersioning", func() error {
		out, callErr := client.GetBucketVersioning(ctx, &s3svc.GetBucketVersioningInput{Bucket: aws.String(name)})
		if callErr != nil {
			return callErr
		}
		attrs["versioning_enabled"] = out.Status == s3types.BucketVersioningStatusEnabled
		return nil
	})

	_ = sc.Do(ctx, "s3", region, "GetBucketLogging", func() error {
		out, callErr := client.GetBucketLogging(ctx, &s3svc.GetBucketLoggingInput{Bucket: aws.String(name)})
		if callErr != nil {
			return callErr
		}
		if out.LoggingEnabled != nil {
			attrs["logging_enabled"] = true
			attrs["logging_target"] = aws.ToString(out.LoggingEnabled.TargetBucket)
		}
		return nil
	})

	return attrs, false
}
