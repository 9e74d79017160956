package scanners

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	s3svc "github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/cloudrecon-labs/posturescan/internal/models"
)

type fakeS3 struct {
	listCalls int32
	listErr   error

	policyPublic bool
	blockAll     bool
	encrypted    bool
	versioning   bool
	logging      bool
}

func (f *fakeS3) ListBuckets(ctx context.Context, params *s3svc.ListBucketsInput, optFns ...func(*s3svc.Options)) (*s3svc.ListBucketsOutput, error) {
	atomic.AddInt32(&f.listCalls, 1)
	if f.listErr != nil {
		return nil, f.listErr
	}
	return &s3svc.ListBucketsOutput{
		Buckets: []s3types.Bucket{{Name: aws.String("prod-data")}},
	}, nil
}

func (f *fakeS3) GetBucketPolicyStatus(ctx context.Context, params *s3svc.GetBucketPolicyStatusInput, optFns ...func(*s3svc.Options)) (*s3svc.GetBucketPolicyStatusOutput, error) {
	return &s3svc.GetBucketPolicyStatusOutput{
		PolicyStatus: &s3types.PolicyStatus{IsPublic: aws.Bool(f.policyPublic)},
	}, nil
}

func (f *fakeS3) GetPublicAccessBlock(ctx context.Context, params *s3svc.GetPublicAccessBlockInput, optFns ...func(*s3svc.Options)) (*s3svc.GetPublicAccessBlockOutput, error) {
	if !f.blockAll {
		return nil, &smithy.GenericAPIError{Code: "NoSuchPublicAccessBlockConfiguration", Message: "none"}
	}
	return &s3svc.GetPublicAccessBlockOutput{
		PublicAccessBlockConfiguration: &s3types.PublicAccessBlockConfiguration{
			BlockPublicAcls:       aws.Bool(true),
			BlockPublicPolicy:     aws.Bool(true),
			IgnorePublicAcls:      aws.Bool(true),
			RestrictPublicBuckets: aws.Bool(true),
		},
	}, nil
}

func (f *fakeS3) GetBucketEncryption(ctx context.Context, params *s3svc.GetBucketEncryptionInput, optFns ...func(*s3svc.Options)) (*s3svc.GetBucketEncryptionOutput, error) {
	if !f.encrypted {
		return nil, &smithy.GenericAPIError{Code: "ServerSideEncryptionConfigurationNotFoundError", Message: "none"}
	}
	return &s3svc.GetBucketEncryptionOutput{
		ServerSideEncryptionConfiguration: &s3types.ServerSideEncryptionConfiguration{
			Rules: []s3types.ServerSideEncryptionRule{{
				ApplyServerSideEncryptionByDefault: &s3types.ServerSideEncryptionByDefault{
					SSEAlgorithm: s3types.ServerSideEncryptionAes256,
				},
			}},
		},
	}, nil
}

func (f *fakeS3) GetBucketVersioning(ctx context.Context, params *s3svc.GetBucketVersioningInput, optFns ...func(*s3svc.Options)) (*s3svc.GetBucketVersioningOutput, error) {
	out := &s3svc.GetBucketVersioningOutput{}
	if f.versioning {
		out.Status = s3types.BucketVersioningStatusEnabled
	}
	return out, nil
}

func (f *fakeS3) GetBucketLogging(ctx context.Context, params *s3svc.GetBucketLoggingInput, optFns ...func(*s3svc.Options)) (*s3svc.GetBucketLoggingOutput, error) {
	out := &s3svc.GetBucketLoggingOutput{}
	if f.logging {
		out.LoggingEnabled = &s3types.LoggingEnabled{TargetBucket: aws.String("log-bucket")}
	}
	return out, nil
}

func s3ScannerWith(client *fakeS3) *S3Scanner {
	return NewS3ScannerWithClient(func(cfg aws.Config) s3APIClient { return client })
}

func TestS3Scan_HealthyBucket(t *testing.T) {
	client := &fakeS3{blockAll: true, encrypted: true, versioning: true, logging: true}
	sc := newTestContext(models.LevelExhaustive)

	findings, err := s3ScannerWith(client).Scan(context.Background(), sc, GlobalRegion)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(findings) != 4 {
		t.Fatalf("got %d findings; want 4", len(findings))
	}

	statuses := statusByCheck(findings, "arn:aws:s3:::prod-data")
	for _, id := range []string{
		"s3_bucket_public_access",
		"s3_bucket_default_encryption",
		"s3_bucket_versioning",
		"s3_bucket_access_logging",
	} {
		if statuses[id] != models.StatusPass {
			t.Errorf("%s = %q; want PASS", id, statuses[id])
		}
	}
}

func TestS3Scan_ExposedBucket(t *testing.T) {
	client := &fakeS3{policyPublic: true}
	sc := newTestContext(models.LevelExhaustive)

	findings, err := s3ScannerWith(client).Scan(context.Background(), sc, GlobalRegion)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	statuses := statusByCheck(findings, "arn:aws:s3:::prod-data")
	for _, id := range []string{
		"s3_bucket_public_access",
		"s3_bucket_default_encryption",
		"s3_bucket_versioning",
		"s3_bucket_access_logging",
	} {
		if statuses[id] != models.StatusFail {
			t.Errorf("%s = %q; want FAIL", id, statuses[id])
		}
	}
}

func TestS3Scan_LevelGatesChecks(t *testing.T) {
	client := &fakeS3{blockAll: true, encrypted: true}
	sc := newTestContext(models.LevelBasic)

	findings, err := s3ScannerWith(client).Scan(context.Background(), sc, GlobalRegion)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Basic level runs only the two basic checks.
	if len(findings) != 2 {
		t.Fatalf("got %d findings at basic level; want 2", len(findings))
	}
	statuses := statusByCheck(findings, "")
	if _, ran := statuses["s3_bucket_versioning"]; ran {
		t.Error("standard-level check ran at basic level")
	}
}

func TestS3Scan_DiscoveryCachedAcrossScans(t *testing.T) {
	client := &fakeS3{blockAll: true, encrypted: true}
	sc := newTestContext(models.LevelBasic)
	scanner := s3ScannerWith(client)

	if _, err := scanner.Scan(context.Background(), sc, GlobalRegion); err != nil {
		t.Fatal(err)
	}
	if _, err := scanner.Scan(context.Background(), sc, GlobalRegion); err != nil {
		t.Fatal(err)
	}

	if n := atomic.LoadInt32(&client.listCalls); n != 1 {
		t.Errorf("ListBuckets called %d times; the shared cache must dedupe to 1", n)
	}
}

func TestS3Scan_PermissionDeniedBecomesErrorFindings(t *testing.T) {
	client := &fakeS3{listErr: &smithy.GenericAPIError{Code: "AccessDenied", Message: "denied"}}
	sc := newTestContext(models.LevelStandard)

	findings, err := s3ScannerWith(client).Scan(context.Background(), sc, GlobalRegion)
	if err != nil {
		t.Fatalf("permission denial must not be a scanner error: %v", err)
	}

	// One error finding per check the standard level would have run.
	if len(findings) != 3 {
		t.Fatalf("got %d error findings; want 3", len(findings))
	}
	for _, f := range findings {
		if f.Status != models.StatusError {
			t.Errorf("%s status = %q; want ERROR", f.CheckID, f.Status)
		}
		if f.Severity != models.SeverityInfo {
			t.Errorf("%s severity = %q; want INFO", f.CheckID, f.Severity)
		}
	}
}

func TestS3Scan_ThrottlingIsScannerError(t *testing.T) {
	client := &fakeS3{listErr: &smithy.GenericAPIError{Code: "Throttling", Message: "slow down"}}
	sc := newTestContext(models.LevelBasic)

	findings, err := s3ScannerWith(client).Scan(context.Background(), sc, GlobalRegion)
	if err == nil {
		t.Fatal("throttled discovery must propagate as the unit error")
	}
	if len(findings) != 0 {
		t.Errorf("throttled discovery produced %d findings", len(findings))
	}
}

func TestS3Scanner_Metadata(t *testing.T) {
	s := s3ScannerWith(&fakeS3{})
	if s.Service() != "s3" {
		t.Errorf("Service = %q", s.Service())
	}
	if !s.Global() {
		t.Error("S3 is account-global")
	}
	if s.MinLevel() != models.LevelBasic {
		t.Errorf("MinLevel = %v", s.MinLevel())
	}
}
