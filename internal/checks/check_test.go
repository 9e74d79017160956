package checks

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudrecon-labs/posturescan/internal/models"
	"github.com/cloudrecon-labs/posturescan/internal/policy"
)

func testBattery() []Check {
	return []Check{
		{
			ID:       "bucket_check",
			Title:    "Bucket check",
			Kind:     models.KindS3Bucket,
			Severity: models.SeverityHigh,
			MinLevel: models.LevelBasic,
			Evaluate: func(r *models.Resource) Result {
				if r.BoolAttr("bad") {
					return Fail("bucket is bad", map[string]any{"bad": true})
				}
				return Pass("bucket is fine", nil)
			},
		},
		{
			ID:       "deep_bucket_check",
			Title:    "Deep bucket check",
			Kind:     models.KindS3Bucket,
			Severity: models.SeverityLow,
			MinLevel: models.LevelAdvanced,
			Evaluate: func(r *models.Resource) Result {
				return Pass("ok", nil)
			},
		},
		{
			ID:       "instance_check",
			Title:    "Instance check",
			Kind:     models.KindEC2Instance,
			Severity: models.SeverityMedium,
			MinLevel: models.LevelBasic,
			Evaluate: func(r *models.Resource) Result {
				return NotApplicable("instance exempt")
			},
		},
	}
}

func testResources() []*models.Resource {
	return []*models.Resource{
		{Kind: models.KindS3Bucket, ID: "arn:aws:s3:::good", Region: "global"},
		{Kind: models.KindS3Bucket, ID: "arn:aws:s3:::bad", Region: "global", Attrs: map[string]any{"bad": true}},
		{Kind: models.KindEC2Instance, ID: "arn:aws:ec2:us-east-1:111:instance/i-1", Region: "us-east-1"},
	}
}

func findByCheck(findings []models.Finding, checkID string) []models.Finding {
	var out []models.Finding
	for _, f := range findings {
		if f.CheckID == checkID {
			out = append(out, f)
		}
	}
	return out
}

func TestRunBattery_KindAndLevelFiltering(t *testing.T) {
	findings := RunBattery(context.Background(), testBattery(), models.LevelStandard, nil, "111", testResources(), 4)

	// Standard level: the advanced check is skipped. Bucket check hits the
	// two buckets, instance check hits the one instance.
	if len(findings) != 3 {
		t.Fatalf("got %d findings; want 3", len(findings))
	}
	if n := len(findByCheck(findings, "deep_bucket_check")); n != 0 {
		t.Errorf("advanced check ran at standard level (%d findings)", n)
	}
	if n := len(findByCheck(findings, "bucket_check")); n != 2 {
		t.Errorf("bucket_check findings = %d; want 2", n)
	}
	if n := len(findByCheck(findings, "instance_check")); n != 1 {
		t.Errorf("instance_check findings = %d; want 1", n)
	}
}

func TestRunBattery_AdvancedLevelIncludesLower(t *testing.T) {
	findings := RunBattery(context.Background(), testBattery(), models.LevelAdvanced, nil, "111", testResources(), 4)
	if n := len(findByCheck(findings, "deep_bucket_check")); n != 2 {
		t.Errorf("deep_bucket_check findings = %d; want 2 at advanced level", n)
	}
}

func TestRunBattery_PolicyDisablesCheck(t *testing.T) {
	off := false
	pol := &policy.PolicyConfig{
		Version: 1,
		Checks:  map[string]policy.CheckConfig{"bucket_check": {Enabled: &off}},
	}

	findings := RunBattery(context.Background(), testBattery(), models.LevelStandard, pol, "111", testResources(), 4)

	if n := len(findByCheck(findings, "bucket_check")); n != 0 {
		t.Errorf("disabled check still produced %d findings", n)
	}
	if n := len(findByCheck(findings, "instance_check")); n != 1 {
		t.Errorf("unrelated check affected by policy: %d findings", n)
	}
}

func TestRunBattery_FindingFields(t *testing.T) {
	findings := RunBattery(context.Background(), testBattery(), models.LevelBasic, nil, "123456789012", testResources(), 1)

	for _, f := range findByCheck(findings, "bucket_check") {
		if f.AccountID != "123456789012" {
			t.Errorf("AccountID = %q", f.AccountID)
		}
		if f.CheckTitle != "Bucket check" {
			t.Errorf("CheckTitle = %q", f.CheckTitle)
		}
		if f.ResourceKind != models.KindS3Bucket {
			t.Errorf("ResourceKind = %q", f.ResourceKind)
		}
		if f.Severity != models.SeverityHigh {
			t.Errorf("Severity = %q", f.Severity)
		}
		if f.DetectedAt.IsZero() {
			t.Error("DetectedAt not set")
		}
		switch f.ResourceID {
		case "arn:aws:s3:::good":
			if f.Status != models.StatusPass {
				t.Errorf("good bucket status = %q", f.Status)
			}
		case "arn:aws:s3:::bad":
			if f.Status != models.StatusFail {
				t.Errorf("bad bucket status = %q", f.Status)
			}
			if f.Evidence["bad"] != true {
				t.Error("failure evidence missing")
			}
		default:
			t.Errorf("unexpected resource %q", f.ResourceID)
		}
	}
}

func TestRunBattery_NoResources(t *testing.T) {
	findings := RunBattery(context.Background(), testBattery(), models.LevelExhaustive, nil, "111", nil, 4)
	if len(findings) != 0 {
		t.Errorf("no resources must mean no findings; got %d", len(findings))
	}
}

func TestErrorFinding(t *testing.T) {
	c := testBattery()[0]
	f := ErrorFinding(c, "111", "unknown", "us-east-1", errors.New("AccessDenied"))

	if f.Status != models.StatusError {
		t.Errorf("Status = %q; want ERROR", f.Status)
	}
	if f.Severity != models.SeverityInfo {
		t.Errorf("Severity = %q; error findings are informational", f.Severity)
	}
	if f.CheckID != "bucket_check" || f.ResourceKind != models.KindS3Bucket {
		t.Errorf("check identity not carried: %+v", f)
	}
	if f.Evidence["error"] != "AccessDenied" {
		t.Errorf("Evidence[error] = %v", f.Evidence["error"])
	}
	if f.Region != "us-east-1" || f.ResourceID != "unknown" {
		t.Errorf("location fields wrong: %+v", f)
	}
}
