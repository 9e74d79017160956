package policy

import (
	"testing"

	"github.com/cloudrecon-labs/posturescan/internal/models"
)

func boolPtr(b bool) *bool { return &b }

func TestApply_NilConfigPassesThrough(t *testing.T) {
	findings := []models.Finding{{CheckID: "a"}, {CheckID: "b"}}
	out := Apply(findings, nil)
	if len(out) != 2 {
		t.Errorf("nil config must not filter; got %d findings", len(out))
	}
}

func TestApply_DropsDisabledChecks(t *testing.T) {
	cfg := &PolicyConfig{
		Version: 1,
		Checks: map[string]CheckConfig{
			"s3_bucket_versioning": {Enabled: boolPtr(false)},
		},
	}
	findings := []models.Finding{
		{CheckID: "s3_bucket_versioning", Status: models.StatusFail},
		{CheckID: "s3_bucket_public_access", Status: models.StatusFail},
	}

	out := Apply(findings, cfg)

	if len(out) != 1 {
		t.Fatalf("got %d findings; want 1", len(out))
	}
	if out[0].CheckID != "s3_bucket_public_access" {
		t.Errorf("wrong finding survived: %q", out[0].CheckID)
	}
}

func TestApply_SeverityOverride(t *testing.T) {
	cfg := &PolicyConfig{
		Version: 1,
		Checks: map[string]CheckConfig{
			"ec2_instance_no_public_ip": {Severity: "critical"},
		},
	}
	findings := []models.Finding{
		{CheckID: "ec2_instance_no_public_ip", Severity: models.SeverityMedium},
	}

	out := Apply(findings, cfg)

	if len(out) != 1 {
		t.Fatalf("got %d findings; want 1", len(out))
	}
	// Overrides are case-insensitive in the file.
	if out[0].Severity != models.SeverityCritical {
		t.Errorf("Severity = %q; want CRITICAL", out[0].Severity)
	}
}

func TestApply_InvalidSeverityKept(t *testing.T) {
	cfg := &PolicyConfig{
		Version: 1,
		Checks: map[string]CheckConfig{
			"ec2_instance_no_public_ip": {Severity: "CATASTROPHIC"},
		},
	}
	findings := []models.Finding{
		{CheckID: "ec2_instance_no_public_ip", Severity: models.SeverityMedium},
	}

	out := Apply(findings, cfg)

	if out[0].Severity != models.SeverityMedium {
		t.Errorf("invalid override must keep the built-in severity; got %q", out[0].Severity)
	}
}

func TestApply_ExplicitEnableKeepsFinding(t *testing.T) {
	cfg := &PolicyConfig{
		Version: 1,
		Checks: map[string]CheckConfig{
			"iam_root_mfa_enabled": {Enabled: boolPtr(true)},
		},
	}
	findings := []models.Finding{{CheckID: "iam_root_mfa_enabled"}}
	if out := Apply(findings, cfg); len(out) != 1 {
		t.Errorf("enabled=true must keep the finding; got %d", len(out))
	}
}

func TestDisabled(t *testing.T) {
	cfg := &PolicyConfig{
		Version: 1,
		Checks: map[string]CheckConfig{
			"off":     {Enabled: boolPtr(false)},
			"on":      {Enabled: boolPtr(true)},
			"sev":     {Severity: "HIGH"},
			"default": {},
		},
	}

	if !Disabled(cfg, "off") {
		t.Error("explicitly disabled check not reported")
	}
	for _, id := range []string{"on", "sev", "default", "absent"} {
		if Disabled(cfg, id) {
			t.Errorf("check %q wrongly reported disabled", id)
		}
	}
	if Disabled(nil, "off") {
		t.Error("nil config disables nothing")
	}
}
