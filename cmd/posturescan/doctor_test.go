package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/cloudrecon-labs/posturescan/internal/awsconn"
)

// ── STS mock ──────────────────────────────────────────────────────────────────

type mockSTS struct {
	account string
	arn     string
	err     error
}

func (m *mockSTS) GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &sts.GetCallerIdentityOutput{
		Account: aws.String(m.account),
		Arn:     aws.String(m.arn),
	}, nil
}

func goodResolver() *awsconn.Resolver {
	return awsconn.NewResolverWithSTSFactory(func(cfg aws.Config) awsconn.STSClient {
		return &mockSTS{account: "123456789012", arn: "arn:aws:iam::123456789012:user/scanner"}
	})
}

func badResolver() *awsconn.Resolver {
	return awsconn.NewResolverWithSTSFactory(func(cfg aws.Config) awsconn.STSClient {
		return &mockSTS{err: errors.New("InvalidClientTokenId")}
	})
}

const testCredRef = "static:AKIAEXAMPLE:secretkey"

// ── table format tests ────────────────────────────────────────────────────────

func TestDoctorAllOK(t *testing.T) {
	var buf bytes.Buffer
	result, err := runDoctor(context.Background(), goodResolver(), &buf, "table", testCredRef, "", "")
	if err != nil {
		t.Fatalf("unexpected render error: %v", err)
	}
	if !result.OverallHealthy {
		t.Error("expected OverallHealthy=true")
	}
	out := buf.String()
	for _, want := range []string{
		"AWS credentials:   OK",
		"123456789012",
		"Config file:       OK",
		"Policy file:       OK",
		"Overall: OK",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q;\ngot:\n%s", want, out)
		}
	}
}

func TestDoctorCredentialsFail(t *testing.T) {
	var buf bytes.Buffer
	result, err := runDoctor(context.Background(), badResolver(), &buf, "table", testCredRef, "", "")
	if err != nil {
		t.Fatalf("unexpected render error: %v", err)
	}
	if result.OverallHealthy {
		t.Error("expected OverallHealthy=false")
	}
	out := buf.String()
	if !strings.Contains(out, "AWS credentials:   FAIL") {
		t.Errorf("expected credentials FAIL; got:\n%s", out)
	}
	if !strings.Contains(out, "Overall: FAIL") {
		t.Errorf("expected overall FAIL; got:\n%s", out)
	}
	if result.AWS.Error == "" {
		t.Error("expected AWS.Error to be recorded")
	}
}

func TestDoctorConfigInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posturescan.yaml")
	if err := os.WriteFile(path, []byte("concurrency: [broken\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	result, err := runDoctor(context.Background(), goodResolver(), &buf, "table", testCredRef, path, "")
	if err != nil {
		t.Fatalf("unexpected render error: %v", err)
	}
	if result.OverallHealthy {
		t.Error("expected OverallHealthy=false for invalid config")
	}
	if !result.Config.Present || result.Config.Valid {
		t.Errorf("config section wrong: %+v", result.Config)
	}
	if !strings.Contains(buf.String(), "Config file:       FAIL") {
		t.Errorf("expected config FAIL; got:\n%s", buf.String())
	}
}

func TestDoctorPolicyValid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte("version: 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	result, err := runDoctor(context.Background(), goodResolver(), &buf, "table", testCredRef, "", path)
	if err != nil {
		t.Fatalf("unexpected render error: %v", err)
	}
	if !result.OverallHealthy {
		t.Error("expected OverallHealthy=true")
	}
	if !result.Policy.Present || !result.Policy.Valid {
		t.Errorf("policy section wrong: %+v", result.Policy)
	}
}

func TestDoctorPolicyInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	// version: 99 causes LoadPolicy to return "unsupported policy version".
	if err := os.WriteFile(path, []byte("version: 99\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	result, err := runDoctor(context.Background(), goodResolver(), &buf, "table", testCredRef, "", path)
	if err != nil {
		t.Fatalf("unexpected render error: %v", err)
	}
	if result.OverallHealthy {
		t.Error("expected OverallHealthy=false for invalid policy")
	}
	if !strings.Contains(buf.String(), "Policy file:       FAIL") {
		t.Errorf("expected policy FAIL; got:\n%s", buf.String())
	}
}

// ── JSON format tests ─────────────────────────────────────────────────────────

func TestDoctorJSON_AllOK(t *testing.T) {
	var buf bytes.Buffer
	result, err := runDoctor(context.Background(), goodResolver(), &buf, "json", testCredRef, "", "")
	if err != nil {
		t.Fatalf("unexpected render error: %v", err)
	}
	if !result.OverallHealthy {
		t.Error("expected OverallHealthy=true")
	}

	var parsed DoctorResult
	if jsonErr := json.Unmarshal(buf.Bytes(), &parsed); jsonErr != nil {
		t.Fatalf("invalid JSON output: %v\nraw:\n%s", jsonErr, buf.String())
	}
	if !parsed.AWS.Credentials {
		t.Error("expected aws.credentials_ok=true")
	}
	if parsed.AWS.AccountID != "123456789012" {
		t.Errorf("expected account_id=123456789012; got %q", parsed.AWS.AccountID)
	}
	if parsed.AWS.Partition != "aws" {
		t.Errorf("expected partition=aws; got %q", parsed.AWS.Partition)
	}
	if !parsed.OverallHealthy {
		t.Error("expected overall_healthy=true")
	}
}

// TestDoctorJSON_Failure verifies that when the environment is unhealthy:
//   - runDoctor returns (result, nil) — NOT an error — so callers never pass
//     the error to Cobra or main, which would print it as plain text
//   - the output is valid JSON with overall_healthy=false
//   - no "Error:" or "Usage:" cobra noise appears
func TestDoctorJSON_Failure(t *testing.T) {
	var buf bytes.Buffer
	result, err := runDoctor(context.Background(), badResolver(), &buf, "json", testCredRef, "", "")
	if err != nil {
		t.Fatalf("runDoctor must not return error for unhealthy result; got: %v", err)
	}
	if result.OverallHealthy {
		t.Error("expected OverallHealthy=false")
	}

	out := buf.String()
	var parsed DoctorResult
	if jsonErr := json.Unmarshal([]byte(out), &parsed); jsonErr != nil {
		t.Fatalf("invalid JSON output: %v\nraw:\n%s", jsonErr, out)
	}
	if parsed.AWS.Credentials {
		t.Error("expected aws.credentials_ok=false")
	}
	if parsed.AWS.Error == "" {
		t.Error("expected aws.error to be non-empty")
	}

	for _, noisy := range []string{"Error:", "Usage:"} {
		if strings.Contains(out, noisy) {
			t.Errorf("cobra noise %q must not appear in JSON output; got:\n%s", noisy, out)
		}
	}
}

// TestDoctorCmd_CobraCleanOutput verifies that newDoctorCmd sets SilenceErrors
// and SilenceUsage so Cobra does not append "Error: ..." or the usage block to
// output when RunE returns an error. This keeps --format=json output clean for
// CI consumers.
func TestDoctorCmd_CobraCleanOutput(t *testing.T) {
	cmd := newDoctorCmd()
	if !cmd.SilenceErrors {
		t.Error("doctor command must have SilenceErrors=true")
	}
	if !cmd.SilenceUsage {
		t.Error("doctor command must have SilenceUsage=true")
	}
}
