package policy

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadPolicy_Success(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")

	content := `
version: 1
checks:
  s3_bucket_versioning:
    enabled: false
    severity: HIGH
`

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadPolicy(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Version != 1 {
		t.Fatalf("expected version 1")
	}

	cc := cfg.Checks["s3_bucket_versioning"]
	if cc.Enabled == nil || *cc.Enabled != false {
		t.Fatalf("expected s3_bucket_versioning enabled=false")
	}
	if cc.Severity != "HIGH" {
		t.Fatalf("expected severity HIGH")
	}
}

func TestLoadPolicy_InvalidVersion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")

	os.WriteFile(path, []byte("version: 2\n"), 0o644)

	_, err := LoadPolicy(path)
	if err == nil {
		t.Fatalf("expected error for invalid version")
	}
}

func TestLoadPolicy_FileNotFound(t *testing.T) {
	_, err := LoadPolicy("nonexistent.yaml")
	if err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestLoadPolicy_EmptyChecksMap(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")

	os.WriteFile(path, []byte("version: 1\n"), 0o644)

	cfg, err := LoadPolicy(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Checks == nil {
		t.Fatal("Checks map must be initialised even when absent from the file")
	}
}

func TestLoadPolicy_MalformedYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")

	os.WriteFile(path, []byte("version: [1\n"), 0o644)

	if _, err := LoadPolicy(path); err == nil {
		t.Fatal("expected error for malformed YAML")
	}
}
