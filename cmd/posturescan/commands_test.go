package main

import (
	"bytes"
	"strings"
	"testing"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	root := newRootCmd()
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestRootCmd_ListsSubcommands(t *testing.T) {
	out, err := execute(t, "--help")
	if err != nil {
		t.Fatalf("help returned error: %v", err)
	}
	for _, want := range []string{"scan", "list-checks", "doctor", "version"} {
		if !strings.Contains(out, want) {
			t.Errorf("help missing subcommand %q;\ngot:\n%s", want, out)
		}
	}
}

func TestScanCmd_RequiresRegion(t *testing.T) {
	_, err := execute(t, "scan")
	if err == nil {
		t.Fatal("scan without --region must fail")
	}
	if !strings.Contains(err.Error(), "region") {
		t.Errorf("error should name the missing flag; got: %v", err)
	}
}

func TestScanCmd_RejectsUnknownLevel(t *testing.T) {
	_, err := execute(t, "scan", "--region", "us-east-1", "--level", "paranoid")
	if err == nil {
		t.Fatal("unknown level must fail")
	}
	if !strings.Contains(err.Error(), "paranoid") {
		t.Errorf("error should name the bad level; got: %v", err)
	}
}

func TestScanCmd_RejectsMissingPolicyFile(t *testing.T) {
	_, err := execute(t, "scan", "--region", "us-east-1", "--policy", "does-not-exist.yaml")
	if err == nil {
		t.Fatal("missing policy file must fail before the scan starts")
	}
	if !strings.Contains(err.Error(), "load policy") {
		t.Errorf("error should mention policy loading; got: %v", err)
	}
}

func TestListChecksCmd_Output(t *testing.T) {
	out, err := execute(t, "list-checks")
	if err != nil {
		t.Fatalf("list-checks returned error: %v", err)
	}

	// Services appear as section headers, checks beneath them.
	for _, want := range []string{
		"s3",
		"s3_bucket_public_access",
		"iam",
		"iam_root_mfa_enabled",
		"vpc",
		"vpc_sg_no_open_ssh",
		"CRITICAL",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("list-checks missing %q;\ngot:\n%s", want, out)
		}
	}

	// Sections are alphabetical, so apigateway precedes wafv2.
	if strings.Index(out, "apigateway") > strings.Index(out, "wafv2") {
		t.Error("services not listed alphabetically")
	}
}

func TestScanCmd_SilencesCobraNoise(t *testing.T) {
	cmd := newScanCmd()
	if !cmd.SilenceErrors || !cmd.SilenceUsage {
		t.Error("scan command must silence cobra error/usage output")
	}
}
