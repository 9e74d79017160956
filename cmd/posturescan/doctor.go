package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/cloudrecon-labs/posturescan/internal/awsconn"
	"github.com/cloudrecon-labs/posturescan/internal/config"
	"github.com/cloudrecon-labs/posturescan/internal/policy"
)

// DoctorResult is the structured output of posturescan doctor. It can be
// serialised to JSON via --format=json or rendered as a human-readable
// table (default).
type DoctorResult struct {
	AWS struct {
		Credentials bool   `json:"credentials_ok"`
		AccountID   string `json:"account_id,omitempty"`
		Partition   string `json:"partition,omitempty"`
		Error       string `json:"error,omitempty"`
	} `json:"aws"`

	Config struct {
		Present bool   `json:"present"`
		Valid   bool   `json:"valid"`
		Error   string `json:"error,omitempty"`
	} `json:"config"`

	Policy struct {
		Present bool   `json:"present"`
		Valid   bool   `json:"valid"`
		Error   string `json:"error,omitempty"`
	} `json:"policy"`

	OverallHealthy bool `json:"overall_healthy"`
}

func newDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "doctor",
		Short:         "Run environment diagnostics",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			credRef, _ := cmd.Flags().GetString("credentials")
			configPath, _ := cmd.Flags().GetString("config")
			policyPath, _ := cmd.Flags().GetString("policy")

			result, err := runDoctor(
				cmd.Context(),
				awsconn.NewResolver(),
				cmd.OutOrStdout(),
				format, credRef, configPath, policyPath,
			)
			if err != nil {
				// Rendering failure — let Cobra/main handle it.
				return err
			}
			if !result.OverallHealthy {
				// Exit directly so no error text reaches main's stderr path.
				os.Exit(1)
			}
			return nil
		},
	}
	cmd.Flags().String("format", "table", `Output format: "table" or "json"`)
	cmd.Flags().String("credentials", "", "Credential reference to validate (default: credential chain)")
	cmd.Flags().String("config", "", "Engine configuration file to validate")
	cmd.Flags().String("policy", "", "Check policy file to validate")
	return cmd
}

// runDoctor collects all diagnostic results, renders them to w in the
// requested format, and returns the result. The returned error covers only
// rendering failures; callers must inspect result.OverallHealthy.
func runDoctor(ctx context.Context, resolver *awsconn.Resolver, w io.Writer, format, credRef, configPath, policyPath string) (DoctorResult, error) {
	result := collectDoctorResult(ctx, resolver, credRef, configPath, policyPath)

	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return result, err
		}
		return result, nil
	}

	renderDoctorTable(w, result)
	return result, nil
}

func collectDoctorResult(ctx context.Context, resolver *awsconn.Resolver, credRef, configPath, policyPath string) DoctorResult {
	var result DoctorResult

	creds, err := resolver.Resolve(ctx, credRef, config.Default().Retry)
	if err != nil {
		result.AWS.Error = err.Error()
	} else {
		result.AWS.Credentials = true
		result.AWS.AccountID = creds.AccountID
		result.AWS.Partition = creds.Partition
	}

	result.Config.Valid = true
	if configPath != "" {
		result.Config.Present = true
		if _, err := config.Load(configPath); err != nil {
			result.Config.Valid = false
			result.Config.Error = err.Error()
		}
	}

	result.Policy.Valid = true
	if policyPath != "" {
		result.Policy.Present = true
		if _, err := policy.LoadPolicy(policyPath); err != nil {
			result.Policy.Valid = false
			result.Policy.Error = err.Error()
		}
	}

	result.OverallHealthy = result.AWS.Credentials && result.Config.Valid && result.Policy.Valid
	return result
}

func renderDoctorTable(w io.Writer, result DoctorResult) {
	status := func(ok bool) string {
		if ok {
			return "OK"
		}
		return "FAIL"
	}

	fmt.Fprintln(w, "posturescan doctor")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %-18s %s\n", "AWS credentials:", status(result.AWS.Credentials))
	if result.AWS.AccountID != "" {
		fmt.Fprintf(w, "  %-18s %s (%s)\n", "Account:", result.AWS.AccountID, result.AWS.Partition)
	}
	if result.AWS.Error != "" {
		fmt.Fprintf(w, "  %-18s %s\n", "", result.AWS.Error)
	}
	fmt.Fprintf(w, "  %-18s %s\n", "Config file:", status(result.Config.Valid))
	if result.Config.Error != "" {
		fmt.Fprintf(w, "  %-18s %s\n", "", result.Config.Error)
	}
	fmt.Fprintf(w, "  %-18s %s\n", "Policy file:", status(result.Policy.Valid))
	if result.Policy.Error != "" {
		fmt.Fprintf(w, "  %-18s %s\n", "", result.Policy.Error)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Overall: %s\n", status(result.OverallHealthy))
}
