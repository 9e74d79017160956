package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/cloudrecon-labs/posturescan/internal/checks"
	"github.com/cloudrecon-labs/posturescan/internal/config"
	"github.com/cloudrecon-labs/posturescan/internal/engine"
	"github.com/cloudrecon-labs/posturescan/internal/logging"
	"github.com/cloudrecon-labs/posturescan/internal/models"
	"github.com/cloudrecon-labs/posturescan/internal/output"
	"github.com/cloudrecon-labs/posturescan/internal/policy"
	"github.com/cloudrecon-labs/posturescan/internal/scanners"
	"github.com/cloudrecon-labs/posturescan/internal/version"
)

func newRootCmd() *cobra.Command {
	var (
		logLevel   string
		logConsole bool
	)
	root := &cobra.Command{
		Use:   "posturescan",
		Short: "posturescan — AWS security and compliance posture scanner",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.Init(logging.Options{Level: logLevel, Console: logConsole})
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: trace, debug, info, warn, error")
	root.PersistentFlags().BoolVar(&logConsole, "log-console", false, "Human-readable log output instead of JSON")

	root.AddCommand(newScanCmd())
	root.AddCommand(newListChecksCmd())
	root.AddCommand(newDoctorCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func newScanCmd() *cobra.Command {
	var (
		credRef    string
		regions    []string
		level      string
		services   []string
		timeout    int
		configPath string
		policyPath string
		reportFmt  string
		outPath    string
		failedOnly bool
		colored    bool
	)

	cmd := &cobra.Command{
		Use:           "scan",
		Short:         "Scan an AWS account's security posture",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			lvl, err := models.ParseScanLevel(level)
			if err != nil {
				return err
			}

			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			var pol *policy.PolicyConfig
			if policyPath != "" {
				pol, err = policy.LoadPolicy(policyPath)
				if err != nil {
					return fmt.Errorf("load policy: %w", err)
				}
			}

			req := models.ScanRequest{
				CredentialRef: credRef,
				Regions:       regions,
				Level:         lvl,
				Services:      services,
			}
			if timeout > 0 {
				req.Timeout = time.Duration(timeout) * time.Second
			}

			mgr := engine.NewManager(cfg, engine.WithPolicy(pol))
			result, err := mgr.Run(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("scan failed: %w", err)
			}

			if outPath != "" {
				if err := writeResultToFile(outPath, result); err != nil {
					return err
				}
			}

			if reportFmt == "json" {
				return output.RenderJSON(os.Stdout, result)
			}
			output.RenderTable(os.Stdout, result, output.TableOptions{
				Colored:    colored,
				FailedOnly: failedOnly,
			})
			return nil
		},
	}

	cmd.Flags().StringVar(&credRef, "credentials", "", `Credential reference: "", "env", "profile:<name>", or "static:<ak>:<sk>[:<token>]"`)
	cmd.Flags().StringSliceVar(&regions, "region", nil, "AWS region(s) to scan (required)")
	cmd.Flags().StringVar(&level, "level", "standard", "Scan level: basic, standard, advanced, exhaustive")
	cmd.Flags().StringSliceVar(&services, "service", nil, "Restrict the scan to these services (default: all at the chosen level)")
	cmd.Flags().IntVar(&timeout, "timeout", 0, "Scan deadline in seconds; the scan returns a partial result when exceeded (0 = none)")
	cmd.Flags().StringVar(&configPath, "config", "", "Engine configuration file (YAML)")
	cmd.Flags().StringVar(&policyPath, "policy", "", "Check policy file (YAML)")
	cmd.Flags().StringVar(&reportFmt, "report", "table", "Output format: json or table")
	cmd.Flags().StringVar(&outPath, "output", "", "Write full JSON result to this file path (in addition to stdout output)")
	cmd.Flags().BoolVar(&failedOnly, "failed-only", false, "Show only failed and errored findings")
	cmd.Flags().BoolVar(&colored, "color", false, "Colorize severity labels")
	_ = cmd.MarkFlagRequired("region")

	return cmd
}

func newListChecksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-checks",
		Short: "List every registered service scanner and its checks",
		Run: func(cmd *cobra.Command, args []string) {
			batteries := scanners.Batteries()
			services := scanners.Services()
			w := cmd.OutOrStdout()
			for _, service := range services {
				fmt.Fprintf(w, "%s\n", service)
				battery := append([]checks.Check(nil), batteries[service]...)
				sort.Slice(battery, func(i, j int) bool { return battery[i].ID < battery[j].ID })
				for _, c := range battery {
					fmt.Fprintf(w, "  %-40s %-9s %-11s %s\n", c.ID, c.Severity, c.MinLevel, c.Title)
				}
			}
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprint(cmd.OutOrStdout(), version.Info())
		},
	}
}

// writeResultToFile serialises result as indented JSON and writes it to
// path, creating or overwriting the file. It does not affect stdout output.
func writeResultToFile(path string, result *models.ScanResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write result file %q: %w", path, err)
	}
	return nil
}
