// Package output renders scan results for terminals and machine
// consumers.
package output

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/cloudrecon-labs/posturescan/internal/models"
)

// ANSI color codes for severity output (used when Colored=true).
const (
	ansiReset   = "\033[0m"
	ansiBoldRed = "\033[1;31m"
	ansiRed     = "\033[0;31m"
	ansiYellow  = "\033[0;33m"
	ansiBlue    = "\033[0;34m"
)

// TableOptions controls how RenderTable renders a result.
type TableOptions struct {
	// Colored wraps severity labels with ANSI codes. Default false (CI-safe).
	Colored bool

	// FailedOnly hides passing and not-applicable findings.
	FailedOnly bool
}

// ColorSeverity wraps a severity string with ANSI codes when colored is true.
// When colored is false the string is returned unchanged (CI-safe default).
func ColorSeverity(sev models.Severity, colored bool) string {
	s := string(sev)
	if !colored {
		return s
	}
	switch sev {
	case models.SeverityCritical:
		return ansiBoldRed + s + ansiReset
	case models.SeverityHigh:
		return ansiRed + s + ansiReset
	case models.SeverityMedium:
		return ansiYellow + s + ansiReset
	case models.SeverityLow:
		return ansiBlue + s + ansiReset
	default:
		return s
	}
}

// ShortenMessage truncates msg to at most max runes, appending "..." when truncated.
// max is treated as at least 4 to guarantee space for the ellipsis.
func ShortenMessage(msg string, max int) string {
	if max < 4 {
		max = 4
	}
	runes := []rune(msg)
	if len(runes) <= max {
		return msg
	}
	return string(runes[:max-3]) + "..."
}

// severityCell returns the severity padded to width characters.
// When colored, ANSI codes wrap only the text; trailing padding spaces are plain
// so subsequent columns stay visually aligned regardless of terminal ANSI support.
func severityCell(sev models.Severity, width int, colored bool) string {
	text := string(sev)
	if !colored {
		return fmt.Sprintf("%-*s", width, text)
	}
	var code string
	switch sev {
	case models.SeverityCritical:
		code = ansiBoldRed
	case models.SeverityHigh:
		code = ansiRed
	case models.SeverityMedium:
		code = ansiYellow
	case models.SeverityLow:
		code = ansiBlue
	default:
		return fmt.Sprintf("%-*s", width, text)
	}
	spaces := width - len(text)
	if spaces < 0 {
		spaces = 0
	}
	return code + text + ansiReset + strings.Repeat(" ", spaces)
}

// truncateField shortens s to at most max bytes for ID/label columns.
// A single-char ellipsis replaces the last byte when truncation occurs.
func truncateField(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}

// RenderTable writes a formatted findings table plus the score summary to w.
//
// Column order:
//
//	RESOURCE ID  REGION  SEVERITY  STATUS  CHECK  MESSAGE
func RenderTable(w io.Writer, result *models.ScanResult, opts TableOptions) {
	findings := result.Findings
	if opts.FailedOnly {
		var failed []models.Finding
		for _, f := range findings {
			if f.Status == models.StatusFail || f.Status == models.StatusError {
				failed = append(failed, f)
			}
		}
		findings = failed
	}

	// Fixed column display widths.
	const (
		wResource = 40
		wRegion   = 14
		wSeverity = 10
		wStatus   = 8
		wCheck    = 34
		wMessage  = 50
	)

	if len(findings) == 0 {
		fmt.Fprintln(w, "No findings.")
	} else {
		var hb strings.Builder
		hb.WriteString(fmt.Sprintf("%-*s", wResource, "RESOURCE ID"))
		hb.WriteString(fmt.Sprintf("  %-*s", wRegion, "REGION"))
		hb.WriteString(fmt.Sprintf("  %-*s", wSeverity, "SEVERITY"))
		hb.WriteString(fmt.Sprintf("  %-*s", wStatus, "STATUS"))
		hb.WriteString(fmt.Sprintf("  %-*s", wCheck, "CHECK"))
		hb.WriteString(fmt.Sprintf("  %-*s", wMessage, "MESSAGE"))
		header := hb.String()

		fmt.Fprintln(w, header)
		fmt.Fprintln(w, strings.Repeat("-", len(header)))

		sorted := make([]models.Finding, len(findings))
		copy(sorted, findings)
		sort.SliceStable(sorted, func(i, j int) bool {
			if sorted[i].Severity != sorted[j].Severity {
				return models.SeverityRank(sorted[i].Severity) < models.SeverityRank(sorted[j].Severity)
			}
			return sorted[i].ResourceID < sorted[j].ResourceID
		})

		for _, f := range sorted {
			var rb strings.Builder
			rb.WriteString(fmt.Sprintf("%-*s", wResource, truncateField(f.ResourceID, wResource)))
			rb.WriteString(fmt.Sprintf("  %-*s", wRegion, truncateField(f.Region, wRegion)))
			rb.WriteString("  " + severityCell(f.Severity, wSeverity, opts.Colored))
			rb.WriteString(fmt.Sprintf("  %-*s", wStatus, string(f.Status)))
			rb.WriteString(fmt.Sprintf("  %-*s", wCheck, truncateField(f.CheckID, wCheck)))
			rb.WriteString(fmt.Sprintf("  %-*s", wMessage, ShortenMessage(f.Message, wMessage)))
			fmt.Fprintln(w, rb.String())
		}
	}

	fmt.Fprintln(w)
	renderSummary(w, result)
}

// renderSummary writes the score block below the findings table.
func renderSummary(w io.Writer, result *models.ScanResult) {
	s := result.Summary
	fmt.Fprintf(w, "Account %s  level=%s  findings=%d (pass=%d fail=%d error=%d n/a=%d)\n",
		result.AccountID, result.Level, s.TotalFindings, s.Passed, s.Failed, s.Errored, s.NotApplicable)
	fmt.Fprintf(w, "Overall posture score: %.1f/100\n", result.OverallScore)

	if len(result.FrameworkScores) > 0 {
		names := make([]string, 0, len(result.FrameworkScores))
		for name := range result.FrameworkScores {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Fprintln(w, "Framework scores:")
		for _, name := range names {
			fmt.Fprintf(w, "  %-14s %.1f%%\n", name, result.FrameworkScores[name])
		}
	}

	if result.Partial {
		fmt.Fprintf(w, "PARTIAL RESULT: %d of %d planned units completed\n",
			result.CompletedUnits, result.PlannedUnits)
	}
	for _, e := range result.Errors {
		fmt.Fprintf(w, "  error: %s/%s: %s\n", e.Region, e.Service, e.Message)
	}
}
