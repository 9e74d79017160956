package models

import (
	"fmt"
	"time"
)

// ScanLevel is a named preset controlling which scanners and checks run.
// Levels are cumulative: every scanner enabled at a lower level also runs
// at every higher level.
type ScanLevel int

const (
	LevelBasic ScanLevel = iota + 1
	LevelStandard
	LevelAdvanced
	LevelExhaustive
)

// ParseScanLevel converts a level name into a ScanLevel.
func ParseScanLevel(s string) (ScanLevel, error) {
	switch s {
	case "basic":
		return LevelBasic, nil
	case "standard":
		return LevelStandard, nil
	case "advanced":
		return LevelAdvanced, nil
	case "exhaustive":
		return LevelExhaustive, nil
	default:
		return 0, fmt.Errorf("unknown scan level %q (want basic, standard, advanced, or exhaustive)", s)
	}
}

// String returns the level name used in requests and reports.
func (l ScanLevel) String() string {
	switch l {
	case LevelBasic:
		return "basic"
	case LevelStandard:
		return "standard"
	case LevelAdvanced:
		return "advanced"
	case LevelExhaustive:
		return "exhaustive"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// Includes reports whether a scanner or check with minimum level min runs
// under this level.
func (l ScanLevel) Includes(min ScanLevel) bool { return l >= min }

// ScanRequest describes one scan execution. It is immutable once the scan
// starts; the engine copies nothing out of band from it afterwards.
type ScanRequest struct {
	// CredentialRef is an opaque credential reference resolved by the
	// credential resolver. "profile:<name>" selects a shared-config
	// profile; "env" (or empty) uses the default credential chain.
	CredentialRef string `json:"credential_ref"`

	// Regions is the ordered, non-empty set of target regions.
	Regions []string `json:"regions"`

	// Level selects the scanner set and check depth.
	Level ScanLevel `json:"level"`

	// Services optionally restricts the scan to the named services.
	// Empty means every scanner the level enables.
	Services []string `json:"services,omitempty"`

	// Timeout is the scan-wide budget. Zero means no deadline.
	Timeout time.Duration `json:"timeout,omitempty"`
}

// Validate checks the request invariants before a scan starts.
func (r *ScanRequest) Validate() error {
	if len(r.Regions) == 0 {
		return fmt.Errorf("scan request must name at least one region")
	}
	seen := make(map[string]struct{}, len(r.Regions))
	for _, region := range r.Regions {
		if region == "" {
			return fmt.Errorf("scan request contains an empty region")
		}
		if _, dup := seen[region]; dup {
			return fmt.Errorf("scan request lists region %q twice", region)
		}
		seen[region] = struct{}{}
	}
	if r.Level < LevelBasic || r.Level > LevelExhaustive {
		return fmt.Errorf("invalid scan level %d", int(r.Level))
	}
	return nil
}
