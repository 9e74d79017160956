package scanners

import (
	"sort"
	"testing"

	"github.com/cloudrecon-labs/posturescan/internal/models"
)

func TestServices_SortedAndComplete(t *testing.T) {
	services := Services()
	if !sort.StringsAreSorted(services) {
		t.Error("Services() must be sorted")
	}
	if len(services) != 29 {
		t.Errorf("got %d registered scanners; want 29", len(services))
	}
	for _, want := range []string{"s3", "iam", "ec2", "cloudtrail", "guardduty", "vpc", "costexplorer", "wafv2"} {
		found := false
		for _, s := range services {
			if s == want {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("service %q not registered", want)
		}
	}
}

func TestSelect_LevelFiltering(t *testing.T) {
	basic, err := Select(models.LevelBasic, nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range basic {
		if s.MinLevel() != models.LevelBasic {
			t.Errorf("scanner %q with min level %v selected at basic", s.Service(), s.MinLevel())
		}
	}

	exhaustive, err := Select(models.LevelExhaustive, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(exhaustive) != len(Services()) {
		t.Errorf("exhaustive selected %d of %d scanners", len(exhaustive), len(Services()))
	}
	if len(basic) >= len(exhaustive) {
		t.Errorf("basic (%d) must select fewer scanners than exhaustive (%d)", len(basic), len(exhaustive))
	}
}

func TestSelect_Allowlist(t *testing.T) {
	selected, err := Select(models.LevelExhaustive, []string{"s3", "vpc"})
	if err != nil {
		t.Fatal(err)
	}
	if len(selected) != 2 {
		t.Fatalf("got %d scanners; want 2", len(selected))
	}
	names := map[string]bool{}
	for _, s := range selected {
		names[s.Service()] = true
	}
	if !names["s3"] || !names["vpc"] {
		t.Errorf("wrong scanners selected: %v", names)
	}
}

func TestSelect_AllowlistBelowLevel(t *testing.T) {
	// vpc needs standard; an allowlist cannot override the level gate.
	selected, err := Select(models.LevelBasic, []string{"vpc"})
	if err != nil {
		t.Fatal(err)
	}
	if len(selected) != 0 {
		t.Errorf("got %d scanners; the level gate must still apply", len(selected))
	}
}

func TestSelect_UnknownServiceFailsLoudly(t *testing.T) {
	if _, err := Select(models.LevelExhaustive, []string{"s3", "dynamo"}); err == nil {
		t.Fatal("a typo in the allowlist must be an error, not a silent skip")
	}
}

func TestBatteries_MatchRegistry(t *testing.T) {
	batteries := Batteries()
	services := Services()

	if len(batteries) != len(services) {
		t.Errorf("%d batteries for %d services", len(batteries), len(services))
	}
	for _, service := range services {
		battery, ok := batteries[service]
		if !ok {
			t.Errorf("service %q has no battery entry", service)
			continue
		}
		if len(battery) == 0 {
			t.Errorf("service %q has an empty battery", service)
		}
	}
}

func TestBatteries_CheckInvariants(t *testing.T) {
	seen := make(map[string]string)
	for service, battery := range Batteries() {
		ctor := registry[service]
		scannerMin := ctor().MinLevel()
		for _, c := range battery {
			if prev, dup := seen[c.ID]; dup {
				t.Errorf("check ID %q used by both %q and %q", c.ID, prev, service)
			}
			seen[c.ID] = service

			if c.Title == "" || c.Kind == "" || c.Evaluate == nil {
				t.Errorf("check %q is incomplete", c.ID)
			}
			if c.MinLevel < scannerMin {
				t.Errorf("check %q min level %v below its scanner's %v", c.ID, c.MinLevel, scannerMin)
			}
			switch c.Severity {
			case models.SeverityCritical, models.SeverityHigh, models.SeverityMedium, models.SeverityLow, models.SeverityInfo:
			default:
				t.Errorf("check %q has invalid severity %q", c.ID, c.Severity)
			}
		}
	}
}
