package scanners

import (
	"fmt"
	"sort"

	"github.com/cloudrecon-labs/posturescan/internal/models"
)

// Constructor builds a fresh scanner instance.
type Constructor func() Scanner

var registry = make(map[string]Constructor)

// Register adds a scanner constructor to the static registry. Each scanner
// file registers itself from init; a duplicate service name is a wiring
// mistake and panics at startup.
func Register(service string, ctor Constructor) {
	if _, exists := registry[service]; exists {
		panic(fmt.Sprintf("duplicate scanner registration: %q", service))
	}
	registry[service] = ctor
}

// Services returns every registered service name, sorted.
func Services() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Select instantiates the scanners enabled by the given level and optional
// service allowlist. An allowlist naming an unregistered service is an
// error so typos fail loudly instead of silently shrinking the scan.
func Select(level models.ScanLevel, allowlist []string) ([]Scanner, error) {
	allowed := make(map[string]struct{}, len(allowlist))
	for _, name := range allowlist {
		if _, ok := registry[name]; !ok {
			return nil, fmt.Errorf("unknown service %q in allowlist", name)
		}
		allowed[name] = struct{}{}
	}

	var selected []Scanner
	for _, name := range Services() {
		if len(allowed) > 0 {
			if _, ok := allowed[name]; !ok {
				continue
			}
		}
		s := registry[name]()
		if !level.Includes(s.MinLevel()) {
			continue
		}
		selected = append(selected, s)
	}
	return selected, nil
}
