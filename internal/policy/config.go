package policy

// PolicyConfig is the optional check policy file. It lets operators disable
// individual checks or override their severities without rebuilding.
type PolicyConfig struct {
	Version int                    `yaml:"version"`
	Checks  map[string]CheckConfig `yaml:"checks"`
}

// CheckConfig overrides one check, keyed by check ID.
type CheckConfig struct {
	// Enabled disables the check when explicitly false. Nil means enabled.
	Enabled *bool `yaml:"enabled,omitempty"`

	// Severity overrides the check's built-in severity. Empty keeps it.
	Severity string `yaml:"severity,omitempty"`
}
