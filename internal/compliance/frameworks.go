// Package compliance maps check results onto compliance frameworks and
// computes per-framework and overall posture scores.
package compliance

// Framework identifies a supported compliance framework.
type Framework string

const (
	CIS       Framework = "cis"
	PCIDSS    Framework = "pci-dss"
	HIPAA     Framework = "hipaa"
	SOC2      Framework = "soc2"
	ISO27001  Framework = "iso27001"
	NIST80053 Framework = "nist-800-53"
	NISTCSF   Framework = "nist-csf"
	LGPD      Framework = "lgpd"
)

// Frameworks lists every supported framework in presentation order.
func Frameworks() []Framework {
	return []Framework{CIS, PCIDSS, HIPAA, SOC2, ISO27001, NIST80053, NISTCSF, LGPD}
}

// ControlRef names one control within a framework.
type ControlRef struct {
	Framework Framework
	Control   string
}
