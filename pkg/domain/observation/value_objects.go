package observation

import (
	"strings"
	"time"

	"github.com/openctemio/observe/pkg/domain/shared"
)

// Severity represents the severity of an observation.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityNone     Severity = "none"
	SeverityUnknown  Severity = "unknown"
)

// IsValid checks if the severity is valid.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityNone, SeverityUnknown:
		return true
	default:
		return false
	}
}

// Numerical returns the sort key for the severity; lower is more severe.
func (s Severity) Numerical() int {
	switch s {
	case SeverityCritical:
		return 1
	case SeverityHigh:
		return 2
	case SeverityMedium:
		return 3
	case SeverityLow:
		return 4
	case SeverityNone:
		return 5
	default:
		return 6
	}
}

// SeverityFromString normalizes a scanner-provided severity string. Unmapped
// values degrade to unknown, since feeds disagree wildly on vocabulary.
func SeverityFromString(s string) Severity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical":
		return SeverityCritical
	case "high", "important":
		return SeverityHigh
	case "medium", "moderate":
		return SeverityMedium
	case "low", "minor":
		return SeverityLow
	case "none", "info", "informational", "negligible":
		return SeverityNone
	default:
		return SeverityUnknown
	}
}

// SeverityFromCVSS buckets a numeric CVSS v3 base score. A nil score yields
// unknown.
func SeverityFromCVSS(score *float64) Severity {
	if score == nil {
		return SeverityUnknown
	}
	switch {
	case *score >= 9:
		return SeverityCritical
	case *score >= 7:
		return SeverityHigh
	case *score >= 4:
		return SeverityMedium
	case *score >= 0.1:
		return SeverityLow
	default:
		return SeverityNone
	}
}

// Status represents the lifecycle status of an observation.
type Status string

const (
	StatusOpen          Status = "open"
	StatusResolved      Status = "resolved"
	StatusDuplicate     Status = "duplicate"
	StatusFalsePositive Status = "false_positive"
	StatusInReview      Status = "in_review"
	StatusNotAffected   Status = "not_affected"
	StatusNotSecurity   Status = "not_security"
	StatusRiskAccepted  Status = "risk_accepted"
)

// IsValid checks if the status is valid.
func (s Status) IsValid() bool {
	switch s {
	case StatusOpen, StatusResolved, StatusDuplicate, StatusFalsePositive,
		StatusInReview, StatusNotAffected, StatusNotSecurity, StatusRiskAccepted:
		return true
	default:
		return false
	}
}

// StatusFromString normalizes a scanner-provided status string. Empty and
// unmapped values yield the empty status, which the resolver treats as unset.
func StatusFromString(s string) Status {
	normalized := Status(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_"))
	if normalized.IsValid() {
		return normalized
	}
	return ""
}

// Justification is a VEX exploitability justification, following the CSAF
// vocabulary. Empty means no justification.
type Justification string

const (
	JustificationComponentNotPresent              Justification = "component_not_present"
	JustificationVulnerableCodeNotPresent         Justification = "vulnerable_code_not_present"
	JustificationVulnerableCodeNotInExecutePath   Justification = "vulnerable_code_not_in_execute_path"
	JustificationVulnerableCodeCannotBeControlled Justification = "vulnerable_code_cannot_be_controlled_by_adversary"
	JustificationInlineMitigationsAlreadyExist    Justification = "inline_mitigations_already_exist"
)

// Origin carries the immutable per-import origin of an observation. All
// string fields are collapsed to the empty string when absent so that the
// identity hash is insensitive to "present but empty" versus "absent".
type Origin struct {
	ComponentName         string
	ComponentVersion      string
	ComponentPURL         string
	ComponentCPE          string
	ComponentDependencies string

	DockerImageName string
	DockerImageTag  string

	EndpointURL string
	ServiceName string

	SourceFile      string
	SourceLineStart *int
	SourceLineEnd   *int

	CloudResource      string
	KubernetesResource string
}

// Normalized returns a copy with all string fields whitespace-trimmed.
func (o Origin) Normalized() Origin {
	o.ComponentName = strings.TrimSpace(o.ComponentName)
	o.ComponentVersion = strings.TrimSpace(o.ComponentVersion)
	o.ComponentPURL = strings.TrimSpace(o.ComponentPURL)
	o.ComponentCPE = strings.TrimSpace(o.ComponentCPE)
	o.ComponentDependencies = strings.TrimSpace(o.ComponentDependencies)
	o.DockerImageName = strings.TrimSpace(o.DockerImageName)
	o.DockerImageTag = strings.TrimSpace(o.DockerImageTag)
	o.EndpointURL = strings.TrimSpace(o.EndpointURL)
	o.ServiceName = strings.TrimSpace(o.ServiceName)
	o.SourceFile = strings.TrimSpace(o.SourceFile)
	o.CloudResource = strings.TrimSpace(o.CloudResource)
	o.KubernetesResource = strings.TrimSpace(o.KubernetesResource)
	return o
}

// Reference is an external link attached to an observation. Reference lists
// are replaced wholesale on every import.
type Reference struct {
	URL string
}

// Evidence is a named blob of scanner output attached to an observation.
type Evidence struct {
	Name    string
	Content string
}

// ScanContext identifies which observations are diffed together during an
// import: one product, one branch, one scanner key. The scanner key is the
// upload filename for file imports or the API configuration name for pulls.
type ScanContext struct {
	ProductID            shared.ID
	BranchID             *shared.ID
	UploadFilename       string
	APIConfigurationName string
}

// ScannerKey returns the scanner-key part of the context.
func (c ScanContext) ScannerKey() string {
	if c.APIConfigurationName != "" {
		return c.APIConfigurationName
	}
	return c.UploadFilename
}

// StateSnapshot captures the derived state of an observation at one point,
// used to detect whether an engine pass actually changed anything.
type StateSnapshot struct {
	Severity             Severity
	Status               Status
	Justification        Justification
	RiskAcceptanceExpiry *time.Time
}

// Equals compares two snapshots field by field.
func (s StateSnapshot) Equals(other StateSnapshot) bool {
	if s.Severity != other.Severity || s.Status != other.Status || s.Justification != other.Justification {
		return false
	}
	if (s.RiskAcceptanceExpiry == nil) != (other.RiskAcceptanceExpiry == nil) {
		return false
	}
	if s.RiskAcceptanceExpiry != nil && !s.RiskAcceptanceExpiry.Equal(*other.RiskAcceptanceExpiry) {
		return false
	}
	return true
}
