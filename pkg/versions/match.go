package versions

import "strings"

// Range type vocabulary understood by the matcher. Other types (e.g. GIT)
// cannot be evaluated against plain version strings and are skipped.
const (
	RangeTypeEcosystem = "ECOSYSTEM"
	RangeTypeSemVer    = "SEMVER"
)

// Confidence annotates how reliable a match verdict is.
type Confidence string

const (
	ConfidenceHigh Confidence = "High"
	ConfidenceLow  Confidence = "Low"
)

// RangeEvent is one introduced/fixed event inside a version range.
type RangeEvent struct {
	Introduced string `json:"introduced,omitempty"`
	Fixed      string `json:"fixed,omitempty"`
}

// VersionRange describes one affected range of a vulnerability.
type VersionRange struct {
	Type   string       `json:"type,omitempty"`
	Events []RangeEvent `json:"events,omitempty"`
}

// AffectedVersions carries everything a feed says about which versions of a
// component are affected: explicit version lists and event-based ranges.
type AffectedVersions struct {
	Ranges   []VersionRange `json:"ranges,omitempty"`
	Versions []string       `json:"versions,omitempty"`
}

// MatchResult is the verdict for one component version.
type MatchResult struct {
	// Affected is nil when the verdict is unknown (unparseable version or no
	// evaluable range).
	Affected *bool
	// FixedVersion is the closing bound of the matching range, when affected.
	FixedVersion string
	Confidence   Confidence
}

func boolPtr(v bool) *bool { return &v }

// MatchAffected decides whether the given component version falls inside the
// affected description. Vulnerability feeds are routinely malformed, so parse
// failures degrade to an unknown verdict with low confidence instead of
// failing the caller.
func MatchAffected(componentVersion string, affected AffectedVersions) MatchResult {
	if len(affected.Ranges) == 0 && len(affected.Versions) == 0 {
		return MatchResult{Confidence: ConfidenceLow}
	}

	trimmed := strings.TrimSpace(componentVersion)
	for _, v := range affected.Versions {
		if strings.TrimSpace(v) == trimmed && trimmed != "" {
			return MatchResult{Affected: boolPtr(true), Confidence: ConfidenceHigh}
		}
	}

	if len(affected.Ranges) == 0 {
		// Exact list existed and did not contain the version.
		return MatchResult{Affected: boolPtr(false), Confidence: ConfidenceHigh}
	}

	version, err := ParseExtended(componentVersion)
	if err != nil {
		return MatchResult{Confidence: ConfidenceLow}
	}

	allEvaluable := true
	anyEvaluable := false

	for _, r := range affected.Ranges {
		if r.Type != RangeTypeEcosystem && r.Type != RangeTypeSemVer {
			allEvaluable = false
			continue
		}

		matched, fixed, evaluable := matchRange(version, r)
		if !evaluable {
			allEvaluable = false
		}
		anyEvaluable = anyEvaluable || evaluable
		if matched {
			return MatchResult{
				Affected:     boolPtr(true),
				FixedVersion: fixed,
				Confidence:   ConfidenceHigh,
			}
		}
	}

	if !anyEvaluable {
		return MatchResult{Confidence: ConfidenceLow}
	}

	confidence := ConfidenceHigh
	if !allEvaluable {
		confidence = ConfidenceLow
	}
	return MatchResult{Affected: boolPtr(false), Confidence: confidence}
}

// matchRange pairs consecutive introduced/fixed events and checks
// introduced <= version < fixed for each pair. An introduced bound defaults
// to 0.0.0; a fixed bound is required to close a pair. Returns evaluable
// false when no pair of the range could be parsed.
func matchRange(version ExtendedVersion, r VersionRange) (matched bool, fixed string, evaluable bool) {
	introduced := ""
	introducedSet := false

	for _, event := range r.Events {
		if event.Introduced != "" {
			introduced = event.Introduced
			introducedSet = true
		}
		if event.Fixed == "" {
			continue
		}

		lower := introduced
		if !introducedSet {
			lower = "0.0.0"
		}
		introducedSet = false

		lowerVersion, err := ParseExtended(lower)
		if err != nil {
			continue
		}
		upperVersion, err := ParseExtended(event.Fixed)
		if err != nil {
			continue
		}

		evaluable = true
		if lowerVersion.Compare(version) <= 0 && version.Compare(upperVersion) < 0 {
			return true, event.Fixed, true
		}
	}
	return false, "", evaluable
}
