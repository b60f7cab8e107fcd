package versions

import "testing"

func TestMatchAffectedRange(t *testing.T) {
	affected := AffectedVersions{
		Ranges: []VersionRange{
			{
				Type: RangeTypeSemVer,
				Events: []RangeEvent{
					{Introduced: "0.0.0"},
					{Fixed: "2.0.0"},
				},
			},
		},
	}

	t.Run("inside range", func(t *testing.T) {
		result := MatchAffected("1.5.0", affected)
		if result.Affected == nil || !*result.Affected {
			t.Fatal("1.5.0 should be affected")
		}
		if result.FixedVersion != "2.0.0" {
			t.Errorf("FixedVersion = %q, want %q", result.FixedVersion, "2.0.0")
		}
		if result.Confidence != ConfidenceHigh {
			t.Errorf("Confidence = %q, want High", result.Confidence)
		}
	})

	t.Run("fixed bound excluded", func(t *testing.T) {
		result := MatchAffected("2.0.0", affected)
		if result.Affected == nil || *result.Affected {
			t.Fatal("2.0.0 should not be affected")
		}
		if result.Confidence != ConfidenceHigh {
			t.Errorf("Confidence = %q, want High", result.Confidence)
		}
	})

	t.Run("introduced bound included", func(t *testing.T) {
		result := MatchAffected("0.0.0", affected)
		if result.Affected == nil || !*result.Affected {
			t.Fatal("0.0.0 should be affected")
		}
	})

	t.Run("unparseable version", func(t *testing.T) {
		result := MatchAffected("not-a-version", affected)
		if result.Affected != nil {
			t.Fatal("unparseable version should yield unknown verdict")
		}
		if result.Confidence != ConfidenceLow {
			t.Errorf("Confidence = %q, want Low", result.Confidence)
		}
	})
}

func TestMatchAffectedDefaults(t *testing.T) {
	// An event pair without an explicit introduced bound starts at 0.0.0.
	affected := AffectedVersions{
		Ranges: []VersionRange{
			{Type: RangeTypeEcosystem, Events: []RangeEvent{{Fixed: "1.4.0"}}},
		},
	}
	result := MatchAffected("1.0.0", affected)
	if result.Affected == nil || !*result.Affected {
		t.Fatal("1.0.0 should be affected by implicit introduced=0.0.0")
	}
}

func TestMatchAffectedMultiplePairs(t *testing.T) {
	affected := AffectedVersions{
		Ranges: []VersionRange{
			{
				Type: RangeTypeSemVer,
				Events: []RangeEvent{
					{Introduced: "1.0.0"},
					{Fixed: "1.2.0"},
					{Introduced: "2.0.0"},
					{Fixed: "2.3.0"},
				},
			},
		},
	}

	tests := []struct {
		version string
		want    bool
	}{
		{"1.1.0", true},
		{"1.3.0", false},
		{"2.2.9", true},
		{"2.3.0", false},
		{"0.9.0", false},
	}
	for _, tt := range tests {
		result := MatchAffected(tt.version, affected)
		if result.Affected == nil || *result.Affected != tt.want {
			t.Errorf("MatchAffected(%q).Affected = %v, want %v", tt.version, result.Affected, tt.want)
		}
	}
}

func TestMatchAffectedExactVersions(t *testing.T) {
	affected := AffectedVersions{Versions: []string{"1.0.0", "1.0.1"}}

	result := MatchAffected("1.0.1", affected)
	if result.Affected == nil || !*result.Affected {
		t.Fatal("exact version list should match by containment")
	}
	if result.Confidence != ConfidenceHigh {
		t.Errorf("Confidence = %q, want High", result.Confidence)
	}

	result = MatchAffected("1.0.2", affected)
	if result.Affected == nil || *result.Affected {
		t.Fatal("version outside exact list should not match")
	}
}

func TestMatchAffectedSkippedRangeTypes(t *testing.T) {
	t.Run("only unusable ranges", func(t *testing.T) {
		affected := AffectedVersions{
			Ranges: []VersionRange{
				{Type: "GIT", Events: []RangeEvent{{Introduced: "deadbeef"}}},
			},
		}
		result := MatchAffected("1.0.0", affected)
		if result.Affected != nil {
			t.Fatal("verdict should be unknown when no range is evaluable")
		}
		if result.Confidence != ConfidenceLow {
			t.Errorf("Confidence = %q, want Low", result.Confidence)
		}
	})

	t.Run("mixed ranges reduce confidence", func(t *testing.T) {
		affected := AffectedVersions{
			Ranges: []VersionRange{
				{Type: "GIT", Events: []RangeEvent{{Introduced: "deadbeef"}}},
				{Type: RangeTypeSemVer, Events: []RangeEvent{{Introduced: "5.0.0"}, {Fixed: "6.0.0"}}},
			},
		}
		result := MatchAffected("1.0.0", affected)
		if result.Affected == nil || *result.Affected {
			t.Fatal("1.0.0 should confidently not match the evaluable range")
		}
		if result.Confidence != ConfidenceLow {
			t.Errorf("Confidence = %q, want Low when a range was skipped", result.Confidence)
		}
	})
}

func TestMatchAffectedNoInformation(t *testing.T) {
	result := MatchAffected("1.0.0", AffectedVersions{})
	if result.Affected != nil {
		t.Fatal("no version information should yield unknown verdict")
	}
	if result.Confidence != ConfidenceLow {
		t.Errorf("Confidence = %q, want Low", result.Confidence)
	}
}
