package versions

import "testing"

func TestCompareRPM(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		// Plain version ordering
		{"1.0", "1.0", 0},
		{"1.0", "2.0", -1},
		{"2.0", "1.0", 1},
		{"2.0.1", "2.0", 1},
		{"2.0.1", "2.0.1", 0},

		// Numeric runs compare by magnitude, leading zeros stripped
		{"10", "9", 1},
		{"010", "10", 0},
		{"1.05", "1.5", 0},
		{"4.999.9", "5.0", -1},

		// Numeric runs outrank alphabetic runs
		{"0.4a", "0.4", 1},
		{"5.5p1", "5.5p2", -1},
		{"5.5p10", "5.5p2", 1},
		{"xyz", "2", -1},

		// Separators only delimit segments
		{"1.0.0", "1_0_0", 0},
		{"2.0", "2..0", 0},

		// Tilde sorts before everything, absence included
		{"1.0~rc1", "1.0", -1},
		{"1.0", "1.0~rc1", 1},
		{"1.0~rc1", "1.0~rc2", -1},
		{"1.0~rc1~git123", "1.0~rc1", -1},

		// Caret sorts after absence but before any real character
		{"1.0^", "1.0", 1},
		{"1.0^git1", "1.0", 1},
		{"1.0^git1", "1.0.1", -1},
		{"1.0^git1~pre", "1.0^git1", -1},

		// Epoch dominates
		{"1:1.0", "2.0", 1},
		{"0:1.0", "1.0", 0},
		{"2:1.0-1", "1:9.9-9", 1},

		// Release is the final tie-break
		{"1.0-1", "1.0-2", -1},
		{"1.0-1.el9", "1.0-1.el8", 1},

		// Real package labels
		{"1:21.0.6.0.7-1.el9", "1:21.0.1.0.12-2.el9", 1},
		{"3.10.0-1160.92.1.el7", "3.10.0-1160.90.1.el7", 1},
	}

	for _, tt := range tests {
		if got := CompareRPM(tt.a, tt.b); got != tt.want {
			t.Errorf("CompareRPM(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
		// Total order: swapping operands must invert the result.
		if got := CompareRPM(tt.b, tt.a); got != -tt.want {
			t.Errorf("CompareRPM(%q, %q) = %d, want %d", tt.b, tt.a, got, -tt.want)
		}
	}
}

func TestSplitRPMLabel(t *testing.T) {
	tests := []struct {
		label       string
		wantEpoch   int
		wantVersion string
		wantRelease string
	}{
		{"1.0", 0, "1.0", ""},
		{"1.0-1", 0, "1.0", "1"},
		{"2:1.0-1.el9", 2, "1.0", "1.el9"},
		{"1:21.0.6.0.7-1.el9", 1, "21.0.6.0.7", "1.el9"},
		{"1.0-1-2", 0, "1.0-1", "2"},
		{"bad:1.0", 0, "bad:1.0", ""},
	}

	for _, tt := range tests {
		epoch, version, release := splitRPMLabel(tt.label)
		if epoch != tt.wantEpoch || version != tt.wantVersion || release != tt.wantRelease {
			t.Errorf("splitRPMLabel(%q) = (%d, %q, %q), want (%d, %q, %q)",
				tt.label, epoch, version, release, tt.wantEpoch, tt.wantVersion, tt.wantRelease)
		}
	}
}
