package versions

import (
	"strings"
)

// CompareRPM compares two RPM version labels of the form
// "[epoch:]version[-release]". Epoch defaults to 0, release to empty. The
// segment order must match rpmvercmp exactly, since it governs real package
// ordering: tilde sorts before everything including end of string, caret
// sorts after end of string but before any other character, numeric segments
// outrank alphabetic ones, numeric segments compare by magnitude and
// alphabetic ones lexically, and a longer remaining tail wins.
func CompareRPM(a, b string) int {
	ea, va, ra := splitRPMLabel(a)
	eb, vb, rb := splitRPMLabel(b)

	if ea != eb {
		if ea < eb {
			return -1
		}
		return 1
	}
	if rc := rpmvercmp(va, vb); rc != 0 {
		return rc
	}
	return rpmvercmp(ra, rb)
}

// splitRPMLabel splits "[epoch:]version[-release]" into its parts.
func splitRPMLabel(label string) (epoch int, version, release string) {
	label = strings.TrimSpace(label)

	if idx := strings.Index(label, ":"); idx >= 0 {
		for _, c := range label[:idx] {
			if c < '0' || c > '9' {
				// Malformed epoch, treat the whole prefix as version text.
				return 0, label, ""
			}
		}
		epoch = atoiSaturated(label[:idx])
		label = label[idx+1:]
	}

	if idx := strings.LastIndex(label, "-"); idx >= 0 {
		return epoch, label[:idx], label[idx+1:]
	}
	return epoch, label, ""
}

func atoiSaturated(s string) int {
	n := 0
	for _, c := range s {
		n = n*10 + int(c-'0')
		if n < 0 {
			return int(^uint(0) >> 1)
		}
	}
	return n
}

func isRPMAlnum(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// rpmvercmp compares a single version or release component segment-wise.
func rpmvercmp(a, b string) int {
	if a == b {
		return 0
	}

	i, j := 0, 0
	for i < len(a) || j < len(b) {
		for i < len(a) && !isRPMAlnum(a[i]) && a[i] != '~' && a[i] != '^' {
			i++
		}
		for j < len(b) && !isRPMAlnum(b[j]) && b[j] != '~' && b[j] != '^' {
			j++
		}

		// Tilde sorts before everything, end of string included.
		aTilde := i < len(a) && a[i] == '~'
		bTilde := j < len(b) && b[j] == '~'
		if aTilde || bTilde {
			if !aTilde {
				return 1
			}
			if !bTilde {
				return -1
			}
			i++
			j++
			continue
		}

		// Caret works like tilde, except that an exhausted string (the base
		// version) sorts below the caret side.
		aCaret := i < len(a) && a[i] == '^'
		bCaret := j < len(b) && b[j] == '^'
		if aCaret || bCaret {
			if i >= len(a) {
				return -1
			}
			if j >= len(b) {
				return 1
			}
			if !aCaret {
				return 1
			}
			if !bCaret {
				return -1
			}
			i++
			j++
			continue
		}

		if i >= len(a) || j >= len(b) {
			break
		}

		// Grab the next maximal run of the same character class from a.
		segStart := i
		numeric := isDigit(a[i])
		if numeric {
			for i < len(a) && isDigit(a[i]) {
				i++
			}
		} else {
			for i < len(a) && isAlpha(a[i]) {
				i++
			}
		}
		segA := a[segStart:i]

		segStart = j
		if numeric {
			for j < len(b) && isDigit(b[j]) {
				j++
			}
		} else {
			for j < len(b) && isAlpha(b[j]) {
				j++
			}
		}
		segB := b[segStart:j]

		// Different run types: the numeric side is newer.
		if segB == "" {
			if numeric {
				return 1
			}
			return -1
		}

		if numeric {
			segA = strings.TrimLeft(segA, "0")
			segB = strings.TrimLeft(segB, "0")
			if len(segA) != len(segB) {
				if len(segA) < len(segB) {
					return -1
				}
				return 1
			}
		}
		if rc := strings.Compare(segA, segB); rc != 0 {
			return rc
		}
	}

	// Equal so far: the side with content remaining is newer.
	if i >= len(a) && j >= len(b) {
		return 0
	}
	if i >= len(a) {
		return -1
	}
	return 1
}
