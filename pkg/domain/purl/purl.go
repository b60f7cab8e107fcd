// Package purl implements Package-URL parsing and the template matching used
// to reconcile external exploitability statements against observations.
package purl

import (
	"fmt"
	"sort"
	"strings"

	"github.com/openctemio/observe/pkg/domain/shared"
)

// PURL is a parsed Package-URL of the form
// pkg:type/namespace/name@version?qualifiers#subpath.
type PURL struct {
	Type       string
	Namespace  string
	Name       string
	Version    string
	Qualifiers map[string]string
	Subpath    string
}

// Parse parses a Package-URL string. Only structural validation is applied;
// type-specific rules (e.g. npm name casing) are the producer's concern.
func Parse(s string) (PURL, error) {
	s = strings.TrimSpace(s)
	rest, ok := strings.CutPrefix(s, "pkg:")
	if !ok {
		return PURL{}, fmt.Errorf("%w: missing pkg scheme in %q", shared.ErrInvalidInput, s)
	}
	rest = strings.TrimLeft(rest, "/")

	var p PURL

	if idx := strings.Index(rest, "#"); idx >= 0 {
		p.Subpath = strings.Trim(rest[idx+1:], "/")
		rest = rest[:idx]
	}

	if idx := strings.Index(rest, "?"); idx >= 0 {
		p.Qualifiers = parseQualifiers(rest[idx+1:])
		rest = rest[:idx]
	}

	if idx := strings.LastIndex(rest, "@"); idx >= 0 {
		p.Version = rest[idx+1:]
		rest = rest[:idx]
	}

	segments := strings.Split(rest, "/")
	if len(segments) < 2 || segments[0] == "" || segments[len(segments)-1] == "" {
		return PURL{}, fmt.Errorf("%w: purl %q needs a type and a name", shared.ErrInvalidInput, s)
	}
	p.Type = strings.ToLower(segments[0])
	p.Name = segments[len(segments)-1]
	if len(segments) > 2 {
		p.Namespace = strings.Join(segments[1:len(segments)-1], "/")
	}

	return p, nil
}

func parseQualifiers(s string) map[string]string {
	qualifiers := make(map[string]string)
	for _, pair := range strings.Split(s, "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		key = strings.ToLower(key)
		if key == "" {
			continue
		}
		qualifiers[key] = value
	}
	return qualifiers
}

// BaseString returns the purl reduced to pkg:type/namespace/name, with
// version, qualifiers and subpath stripped. This is the prefix used to
// preload VEX statements for a product.
func (p PURL) BaseString() string {
	var b strings.Builder
	b.WriteString("pkg:")
	b.WriteString(p.Type)
	if p.Namespace != "" {
		b.WriteString("/")
		b.WriteString(p.Namespace)
	}
	b.WriteString("/")
	b.WriteString(p.Name)
	return b.String()
}

// String reassembles the full purl.
func (p PURL) String() string {
	var b strings.Builder
	b.WriteString(p.BaseString())
	if p.Version != "" {
		b.WriteString("@")
		b.WriteString(p.Version)
	}
	if len(p.Qualifiers) > 0 {
		b.WriteString("?")
		first := true
		for _, key := range sortedKeys(p.Qualifiers) {
			if !first {
				b.WriteString("&")
			}
			first = false
			b.WriteString(key)
			b.WriteString("=")
			b.WriteString(p.Qualifiers[key])
		}
	}
	if p.Subpath != "" {
		b.WriteString("#")
		b.WriteString(p.Subpath)
	}
	return b.String()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Matches reports whether the instance purl satisfies the template purl.
//
// The template is the statement side, the instance the observation side, and
// the comparison is deliberately asymmetric and lenient: type, namespace and
// name must be exactly equal; version and subpath are compared only when both
// sides carry a value; a qualifier key blocks the match only when it is
// present on both sides with conflicting non-empty values. Keys present on
// one side only are ignored, so an instance qualifier never blocks a match.
func (p PURL) Matches(instance PURL) bool {
	if p.Type != instance.Type || p.Namespace != instance.Namespace || p.Name != instance.Name {
		return false
	}
	if p.Version != "" && instance.Version != "" && p.Version != instance.Version {
		return false
	}
	if p.Subpath != "" && instance.Subpath != "" && p.Subpath != instance.Subpath {
		return false
	}
	for key, templateValue := range p.Qualifiers {
		if templateValue == "" {
			continue
		}
		instanceValue, present := instance.Qualifiers[key]
		if present && instanceValue != "" && instanceValue != templateValue {
			return false
		}
	}
	return true
}

// MatchesString parses both purls and applies Matches. An unparseable purl on
// either side is treated as no match, never as an error: malformed statements
// fail only themselves.
func MatchesString(template, instance string) bool {
	t, err := Parse(template)
	if err != nil {
		return false
	}
	i, err := Parse(instance)
	if err != nil {
		return false
	}
	return t.Matches(i)
}
