package observation

import (
	"testing"

	"github.com/openctemio/observe/pkg/domain/shared"
)

func intPtr(v int) *int { return &v }

func newTestObservation(t *testing.T, title string, origin Origin) *Observation {
	t.Helper()
	o, err := NewObservation(shared.NewID(), "trivy", title)
	if err != nil {
		t.Fatalf("NewObservation() unexpected error: %v", err)
	}
	o.SetOrigin(origin)
	return o
}

func TestIdentityHashDeterministic(t *testing.T) {
	origin := Origin{
		ComponentName:    "openssl",
		ComponentVersion: "1.1.1k",
		SourceFile:       "go.sum",
		SourceLineStart:  intPtr(10),
		SourceLineEnd:    intPtr(12),
	}

	a := newTestObservation(t, "CVE-2023-0001 in openssl", origin)
	b := newTestObservation(t, "CVE-2023-0001 in openssl", origin)

	if IdentityHash(a) != IdentityHash(b) {
		t.Error("identical observations must hash identically")
	}
}

func TestIdentityHashCaseAndWhitespaceInsensitive(t *testing.T) {
	a := newTestObservation(t, "CVE-2023-0001", Origin{ComponentName: "OpenSSL", ComponentVersion: "1.1.1k"})
	b := newTestObservation(t, "  cve-2023-0001  ", Origin{ComponentName: " openssl ", ComponentVersion: "1.1.1k"})

	if IdentityHash(a) != IdentityHash(b) {
		t.Error("case folding and trimming must not affect the hash")
	}
}

func TestIdentityHashEmptyVersusAbsent(t *testing.T) {
	a := newTestObservation(t, "finding", Origin{ComponentName: "acme", ComponentVersion: ""})
	b := newTestObservation(t, "finding", Origin{ComponentName: "acme"})

	if IdentityHash(a) != IdentityHash(b) {
		t.Error("present-but-empty fields must hash like absent fields")
	}
}

func TestIdentityHashFieldSensitivity(t *testing.T) {
	base := Origin{
		ComponentName:    "openssl",
		ComponentVersion: "1.1.1k",
		DockerImageName:  "registry/app",
		DockerImageTag:   "v1",
		EndpointURL:      "https://acme.example",
		ServiceName:      "billing",
		SourceFile:       "Dockerfile",
		SourceLineStart:  intPtr(3),
		SourceLineEnd:    intPtr(3),
	}
	reference := IdentityHash(newTestObservation(t, "finding", base))

	variants := map[string]Origin{}

	v := base
	v.ComponentVersion = "1.1.1l"
	variants["component version"] = v

	v = base
	v.DockerImageTag = "v2"
	variants["docker tag"] = v

	v = base
	v.EndpointURL = "https://other.example"
	variants["endpoint"] = v

	v = base
	v.ServiceName = "checkout"
	variants["service"] = v

	v = base
	v.SourceLineStart = intPtr(4)
	variants["line start"] = v

	for name, origin := range variants {
		if IdentityHash(newTestObservation(t, "finding", origin)) == reference {
			t.Errorf("changing %s must change the hash", name)
		}
	}

	if IdentityHash(newTestObservation(t, "other finding", base)) == reference {
		t.Error("changing the title must change the hash")
	}
}

func TestIdentityHashIgnoresNonIdentityFields(t *testing.T) {
	origin := Origin{ComponentName: "acme", ComponentVersion: "1.0.0"}

	a := newTestObservation(t, "finding", origin)
	b := newTestObservation(t, "finding", origin)
	b.SetDescription("a much longer description")
	b.SetVulnerability("CVE-2023-0001", nil, "", "CWE-79")
	b.SetParserLayer(SeverityCritical, StatusOpen)

	if IdentityHash(a) != IdentityHash(b) {
		t.Error("non-identity fields must not affect the hash")
	}
}
