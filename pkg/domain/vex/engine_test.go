package vex

import (
	"strings"
	"testing"

	"github.com/openctemio/observe/pkg/domain/observation"
	"github.com/openctemio/observe/pkg/domain/shared"
)

func newTestDocument(t *testing.T, documentID string) *Document {
	t.Helper()
	d, err := NewDocument(documentID)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func newTestStatement(t *testing.T, doc *Document, vulnerabilityID, productPURL string, status StatementStatus) *Statement {
	t.Helper()
	s, err := NewStatement(doc, vulnerabilityID, productPURL, status)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func newTestObservation(t *testing.T, vulnerabilityID string) *observation.Observation {
	t.Helper()
	o, err := observation.NewObservation(shared.NewID(), "trivy", "finding")
	if err != nil {
		t.Fatal(err)
	}
	o.SetVulnerability(vulnerabilityID, nil, "", "")
	o.SetParserLayer(observation.SeverityHigh, observation.StatusOpen)
	o.Resolve()
	return o
}

func TestEngineMatchesStatement(t *testing.T) {
	doc := newTestDocument(t, "CSAF-2024-001")
	stmt := newTestStatement(t, doc, "CVE-1", "pkg:npm/acme", StatementStatusNotAffected)
	stmt.SetDetails(observation.JustificationComponentNotPresent, "", "")

	engine := NewEngine("pkg:npm/acme@1.0.0", []*Statement{stmt})
	o := newTestObservation(t, "CVE-1")

	result := engine.Apply(o)

	if !result.Changed {
		t.Fatal("expected a change")
	}
	if o.CurrentStatus() != observation.StatusNotAffected {
		t.Errorf("CurrentStatus() = %v, want not_affected", o.CurrentStatus())
	}
	if o.CurrentJustification() != observation.JustificationComponentNotPresent {
		t.Errorf("CurrentJustification() = %v, want component_not_present", o.CurrentJustification())
	}
	if !strings.Contains(result.Comment, "CSAF-2024-001") {
		t.Errorf("Comment = %q, want document id included", result.Comment)
	}
	if o.VEXDocumentID() != "CSAF-2024-001" {
		t.Errorf("VEXDocumentID() = %q, want CSAF-2024-001", o.VEXDocumentID())
	}
}

func TestEngineStatusMapping(t *testing.T) {
	tests := []struct {
		status StatementStatus
		want   observation.Status
	}{
		{StatementStatusNotAffected, observation.StatusNotAffected},
		{StatementStatusFixed, observation.StatusResolved},
		{StatementStatusUnderInvestigation, observation.StatusInReview},
		{StatementStatusAffected, observation.StatusOpen},
		{StatementStatusFalsePositive, observation.StatusOpen},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.ToObservationStatus(); got != tt.want {
				t.Errorf("ToObservationStatus() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEngineNoMatchCases(t *testing.T) {
	doc := newTestDocument(t, "CSAF-2024-001")

	tests := []struct {
		name            string
		stmt            *Statement
		vulnerabilityID string
		componentPURL   string
		effectivePURL   string
	}{
		{
			name:            "different vulnerability",
			stmt:            newTestStatement(t, doc, "CVE-1", "pkg:npm/acme", StatementStatusNotAffected),
			vulnerabilityID: "CVE-2",
			effectivePURL:   "pkg:npm/acme@1.0.0",
		},
		{
			name:            "different package name",
			stmt:            newTestStatement(t, doc, "CVE-1", "pkg:npm/other", StatementStatusNotAffected),
			vulnerabilityID: "CVE-1",
			effectivePURL:   "pkg:npm/acme@1.0.0",
		},
		{
			name:            "unparseable statement purl",
			stmt:            newTestStatement(t, doc, "CVE-1", "not-a-purl", StatementStatusNotAffected),
			vulnerabilityID: "CVE-1",
			effectivePURL:   "pkg:npm/acme@1.0.0",
		},
		{
			name: "component purl set but observation lacks one",
			stmt: func() *Statement {
				s := newTestStatement(t, doc, "CVE-1", "pkg:npm/acme", StatementStatusNotAffected)
				s.SetComponentPURL("pkg:npm/left-pad")
				return s
			}(),
			vulnerabilityID: "CVE-1",
			effectivePURL:   "pkg:npm/acme@1.0.0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := NewEngine(tt.effectivePURL, []*Statement{tt.stmt})
			o := newTestObservation(t, tt.vulnerabilityID)
			if tt.componentPURL != "" {
				o.SetOrigin(observation.Origin{ComponentPURL: tt.componentPURL})
			}

			engine.Apply(o)

			if o.VEXStatementID() != nil {
				t.Error("statement must not match")
			}
			if o.CurrentStatus() != observation.StatusOpen {
				t.Errorf("CurrentStatus() = %v, want open", o.CurrentStatus())
			}
		})
	}
}

func TestEngineComponentPURLMatch(t *testing.T) {
	doc := newTestDocument(t, "CSAF-2024-001")
	stmt := newTestStatement(t, doc, "CVE-1", "pkg:npm/acme", StatementStatusNotAffected)
	stmt.SetComponentPURL("pkg:npm/left-pad")

	engine := NewEngine("pkg:npm/acme@1.0.0", []*Statement{stmt})
	o := newTestObservation(t, "CVE-1")
	o.SetOrigin(observation.Origin{ComponentPURL: "pkg:npm/left-pad@1.3.0?arch=amd64"})

	engine.Apply(o)

	if o.CurrentStatus() != observation.StatusNotAffected {
		t.Errorf("CurrentStatus() = %v, want not_affected", o.CurrentStatus())
	}
}

func TestEngineRemovesStaleStatement(t *testing.T) {
	engine := NewEngine("pkg:npm/acme@1.0.0", nil)

	o := newTestObservation(t, "CVE-1")
	o.ApplyVEX(shared.NewID(), "CSAF-2024-001", observation.StatusNotAffected, observation.JustificationComponentNotPresent)
	o.Resolve()

	result := engine.Apply(o)

	if !result.Changed {
		t.Fatal("removing a stale statement must report a change")
	}
	if want := "Removed VEX statement from CSAF-2024-001"; result.Comment != want {
		t.Errorf("Comment = %q, want %q", result.Comment, want)
	}
	if o.VEXStatementID() != nil {
		t.Error("statement reference must be cleared")
	}
	if o.CurrentStatus() != observation.StatusOpen {
		t.Errorf("CurrentStatus() = %v, want open", o.CurrentStatus())
	}
}

func TestEngineOpenToOpenChurnGuard(t *testing.T) {
	doc := newTestDocument(t, "CSAF-2024-001")
	stmt := newTestStatement(t, doc, "CVE-1", "pkg:npm/acme", StatementStatusAffected)

	engine := NewEngine("pkg:npm/acme@1.0.0", []*Statement{stmt})
	o := newTestObservation(t, "CVE-1")

	result := engine.Apply(o)

	if result.Changed {
		t.Error("a statement reasserting an open observation as affected must not report a change")
	}
	if !result.Updated {
		t.Error("storing the statement reference must still demand persistence")
	}
	if o.VEXStatementID() == nil {
		t.Error("the statement reference must still be stored")
	}
}

func TestEngineJustificationEscapesChurnGuard(t *testing.T) {
	doc := newTestDocument(t, "CSAF-2024-001")
	stmt := newTestStatement(t, doc, "CVE-1", "pkg:npm/acme", StatementStatusAffected)
	stmt.SetDetails(observation.JustificationInlineMitigationsAlreadyExist, "", "")

	engine := NewEngine("pkg:npm/acme@1.0.0", []*Statement{stmt})
	o := newTestObservation(t, "CVE-1")

	result := engine.Apply(o)

	// The observation stays open, but the justification moved, which is a
	// real outcome change.
	if !result.Changed {
		t.Error("a justification change must report a change even open to open")
	}
	if !result.Updated {
		t.Error("the vex layer mutation must demand persistence")
	}
	if o.CurrentJustification() != observation.JustificationInlineMitigationsAlreadyExist {
		t.Errorf("CurrentJustification() = %v, want inline_mitigations_already_exist", o.CurrentJustification())
	}
	if o.VEXStatementID() == nil {
		t.Error("the statement reference must be stored")
	}
}

func TestSearchPrefix(t *testing.T) {
	tests := []struct {
		name    string
		purl    string
		want    string
		wantErr bool
	}{
		{name: "strips version and qualifiers", purl: "pkg:npm/%40acme/ui@1.0.0?arch=amd64", want: "pkg:npm/%40acme/ui"},
		{name: "bare purl unchanged", purl: "pkg:golang/github.com/acme/api", want: "pkg:golang/github.com/acme/api"},
		{name: "unparseable", purl: "acme", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SearchPrefix(tt.purl)
			if (err != nil) != tt.wantErr {
				t.Fatalf("SearchPrefix() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("SearchPrefix() = %q, want %q", got, tt.want)
			}
		})
	}
}
