package observation

import (
	"testing"

	"github.com/openctemio/observe/pkg/domain/shared"
)

func floatPtr(v float64) *float64 { return &v }

func TestResolveSeverity(t *testing.T) {
	tests := []struct {
		name       string
		assessment Severity
		rule       Severity
		parser     Severity
		cvss       *float64
		want       Severity
	}{
		{name: "assessment wins", assessment: SeverityLow, rule: SeverityCritical, parser: SeverityHigh, want: SeverityLow},
		{name: "rule beats parser", rule: SeverityCritical, parser: SeverityHigh, want: SeverityCritical},
		{name: "parser beats cvss", parser: SeverityMedium, cvss: floatPtr(9.8), want: SeverityMedium},
		{name: "cvss critical bucket", cvss: floatPtr(9.0), want: SeverityCritical},
		{name: "cvss high bucket", cvss: floatPtr(7.5), want: SeverityHigh},
		{name: "cvss medium bucket", cvss: floatPtr(4.0), want: SeverityMedium},
		{name: "cvss low bucket", cvss: floatPtr(0.1), want: SeverityLow},
		{name: "cvss none bucket", cvss: floatPtr(0.0), want: SeverityNone},
		{name: "no information", want: SeverityUnknown},
		{name: "unknown parser falls through to cvss", parser: SeverityUnknown, cvss: floatPtr(8.0), want: SeverityHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, err := NewObservation(shared.NewID(), "scanner", "finding")
			if err != nil {
				t.Fatal(err)
			}
			o.SetParserLayer(tt.parser, "")
			if tt.rule != "" {
				o.ApplyRule(shared.NewID(), false, tt.rule, "", "")
			}
			if tt.assessment != "" {
				o.SetAssessment(tt.assessment, "")
			}
			o.SetVulnerability("", tt.cvss, "", "")

			if got := ResolveSeverity(o); got != tt.want {
				t.Errorf("ResolveSeverity() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResolveStatus(t *testing.T) {
	tests := []struct {
		name       string
		parser     Status
		assessment Status
		rule       Status
		vex        Status
		want       Status
	}{
		{name: "parser resolved wins unconditionally", parser: StatusResolved, assessment: StatusRiskAccepted, rule: StatusOpen, want: StatusResolved},
		{name: "assessment beats rule", parser: StatusOpen, assessment: StatusFalsePositive, rule: StatusRiskAccepted, want: StatusFalsePositive},
		{name: "rule beats vex", parser: StatusOpen, rule: StatusNotAffected, vex: StatusInReview, want: StatusNotAffected},
		{name: "vex beats parser", parser: StatusOpen, vex: StatusNotAffected, want: StatusNotAffected},
		{name: "parser status stands alone", parser: StatusInReview, want: StatusInReview},
		{name: "default open", want: StatusOpen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, err := NewObservation(shared.NewID(), "scanner", "finding")
			if err != nil {
				t.Fatal(err)
			}
			o.SetParserLayer(SeverityUnknown, tt.parser)
			if tt.assessment != "" {
				o.SetAssessment("", tt.assessment)
			}
			if tt.rule != "" {
				o.ApplyRule(shared.NewID(), false, "", tt.rule, "")
			}
			if tt.vex != "" {
				o.ApplyVEX(shared.NewID(), "doc", tt.vex, "")
			}

			if got := ResolveStatus(o); got != tt.want {
				t.Errorf("ResolveStatus() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResolveJustification(t *testing.T) {
	o, err := NewObservation(shared.NewID(), "scanner", "finding")
	if err != nil {
		t.Fatal(err)
	}

	if got := ResolveJustification(o); got != "" {
		t.Errorf("ResolveJustification() = %v, want empty", got)
	}

	o.ApplyVEX(shared.NewID(), "doc", StatusNotAffected, JustificationComponentNotPresent)
	if got := ResolveJustification(o); got != JustificationComponentNotPresent {
		t.Errorf("ResolveJustification() = %v, want vex justification", got)
	}

	o.ApplyRule(shared.NewID(), false, "", "", JustificationVulnerableCodeNotPresent)
	if got := ResolveJustification(o); got != JustificationVulnerableCodeNotPresent {
		t.Errorf("ResolveJustification() = %v, want rule justification over vex", got)
	}
}

func TestResolveIdempotent(t *testing.T) {
	o, err := NewObservation(shared.NewID(), "scanner", "finding")
	if err != nil {
		t.Fatal(err)
	}
	o.SetParserLayer(SeverityHigh, StatusOpen)
	o.ApplyVEX(shared.NewID(), "doc", StatusNotAffected, JustificationComponentNotPresent)

	o.Resolve()
	first := o.Snapshot()
	o.Resolve()
	second := o.Snapshot()

	if !first.Equals(second) {
		t.Errorf("Resolve() must be idempotent: %+v != %+v", first, second)
	}
	if o.CurrentStatus() != StatusNotAffected {
		t.Errorf("CurrentStatus() = %v, want %v", o.CurrentStatus(), StatusNotAffected)
	}
	if o.NumericalSeverity() != SeverityHigh.Numerical() {
		t.Errorf("NumericalSeverity() = %d, want %d", o.NumericalSeverity(), SeverityHigh.Numerical())
	}
}
