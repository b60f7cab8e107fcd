package observation

import (
	"testing"

	"github.com/openctemio/observe/pkg/domain/shared"
)

func TestNewObservation(t *testing.T) {
	productID := shared.NewID()

	tests := []struct {
		name    string
		product shared.ID
		scanner string
		title   string
		wantErr bool
	}{
		{name: "valid", product: productID, scanner: "trivy", title: "CVE-2023-0001"},
		{name: "zero product", product: shared.ID{}, scanner: "trivy", title: "CVE-2023-0001", wantErr: true},
		{name: "empty title", product: productID, scanner: "trivy", title: "  ", wantErr: true},
		{name: "empty scanner", product: productID, scanner: "", title: "CVE-2023-0001", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, err := NewObservation(tt.product, tt.scanner, tt.title)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewObservation() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if o.CurrentStatus() != StatusOpen {
				t.Errorf("CurrentStatus() = %v, want open", o.CurrentStatus())
			}
			if o.CurrentSeverity() != SeverityUnknown {
				t.Errorf("CurrentSeverity() = %v, want unknown", o.CurrentSeverity())
			}
		})
	}
}

func TestApplyRulePartialFields(t *testing.T) {
	o, err := NewObservation(shared.NewID(), "trivy", "finding")
	if err != nil {
		t.Fatal(err)
	}
	ruleID := shared.NewID()

	// A rule that only rewrites status must leave the severity layer alone.
	o.ApplyRule(ruleID, false, "", StatusFalsePositive, "")

	if o.RuleSeverity() != "" {
		t.Errorf("RuleSeverity() = %v, want unset", o.RuleSeverity())
	}
	if o.RuleStatus() != StatusFalsePositive {
		t.Errorf("RuleStatus() = %v, want false_positive", o.RuleStatus())
	}
	if o.ProductRuleID() == nil || !o.ProductRuleID().Equals(ruleID) {
		t.Error("ProductRuleID not set")
	}
	if o.GeneralRuleID() != nil {
		t.Error("GeneralRuleID must be nil for a product rule")
	}
}

func TestApplyRuleGeneralClearsProductRef(t *testing.T) {
	o, err := NewObservation(shared.NewID(), "trivy", "finding")
	if err != nil {
		t.Fatal(err)
	}
	o.ApplyRule(shared.NewID(), false, SeverityLow, "", "")
	generalID := shared.NewID()
	o.ApplyRule(generalID, true, SeverityMedium, "", "")

	if o.ProductRuleID() != nil {
		t.Error("ProductRuleID must be cleared when a general rule matches")
	}
	if o.GeneralRuleID() == nil || !o.GeneralRuleID().Equals(generalID) {
		t.Error("GeneralRuleID not set")
	}
}

func TestClearRuleAndVEX(t *testing.T) {
	o, err := NewObservation(shared.NewID(), "trivy", "finding")
	if err != nil {
		t.Fatal(err)
	}
	o.SetParserLayer(SeverityHigh, StatusOpen)
	o.ApplyRule(shared.NewID(), false, SeverityLow, StatusNotAffected, JustificationComponentNotPresent)
	o.ApplyVEX(shared.NewID(), "CSAF-2024-001", StatusNotAffected, JustificationComponentNotPresent)
	o.Resolve()

	o.ClearRule()
	o.ClearVEX()
	o.Resolve()

	if o.CurrentSeverity() != SeverityHigh {
		t.Errorf("CurrentSeverity() = %v, want parser severity after clearing", o.CurrentSeverity())
	}
	if o.CurrentStatus() != StatusOpen {
		t.Errorf("CurrentStatus() = %v, want open after clearing", o.CurrentStatus())
	}
	if o.CurrentJustification() != "" {
		t.Errorf("CurrentJustification() = %v, want empty after clearing", o.CurrentJustification())
	}
	if o.VEXStatementID() != nil || o.VEXDocumentID() != "" {
		t.Error("vex reference must be cleared")
	}
}

func TestSnapshotEquals(t *testing.T) {
	o, err := NewObservation(shared.NewID(), "trivy", "finding")
	if err != nil {
		t.Fatal(err)
	}
	o.SetParserLayer(SeverityHigh, StatusOpen)
	o.Resolve()

	before := o.Snapshot()
	o.ApplyRule(shared.NewID(), false, SeverityCritical, "", "")
	o.Resolve()
	after := o.Snapshot()

	if before.Equals(after) {
		t.Error("snapshots must differ after a severity change")
	}
	if !after.Equals(o.Snapshot()) {
		t.Error("snapshot must be stable without changes")
	}
}
