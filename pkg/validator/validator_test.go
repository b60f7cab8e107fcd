package validator

import (
	"errors"
	"testing"
)

type testRequest struct {
	Name     string `validate:"required,min=1,max=10"`
	Severity string `validate:"omitempty,severity"`
	Status   string `validate:"omitempty,observation_status"`
	Vex      string `validate:"omitempty,vex_status"`
	Approval string `validate:"omitempty,approval_status"`
}

func TestValidate(t *testing.T) {
	v := New()

	tests := []struct {
		name      string
		input     testRequest
		wantField string
	}{
		{
			name:  "valid",
			input: testRequest{Name: "rule", Severity: "high", Status: "open", Vex: "not_affected", Approval: "approved"},
		},
		{
			name:      "missing name",
			input:     testRequest{Severity: "high"},
			wantField: "name",
		},
		{
			name:      "invalid severity",
			input:     testRequest{Name: "rule", Severity: "catastrophic"},
			wantField: "severity",
		},
		{
			name:      "invalid status",
			input:     testRequest{Name: "rule", Status: "closed"},
			wantField: "status",
		},
		{
			name:      "invalid vex status",
			input:     testRequest{Name: "rule", Vex: "mitigated"},
			wantField: "vex",
		},
		{
			name:      "invalid approval status",
			input:     testRequest{Name: "rule", Approval: "pending"},
			wantField: "approval",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.input)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			var verrs ValidationErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("Validate() error = %v, want ValidationErrors", err)
			}
			found := false
			for _, e := range verrs {
				if e.Field == tt.wantField {
					found = true
				}
			}
			if !found {
				t.Fatalf("Validate() errors = %v, want field %q", verrs, tt.wantField)
			}
		})
	}
}
