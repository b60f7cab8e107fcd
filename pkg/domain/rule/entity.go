// Package rule provides observation rules and the first-match-wins engine
// that applies them. A rule is an ordered predicate plus a rewrite of the
// rule layer fields.
package rule

import (
	"fmt"
	"strings"
	"time"

	"github.com/openctemio/observe/pkg/domain/observation"
	"github.com/openctemio/observe/pkg/domain/shared"
)

// ApprovalStatus represents the review state of a rule.
type ApprovalStatus string

const (
	ApprovalStatusApproved      ApprovalStatus = "approved"
	ApprovalStatusAutoApproved  ApprovalStatus = "auto_approved"
	ApprovalStatusNeedsApproval ApprovalStatus = "needs_approval"
	ApprovalStatusRejected      ApprovalStatus = "rejected"
)

// IsValid checks if the approval status is valid.
func (s ApprovalStatus) IsValid() bool {
	switch s {
	case ApprovalStatusApproved, ApprovalStatusAutoApproved,
		ApprovalStatusNeedsApproval, ApprovalStatusRejected:
		return true
	default:
		return false
	}
}

// Matchers holds the optional field predicates of a rule. Scanner name is an
// exact match, scanner prefix a plain prefix match; all others are regular
// expressions that are compiled case-insensitive and must match at the start
// of the observation field.
type Matchers struct {
	ScannerName   string
	ScannerPrefix string

	Title              string
	Description        string
	ComponentName      string
	DockerImageName    string
	EndpointURL        string
	ServiceName        string
	SourceFile         string
	CloudResource      string
	KubernetesResource string
}

// Rule rewrites the rule layer of every observation its predicate matches.
// Scope is product-specific, product-group-specific or general, encoded by
// which of the two scope ids is set.
type Rule struct {
	id   shared.ID
	name string

	productID      *shared.ID
	productGroupID *shared.ID

	enabled        bool
	approvalStatus ApprovalStatus

	matchers Matchers

	newSeverity      observation.Severity
	newStatus        observation.Status
	newJustification observation.Justification

	createdAt time.Time
	updatedAt time.Time
}

// NewRule creates a new general rule. Use SetProductID or SetProductGroupID
// to scope it.
func NewRule(name string) (*Rule, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: rule name is required", shared.ErrValidation)
	}

	now := time.Now().UTC()
	return &Rule{
		id:             shared.NewID(),
		name:           strings.TrimSpace(name),
		enabled:        true,
		approvalStatus: ApprovalStatusNeedsApproval,
		createdAt:      now,
		updatedAt:      now,
	}, nil
}

// Data contains all data needed to reconstitute a Rule from persistence.
type Data struct {
	ID             shared.ID
	Name           string
	ProductID      *shared.ID
	ProductGroupID *shared.ID
	Enabled        bool
	ApprovalStatus ApprovalStatus

	Matchers Matchers

	NewSeverity      observation.Severity
	NewStatus        observation.Status
	NewJustification observation.Justification

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Reconstitute recreates a Rule from persistence.
func Reconstitute(data Data) *Rule {
	return &Rule{
		id:               data.ID,
		name:             data.Name,
		productID:        data.ProductID,
		productGroupID:   data.ProductGroupID,
		enabled:          data.Enabled,
		approvalStatus:   data.ApprovalStatus,
		matchers:         data.Matchers,
		newSeverity:      data.NewSeverity,
		newStatus:        data.NewStatus,
		newJustification: data.NewJustification,
		createdAt:        data.CreatedAt,
		updatedAt:        data.UpdatedAt,
	}
}

// Getters

func (r *Rule) ID() shared.ID                                 { return r.id }
func (r *Rule) Name() string                                  { return r.name }
func (r *Rule) ProductID() *shared.ID                         { return r.productID }
func (r *Rule) ProductGroupID() *shared.ID                    { return r.productGroupID }
func (r *Rule) Enabled() bool                                 { return r.enabled }
func (r *Rule) ApprovalStatus() ApprovalStatus                { return r.approvalStatus }
func (r *Rule) Matchers() Matchers                            { return r.matchers }
func (r *Rule) NewSeverity() observation.Severity             { return r.newSeverity }
func (r *Rule) NewStatus() observation.Status                 { return r.newStatus }
func (r *Rule) NewJustification() observation.Justification   { return r.newJustification }
func (r *Rule) CreatedAt() time.Time                          { return r.createdAt }
func (r *Rule) UpdatedAt() time.Time                          { return r.updatedAt }

func (r *Rule) touch() { r.updatedAt = time.Now().UTC() }

// IsGeneral reports whether the rule carries no product or group scope.
func (r *Rule) IsGeneral() bool { return r.productID == nil && r.productGroupID == nil }

// Participates reports whether the rule takes part in evaluation. Group
// scoped rules bypass the approval gate.
func (r *Rule) Participates() bool {
	if !r.enabled {
		return false
	}
	if r.productGroupID != nil {
		return true
	}
	return r.approvalStatus == ApprovalStatusApproved || r.approvalStatus == ApprovalStatusAutoApproved
}

// SetProductID scopes the rule to one product.
func (r *Rule) SetProductID(productID *shared.ID) {
	r.productID = productID
	r.touch()
}

// SetProductGroupID scopes the rule to a product group.
func (r *Rule) SetProductGroupID(groupID *shared.ID) {
	r.productGroupID = groupID
	r.touch()
}

// SetEnabled toggles the rule.
func (r *Rule) SetEnabled(enabled bool) {
	r.enabled = enabled
	r.touch()
}

// SetApprovalStatus sets the review state.
func (r *Rule) SetApprovalStatus(status ApprovalStatus) error {
	if !status.IsValid() {
		return fmt.Errorf("%w: invalid approval status %q", shared.ErrValidation, status)
	}
	r.approvalStatus = status
	r.touch()
	return nil
}

// SetMatchers replaces the predicate.
func (r *Rule) SetMatchers(m Matchers) {
	r.matchers = m
	r.touch()
}

// SetRewrite sets the rule layer fields a match writes. Empty fields leave
// the corresponding observation field untouched.
func (r *Rule) SetRewrite(severity observation.Severity, status observation.Status, justification observation.Justification) {
	r.newSeverity = severity
	r.newStatus = status
	r.newJustification = justification
	r.touch()
}
