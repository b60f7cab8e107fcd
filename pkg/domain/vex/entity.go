// Package vex provides VEX documents, their exploitability statements and
// the engine that applies statements to observations via Package-URL
// matching.
package vex

import (
	"fmt"
	"strings"
	"time"

	"github.com/openctemio/observe/pkg/domain/observation"
	"github.com/openctemio/observe/pkg/domain/shared"
)

// StatementStatus is the exploitability claim of a VEX statement, following
// the CSAF/OpenVEX vocabulary.
type StatementStatus string

const (
	StatementStatusAffected           StatementStatus = "affected"
	StatementStatusNotAffected        StatementStatus = "not_affected"
	StatementStatusFixed              StatementStatus = "fixed"
	StatementStatusUnderInvestigation StatementStatus = "under_investigation"
	StatementStatusFalsePositive      StatementStatus = "false_positive"
)

// IsValid checks if the statement status is valid.
func (s StatementStatus) IsValid() bool {
	switch s {
	case StatementStatusAffected, StatementStatusNotAffected, StatementStatusFixed,
		StatementStatusUnderInvestigation, StatementStatusFalsePositive:
		return true
	default:
		return false
	}
}

// ToObservationStatus maps the VEX vocabulary onto the observation status
// vocabulary. Claims with no stronger meaning map to open.
func (s StatementStatus) ToObservationStatus() observation.Status {
	switch s {
	case StatementStatusNotAffected:
		return observation.StatusNotAffected
	case StatementStatusFixed:
		return observation.StatusResolved
	case StatementStatusUnderInvestigation:
		return observation.StatusInReview
	default:
		return observation.StatusOpen
	}
}

// Document is one imported VEX document. Statements reference it; audit log
// comments name it by its external document id.
type Document struct {
	id         shared.ID
	documentID string
	version    string
	author     string
	role       string

	createdAt time.Time
	updatedAt time.Time
}

// NewDocument creates a new VEX document.
func NewDocument(documentID string) (*Document, error) {
	if strings.TrimSpace(documentID) == "" {
		return nil, fmt.Errorf("%w: document id is required", shared.ErrValidation)
	}

	now := time.Now().UTC()
	return &Document{
		id:         shared.NewID(),
		documentID: strings.TrimSpace(documentID),
		createdAt:  now,
		updatedAt:  now,
	}, nil
}

// DocumentData contains all data needed to reconstitute a Document from
// persistence.
type DocumentData struct {
	ID         shared.ID
	DocumentID string
	Version    string
	Author     string
	Role       string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ReconstituteDocument recreates a Document from persistence.
func ReconstituteDocument(data DocumentData) *Document {
	return &Document{
		id:         data.ID,
		documentID: data.DocumentID,
		version:    data.Version,
		author:     data.Author,
		role:       data.Role,
		createdAt:  data.CreatedAt,
		updatedAt:  data.UpdatedAt,
	}
}

func (d *Document) ID() shared.ID        { return d.id }
func (d *Document) DocumentID() string   { return d.documentID }
func (d *Document) Version() string      { return d.version }
func (d *Document) Author() string       { return d.author }
func (d *Document) Role() string         { return d.role }
func (d *Document) CreatedAt() time.Time { return d.createdAt }
func (d *Document) UpdatedAt() time.Time { return d.updatedAt }

// SetMetadata sets version, author and role as parsed from the document.
func (d *Document) SetMetadata(version, author, role string) {
	d.version = version
	d.author = author
	d.role = role
	d.updatedAt = time.Now().UTC()
}

// Statement is one exploitability claim for a (vulnerability id,
// product purl, optional component purl) triple. The document label is the
// external id of the owning document, denormalized for audit comments.
type Statement struct {
	id            shared.ID
	documentID    shared.ID
	documentLabel string

	vulnerabilityID string
	productPURL     string
	componentPURL   string

	status        StatementStatus
	justification observation.Justification
	impact        string
	remediation   string

	createdAt time.Time
}

// NewStatement creates a new statement belonging to a document.
func NewStatement(doc *Document, vulnerabilityID, productPURL string, status StatementStatus) (*Statement, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: document is required", shared.ErrValidation)
	}
	if strings.TrimSpace(vulnerabilityID) == "" {
		return nil, fmt.Errorf("%w: vulnerability id is required", shared.ErrValidation)
	}
	if strings.TrimSpace(productPURL) == "" {
		return nil, fmt.Errorf("%w: product purl is required", shared.ErrValidation)
	}
	if !status.IsValid() {
		return nil, fmt.Errorf("%w: invalid statement status %q", shared.ErrValidation, status)
	}

	return &Statement{
		id:              shared.NewID(),
		documentID:      doc.ID(),
		documentLabel:   doc.DocumentID(),
		vulnerabilityID: strings.TrimSpace(vulnerabilityID),
		productPURL:     strings.TrimSpace(productPURL),
		status:          status,
		createdAt:       time.Now().UTC(),
	}, nil
}

// StatementData contains all data needed to reconstitute a Statement from
// persistence.
type StatementData struct {
	ID            shared.ID
	DocumentID    shared.ID
	DocumentLabel string

	VulnerabilityID string
	ProductPURL     string
	ComponentPURL   string

	Status        StatementStatus
	Justification observation.Justification
	Impact        string
	Remediation   string

	CreatedAt time.Time
}

// ReconstituteStatement recreates a Statement from persistence.
func ReconstituteStatement(data StatementData) *Statement {
	return &Statement{
		id:              data.ID,
		documentID:      data.DocumentID,
		documentLabel:   data.DocumentLabel,
		vulnerabilityID: data.VulnerabilityID,
		productPURL:     data.ProductPURL,
		componentPURL:   data.ComponentPURL,
		status:          data.Status,
		justification:   data.Justification,
		impact:          data.Impact,
		remediation:     data.Remediation,
		createdAt:       data.CreatedAt,
	}
}

func (s *Statement) ID() shared.ID                             { return s.id }
func (s *Statement) DocumentID() shared.ID                     { return s.documentID }
func (s *Statement) DocumentLabel() string                     { return s.documentLabel }
func (s *Statement) VulnerabilityID() string                   { return s.vulnerabilityID }
func (s *Statement) ProductPURL() string                       { return s.productPURL }
func (s *Statement) ComponentPURL() string                     { return s.componentPURL }
func (s *Statement) Status() StatementStatus                   { return s.status }
func (s *Statement) Justification() observation.Justification  { return s.justification }
func (s *Statement) Impact() string                            { return s.impact }
func (s *Statement) Remediation() string                       { return s.remediation }
func (s *Statement) CreatedAt() time.Time                      { return s.createdAt }

// SetComponentPURL narrows the statement to one component.
func (s *Statement) SetComponentPURL(purl string) {
	s.componentPURL = strings.TrimSpace(purl)
}

// SetDetails sets justification, impact and remediation.
func (s *Statement) SetDetails(justification observation.Justification, impact, remediation string) {
	s.justification = justification
	s.impact = impact
	s.remediation = remediation
}
