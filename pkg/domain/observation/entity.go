// Package observation provides the domain model for vulnerability
// observations: the layered severity/status fields, the identity hash that
// groups re-scans of the same finding, and the precedence resolver that
// derives the authoritative state from the layers.
package observation

import (
	"fmt"
	"strings"
	"time"

	"github.com/openctemio/observe/pkg/domain/shared"
)

// Observation is a single finding for one product/branch, uniquely
// identified within a scan context by its identity hash. Severity, status
// and VEX justification are derived from four layers: assessment wins over
// rule/VEX, which win over parser, which wins over the CVSS-derived default.
type Observation struct {
	id        shared.ID
	productID shared.ID
	branchID  *shared.ID

	scannerName          string
	scannerObservationID string

	// scan context key, filled from the import that created the row
	uploadFilename       string
	apiConfigurationName string

	title          string
	description    string
	recommendation string

	origin Origin

	vulnerabilityID string
	cvssScore       *float64
	cvssVector      string
	cwe             string

	// parser layer, set by the scanner each run
	parserSeverity Severity
	parserStatus   Status

	// rule layer, set by the rule engine
	ruleSeverity      Severity
	ruleStatus        Status
	ruleJustification Justification
	productRuleID     *shared.ID
	generalRuleID     *shared.ID

	// vex layer, set by the VEX engine
	vexStatus        Status
	vexJustification Justification
	vexStatementID   *shared.ID
	vexDocumentID    string

	// assessment layer, human-entered, highest precedence
	assessmentSeverity Severity
	assessmentStatus   Status

	// derived
	currentSeverity      Severity
	currentStatus        Status
	currentJustification Justification
	numericalSeverity    int
	riskAcceptanceExpiry *time.Time

	identityHash string

	references []Reference
	evidences  []Evidence

	importLastSeen time.Time
	createdAt      time.Time
	updatedAt      time.Time
}

// NewObservation creates a new observation for a product.
func NewObservation(productID shared.ID, scannerName, title string) (*Observation, error) {
	if productID.IsZero() {
		return nil, fmt.Errorf("%w: product id is required", shared.ErrValidation)
	}
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("%w: title is required", shared.ErrValidation)
	}
	if strings.TrimSpace(scannerName) == "" {
		return nil, fmt.Errorf("%w: scanner name is required", shared.ErrValidation)
	}

	now := time.Now().UTC()
	o := &Observation{
		id:              shared.NewID(),
		productID:       productID,
		scannerName:     strings.TrimSpace(scannerName),
		title:           strings.TrimSpace(title),
		parserSeverity:  SeverityUnknown,
		currentSeverity: SeverityUnknown,
		currentStatus:   StatusOpen,
		importLastSeen:  now,
		createdAt:       now,
		updatedAt:       now,
	}
	o.numericalSeverity = o.currentSeverity.Numerical()
	return o, nil
}

// Data contains all data needed to reconstitute an Observation from
// persistence.
type Data struct {
	ID        shared.ID
	ProductID shared.ID
	BranchID  *shared.ID

	ScannerName          string
	ScannerObservationID string

	UploadFilename       string
	APIConfigurationName string

	Title          string
	Description    string
	Recommendation string

	Origin Origin

	VulnerabilityID string
	CVSSScore       *float64
	CVSSVector      string
	CWE             string

	ParserSeverity Severity
	ParserStatus   Status

	RuleSeverity      Severity
	RuleStatus        Status
	RuleJustification Justification
	ProductRuleID     *shared.ID
	GeneralRuleID     *shared.ID

	VEXStatus        Status
	VEXJustification Justification
	VEXStatementID   *shared.ID
	VEXDocumentID    string

	AssessmentSeverity Severity
	AssessmentStatus   Status

	CurrentSeverity      Severity
	CurrentStatus        Status
	CurrentJustification Justification
	NumericalSeverity    int
	RiskAcceptanceExpiry *time.Time

	IdentityHash string

	References []Reference
	Evidences  []Evidence

	ImportLastSeen time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Reconstitute recreates an Observation from persistence.
func Reconstitute(data Data) *Observation {
	return &Observation{
		id:                   data.ID,
		productID:            data.ProductID,
		branchID:             data.BranchID,
		scannerName:          data.ScannerName,
		scannerObservationID: data.ScannerObservationID,
		uploadFilename:       data.UploadFilename,
		apiConfigurationName: data.APIConfigurationName,
		title:                data.Title,
		description:          data.Description,
		recommendation:       data.Recommendation,
		origin:               data.Origin,
		vulnerabilityID:      data.VulnerabilityID,
		cvssScore:            data.CVSSScore,
		cvssVector:           data.CVSSVector,
		cwe:                  data.CWE,
		parserSeverity:       data.ParserSeverity,
		parserStatus:         data.ParserStatus,
		ruleSeverity:         data.RuleSeverity,
		ruleStatus:           data.RuleStatus,
		ruleJustification:    data.RuleJustification,
		productRuleID:        data.ProductRuleID,
		generalRuleID:        data.GeneralRuleID,
		vexStatus:            data.VEXStatus,
		vexJustification:     data.VEXJustification,
		vexStatementID:       data.VEXStatementID,
		vexDocumentID:        data.VEXDocumentID,
		assessmentSeverity:   data.AssessmentSeverity,
		assessmentStatus:     data.AssessmentStatus,
		currentSeverity:      data.CurrentSeverity,
		currentStatus:        data.CurrentStatus,
		currentJustification: data.CurrentJustification,
		numericalSeverity:    data.NumericalSeverity,
		riskAcceptanceExpiry: data.RiskAcceptanceExpiry,
		identityHash:         data.IdentityHash,
		references:           data.References,
		evidences:            data.Evidences,
		importLastSeen:       data.ImportLastSeen,
		createdAt:            data.CreatedAt,
		updatedAt:            data.UpdatedAt,
	}
}

// Getters

func (o *Observation) ID() shared.ID                    { return o.id }
func (o *Observation) ProductID() shared.ID             { return o.productID }
func (o *Observation) BranchID() *shared.ID             { return o.branchID }
func (o *Observation) ScannerName() string              { return o.scannerName }
func (o *Observation) ScannerObservationID() string     { return o.scannerObservationID }
func (o *Observation) UploadFilename() string           { return o.uploadFilename }
func (o *Observation) APIConfigurationName() string     { return o.apiConfigurationName }
func (o *Observation) Title() string                    { return o.title }
func (o *Observation) Description() string              { return o.description }
func (o *Observation) Recommendation() string           { return o.recommendation }
func (o *Observation) Origin() Origin                   { return o.origin }
func (o *Observation) VulnerabilityID() string          { return o.vulnerabilityID }
func (o *Observation) CVSSScore() *float64              { return o.cvssScore }
func (o *Observation) CVSSVector() string               { return o.cvssVector }
func (o *Observation) CWE() string                      { return o.cwe }
func (o *Observation) ParserSeverity() Severity         { return o.parserSeverity }
func (o *Observation) ParserStatus() Status             { return o.parserStatus }
func (o *Observation) RuleSeverity() Severity           { return o.ruleSeverity }
func (o *Observation) RuleStatus() Status               { return o.ruleStatus }
func (o *Observation) RuleJustification() Justification { return o.ruleJustification }
func (o *Observation) ProductRuleID() *shared.ID        { return o.productRuleID }
func (o *Observation) GeneralRuleID() *shared.ID        { return o.generalRuleID }
func (o *Observation) VEXStatus() Status                { return o.vexStatus }
func (o *Observation) VEXJustification() Justification  { return o.vexJustification }
func (o *Observation) VEXStatementID() *shared.ID       { return o.vexStatementID }
func (o *Observation) VEXDocumentID() string            { return o.vexDocumentID }
func (o *Observation) AssessmentSeverity() Severity     { return o.assessmentSeverity }
func (o *Observation) AssessmentStatus() Status         { return o.assessmentStatus }
func (o *Observation) CurrentSeverity() Severity        { return o.currentSeverity }
func (o *Observation) CurrentStatus() Status            { return o.currentStatus }

func (o *Observation) CurrentJustification() Justification { return o.currentJustification }
func (o *Observation) NumericalSeverity() int              { return o.numericalSeverity }
func (o *Observation) RiskAcceptanceExpiry() *time.Time    { return o.riskAcceptanceExpiry }
func (o *Observation) IdentityHash() string                { return o.identityHash }
func (o *Observation) References() []Reference             { return o.references }
func (o *Observation) Evidences() []Evidence               { return o.evidences }
func (o *Observation) ImportLastSeen() time.Time           { return o.importLastSeen }
func (o *Observation) CreatedAt() time.Time                { return o.createdAt }
func (o *Observation) UpdatedAt() time.Time                { return o.updatedAt }

func (o *Observation) touch() { o.updatedAt = time.Now().UTC() }

// Setters for scanner-provided fields

// SetBranchID sets the branch this observation belongs to.
func (o *Observation) SetBranchID(branchID *shared.ID) {
	o.branchID = branchID
	o.touch()
}

// SetTitle sets the title.
func (o *Observation) SetTitle(title string) {
	o.title = strings.TrimSpace(title)
	o.touch()
}

// SetDescription sets the description.
func (o *Observation) SetDescription(description string) {
	o.description = description
	o.touch()
}

// SetRecommendation sets the recommendation.
func (o *Observation) SetRecommendation(recommendation string) {
	o.recommendation = recommendation
	o.touch()
}

// SetScannerObservationID sets the scanner's own identifier for the finding.
func (o *Observation) SetScannerObservationID(id string) {
	o.scannerObservationID = id
	o.touch()
}

// SetScanContextKey records which upload filename or API configuration the
// observation belongs to, so later imports diff against the same set.
func (o *Observation) SetScanContextKey(uploadFilename, apiConfigurationName string) {
	o.uploadFilename = uploadFilename
	o.apiConfigurationName = apiConfigurationName
	o.touch()
}

// SetOrigin sets the normalized origin fields. Must be called before
// UpdateIdentityHash.
func (o *Observation) SetOrigin(origin Origin) {
	o.origin = origin.Normalized()
	o.touch()
}

// SetVulnerability sets the vulnerability classification.
func (o *Observation) SetVulnerability(vulnerabilityID string, cvssScore *float64, cvssVector, cwe string) {
	o.vulnerabilityID = strings.TrimSpace(vulnerabilityID)
	o.cvssScore = cvssScore
	o.cvssVector = cvssVector
	o.cwe = cwe
	o.touch()
}

// SetReferences replaces the reference list wholesale.
func (o *Observation) SetReferences(references []Reference) {
	o.references = references
	o.touch()
}

// SetEvidences replaces the evidence list wholesale.
func (o *Observation) SetEvidences(evidences []Evidence) {
	o.evidences = evidences
	o.touch()
}

// MarkSeen records that the observation appeared in an import.
func (o *Observation) MarkSeen(at time.Time) {
	o.importLastSeen = at
	o.touch()
}

// Layer mutators

// SetParserLayer sets the parser-provided severity and status.
func (o *Observation) SetParserLayer(severity Severity, status Status) {
	o.parserSeverity = severity
	o.parserStatus = status
	o.touch()
}

// SetParserStatus sets only the parser status, leaving severity untouched.
func (o *Observation) SetParserStatus(status Status) {
	o.parserStatus = status
	o.touch()
}

// ApplyRule writes the rule layer. Empty fields on the rule leave the
// corresponding layer fields untouched.
func (o *Observation) ApplyRule(ruleID shared.ID, general bool, severity Severity, status Status, justification Justification) {
	if severity != "" {
		o.ruleSeverity = severity
	}
	if status != "" {
		o.ruleStatus = status
	}
	if justification != "" {
		o.ruleJustification = justification
	}
	if general {
		o.generalRuleID = &ruleID
		o.productRuleID = nil
	} else {
		o.productRuleID = &ruleID
		o.generalRuleID = nil
	}
	o.touch()
}

// ClearRule clears the whole rule layer.
func (o *Observation) ClearRule() {
	o.ruleSeverity = ""
	o.ruleStatus = ""
	o.ruleJustification = ""
	o.productRuleID = nil
	o.generalRuleID = nil
	o.touch()
}

// ApplyVEX writes the vex layer.
func (o *Observation) ApplyVEX(statementID shared.ID, documentID string, status Status, justification Justification) {
	o.vexStatus = status
	o.vexJustification = justification
	o.vexStatementID = &statementID
	o.vexDocumentID = documentID
	o.touch()
}

// ClearVEX clears the whole vex layer.
func (o *Observation) ClearVEX() {
	o.vexStatus = ""
	o.vexJustification = ""
	o.vexStatementID = nil
	o.vexDocumentID = ""
	o.touch()
}

// SetAssessment writes the human assessment layer.
func (o *Observation) SetAssessment(severity Severity, status Status) {
	o.assessmentSeverity = severity
	o.assessmentStatus = status
	o.touch()
}

// SetRiskAcceptanceExpiry sets or clears the risk acceptance expiry date.
func (o *Observation) SetRiskAcceptanceExpiry(expiry *time.Time) {
	o.riskAcceptanceExpiry = expiry
	o.touch()
}

// Resolve recomputes the derived current fields from the layers. It is
// idempotent and must be called whenever any contributing layer changes.
func (o *Observation) Resolve() {
	o.currentSeverity = ResolveSeverity(o)
	o.currentStatus = ResolveStatus(o)
	o.currentJustification = ResolveJustification(o)
	o.numericalSeverity = o.currentSeverity.Numerical()
}

// Snapshot captures the current derived state.
func (o *Observation) Snapshot() StateSnapshot {
	return StateSnapshot{
		Severity:             o.currentSeverity,
		Status:               o.currentStatus,
		Justification:        o.currentJustification,
		RiskAcceptanceExpiry: o.riskAcceptanceExpiry,
	}
}

// UpdateIdentityHash recomputes and stores the identity hash. All origin
// fields must be normalized before calling this.
func (o *Observation) UpdateIdentityHash() string {
	o.identityHash = IdentityHash(o)
	return o.identityHash
}
