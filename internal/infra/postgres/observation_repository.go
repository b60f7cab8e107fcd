package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/openctemio/observe/pkg/domain/observation"
	"github.com/openctemio/observe/pkg/domain/shared"
)

// ObservationRepository implements observation.Repository using PostgreSQL.
type ObservationRepository struct {
	db *DB
}

// NewObservationRepository creates a new ObservationRepository.
func NewObservationRepository(db *DB) *ObservationRepository {
	return &ObservationRepository{db: db}
}

const observationColumns = `
	id, product_id, branch_id, scanner_name, scanner_observation_id,
	upload_filename, api_configuration_name,
	title, description, recommendation, origin,
	vulnerability_id, cvss_score, cvss_vector, cwe,
	parser_severity, parser_status,
	rule_severity, rule_status, rule_justification, product_rule_id, general_rule_id,
	vex_status, vex_justification, vex_statement_id, vex_document_id,
	assessment_severity, assessment_status,
	current_severity, current_status, current_justification, numerical_severity,
	risk_acceptance_expiry, identity_hash, "references", evidences,
	import_last_seen, created_at, updated_at
`

// FindByScanContext returns all observations of one scan context.
func (r *ObservationRepository) FindByScanContext(ctx context.Context, sc observation.ScanContext) ([]*observation.Observation, error) {
	query := `SELECT ` + observationColumns + `
		FROM observations
		WHERE product_id = $1
		  AND branch_id IS NOT DISTINCT FROM $2
		  AND upload_filename IS NOT DISTINCT FROM $3
		  AND api_configuration_name IS NOT DISTINCT FROM $4
		ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query,
		sc.ProductID.String(),
		nullID(sc.BranchID),
		nullString(sc.UploadFilename),
		nullString(sc.APIConfigurationName),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query observations: %w", err)
	}
	defer rows.Close()

	return r.scanAll(rows)
}

// FindByProduct returns all observations of a product, in stable order.
func (r *ObservationRepository) FindByProduct(ctx context.Context, productID shared.ID) ([]*observation.Observation, error) {
	query := `SELECT ` + observationColumns + `
		FROM observations
		WHERE product_id = $1
		ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, productID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query observations: %w", err)
	}
	defer rows.Close()

	return r.scanAll(rows)
}

// FindByID returns one observation, or shared.ErrNotFound.
func (r *ObservationRepository) FindByID(ctx context.Context, id shared.ID) (*observation.Observation, error) {
	query := `SELECT ` + observationColumns + ` FROM observations WHERE id = $1`
	row := r.db.QueryRowContext(ctx, query, id.String())

	o, err := r.scanOne(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, observation.ErrObservationNotFound
	}
	return o, err
}

// FindExpiredRiskAcceptances returns all risk accepted observations whose
// expiry date lies at or before the given time.
func (r *ObservationRepository) FindExpiredRiskAcceptances(ctx context.Context, asOf time.Time) ([]*observation.Observation, error) {
	query := `SELECT ` + observationColumns + `
		FROM observations
		WHERE current_status = $1
		  AND risk_acceptance_expiry IS NOT NULL
		  AND risk_acceptance_expiry <= $2
		ORDER BY risk_acceptance_expiry`

	rows, err := r.db.QueryContext(ctx, query, string(observation.StatusRiskAccepted), asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to query expired risk acceptances: %w", err)
	}
	defer rows.Close()

	return r.scanAll(rows)
}

// Save upserts an observation.
func (r *ObservationRepository) Save(ctx context.Context, o *observation.Observation) error {
	originJSON, err := toJSONB(o.Origin())
	if err != nil {
		return fmt.Errorf("failed to encode origin: %w", err)
	}
	referencesJSON, err := toJSONB(o.References())
	if err != nil {
		return fmt.Errorf("failed to encode references: %w", err)
	}
	evidencesJSON, err := toJSONB(o.Evidences())
	if err != nil {
		return fmt.Errorf("failed to encode evidences: %w", err)
	}

	query := `
		INSERT INTO observations (` + observationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28,
			$29, $30, $31, $32, $33, $34, $35, $36, $37, $38, $39)
		ON CONFLICT (id) DO UPDATE SET
			branch_id = EXCLUDED.branch_id,
			scanner_observation_id = EXCLUDED.scanner_observation_id,
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			recommendation = EXCLUDED.recommendation,
			origin = EXCLUDED.origin,
			vulnerability_id = EXCLUDED.vulnerability_id,
			cvss_score = EXCLUDED.cvss_score,
			cvss_vector = EXCLUDED.cvss_vector,
			cwe = EXCLUDED.cwe,
			parser_severity = EXCLUDED.parser_severity,
			parser_status = EXCLUDED.parser_status,
			rule_severity = EXCLUDED.rule_severity,
			rule_status = EXCLUDED.rule_status,
			rule_justification = EXCLUDED.rule_justification,
			product_rule_id = EXCLUDED.product_rule_id,
			general_rule_id = EXCLUDED.general_rule_id,
			vex_status = EXCLUDED.vex_status,
			vex_justification = EXCLUDED.vex_justification,
			vex_statement_id = EXCLUDED.vex_statement_id,
			vex_document_id = EXCLUDED.vex_document_id,
			assessment_severity = EXCLUDED.assessment_severity,
			assessment_status = EXCLUDED.assessment_status,
			current_severity = EXCLUDED.current_severity,
			current_status = EXCLUDED.current_status,
			current_justification = EXCLUDED.current_justification,
			numerical_severity = EXCLUDED.numerical_severity,
			risk_acceptance_expiry = EXCLUDED.risk_acceptance_expiry,
			identity_hash = EXCLUDED.identity_hash,
			"references" = EXCLUDED."references",
			evidences = EXCLUDED.evidences,
			import_last_seen = EXCLUDED.import_last_seen,
			updated_at = EXCLUDED.updated_at`

	_, err = r.db.ExecContext(ctx, query,
		o.ID().String(),
		o.ProductID().String(),
		nullID(o.BranchID()),
		o.ScannerName(),
		nullString(o.ScannerObservationID()),
		nullString(o.UploadFilename()),
		nullString(o.APIConfigurationName()),
		o.Title(),
		nullString(o.Description()),
		nullString(o.Recommendation()),
		originJSON,
		nullString(o.VulnerabilityID()),
		nullFloat(o.CVSSScore()),
		nullString(o.CVSSVector()),
		nullString(o.CWE()),
		string(o.ParserSeverity()),
		nullString(string(o.ParserStatus())),
		nullString(string(o.RuleSeverity())),
		nullString(string(o.RuleStatus())),
		nullString(string(o.RuleJustification())),
		nullID(o.ProductRuleID()),
		nullID(o.GeneralRuleID()),
		nullString(string(o.VEXStatus())),
		nullString(string(o.VEXJustification())),
		nullID(o.VEXStatementID()),
		nullString(o.VEXDocumentID()),
		nullString(string(o.AssessmentSeverity())),
		nullString(string(o.AssessmentStatus())),
		string(o.CurrentSeverity()),
		string(o.CurrentStatus()),
		nullString(string(o.CurrentJustification())),
		o.NumericalSeverity(),
		nullTime(o.RiskAcceptanceExpiry()),
		o.IdentityHash(),
		referencesJSON,
		evidencesJSON,
		o.ImportLastSeen(),
		o.CreatedAt(),
		o.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to save observation: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *ObservationRepository) scanOne(row rowScanner) (*observation.Observation, error) {
	var (
		data observation.Data

		idStr, productIDStr                  string
		branchID                             sql.NullString
		scannerObservationID                 sql.NullString
		uploadFilename, apiConfiguration     sql.NullString
		description, recommendation          sql.NullString
		originJSON                           []byte
		vulnerabilityID, cvssVector, cwe     sql.NullString
		cvssScore                            sql.NullFloat64
		parserSeverity                       string
		parserStatus                         sql.NullString
		ruleSeverity, ruleStatus             sql.NullString
		ruleJustification                    sql.NullString
		productRuleID, generalRuleID         sql.NullString
		vexStatus, vexJustification          sql.NullString
		vexStatementID, vexDocumentID        sql.NullString
		assessmentSeverity, assessmentStatus sql.NullString
		currentSeverity, currentStatus       string
		currentJustification                 sql.NullString
		riskAcceptanceExpiry                 sql.NullTime
		referencesJSON, evidencesJSON        []byte
	)

	err := row.Scan(
		&idStr, &productIDStr, &branchID, &data.ScannerName, &scannerObservationID,
		&uploadFilename, &apiConfiguration,
		&data.Title, &description, &recommendation, &originJSON,
		&vulnerabilityID, &cvssScore, &cvssVector, &cwe,
		&parserSeverity, &parserStatus,
		&ruleSeverity, &ruleStatus, &ruleJustification, &productRuleID, &generalRuleID,
		&vexStatus, &vexJustification, &vexStatementID, &vexDocumentID,
		&assessmentSeverity, &assessmentStatus,
		&currentSeverity, &currentStatus, &currentJustification, &data.NumericalSeverity,
		&riskAcceptanceExpiry, &data.IdentityHash, &referencesJSON, &evidencesJSON,
		&data.ImportLastSeen, &data.CreatedAt, &data.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	data.ID, err = shared.IDFromString(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid observation id: %w", err)
	}
	data.ProductID, err = shared.IDFromString(productIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid product id: %w", err)
	}
	data.BranchID = parseNullID(branchID)
	data.ScannerObservationID = nullStringValue(scannerObservationID)
	data.UploadFilename = nullStringValue(uploadFilename)
	data.APIConfigurationName = nullStringValue(apiConfiguration)
	data.Description = nullStringValue(description)
	data.Recommendation = nullStringValue(recommendation)
	if err := fromJSONB(originJSON, &data.Origin); err != nil {
		return nil, fmt.Errorf("failed to decode origin: %w", err)
	}
	data.VulnerabilityID = nullStringValue(vulnerabilityID)
	data.CVSSScore = nullFloatValue(cvssScore)
	data.CVSSVector = nullStringValue(cvssVector)
	data.CWE = nullStringValue(cwe)
	data.ParserSeverity = observation.Severity(parserSeverity)
	data.ParserStatus = observation.Status(nullStringValue(parserStatus))
	data.RuleSeverity = observation.Severity(nullStringValue(ruleSeverity))
	data.RuleStatus = observation.Status(nullStringValue(ruleStatus))
	data.RuleJustification = observation.Justification(nullStringValue(ruleJustification))
	data.ProductRuleID = parseNullID(productRuleID)
	data.GeneralRuleID = parseNullID(generalRuleID)
	data.VEXStatus = observation.Status(nullStringValue(vexStatus))
	data.VEXJustification = observation.Justification(nullStringValue(vexJustification))
	data.VEXStatementID = parseNullID(vexStatementID)
	data.VEXDocumentID = nullStringValue(vexDocumentID)
	data.AssessmentSeverity = observation.Severity(nullStringValue(assessmentSeverity))
	data.AssessmentStatus = observation.Status(nullStringValue(assessmentStatus))
	data.CurrentSeverity = observation.Severity(currentSeverity)
	data.CurrentStatus = observation.Status(currentStatus)
	data.CurrentJustification = observation.Justification(nullStringValue(currentJustification))
	data.RiskAcceptanceExpiry = nullTimeValue(riskAcceptanceExpiry)
	if err := fromJSONB(referencesJSON, &data.References); err != nil {
		return nil, fmt.Errorf("failed to decode references: %w", err)
	}
	if err := fromJSONB(evidencesJSON, &data.Evidences); err != nil {
		return nil, fmt.Errorf("failed to decode evidences: %w", err)
	}

	return observation.Reconstitute(data), nil
}

func (r *ObservationRepository) scanAll(rows *sql.Rows) ([]*observation.Observation, error) {
	var out []*observation.Observation
	for rows.Next() {
		o, err := r.scanOne(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate observations: %w", err)
	}
	return out, nil
}
