package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/openctemio/observe/pkg/domain/rule"
	"github.com/openctemio/observe/pkg/domain/shared"
)

// RuleRepository implements rule.Repository using PostgreSQL. Priority order
// is the priority column, ties broken by insertion time.
type RuleRepository struct {
	db *DB
}

// NewRuleRepository creates a new RuleRepository.
func NewRuleRepository(db *DB) *RuleRepository {
	return &RuleRepository{db: db}
}

const ruleColumns = `
	id, name, product_id, product_group_id, enabled, approval_status,
	scanner_name, scanner_prefix,
	title_pattern, description_pattern, component_name_pattern,
	docker_image_name_pattern, endpoint_url_pattern, service_name_pattern,
	source_file_pattern, cloud_resource_pattern, kubernetes_resource_pattern,
	new_severity, new_status, new_justification,
	created_at, updated_at
`

const ruleOrder = ` ORDER BY priority, created_at, id`

// FindByID returns one rule, or shared.ErrNotFound.
func (r *RuleRepository) FindByID(ctx context.Context, id shared.ID) (*rule.Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM observation_rules WHERE id = $1`
	row := r.db.QueryRowContext(ctx, query, id.String())

	rl, err := r.scanOne(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: rule", shared.ErrNotFound)
	}
	return rl, err
}

// FindByProduct returns all rules scoped to the product.
func (r *RuleRepository) FindByProduct(ctx context.Context, productID shared.ID) ([]*rule.Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM observation_rules WHERE product_id = $1` + ruleOrder
	return r.query(ctx, query, productID.String())
}

// FindByProductGroup returns all rules scoped to the product group.
func (r *RuleRepository) FindByProductGroup(ctx context.Context, groupID shared.ID) ([]*rule.Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM observation_rules WHERE product_group_id = $1` + ruleOrder
	return r.query(ctx, query, groupID.String())
}

// FindGeneral returns all rules with no product or group scope.
func (r *RuleRepository) FindGeneral(ctx context.Context) ([]*rule.Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM observation_rules
		WHERE product_id IS NULL AND product_group_id IS NULL` + ruleOrder
	return r.query(ctx, query)
}

// Save upserts a rule.
func (r *RuleRepository) Save(ctx context.Context, rl *rule.Rule) error {
	m := rl.Matchers()
	query := `
		INSERT INTO observation_rules (` + ruleColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			product_id = EXCLUDED.product_id,
			product_group_id = EXCLUDED.product_group_id,
			enabled = EXCLUDED.enabled,
			approval_status = EXCLUDED.approval_status,
			scanner_name = EXCLUDED.scanner_name,
			scanner_prefix = EXCLUDED.scanner_prefix,
			title_pattern = EXCLUDED.title_pattern,
			description_pattern = EXCLUDED.description_pattern,
			component_name_pattern = EXCLUDED.component_name_pattern,
			docker_image_name_pattern = EXCLUDED.docker_image_name_pattern,
			endpoint_url_pattern = EXCLUDED.endpoint_url_pattern,
			service_name_pattern = EXCLUDED.service_name_pattern,
			source_file_pattern = EXCLUDED.source_file_pattern,
			cloud_resource_pattern = EXCLUDED.cloud_resource_pattern,
			kubernetes_resource_pattern = EXCLUDED.kubernetes_resource_pattern,
			new_severity = EXCLUDED.new_severity,
			new_status = EXCLUDED.new_status,
			new_justification = EXCLUDED.new_justification,
			updated_at = EXCLUDED.updated_at`

	_, err := r.db.ExecContext(ctx, query,
		rl.ID().String(),
		rl.Name(),
		nullID(rl.ProductID()),
		nullID(rl.ProductGroupID()),
		rl.Enabled(),
		string(rl.ApprovalStatus()),
		nullString(m.ScannerName),
		nullString(m.ScannerPrefix),
		nullString(m.Title),
		nullString(m.Description),
		nullString(m.ComponentName),
		nullString(m.DockerImageName),
		nullString(m.EndpointURL),
		nullString(m.ServiceName),
		nullString(m.SourceFile),
		nullString(m.CloudResource),
		nullString(m.KubernetesResource),
		nullString(string(rl.NewSeverity())),
		nullString(string(rl.NewStatus())),
		nullString(string(rl.NewJustification())),
		rl.CreatedAt(),
		rl.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to save rule: %w", err)
	}
	return nil
}

func (r *RuleRepository) query(ctx context.Context, query string, args ...any) ([]*rule.Rule, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()

	var out []*rule.Rule
	for rows.Next() {
		rl, err := r.scanOne(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		out = append(out, rl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rules: %w", err)
	}
	return out, nil
}

func (r *RuleRepository) scanOne(row rowScanner) (*rule.Rule, error) {
	var (
		data rule.Data

		idStr                          string
		productID, productGroupID      sql.NullString
		approvalStatus                 string
		scannerName, scannerPrefix     sql.NullString
		title, description             sql.NullString
		componentName, dockerImageName sql.NullString
		endpointURL, serviceName       sql.NullString
		sourceFile, cloudResource      sql.NullString
		kubernetesResource             sql.NullString
		newSeverity, newStatus         sql.NullString
		newJustification               sql.NullString
	)

	err := row.Scan(
		&idStr, &data.Name, &productID, &productGroupID, &data.Enabled, &approvalStatus,
		&scannerName, &scannerPrefix,
		&title, &description, &componentName,
		&dockerImageName, &endpointURL, &serviceName,
		&sourceFile, &cloudResource, &kubernetesResource,
		&newSeverity, &newStatus, &newJustification,
		&data.CreatedAt, &data.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	data.ID, err = shared.IDFromString(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid rule id: %w", err)
	}
	data.ProductID = parseNullID(productID)
	data.ProductGroupID = parseNullID(productGroupID)
	data.ApprovalStatus = rule.ApprovalStatus(approvalStatus)
	data.Matchers = rule.Matchers{
		ScannerName:        nullStringValue(scannerName),
		ScannerPrefix:      nullStringValue(scannerPrefix),
		Title:              nullStringValue(title),
		Description:        nullStringValue(description),
		ComponentName:      nullStringValue(componentName),
		DockerImageName:    nullStringValue(dockerImageName),
		EndpointURL:        nullStringValue(endpointURL),
		ServiceName:        nullStringValue(serviceName),
		SourceFile:         nullStringValue(sourceFile),
		CloudResource:      nullStringValue(cloudResource),
		KubernetesResource: nullStringValue(kubernetesResource),
	}
	data.NewSeverity = observationSeverity(newSeverity)
	data.NewStatus = observationStatus(newStatus)
	data.NewJustification = observationJustification(newJustification)

	return rule.Reconstitute(data), nil
}
