package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/openctemio/observe/pkg/domain/product"
	"github.com/openctemio/observe/pkg/domain/shared"
)

// ProductRepository implements product.Repository using PostgreSQL.
type ProductRepository struct {
	db *DB
}

// NewProductRepository creates a new ProductRepository.
func NewProductRepository(db *DB) *ProductRepository {
	return &ProductRepository{db: db}
}

const productColumns = `
	id, name, purl, product_group_id, apply_general_rules,
	risk_acceptance_expiry_days, notification_webhook_url,
	created_at, updated_at
`

// FindByID returns one product, or shared.ErrNotFound.
func (r *ProductRepository) FindByID(ctx context.Context, id shared.ID) (*product.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	row := r.db.QueryRowContext(ctx, query, id.String())

	p, err := r.scanOne(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: product", shared.ErrNotFound)
	}
	return p, err
}

// FindByName returns the product with the given name, or shared.ErrNotFound.
func (r *ProductRepository) FindByName(ctx context.Context, name string) (*product.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE name = $1`
	row := r.db.QueryRowContext(ctx, query, name)

	p, err := r.scanOne(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: product %q", shared.ErrNotFound, name)
	}
	return p, err
}

// FindByGroup returns all products in a product group.
func (r *ProductRepository) FindByGroup(ctx context.Context, groupID shared.ID) ([]*product.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE product_group_id = $1 ORDER BY name`
	return r.query(ctx, query, groupID.String())
}

// FindWithPURL returns all products that carry a non-empty purl.
func (r *ProductRepository) FindWithPURL(ctx context.Context) ([]*product.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE purl IS NOT NULL AND purl <> '' ORDER BY name`
	return r.query(ctx, query)
}

// Save upserts a product.
func (r *ProductRepository) Save(ctx context.Context, p *product.Product) error {
	query := `
		INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			purl = EXCLUDED.purl,
			product_group_id = EXCLUDED.product_group_id,
			apply_general_rules = EXCLUDED.apply_general_rules,
			risk_acceptance_expiry_days = EXCLUDED.risk_acceptance_expiry_days,
			notification_webhook_url = EXCLUDED.notification_webhook_url,
			updated_at = EXCLUDED.updated_at`

	_, err := r.db.ExecContext(ctx, query,
		p.ID().String(),
		p.Name(),
		nullString(p.PURL()),
		nullID(p.ProductGroupID()),
		p.ApplyGeneralRules(),
		nullInt(p.RiskAcceptanceExpiryDays()),
		nullString(p.NotificationWebhookURL()),
		p.CreatedAt(),
		p.UpdatedAt(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: product %q", shared.ErrAlreadyExists, p.Name())
		}
		return fmt.Errorf("failed to save product: %w", err)
	}
	return nil
}

func (r *ProductRepository) query(ctx context.Context, query string, args ...any) ([]*product.Product, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var out []*product.Product
	for rows.Next() {
		p, err := r.scanOne(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate products: %w", err)
	}
	return out, nil
}

func (r *ProductRepository) scanOne(row rowScanner) (*product.Product, error) {
	var (
		data product.Data

		idStr          string
		purl           sql.NullString
		productGroupID sql.NullString
		expiryDays     sql.NullInt64
		webhookURL     sql.NullString
	)

	err := row.Scan(
		&idStr, &data.Name, &purl, &productGroupID, &data.ApplyGeneralRules,
		&expiryDays, &webhookURL,
		&data.CreatedAt, &data.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	data.ID, err = shared.IDFromString(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid product id: %w", err)
	}
	data.PURL = nullStringValue(purl)
	data.ProductGroupID = parseNullID(productGroupID)
	data.RiskAcceptanceExpiryDays = nullIntValue(expiryDays)
	data.NotificationWebhookURL = nullStringValue(webhookURL)

	return product.Reconstitute(data), nil
}
