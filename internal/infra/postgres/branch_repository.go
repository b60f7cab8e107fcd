package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/openctemio/observe/pkg/domain/product"
	"github.com/openctemio/observe/pkg/domain/shared"
)

// BranchRepository implements product.BranchRepository using PostgreSQL.
type BranchRepository struct {
	db *DB
}

// NewBranchRepository creates a new BranchRepository.
func NewBranchRepository(db *DB) *BranchRepository {
	return &BranchRepository{db: db}
}

const branchColumns = `
	id, product_id, name, purl, last_import, created_at, updated_at
`

// FindByID returns one branch, or shared.ErrNotFound.
func (r *BranchRepository) FindByID(ctx context.Context, id shared.ID) (*product.Branch, error) {
	query := `SELECT ` + branchColumns + ` FROM product_branches WHERE id = $1`
	row := r.db.QueryRowContext(ctx, query, id.String())

	b, err := r.scanOne(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: branch", shared.ErrNotFound)
	}
	return b, err
}

// FindByName returns the branch of a product with the given name, or
// shared.ErrNotFound.
func (r *BranchRepository) FindByName(ctx context.Context, productID shared.ID, name string) (*product.Branch, error) {
	query := `SELECT ` + branchColumns + ` FROM product_branches WHERE product_id = $1 AND name = $2`
	row := r.db.QueryRowContext(ctx, query, productID.String(), name)

	b, err := r.scanOne(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: branch %q", shared.ErrNotFound, name)
	}
	return b, err
}

// FindByProduct returns all branches of a product.
func (r *BranchRepository) FindByProduct(ctx context.Context, productID shared.ID) ([]*product.Branch, error) {
	query := `SELECT ` + branchColumns + ` FROM product_branches WHERE product_id = $1 ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query, productID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query branches: %w", err)
	}
	defer rows.Close()

	var out []*product.Branch
	for rows.Next() {
		b, err := r.scanOne(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan branch: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate branches: %w", err)
	}
	return out, nil
}

// FindWithPURL returns all branches that carry a non-empty purl.
func (r *BranchRepository) FindWithPURL(ctx context.Context) ([]*product.Branch, error) {
	query := `SELECT ` + branchColumns + ` FROM product_branches WHERE purl IS NOT NULL AND purl <> '' ORDER BY product_id, name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query branches: %w", err)
	}
	defer rows.Close()

	var out []*product.Branch
	for rows.Next() {
		b, err := r.scanOne(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan branch: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate branches: %w", err)
	}
	return out, nil
}

// Save upserts a branch.
func (r *BranchRepository) Save(ctx context.Context, b *product.Branch) error {
	query := `
		INSERT INTO product_branches (` + branchColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			purl = EXCLUDED.purl,
			last_import = EXCLUDED.last_import,
			updated_at = EXCLUDED.updated_at`

	_, err := r.db.ExecContext(ctx, query,
		b.ID().String(),
		b.ProductID().String(),
		b.Name(),
		nullString(b.PURL()),
		nullTime(b.LastImport()),
		b.CreatedAt(),
		b.UpdatedAt(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: branch %q", shared.ErrAlreadyExists, b.Name())
		}
		return fmt.Errorf("failed to save branch: %w", err)
	}
	return nil
}

func (r *BranchRepository) scanOne(row rowScanner) (*product.Branch, error) {
	var (
		data product.BranchData

		idStr, productIDStr string
		purl                sql.NullString
		lastImport          sql.NullTime
	)

	err := row.Scan(&idStr, &productIDStr, &data.Name, &purl, &lastImport, &data.CreatedAt, &data.UpdatedAt)
	if err != nil {
		return nil, err
	}

	data.ID, err = shared.IDFromString(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid branch id: %w", err)
	}
	data.ProductID, err = shared.IDFromString(productIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid product id: %w", err)
	}
	data.PURL = nullStringValue(purl)
	data.LastImport = nullTimeValue(lastImport)

	return product.ReconstituteBranch(data), nil
}
