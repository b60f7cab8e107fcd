package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/openctemio/observe/pkg/domain/shared"
	"github.com/openctemio/observe/pkg/domain/vex"
)

// VEXDocumentRepository implements vex.DocumentRepository using PostgreSQL.
type VEXDocumentRepository struct {
	db *DB
}

// NewVEXDocumentRepository creates a new VEXDocumentRepository.
func NewVEXDocumentRepository(db *DB) *VEXDocumentRepository {
	return &VEXDocumentRepository{db: db}
}

const vexDocumentColumns = `
	id, document_id, version, author, role, created_at, updated_at
`

// FindByID returns one document, or shared.ErrNotFound.
func (r *VEXDocumentRepository) FindByID(ctx context.Context, id shared.ID) (*vex.Document, error) {
	query := `SELECT ` + vexDocumentColumns + ` FROM vex_documents WHERE id = $1`
	row := r.db.QueryRowContext(ctx, query, id.String())

	d, err := r.scanOne(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: vex document", shared.ErrNotFound)
	}
	return d, err
}

// FindByDocumentID returns the document with the given external id, or
// shared.ErrNotFound.
func (r *VEXDocumentRepository) FindByDocumentID(ctx context.Context, documentID string) (*vex.Document, error) {
	query := `SELECT ` + vexDocumentColumns + ` FROM vex_documents WHERE document_id = $1`
	row := r.db.QueryRowContext(ctx, query, documentID)

	d, err := r.scanOne(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: vex document %q", shared.ErrNotFound, documentID)
	}
	return d, err
}

// Save upserts a document.
func (r *VEXDocumentRepository) Save(ctx context.Context, d *vex.Document) error {
	query := `
		INSERT INTO vex_documents (` + vexDocumentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			version = EXCLUDED.version,
			author = EXCLUDED.author,
			role = EXCLUDED.role,
			updated_at = EXCLUDED.updated_at`

	_, err := r.db.ExecContext(ctx, query,
		d.ID().String(),
		d.DocumentID(),
		nullString(d.Version()),
		nullString(d.Author()),
		nullString(d.Role()),
		d.CreatedAt(),
		d.UpdatedAt(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: vex document %q", shared.ErrAlreadyExists, d.DocumentID())
		}
		return fmt.Errorf("failed to save vex document: %w", err)
	}
	return nil
}

func (r *VEXDocumentRepository) scanOne(row rowScanner) (*vex.Document, error) {
	var (
		data vex.DocumentData

		idStr                 string
		version, author, role sql.NullString
	)

	err := row.Scan(&idStr, &data.DocumentID, &version, &author, &role, &data.CreatedAt, &data.UpdatedAt)
	if err != nil {
		return nil, err
	}

	data.ID, err = shared.IDFromString(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid vex document id: %w", err)
	}
	data.Version = nullStringValue(version)
	data.Author = nullStringValue(author)
	data.Role = nullStringValue(role)

	return vex.ReconstituteDocument(data), nil
}

// VEXStatementRepository implements vex.StatementRepository using
// PostgreSQL. Load order is insertion order within a document.
type VEXStatementRepository struct {
	db *DB
}

// NewVEXStatementRepository creates a new VEXStatementRepository.
func NewVEXStatementRepository(db *DB) *VEXStatementRepository {
	return &VEXStatementRepository{db: db}
}

const vexStatementColumns = `
	s.id, s.document_id, d.document_id, s.vulnerability_id,
	s.product_purl, s.component_purl, s.status, s.justification,
	s.impact, s.remediation, s.created_at
`

const vexStatementFrom = ` FROM vex_statements s JOIN vex_documents d ON d.id = s.document_id`

// FindByPURLPrefix returns all statements whose product purl starts with the
// given prefix, in load order.
func (r *VEXStatementRepository) FindByPURLPrefix(ctx context.Context, prefix string) ([]*vex.Statement, error) {
	query := `SELECT ` + vexStatementColumns + vexStatementFrom + `
		WHERE s.product_purl LIKE $1 || '%'
		ORDER BY s.created_at, s.id`
	return r.query(ctx, query, prefix)
}

// FindByDocument returns all statements of a document, in load order.
func (r *VEXStatementRepository) FindByDocument(ctx context.Context, documentID shared.ID) ([]*vex.Statement, error) {
	query := `SELECT ` + vexStatementColumns + vexStatementFrom + `
		WHERE s.document_id = $1
		ORDER BY s.created_at, s.id`
	return r.query(ctx, query, documentID.String())
}

// ReplaceForDocument replaces all statements of a document in one
// transaction.
func (r *VEXStatementRepository) ReplaceForDocument(ctx context.Context, documentID shared.ID, statements []*vex.Statement) error {
	return r.db.Transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM vex_statements WHERE document_id = $1`, documentID.String()); err != nil {
			return fmt.Errorf("failed to delete vex statements: %w", err)
		}

		insert := `
			INSERT INTO vex_statements (
				id, document_id, vulnerability_id, product_purl, component_purl,
				status, justification, impact, remediation, created_at
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

		for _, stmt := range statements {
			_, err := tx.ExecContext(ctx, insert,
				stmt.ID().String(),
				documentID.String(),
				stmt.VulnerabilityID(),
				stmt.ProductPURL(),
				nullString(stmt.ComponentPURL()),
				string(stmt.Status()),
				nullString(string(stmt.Justification())),
				nullString(stmt.Impact()),
				nullString(stmt.Remediation()),
				stmt.CreatedAt(),
			)
			if err != nil {
				return fmt.Errorf("failed to insert vex statement: %w", err)
			}
		}
		return nil
	})
}

func (r *VEXStatementRepository) query(ctx context.Context, query string, args ...any) ([]*vex.Statement, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query vex statements: %w", err)
	}
	defer rows.Close()

	var out []*vex.Statement
	for rows.Next() {
		stmt, err := r.scanOne(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan vex statement: %w", err)
		}
		out = append(out, stmt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate vex statements: %w", err)
	}
	return out, nil
}

func (r *VEXStatementRepository) scanOne(row rowScanner) (*vex.Statement, error) {
	var (
		data vex.StatementData

		idStr, documentIDStr string
		componentPURL        sql.NullString
		status               string
		justification        sql.NullString
		impact, remediation  sql.NullString
	)

	err := row.Scan(
		&idStr, &documentIDStr, &data.DocumentLabel, &data.VulnerabilityID,
		&data.ProductPURL, &componentPURL, &status, &justification,
		&impact, &remediation, &data.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	data.ID, err = shared.IDFromString(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid vex statement id: %w", err)
	}
	data.DocumentID, err = shared.IDFromString(documentIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid vex document id: %w", err)
	}
	data.ComponentPURL = nullStringValue(componentPURL)
	data.Status = vex.StatementStatus(status)
	data.Justification = observationJustification(justification)
	data.Impact = nullStringValue(impact)
	data.Remediation = nullStringValue(remediation)

	return vex.ReconstituteStatement(data), nil
}
