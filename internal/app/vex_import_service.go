package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/openctemio/observe/pkg/domain/observation"
	"github.com/openctemio/observe/pkg/domain/shared"
	"github.com/openctemio/observe/pkg/domain/vex"
	"github.com/openctemio/observe/pkg/logger"
)

// VEXImportService stores VEX documents and their statements. Re-importing a
// document replaces its statements wholesale; afterwards the statements are
// applied to every product whose effective purl they cover.
type VEXImportService struct {
	documents  vex.DocumentRepository
	statements vex.StatementRepository
	vexApply   *VEXApplyService
	logger     *logger.Logger
}

// NewVEXImportService creates a new VEX import service.
func NewVEXImportService(
	documents vex.DocumentRepository,
	statements vex.StatementRepository,
	vexApply *VEXApplyService,
	log *logger.Logger,
) *VEXImportService {
	return &VEXImportService{
		documents:  documents,
		statements: statements,
		vexApply:   vexApply,
		logger:     log.With("service", "vex_import"),
	}
}

// VEXStatementInput is one statement of an imported VEX document.
type VEXStatementInput struct {
	VulnerabilityID string
	ProductPURL     string
	ComponentPURL   string
	Status          string
	Justification   string
	Impact          string
	Remediation     string
}

// VEXDocumentInput is one imported VEX document with its statements.
type VEXDocumentInput struct {
	DocumentID string
	Version    string
	Author     string
	Role       string
	Statements []VEXStatementInput
}

// ImportResult summarizes one VEX document import.
type ImportResult struct {
	Document   *vex.Document
	Statements int
	Applied    int
}

// ImportDocument upserts the document, replaces its statements, and applies
// the new statements to all matching products.
func (s *VEXImportService) ImportDocument(ctx context.Context, input VEXDocumentInput) (ImportResult, error) {
	doc, err := s.upsertDocument(ctx, input)
	if err != nil {
		return ImportResult{}, err
	}

	statements := make([]*vex.Statement, 0, len(input.Statements))
	for i, in := range input.Statements {
		stmt, err := s.buildStatement(doc, in)
		if err != nil {
			return ImportResult{}, fmt.Errorf("statement %d: %w", i, err)
		}
		statements = append(statements, stmt)
	}

	if err := s.statements.ReplaceForDocument(ctx, doc.ID(), statements); err != nil {
		return ImportResult{}, fmt.Errorf("failed to store vex statements: %w", err)
	}

	applied, err := s.vexApply.ApplyStatementsAfterImport(ctx, statements)
	if err != nil {
		return ImportResult{}, err
	}

	s.logger.Info("vex document imported",
		"document_id", doc.DocumentID(),
		"statements", len(statements),
		"observations_changed", applied,
	)
	return ImportResult{Document: doc, Statements: len(statements), Applied: applied}, nil
}

func (s *VEXImportService) upsertDocument(ctx context.Context, input VEXDocumentInput) (*vex.Document, error) {
	doc, err := s.documents.FindByDocumentID(ctx, input.DocumentID)
	switch {
	case err == nil:
		doc.SetMetadata(input.Version, input.Author, input.Role)
	case errors.Is(err, shared.ErrNotFound):
		doc, err = vex.NewDocument(input.DocumentID)
		if err != nil {
			return nil, err
		}
		doc.SetMetadata(input.Version, input.Author, input.Role)
	default:
		return nil, fmt.Errorf("failed to look up vex document: %w", err)
	}

	if err := s.documents.Save(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to save vex document: %w", err)
	}
	return doc, nil
}

func (s *VEXImportService) buildStatement(doc *vex.Document, in VEXStatementInput) (*vex.Statement, error) {
	status := vex.StatementStatus(in.Status)
	if !status.IsValid() {
		return nil, fmt.Errorf("%w: invalid vex status %q", shared.ErrValidation, in.Status)
	}

	stmt, err := vex.NewStatement(doc, in.VulnerabilityID, in.ProductPURL, status)
	if err != nil {
		return nil, err
	}
	if in.ComponentPURL != "" {
		stmt.SetComponentPURL(in.ComponentPURL)
	}
	stmt.SetDetails(observation.Justification(in.Justification), in.Impact, in.Remediation)
	return stmt, nil
}
