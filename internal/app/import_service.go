package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/openctemio/observe/internal/app/ingest"
	"github.com/openctemio/observe/pkg/domain/observation"
	"github.com/openctemio/observe/pkg/domain/product"
	"github.com/openctemio/observe/pkg/domain/shared"
	"github.com/openctemio/observe/pkg/logger"
)

// ImportService drives one scan import end to end: it resolves the scan
// context, runs the reconciler with the product's rule engine, and applies
// freshly relevant VEX statements afterwards.
type ImportService struct {
	products   product.Repository
	branches   product.BranchRepository
	reconciler *ingest.Reconciler
	ruleApply  *RuleApplyService
	vexApply   *VEXApplyService
	logger     *logger.Logger
}

// NewImportService creates a new import service.
func NewImportService(
	products product.Repository,
	branches product.BranchRepository,
	reconciler *ingest.Reconciler,
	ruleApply *RuleApplyService,
	vexApply *VEXApplyService,
	log *logger.Logger,
) *ImportService {
	return &ImportService{
		products:   products,
		branches:   branches,
		reconciler: reconciler,
		ruleApply:  ruleApply,
		vexApply:   vexApply,
		logger:     log.With("service", "import"),
	}
}

// ImportInput describes one scan import.
type ImportInput struct {
	ProductName          string
	BranchName           string
	ScannerName          string
	UploadFilename       string
	APIConfigurationName string
	Candidates           []ingest.Candidate
}

// Import reconciles the candidates of one scan against the stored
// observations of the scan context. Branches are created on first sight;
// products must already exist.
func (s *ImportService) Import(ctx context.Context, input ImportInput) (ingest.Counts, error) {
	if input.ScannerName == "" {
		return ingest.Counts{}, fmt.Errorf("%w: scanner name is required", shared.ErrValidation)
	}
	if input.UploadFilename == "" && input.APIConfigurationName == "" {
		return ingest.Counts{}, fmt.Errorf("%w: either upload filename or api configuration name is required", shared.ErrValidation)
	}

	p, err := s.products.FindByName(ctx, input.ProductName)
	if err != nil {
		return ingest.Counts{}, fmt.Errorf("failed to resolve product: %w", err)
	}

	sc := observation.ScanContext{
		ProductID:            p.ID(),
		UploadFilename:       input.UploadFilename,
		APIConfigurationName: input.APIConfigurationName,
	}

	if input.BranchName != "" {
		b, err := s.resolveBranch(ctx, p.ID(), input.BranchName)
		if err != nil {
			return ingest.Counts{}, err
		}
		branchID := b.ID()
		sc.BranchID = &branchID
	}

	engine, err := s.ruleApply.EngineForProduct(ctx, p)
	if err != nil {
		return ingest.Counts{}, err
	}

	counts, _, err := s.reconciler.Run(ctx, sc, input.ScannerName, input.Candidates, engine)
	if err != nil {
		return ingest.Counts{}, err
	}

	// New or updated observations may now fall under stored VEX statements.
	// The reconciliation result stands either way, so a failed VEX pass
	// degrades to a warning.
	if counts.New > 0 || counts.Updated > 0 {
		if _, err := s.vexApply.ApplyToProduct(ctx, p.ID()); err != nil {
			s.logger.Warn("vex pass after import failed", "product", p.Name(), "error", err)
		}
	}

	s.logger.Info("scan imported",
		"product", p.Name(),
		"branch", input.BranchName,
		"scanner", input.ScannerName,
		"new", counts.New,
		"updated", counts.Updated,
		"resolved", counts.Resolved,
		"skipped", counts.Skipped,
	)
	return counts, nil
}

// resolveBranch finds the branch by name, creating it on first sight.
func (s *ImportService) resolveBranch(ctx context.Context, productID shared.ID, name string) (*product.Branch, error) {
	b, err := s.branches.FindByName(ctx, productID, name)
	if err == nil {
		return b, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, fmt.Errorf("failed to resolve branch: %w", err)
	}

	b, err = product.NewBranch(productID, name)
	if err != nil {
		return nil, err
	}
	if err := s.branches.Save(ctx, b); err != nil {
		return nil, fmt.Errorf("failed to create branch: %w", err)
	}
	s.logger.Info("branch created", "product_id", productID.String(), "branch", name)
	return b, nil
}
