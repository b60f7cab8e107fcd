package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openctemio/observe/internal/app/ingest"
	"github.com/openctemio/observe/pkg/domain/observation"
	"github.com/openctemio/observe/pkg/domain/product"
	"github.com/openctemio/observe/pkg/domain/shared"
	"github.com/openctemio/observe/pkg/logger"
)

func newImportFixture(t *testing.T) (*ImportService, *product.Product, *mockBranchRepo, *mockObservationRepo) {
	t.Helper()
	productRepo := newMockProductRepo()
	branchRepo := newMockBranchRepo()
	obsRepo := newMockObservationRepo()
	logRepo := &mockLogRepo{}
	ruleRepo := newMockRuleRepo()
	stmtRepo := newMockStatementRepo()

	p, err := product.NewProduct("shop-backend")
	require.NoError(t, err)
	require.NoError(t, productRepo.Save(context.Background(), p))

	log := logger.NewNop()
	reconciler := ingest.NewReconciler(obsRepo, logRepo, branchRepo, log)
	ruleApply := NewRuleApplyService(ruleRepo, productRepo, obsRepo, logRepo, log)
	vexApply := NewVEXApplyService(stmtRepo, productRepo, branchRepo, obsRepo, logRepo, log)
	svc := NewImportService(productRepo, branchRepo, reconciler, ruleApply, vexApply, log)
	return svc, p, branchRepo, obsRepo
}

func TestImportCreatesBranchOnFirstSight(t *testing.T) {
	svc, p, branchRepo, obsRepo := newImportFixture(t)

	input := ImportInput{
		ProductName:    p.Name(),
		BranchName:     "main",
		ScannerName:    "trivy",
		UploadFilename: "scan.json",
		Candidates: []ingest.Candidate{
			{Title: "CVE-2024-0001", ParserSeverity: observation.SeverityHigh},
		},
	}

	counts, err := svc.Import(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, ingest.Counts{New: 1}, counts)
	assert.Len(t, branchRepo.byID, 1)
	assert.Len(t, obsRepo.byID, 1)

	// Re-importing the same branch reuses it; an unchanged observation
	// counts neither as updated nor as skipped.
	counts, err = svc.Import(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, ingest.Counts{}, counts)
	assert.Len(t, branchRepo.byID, 1)
}

func TestImportRequiresScannerName(t *testing.T) {
	svc, p, _, _ := newImportFixture(t)

	_, err := svc.Import(context.Background(), ImportInput{
		ProductName:    p.Name(),
		UploadFilename: "scan.json",
	})

	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestImportRequiresScanContextKey(t *testing.T) {
	svc, p, _, _ := newImportFixture(t)

	_, err := svc.Import(context.Background(), ImportInput{
		ProductName: p.Name(),
		ScannerName: "trivy",
	})

	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestImportUnknownProduct(t *testing.T) {
	svc, _, _, _ := newImportFixture(t)

	_, err := svc.Import(context.Background(), ImportInput{
		ProductName:    "no-such-product",
		ScannerName:    "trivy",
		UploadFilename: "scan.json",
	})

	assert.ErrorIs(t, err, shared.ErrNotFound)
}
